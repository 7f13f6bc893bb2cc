// Package bus is a small RabbitMQ message bus: a host, receive endpoints with
// their topology, and publishing by message type.
//
// Topology follows the endpoint name: an endpoint "orders" consumes queue
// "orders" bound to a fanout exchange "orders". Every handled message type has
// its own fanout exchange bound to the endpoint exchange. Failed deliveries are
// moved to "orders_error", deliveries of unknown type to "orders_skipped".
package bus

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bigchange/busharness/channel"
	"github.com/bigchange/busharness/connection"
	"github.com/bigchange/busharness/publisher"
)

var (
	// ErrNoHost is returned when the bus has no host configured.
	ErrNoHost = errors.New("no host configured")
	// ErrNoEndpointName is returned for a receive endpoint without a queue name.
	ErrNoEndpointName = errors.New("receive endpoint queue name is empty")
	// ErrNotStarted is returned when publishing on a bus which is not running.
	ErrNotStarted = errors.New("bus is not started")
	// ErrStopping is returned when publishing on a bus which is being stopped.
	ErrStopping = errors.New("bus is stopping")
	// ErrAlreadyStarted is returned when starting a running bus.
	ErrAlreadyStarted = errors.New("bus is already started")
	// ErrUnknownMessageType is returned for deliveries no handler is registered for.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Bus is a configured bus. Call Start to connect and begin consuming.
type Bus struct {
	host      *Host
	endpoints []*EndpointConfigurator
	formatter NameFormatter
	logger    zerolog.Logger
	backoff   backoff.BackOff

	// stopping is set while Stop waits for the lock or shuts down
	stopping atomic.Bool

	mux       sync.Mutex
	conn      *connection.Redialer
	publishCh *channel.Reopener
	running   []*receiveEndpoint
	consuming *errgroup.Group
	declared  map[string]struct{}
}

// CreateUsingRabbitMQ builds a bus from configuration applied by fn.
// It does not connect to the broker.
func CreateUsingRabbitMQ(fn func(c *Configurator), ops ...Option) (*Bus, error) {
	var c Configurator
	fn(&c)

	if c.err != nil {
		return nil, fmt.Errorf("configure bus: %w", c.err)
	}
	if c.host == nil {
		return nil, fmt.Errorf("configure bus: %w", ErrNoHost)
	}

	b := Bus{
		host:      c.host,
		endpoints: c.endpoints,
		formatter: DefaultNameFormatter{},
		logger:    zerolog.Nop(),
		backoff:   &backoff.StopBackOff{},
	}

	for _, op := range ops {
		op(&b)
	}

	return &b, nil
}

// Host returns the bus host.
func (b *Bus) Host() *Host {
	return b.host
}

// InputAddresses returns addresses of all receive endpoints, in configuration order.
func (b *Bus) InputAddresses() []*url.URL {
	addrs := make([]*url.URL, 0, len(b.endpoints))
	for _, e := range b.endpoints {
		addrs = append(addrs, e.InputAddress())
	}

	return addrs
}

// MessageType returns the message type name of v, used as exchange name and AMQP type property.
func (b *Bus) MessageType(v any) string {
	return b.formatter.MessageName(reflect.TypeOf(v))
}

// Start connects to the host, declares endpoint topology and starts consuming.
// It returns once the broker registered every endpoint consumer, ctx bounds the dial too.
// A failure stops everything started so far.
func (b *Bus) Start(ctx context.Context) error {
	b.mux.Lock()
	defer b.mux.Unlock()

	if b.conn != nil {
		return ErrAlreadyStarted
	}

	conn, err := b.host.settings.redial(
		ctx,
		connection.WithBackoff(b.backoff),
		connection.WithDialAttemptCallback(func(err error) {
			if err != nil {
				b.logger.Warn().Err(err).Msg("can't dial broker")
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("start bus: %w", err)
	}

	publishCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("start bus: open publish channel: %w", err)
	}

	b.conn = conn
	b.publishCh = publishCh
	b.declared = map[string]struct{}{}
	b.consuming = &errgroup.Group{}

	for _, cfg := range b.endpoints {
		if err := ctx.Err(); err != nil {
			_ = b.shutdown()
			return fmt.Errorf("start bus: %w", err)
		}

		ep, err := startEndpoint(conn, cfg, b.logger.With().Str("queue", cfg.queue).Logger())
		if err != nil {
			_ = b.shutdown()
			return fmt.Errorf("start bus: endpoint %q: %w", cfg.queue, err)
		}

		b.running = append(b.running, ep)
		b.consuming.Go(func() error {
			return ep.consume()
		})

		if err := ep.consumer.Ready(ctx); err != nil {
			_ = b.shutdown()
			return fmt.Errorf("start bus: endpoint %q: consume: %w", cfg.queue, err)
		}

		b.logger.Info().Str("address", cfg.InputAddress().String()).Msg("receive endpoint started")
	}

	return nil
}

// Stop cancels all consumers, waits for in-flight deliveries and closes the connection.
// Stopping a bus which is not running is a no-op.
//
// When ctx is done first, shutdown goes on in the background and
// Publish and Send return ErrStopping until it completes.
func (b *Bus) Stop(ctx context.Context) error {
	b.stopping.Store(true)

	done := make(chan error, 1)
	go func() {
		b.mux.Lock()
		defer b.mux.Unlock()

		var err error
		if b.conn != nil {
			err = b.shutdown()
		}
		b.stopping.Store(false)

		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("stop bus: %w", ctx.Err())
	}
}

// shutdown stops endpoints and closes the connection. Must be called with the lock held.
func (b *Bus) shutdown() error {
	var errs []error

	for _, ep := range b.running {
		if err := ep.stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop endpoint %q: %w", ep.queue, err))
		}
	}
	if err := b.consuming.Wait(); err != nil {
		errs = append(errs, fmt.Errorf("consume: %w", err))
	}
	if err := b.publishCh.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publish channel: %w", err))
	}
	if err := b.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}

	b.running = nil
	b.conn = nil
	b.publishCh = nil

	return errors.Join(errs...)
}

// Publish publishes a message to the exchange of its type.
// Endpoints handling the type receive it.
func (b *Bus) Publish(ctx context.Context, messageType string, body []byte, mws ...publisher.Middleware) error {
	if b.stopping.Load() {
		return ErrStopping
	}

	b.mux.Lock()
	defer b.mux.Unlock()

	if b.conn == nil {
		return ErrNotStarted
	}

	if _, ok := b.declared[messageType]; !ok {
		if err := declareExchange(b.publishCh, messageType); err != nil {
			return fmt.Errorf("declare message type exchange: %w", err)
		}
		b.declared[messageType] = struct{}{}
	}

	pub := publisher.New(b.publishCh, messageType, publisher.WithMessageType(messageType))

	return pub.Publish(ctx, "", body, mws...)
}

// Send sends a message directly to the receive endpoint queue.
func (b *Bus) Send(ctx context.Context, queue, messageType string, body []byte, mws ...publisher.Middleware) error {
	if b.stopping.Load() {
		return ErrStopping
	}

	b.mux.Lock()
	defer b.mux.Unlock()

	if b.conn == nil {
		return ErrNotStarted
	}

	pub := publisher.New(b.publishCh, queue, publisher.WithMessageType(messageType))

	return pub.Publish(ctx, "", body, mws...)
}
