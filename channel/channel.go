package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Reopener wraps channel to add re-open capabilities.
// All methods of the regular channel are also available.
type Reopener struct {
	*amqp.Channel

	mux     sync.Mutex
	conn    *amqp.Connection
	backoff backoff.BackOff
	closed  bool

	onOpen        []func(*amqp.Channel) error
	reopenNotifs  []chan<- error
	consumeNotifs []chan<- error
}

// New opens a new channel on the connection.
// Open callbacks (WithQOS, WithOpenCallback) are applied to this and every re-opened channel.
// By default re-opening is tried once, use WithBackoff to retry.
func New(conn *amqp.Connection, ops ...Option) (*Reopener, error) {
	r := Reopener{
		mux:     sync.Mutex{},
		conn:    conn,
		backoff: &backoff.StopBackOff{},
	}

	for _, op := range ops {
		op(&r)
	}

	ch, err := r.open()
	if err != nil {
		return nil, err
	}
	r.Channel = ch

	return &r, nil
}

// Option to configure Reopener.
type Option func(r *Reopener)

// NotifyReopen registers a listener for channel re-opening.
// Will send nil on successful re-open or error if re-opening failed.
// Provided channel will be closed on graceful shutdown, it MUST be read.
func (r *Reopener) NotifyReopen(c chan error) <-chan error {
	return r.listen(&r.reopenNotifs, c)
}

// NotifyConsume registers a listener for consumer registration.
// Will send nil each time the broker registered the consumer or error if it could not.
// Provided channel will be closed on graceful shutdown, it MUST be read.
func (r *Reopener) NotifyConsume(c chan error) <-chan error {
	return r.listen(&r.consumeNotifs, c)
}

// listen registers c, or closes it right away if the Reopener is closed.
func (r *Reopener) listen(listeners *[]chan<- error, c chan error) <-chan error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.closed {
		close(c)
		return c
	}
	*listeners = append(*listeners, c)

	return c
}

// PublishWithContext checks if channel is closed and re-opens it if needed.
// Useful to reliably publish events even after channel errors (which closes channel).
//
//nolint:gocritic // interface should be the same as Publish
func (r *Reopener) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	ch := r.current()
	if ch.IsClosed() {
		if err := r.reopen(); err != nil {
			return fmt.Errorf("reopen: %w", err)
		}
		ch = r.current()
	}

	return ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

// Consume consumes with re-opening of the channel. Provides constant flow of the deliveries.
// On graceful closing of the channel or cancelling of the consumer,
// will deliver all remaining deliveries and exit.
func (r *Reopener) Consume(
	queue, consumer string,
	autoAck, exclusive, noLocal, noWait bool,
	args amqp.Table,
) <-chan amqp.Delivery {
	deliveries := make(chan amqp.Delivery)

	go func() {
		defer close(deliveries)

		for {
			ch := r.current()
			if ch.IsClosed() {
				if err := r.reopen(); err != nil { // can't re-open even after retries
					return
				}
				ch = r.current()
			}

			// The chan provided will be closed when the Channel is closed and on a
			// graceful close, no error will be sent.
			channelClosedCh := ch.NotifyClose(make(chan *amqp.Error, 1))

			newDels, err := ch.Consume(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
			r.notify(&r.consumeNotifs, err)
			if err != nil {
				return
			}

			// forward all deliveries until closed
			for d := range newDels {
				deliveries <- d
			}

			select {
			case amqpErr := <-channelClosedCh:
				if amqpErr == nil { // on graceful close no error will be sent
					return
				}
			default: // if no channelClosed notification received, that means delivering was cancelled by user
				return
			}
		}
	}()

	return deliveries
}

// Cancel stops deliveries to the consumer on the current channel.
func (r *Reopener) Cancel(consumer string, noWait bool) error {
	return r.current().Cancel(consumer, noWait)
}

// Close gracefully closes the channel, it won't be re-opened anymore.
// Closes all notification channels.
func (r *Reopener) Close() error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	for _, c := range r.reopenNotifs {
		close(c)
	}
	for _, c := range r.consumeNotifs {
		close(c)
	}

	if r.Channel.IsClosed() {
		return nil
	}

	return r.Channel.Close()
}

func (r *Reopener) current() *amqp.Channel {
	r.mux.Lock()
	defer r.mux.Unlock()

	return r.Channel
}

func (r *Reopener) isClosed() bool {
	r.mux.Lock()
	defer r.mux.Unlock()

	return r.closed
}

func (r *Reopener) reopen() error {
	if r.isClosed() {
		return amqp.ErrClosed
	}

	ch, err := r.open()

	r.mux.Lock()
	if err == nil {
		r.Channel = ch
	}
	r.mux.Unlock()

	r.notify(&r.reopenNotifs, err)

	return err
}

func (r *Reopener) open() (*amqp.Channel, error) {
	var ch *amqp.Channel

	operation := func() error {
		var err error
		ch, err = r.conn.Channel()
		if err != nil {
			return fmt.Errorf("create channel: %w", err)
		}

		for _, fn := range r.onOpen {
			if err := fn(ch); err != nil {
				return fmt.Errorf("on open callback: %w", err)
			}
		}

		return nil
	}

	if err := backoff.Retry(operation, r.backoff); err != nil {
		return nil, err
	}

	return ch, nil
}

func (r *Reopener) notify(listeners *[]chan<- error, err error) {
	r.mux.Lock()
	defer r.mux.Unlock()

	if r.closed {
		return
	}

	for _, c := range *listeners {
		c <- err
	}
}
