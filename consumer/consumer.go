package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConsuming is returned by Ready when the consumer stopped before the broker registered it.
var ErrNotConsuming = errors.New("consumer is not consuming")

// Channel is a channel which registers consumers in the background, e.g. channel.Reopener.
//
// NotifyConsume must report every attempt to register a consumer and
// close the listeners when the channel is closed.
type Channel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) <-chan amqp.Delivery
	NotifyConsume(c chan error) <-chan error
	Cancel(consumer string, noWait bool) error
	Close() error
}

// Processor consumes all provided deliveries.
type Processor interface {
	Process(ctx context.Context, deliveries <-chan amqp.Delivery) error
}

// ProcessFunc is an adapter to use ordinary functions as Processor.
type ProcessFunc func(ctx context.Context, deliveries <-chan amqp.Delivery) error

// Process implements Processor.
func (f ProcessFunc) Process(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	return f(ctx, deliveries)
}

var tagSeq uint64

// Consumer feeds deliveries of a single queue to a Processor.
type Consumer struct {
	channel Channel
	queue   string
	cfg     config

	mux      sync.Mutex
	stopped  bool
	finished chan struct{} // closed when Start returns

	readyOnce sync.Once
	ready     chan struct{}
	readyErr  error
}

// New creates a Consumer of queue. Without WithConsumerTag the tag is
// "ctag-<queue>-<n>", unique within the process, so it is known before the broker
// registers the consumer.
func New(ch Channel, queue string, ops ...Option) *Consumer {
	cfg := config{args: amqp.Table{}}
	for _, op := range ops {
		op(&cfg)
	}

	if cfg.tag == "" {
		cfg.tag = fmt.Sprintf("ctag-%s-%d", queue, atomic.AddUint64(&tagSeq, 1))
	}

	return &Consumer{
		channel: ch,
		queue:   queue,
		cfg:     cfg,
		ready:   make(chan struct{}),
	}
}

// Queue returns name of the consumed queue.
func (c *Consumer) Queue() string {
	return c.queue
}

// Tag returns consumer tag.
func (c *Consumer) Tag() string {
	return c.cfg.tag
}

// Start registers the consumer and passes deliveries to processor.
// Blocks until deliveries are exhausted and processor returns. Call Stop to stop consuming.
// Start after Stop returns right away.
func (c *Consumer) Start(ctx context.Context, processor Processor) error {
	c.mux.Lock()
	if c.stopped {
		c.mux.Unlock()
		return nil
	}
	finished := make(chan struct{})
	c.finished = finished
	c.mux.Unlock()

	defer close(finished)

	registered := c.channel.NotifyConsume(make(chan error, 1))
	go func() {
		// drained until the channel is closed, later values come from re-opened channels
		for err := range registered {
			c.markReady(err)
		}
		c.markReady(ErrNotConsuming)
	}()

	deliveries := c.channel.Consume(
		c.queue,
		c.cfg.tag,
		c.cfg.autoAck,
		c.cfg.exclusive,
		false, // noLocal is not supported by RabbitMQ
		c.cfg.noWait,
		c.cfg.args,
	)
	if c.cfg.autoAck {
		deliveries = withAcknowledger(autoAcked{}, deliveries)
	}

	return processor.Process(ctx, deliveries)
}

// Ready waits until the broker registered the consumer.
// Returns the registration error, ErrNotConsuming if the consumer was stopped first, or ctx error.
func (c *Consumer) Ready(ctx context.Context) error {
	select {
	case <-c.ready:
		return c.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops consuming, waits for in-flight deliveries and closes the channel.
//
// A registered consumer is cancelled first. A consumer not registered yet is stopped
// by closing the channel only: the broker ignores a cancel of an unknown tag, and
// the consumer registered after it would never be cancelled.
func (c *Consumer) Stop() error {
	c.mux.Lock()
	c.stopped = true
	finished := c.finished
	c.mux.Unlock()

	c.markReady(ErrNotConsuming)

	if c.readyErr == nil {
		// noWait could drop in-flight deliveries
		if err := c.channel.Cancel(c.cfg.tag, false); err != nil {
			return fmt.Errorf("cancel consuming: %w", err)
		}
		wait(finished)
	}

	if err := c.channel.Close(); err != nil {
		return fmt.Errorf("close channel: %w", err)
	}
	wait(finished)

	return nil
}

// wait blocks until finished is closed, nil means Start never ran.
func wait(finished <-chan struct{}) {
	if finished != nil {
		<-finished
	}
}

func (c *Consumer) markReady(err error) {
	c.readyOnce.Do(func() {
		c.readyErr = err
		close(c.ready)
	})
}

// withAcknowledger replaces the acknowledger of every delivery.
func withAcknowledger(acker amqp.Acknowledger, deliveries <-chan amqp.Delivery) <-chan amqp.Delivery {
	out := make(chan amqp.Delivery)

	go func() {
		defer close(out)

		for d := range deliveries {
			d.Acknowledger = acker
			out <- d
		}
	}()

	return out
}

// autoAcked is the acknowledger of deliveries the server acknowledged on sending.
type autoAcked struct{}

func (autoAcked) Ack(uint64, bool) error { return nil }

func (autoAcked) Nack(uint64, bool, bool) error { return nil }

func (autoAcked) Reject(uint64, bool) error { return nil }
