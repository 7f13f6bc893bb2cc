package process

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Transaction handles body of a single message.
type Transaction func(context.Context, []byte) error

// DeliveryHandler specifies how to handle raw RabbitMQ delivery.
type DeliveryHandler func(context.Context, amqp.Delivery) error

// Middleware specifies middlewares for processing RabbitMQ delivery.
// Could be used for logging, tracing, etc.
type Middleware func(DeliveryHandler) DeliveryHandler

// FaultHandler takes over a delivery the handler failed on, e.g. moves it to an error queue.
// Returning nil means the fault was handled and the delivery is acknowledged.
type FaultHandler func(ctx context.Context, d amqp.Delivery, err error) error

// One processes deliveries one-by-one.
// Implements consumer.Processor.
type One struct {
	handler       DeliveryHandler
	onFault       FaultHandler
	rejectRequeue bool
}

// Option to configure One.
type Option func(o *One)

// WithFaultHandler sets handler for failed deliveries.
func WithFaultHandler(fn FaultHandler) Option {
	return func(o *One) {
		o.onFault = fn
	}
}

// WithRejectRequeue requeues rejected deliveries instead of dropping them.
func WithRejectRequeue() Option {
	return func(o *One) {
		o.rejectRequeue = true
	}
}

// ByOne creates new One processor.
// It passes each delivery to the handler and acks it, or rejects it if both handler and fault handler failed.
func ByOne(handler DeliveryHandler, ops ...Option) *One {
	one := One{
		handler:       handler,
		onFault:       nil,
		rejectRequeue: false,
	}

	for _, op := range ops {
		op(&one)
	}

	return &one
}

// Process deliveries until the channel is closed.
func (o *One) Process(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for d := range deliveries {
		err := o.handler(ctx, d)
		if err != nil && o.onFault != nil {
			err = o.onFault(ctx, d, err)
		}

		if ackErr := settle(d.Acknowledger, d.DeliveryTag, err != nil, o.rejectRequeue); ackErr != nil {
			return ackErr
		}
	}

	return nil
}

// Handle adapts transaction to DeliveryHandler.
func Handle(tx Transaction) DeliveryHandler {
	return func(ctx context.Context, d amqp.Delivery) error {
		if err := tx(ctx, d.Body); err != nil {
			return fmt.Errorf("delivery transaction: %w", err)
		}

		return nil
	}
}

// Wrap handler with middlewares, first middleware is the outermost.
func Wrap(handler DeliveryHandler, mws ...Middleware) DeliveryHandler {
	// apply in reverse order because we are wrapping
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}

	return handler
}
