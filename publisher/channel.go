package publisher

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel publishes messages, e.g. channel.Reopener or *amqp.Channel.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// ChannelFunc adapts a function to Channel.
type ChannelFunc func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error

// PublishWithContext implements Channel.
func (f ChannelFunc) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return f(ctx, exchange, key, mandatory, immediate, msg)
}

// Middleware decorates a single publishing.
type Middleware func(next Channel) Channel

// Wrap decorates ch so that mws see the publishing in the given order.
//
//nolint:ireturn // decorated channel
func Wrap(ch Channel, mws ...Middleware) Channel {
	for i := len(mws) - 1; i >= 0; i-- {
		ch = mws[i](ch)
	}

	return ch
}

// Modify is a Middleware changing message properties before publishing.
func Modify(fn func(msg *amqp.Publishing)) Middleware {
	return func(next Channel) Channel {
		return ChannelFunc(func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
			fn(&msg)

			return next.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
		})
	}
}

// Redirect publishes to another exchange with another routing key,
// e.g. to move a delivery to a fault queue through the default exchange.
func Redirect(exchange, key string) Middleware {
	return func(next Channel) Channel {
		return ChannelFunc(func(ctx context.Context, _, _ string, mandatory, immediate bool, msg amqp.Publishing) error {
			return next.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
		})
	}
}
