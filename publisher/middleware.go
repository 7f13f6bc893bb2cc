package publisher

import (
	"context"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Headers merges table into the message headers, table wins on conflicts.
// Message headers are copied, the caller's table is never changed.
func Headers(table amqp.Table) Middleware {
	return Modify(func(msg *amqp.Publishing) {
		headers := make(amqp.Table, len(msg.Headers)+len(table))
		for k, v := range msg.Headers {
			headers[k] = v
		}
		for k, v := range table {
			headers[k] = v
		}
		msg.Headers = headers
	})
}

// Expiration sets the per-message TTL.
func Expiration(expire time.Duration) Middleware {
	return Modify(func(msg *amqp.Publishing) {
		msg.Expiration = strconv.FormatInt(expire.Milliseconds(), 10)
	})
}

// TransientDeliveryMode publishes a message the broker does not keep on restart.
func TransientDeliveryMode() Middleware {
	return Modify(func(msg *amqp.Publishing) {
		msg.DeliveryMode = amqp.Transient
	})
}

// MessageType sets the type property, used by receive endpoints to pick a handler.
func MessageType(messageType string) Middleware {
	return Modify(func(msg *amqp.Publishing) {
		msg.Type = messageType
	})
}

// CorrelationID sets the correlation id property.
func CorrelationID(id string) Middleware {
	return Modify(func(msg *amqp.Publishing) {
		msg.CorrelationId = id
	})
}

// Mandatory makes the broker return a message no queue is bound for.
// See https://www.rabbitmq.com/amqp-0-9-1-reference.html#basic.publish.mandatory.
func Mandatory() Middleware {
	return func(next Channel) Channel {
		return ChannelFunc(func(ctx context.Context, exchange, key string, _, immediate bool, msg amqp.Publishing) error {
			return next.PublishWithContext(ctx, exchange, key, true, immediate, msg)
		})
	}
}

// Immediate makes the broker return a message no consumer is ready for.
// See https://www.rabbitmq.com/amqp-0-9-1-reference.html#basic.publish.immediate.
func Immediate() Middleware {
	return func(next Channel) Channel {
		return ChannelFunc(func(ctx context.Context, exchange, key string, mandatory, _ bool, msg amqp.Publishing) error {
			return next.PublishWithContext(ctx, exchange, key, mandatory, true, msg)
		})
	}
}
