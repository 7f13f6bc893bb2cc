package middleware

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/bigchange/busharness/process"
)

// NewDeliveryLogging creates middleware which logs all incoming deliveries.
func NewDeliveryLogging(logger zerolog.Logger) process.Middleware {
	return func(h process.DeliveryHandler) process.DeliveryHandler {
		return func(ctx context.Context, d amqp.Delivery) error {
			logger.Debug().
				Int("bytes", len(d.Body)).
				Str("routing_key", d.RoutingKey).
				Str("type", d.Type).
				Str("message_id", d.MessageId).
				Msg("got delivery")

			return h(ctx, d)
		}
	}
}

// NewErrorLogging creates middleware which logs processing errors.
// The error is passed on, so fault handling still applies.
func NewErrorLogging(logger zerolog.Logger) process.Middleware {
	return func(h process.DeliveryHandler) process.DeliveryHandler {
		return func(ctx context.Context, d amqp.Delivery) error {
			err := h(ctx, d)
			if err != nil {
				logger.Err(err).
					Str("type", d.Type).
					Str("message_id", d.MessageId).
					Msg("can't handle delivery")
			}

			return err
		}
	}
}
