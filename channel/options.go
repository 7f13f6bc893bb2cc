package channel

import (
	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

// WithOpenCallback sets callback function on channel opening.
// Given function will receive a newly opened channel.
// Could be used to set up listeners for various evens (NotifyCancel, NotifyFlow, etc.) after channel re-opening.
func WithOpenCallback(fn func(channel *amqp.Channel) error) Option {
	return func(r *Reopener) {
		r.onOpen = append(r.onOpen, fn)
	}
}

// WithQOS sets channel Quality of Service on every opened channel.
// Please refer to https://www.rabbitmq.com/consumer-prefetch.html.
func WithQOS(prefetchCount, prefetchSize int, global bool) Option {
	return WithOpenCallback(func(ch *amqp.Channel) error {
		return ch.Qos(prefetchCount, prefetchSize, global)
	})
}

// WithBackoff sets backoff for re-opening.
func WithBackoff(bo backoff.BackOff) Option {
	return func(r *Reopener) {
		r.backoff = bo
	}
}
