package connection

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

// WithDialledCallback registers a callback for successful AMQP dial.
// Will call func with each created connection.
// Could be used to set up listeners for various evens (NotifyClose, NotifyBlocked, etc.) after re-dial.
func WithDialledCallback(fn func(*amqp.Connection)) Option {
	return func(r *Redialer) {
		r.onDialled = append(r.onDialled, fn)
	}
}

// WithDialAttemptCallback registers a callback for any AMQP dial attempt result.
// Will call func with result for each attempt to dial AMQP.
func WithDialAttemptCallback(fn func(error)) Option {
	return func(r *Redialer) {
		r.onAttempt = append(r.onAttempt, fn)
	}
}

// WithBackoff sets backoff for dialing.
func WithBackoff(bo backoff.BackOff) Option {
	return func(r *Redialer) {
		r.backoff = bo
	}
}

// WithConfig sets amqp.Config used for dialing.
func WithConfig(cfg amqp.Config) Option {
	return func(r *Redialer) {
		r.cfg = cfg
	}
}

// WithClusterURLs adds URLs of other cluster nodes, tried after the main URL.
func WithClusterURLs(urls ...string) Option {
	return func(r *Redialer) {
		r.urls = append(r.urls, urls...)
	}
}

// WithDialContext bounds the first dial by ctx: its deadline limits every attempt
// including the AMQP handshake, and no retry starts once ctx is done.
// A custom amqp.Config.Dial is kept, only retries are then bounded.
func WithDialContext(ctx context.Context) Option {
	return func(r *Redialer) {
		r.dialCtx = ctx
	}
}
