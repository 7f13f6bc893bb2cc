package bus

import (
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Option to configure Bus.
type Option func(b *Bus)

// WithLogger sets logger for bus lifecycle and deliveries.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithBackoff sets backoff for dialing the host on Start. By default, dialing is tried once.
func WithBackoff(bo backoff.BackOff) Option {
	return func(b *Bus) {
		b.backoff = bo
	}
}

// WithNameFormatter sets message type naming.
func WithNameFormatter(f NameFormatter) Option {
	return func(b *Bus) {
		b.formatter = f
	}
}
