package rabbittest

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/bigchange/busharness/address"
	"github.com/bigchange/busharness/bus"
	"github.com/bigchange/busharness/vhost"
)

// Option to configure Harness.
type Option func(h *Harness)

// WithInputQueueName sets the receive endpoint queue. An empty name keeps the default.
func WithInputQueueName(name string) Option {
	return func(h *Harness) {
		if name != "" {
			h.inputQueueName = name
		}
	}
}

// WithHostAddress sets the broker address.
func WithHostAddress(addr address.Host) Option {
	return func(h *Harness) {
		h.hostAddress = addr
	}
}

// WithCredentials sets username and password.
func WithCredentials(username, password string) Option {
	return func(h *Harness) {
		h.username = username
		h.password = password
	}
}

// WithNodeHostName connects to the given cluster node instead of the address host.
func WithNodeHostName(node string) Option {
	return func(h *Harness) {
		h.nodeHostName = node
	}
}

// WithLogger sets logger for the harness and the bus.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithTestTimeout bounds starting and stopping the bus.
func WithTestTimeout(timeout time.Duration) Option {
	return func(h *Harness) {
		h.testTimeout = timeout
	}
}

// WithNameFormatter sets message type naming of the bus.
func WithNameFormatter(f bus.NameFormatter) Option {
	return func(h *Harness) {
		h.formatter = f
	}
}

// WithConfig applies configuration, usually loaded by ConfigFromEnv.
func WithConfig(cfg Config) Option {
	return func(h *Harness) {
		h.hostAddress = cfg.Host
		h.username = cfg.Username
		h.password = cfg.Password
		h.nodeHostName = cfg.NodeHostName
		if cfg.InputQueueName != "" {
			h.inputQueueName = cfg.InputQueueName
		}
		if cfg.TestTimeout > 0 {
			h.testTimeout = cfg.TestTimeout
		}
	}
}

// WithCleanupVirtualHost registers a callback like Harness.OnCleanupVirtualHost.
func WithCleanupVirtualHost(fn func(ch vhost.Channel) error) Option {
	return func(h *Harness) {
		h.OnCleanupVirtualHost(fn)
	}
}

// WithConfigureRabbitMQHost registers a callback like Harness.OnConfigureRabbitMQHost.
func WithConfigureRabbitMQHost(fn func(hc *bus.HostConfigurator)) Option {
	return func(h *Harness) {
		h.OnConfigureRabbitMQHost(fn)
	}
}

// WithConfigureReceiveEndpoint registers a callback like Harness.OnConfigureReceiveEndpoint.
func WithConfigureReceiveEndpoint(fn func(e *bus.EndpointConfigurator)) Option {
	return func(h *Harness) {
		h.OnConfigureReceiveEndpoint(fn)
	}
}
