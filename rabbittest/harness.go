package rabbittest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/bigchange/busharness/address"
	"github.com/bigchange/busharness/bus"
	"github.com/bigchange/busharness/vhost"
)

const (
	// DefaultInputQueueName is the receive endpoint queue when none is configured.
	DefaultInputQueueName = vhost.LegacyBase
	// DefaultHostAddress is a local broker, default virtual host.
	DefaultHostAddress = "rabbitmq://localhost/"
	// DefaultTestTimeout bounds starting and stopping the bus.
	DefaultTestTimeout = 30 * time.Second

	defaultUsername = "guest"
	defaultPassword = "guest"

	inputPrefetchCount = 16
)

// Harness creates a bus with a single receive endpoint for integration tests.
// Before the endpoint is declared, the virtual host is reset: queues and exchanges
// of the legacy and the configured input queue name are deleted.
//
// Harness is not safe for concurrent use.
type Harness struct {
	hostAddress       address.Host
	inputQueueName    string
	inputQueueAddress *url.URL
	username          string
	password          string
	nodeHostName      string
	testTimeout       time.Duration
	logger            zerolog.Logger
	formatter         bus.NameFormatter

	// cleanupDialer connects the virtual host reset, replaced in tests.
	cleanupDialer func(settings bus.HostSettings) vhost.DialFunc

	host        *bus.Host
	bus         *bus.Bus
	lastCleanup vhost.Report

	onConfigureBus                     []func(c *bus.Configurator)
	onConfigureRabbitMQBus             []func(c *bus.Configurator)
	onConfigureRabbitMQBusHost         []func(c *bus.Configurator, host *bus.Host)
	onConfigureRabbitMQHost            []func(h *bus.HostConfigurator)
	onConfigureReceiveEndpoint         []func(e *bus.EndpointConfigurator)
	onConfigureRabbitMQReceiveEndpoint []func(e *bus.EndpointConfigurator)
	onCleanupVirtualHost               []func(ch vhost.Channel) error
}

// New creates a Harness for a local broker, guest credentials and "input_queue" endpoint.
// Pass Options to configure it.
func New(ops ...Option) *Harness {
	h := Harness{
		hostAddress:    address.MustParse(DefaultHostAddress),
		inputQueueName: DefaultInputQueueName,
		username:       defaultUsername,
		password:       defaultPassword,
		testTimeout:    DefaultTestTimeout,
		logger:         zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger(),
		formatter:      bus.DefaultNameFormatter{},
		cleanupDialer: func(settings bus.HostSettings) vhost.DialFunc {
			return vhost.AMQPDialer(settings.Dial)
		},
	}

	for _, op := range ops {
		op(&h)
	}

	h.inputQueueAddress = h.hostAddress.QueueAddress(h.inputQueueName)

	return &h
}

// OnConfigureBus registers a callback for bus configuration.
func (h *Harness) OnConfigureBus(fn func(c *bus.Configurator)) {
	h.onConfigureBus = append(h.onConfigureBus, fn)
}

// OnConfigureRabbitMQBus registers a callback for RabbitMQ bus configuration, called after OnConfigureBus.
func (h *Harness) OnConfigureRabbitMQBus(fn func(c *bus.Configurator)) {
	h.onConfigureRabbitMQBus = append(h.onConfigureRabbitMQBus, fn)
}

// OnConfigureRabbitMQBusHost registers a callback receiving the configured host.
func (h *Harness) OnConfigureRabbitMQBusHost(fn func(c *bus.Configurator, host *bus.Host)) {
	h.onConfigureRabbitMQBusHost = append(h.onConfigureRabbitMQBusHost, fn)
}

// OnConfigureRabbitMQHost registers a callback for host configuration, e.g. credentials or heartbeat.
func (h *Harness) OnConfigureRabbitMQHost(fn func(hc *bus.HostConfigurator)) {
	h.onConfigureRabbitMQHost = append(h.onConfigureRabbitMQHost, fn)
}

// OnConfigureReceiveEndpoint registers a callback for the input queue endpoint.
func (h *Harness) OnConfigureReceiveEndpoint(fn func(e *bus.EndpointConfigurator)) {
	h.onConfigureReceiveEndpoint = append(h.onConfigureReceiveEndpoint, fn)
}

// OnConfigureRabbitMQReceiveEndpoint registers a callback for the input queue endpoint,
// called after OnConfigureReceiveEndpoint.
func (h *Harness) OnConfigureRabbitMQReceiveEndpoint(fn func(e *bus.EndpointConfigurator)) {
	h.onConfigureRabbitMQReceiveEndpoint = append(h.onConfigureRabbitMQReceiveEndpoint, fn)
}

// OnCleanupVirtualHost registers a callback for additional cleanup.
// It gets the cleanup channel after the built-in deletions; type-assert to *amqp091.Channel
// for more than deletions. Errors are logged only.
func (h *Harness) OnCleanupVirtualHost(fn func(ch vhost.Channel) error) {
	h.onCleanupVirtualHost = append(h.onCleanupVirtualHost, fn)
}

// CreateBus configures the host, resets the virtual host and configures the bus
// with the input queue receive endpoint. The bus is not started.
//
// Hooks fire in order: RabbitMQ host, virtual host cleanup, bus, RabbitMQ bus,
// RabbitMQ bus host, receive endpoint, RabbitMQ receive endpoint.
// A failed cleanup is logged and never fails the bus creation.
func (h *Harness) CreateBus() (*bus.Bus, error) {
	b, err := bus.CreateUsingRabbitMQ(
		func(c *bus.Configurator) {
			h.host = h.configureHost(c)

			h.cleanUpVirtualHost(h.host)

			for _, fn := range h.onConfigureBus {
				fn(c)
			}
			for _, fn := range h.onConfigureRabbitMQBus {
				fn(c)
			}
			for _, fn := range h.onConfigureRabbitMQBusHost {
				fn(c, h.host)
			}

			c.ReceiveEndpoint(h.host, h.inputQueueName, func(e *bus.EndpointConfigurator) {
				e.PrefetchCount = inputPrefetchCount
				e.PurgeOnStartup = true

				for _, fn := range h.onConfigureReceiveEndpoint {
					fn(e)
				}
				for _, fn := range h.onConfigureRabbitMQReceiveEndpoint {
					fn(e)
				}

				h.inputQueueAddress = e.InputAddress()
			})
		},
		bus.WithLogger(h.logger),
		bus.WithNameFormatter(h.formatter),
	)
	if err != nil {
		return nil, err
	}

	h.bus = b

	return b, nil
}

// Start creates the bus and starts it, bounded by the test timeout.
func (h *Harness) Start(ctx context.Context) (*bus.Bus, error) {
	b, err := h.CreateBus()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.testTimeout)
	defer cancel()

	if err := b.Start(ctx); err != nil {
		return nil, err
	}

	h.logger.Debug().Str("address", h.inputQueueAddress.String()).Msg("bus started")

	return b, nil
}

// Stop stops the bus, bounded by the test timeout. No-op if the bus was not created.
func (h *Harness) Stop(ctx context.Context) error {
	if h.bus == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.testTimeout)
	defer cancel()

	if err := h.bus.Stop(ctx); err != nil {
		return fmt.Errorf("stop bus: %w", err)
	}

	return nil
}

// Bus returns the last created bus, nil before CreateBus.
func (h *Harness) Bus() *bus.Bus {
	return h.bus
}

// Host returns the configured host, nil before CreateBus.
func (h *Harness) Host() *bus.Host {
	return h.host
}

// HostAddress returns the broker address.
func (h *Harness) HostAddress() address.Host {
	return h.hostAddress
}

// SetHostAddress changes the broker address and recomputes the input queue address.
func (h *Harness) SetHostAddress(addr address.Host) {
	h.hostAddress = addr
	h.inputQueueAddress = addr.QueueAddress(h.inputQueueName)
}

// SetCredentials changes credentials used by the next CreateBus.
func (h *Harness) SetCredentials(username, password string) {
	h.username = username
	h.password = password
}

// SetNodeHostName connects to the given cluster node instead of the address host.
func (h *Harness) SetNodeHostName(node string) {
	h.nodeHostName = node
}

// InputQueueName returns the receive endpoint queue name.
func (h *Harness) InputQueueName() string {
	return h.inputQueueName
}

// InputQueueAddress returns the receive endpoint address.
// After CreateBus it is the address resolved by the endpoint, including prefetch.
func (h *Harness) InputQueueAddress() *url.URL {
	u := *h.inputQueueAddress

	return &u
}

// TestTimeout returns the timeout for starting and stopping the bus.
func (h *Harness) TestTimeout() time.Duration {
	return h.testTimeout
}

// LastCleanup returns the report of the last virtual host cleanup.
func (h *Harness) LastCleanup() vhost.Report {
	return h.lastCleanup
}

func (h *Harness) configureHost(c *bus.Configurator) *bus.Host {
	return c.Host(h.hostAddress, func(hc *bus.HostConfigurator) {
		hc.Username(h.username)
		hc.Password(h.password)

		if h.nodeHostName != "" {
			hc.UseCluster(h.nodeHostName)
		}

		for _, fn := range h.onConfigureRabbitMQHost {
			fn(hc)
		}
	})
}

// cleanUpVirtualHost deletes resources of the legacy and the configured input queue.
// Failures are logged and otherwise ignored, an unreachable broker looks the same as a clean one.
func (h *Harness) cleanUpVirtualHost(host *bus.Host) {
	ops := []vhost.Option{vhost.WithLogger(h.logger)}
	for _, fn := range h.onCleanupVirtualHost {
		ops = append(ops, vhost.WithAfterDelete(fn))
	}

	report := vhost.Reset(
		h.cleanupDialer(host.Settings()),
		[]string{vhost.LegacyBase, h.inputQueueName},
		ops...,
	)
	if report.Err != nil {
		h.logger.Warn().
			Err(report.Err).
			Int("failed", len(report.Failed())).
			Str("host", host.Address().String()).
			Msg("can't clean up virtual host")
	}

	h.lastCleanup = report
}
