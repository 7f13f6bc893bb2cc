package bus

import (
	"context"
	"net/url"
	"runtime"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bigchange/busharness/address"
	"github.com/bigchange/busharness/connection"
	"github.com/bigchange/busharness/consumer"
	"github.com/bigchange/busharness/process"
)

const (
	defaultHeartbeat = 10 * time.Second
	defaultLocale    = "en_US"
)

// AnyMessageType registers a handler for deliveries no other handler matches.
const AnyMessageType = ""

// Configurator collects bus configuration inside CreateUsingRabbitMQ.
type Configurator struct {
	host      *Host
	endpoints []*EndpointConfigurator
	err       error
}

// Host configures the broker host. Only one host is supported, the last call wins.
func (c *Configurator) Host(addr address.Host, fn func(h *HostConfigurator)) *Host {
	hc := HostConfigurator{
		settings: HostSettings{
			Address:   addr,
			Username:  "guest",
			Password:  "guest",
			Heartbeat: defaultHeartbeat,
		},
	}

	if fn != nil {
		fn(&hc)
	}

	c.host = &Host{settings: hc.settings}

	return c.host
}

// ReceiveEndpoint configures an endpoint consuming from the queue on the host.
// The configuration callback runs immediately.
func (c *Configurator) ReceiveEndpoint(host *Host, queue string, fn func(e *EndpointConfigurator)) {
	switch {
	case host == nil:
		c.fail(ErrNoHost)
		return
	case queue == "":
		c.fail(ErrNoEndpointName)
		return
	}

	e := EndpointConfigurator{
		host:           host,
		queue:          queue,
		PrefetchCount:  runtime.NumCPU() * 2,
		PurgeOnStartup: false,
		handlers:       map[string]process.DeliveryHandler{},
	}

	if fn != nil {
		fn(&e)
	}

	c.endpoints = append(c.endpoints, &e)
}

func (c *Configurator) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// HostConfigurator configures credentials and connection of a host.
type HostConfigurator struct {
	settings HostSettings
}

// Username sets user name.
func (h *HostConfigurator) Username(username string) {
	h.settings.Username = username
}

// Password sets password.
func (h *HostConfigurator) Password(password string) {
	h.settings.Password = password
}

// Heartbeat sets connection heartbeat interval.
func (h *HostConfigurator) Heartbeat(interval time.Duration) {
	h.settings.Heartbeat = interval
}

// UseCluster connects to the given cluster nodes instead of the address host.
// A node is a host name, optionally with a port.
func (h *HostConfigurator) UseCluster(nodes ...string) {
	h.settings.ClusterMembers = append(h.settings.ClusterMembers, nodes...)
}

// Address returns the configured host address.
func (h *HostConfigurator) Address() address.Host {
	return h.settings.Address
}

// Host is a configured broker host.
type Host struct {
	settings HostSettings
}

// Settings returns host settings.
func (h *Host) Settings() HostSettings {
	return h.settings
}

// Address returns host address.
func (h *Host) Address() address.Host {
	return h.settings.Address
}

// HostSettings describes how to connect to a host.
type HostSettings struct {
	Address        address.Host
	Username       string
	Password       string
	ClusterMembers []string
	Heartbeat      time.Duration
}

// URLs returns AMQP URLs to dial in order: every cluster member if configured, the address host otherwise.
func (s HostSettings) URLs() []string {
	if len(s.ClusterMembers) == 0 {
		return []string{s.Address.AMQPURL(s.Username, s.Password)}
	}

	urls := make([]string, 0, len(s.ClusterMembers))
	for _, node := range s.ClusterMembers {
		urls = append(urls, s.Address.WithNode(node).AMQPURL(s.Username, s.Password))
	}

	return urls
}

// AMQPConfig returns dial config.
func (s HostSettings) AMQPConfig() amqp.Config {
	return amqp.Config{
		Heartbeat: s.Heartbeat,
		Locale:    defaultLocale,
	}
}

// Dial opens a new connection with a single attempt per URL.
func (s HostSettings) Dial() (*amqp.Connection, error) {
	conn, err := s.redial(context.Background())
	if err != nil {
		return nil, err
	}

	return conn.Connection, nil
}

// redial connects to the first reachable URL, bounded by ctx.
func (s HostSettings) redial(ctx context.Context, ops ...connection.Option) (*connection.Redialer, error) {
	urls := s.URLs()

	return connection.Dial(
		urls[0],
		append([]connection.Option{
			connection.WithClusterURLs(urls[1:]...),
			connection.WithConfig(s.AMQPConfig()),
			connection.WithDialContext(ctx),
		}, ops...)...,
	)
}

// EndpointConfigurator configures a receive endpoint.
type EndpointConfigurator struct {
	host  *Host
	queue string

	// PrefetchCount is the maximum number of unacknowledged deliveries.
	PrefetchCount int
	// PurgeOnStartup removes all messages from the queue when the bus starts.
	PurgeOnStartup bool

	handlers    map[string]process.DeliveryHandler
	middlewares []process.Middleware
	consumerOps []consumer.Option
}

// QueueName returns the endpoint queue name.
func (e *EndpointConfigurator) QueueName() string {
	return e.queue
}

// Handle registers transaction for deliveries of the message type.
// Use AnyMessageType to handle deliveries of any other type.
func (e *EndpointConfigurator) Handle(messageType string, tx process.Transaction) {
	e.HandleDelivery(messageType, process.Handle(tx))
}

// HandleDelivery registers handler for raw deliveries of the message type.
func (e *EndpointConfigurator) HandleDelivery(messageType string, handler process.DeliveryHandler) {
	e.handlers[messageType] = handler
}

// Use adds middlewares wrapping all handlers of the endpoint.
func (e *EndpointConfigurator) Use(mws ...process.Middleware) {
	e.middlewares = append(e.middlewares, mws...)
}

// ConsumeWith sets consumer options, e.g. consumer.WithPriority.
func (e *EndpointConfigurator) ConsumeWith(ops ...consumer.Option) {
	e.consumerOps = append(e.consumerOps, ops...)
}

// MessageTypes returns message types with a dedicated handler.
func (e *EndpointConfigurator) MessageTypes() []string {
	types := make([]string, 0, len(e.handlers))
	for t := range e.handlers {
		if t != AnyMessageType {
			types = append(types, t)
		}
	}

	return types
}

// InputAddress returns the endpoint address, e.g. rabbitmq://localhost/orders?prefetch=16.
func (e *EndpointConfigurator) InputAddress() *url.URL {
	u := e.host.Address().QueueAddress(e.queue)
	u.RawQuery = url.Values{"prefetch": []string{strconv.Itoa(e.PrefetchCount)}}.Encode()

	return u
}
