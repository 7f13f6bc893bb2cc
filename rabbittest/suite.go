package rabbittest

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"

	"github.com/bigchange/busharness/bus"
)

// ConnectionSuite creates RabbitMQ connection on suite setup.
// The suite is skipped when no broker is configured, see IntegrationEnabled.
type ConnectionSuite struct {
	suite.Suite

	Config     Config
	Connection *amqp.Connection

	broker *Broker
}

// SetupSuite reads config, starts a container if asked to and connects.
// Implements suite.SetupAllSuite.
func (s *ConnectionSuite) SetupSuite() {
	if !IntegrationEnabled() {
		s.T().Skip("set RABBITMQ_HOST_ADDRESS or RABBITMQ_DOCKER to run integration tests")
	}

	cfg, err := ConfigFromEnv()
	if err != nil {
		s.FailNow("read config", err)
	}

	if cfg.Docker {
		broker, err := StartBroker(cfg)
		if err != nil {
			s.FailNow("start broker", err)
		}
		s.broker = broker
		cfg = broker.Config
	}

	url := cfg.Host.AMQPURL(cfg.Username, cfg.Password)

	var connection *amqp.Connection
	connectFn := func() error {
		var err error
		connection, err = amqp.Dial(url)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(connectFn, bo); err != nil {
		s.FailNow("can't open connection", "%q: %s", cfg.HostAddress, err)
	}

	s.Config = cfg
	s.Connection = connection
}

// TearDownSuite closes the connection and removes the container.
// Implements suite.TearDownAllSuite.
func (s *ConnectionSuite) TearDownSuite() {
	if s.Connection != nil && !s.Connection.IsClosed() {
		if err := s.Connection.Close(); err != nil {
			s.Fail("close connection", err)
		}
	}

	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.Fail("close broker", err)
		}
	}
}

// ChannelSuite uses ConnectionSuite to create connection and then creates new channel for each test.
type ChannelSuite struct {
	ConnectionSuite

	Channel *amqp.Channel
}

// SetupTest creates new channel, closed on test cleanup after resources declared by helpers are deleted.
// Implements suite.SetupTestSuite.
func (s *ChannelSuite) SetupTest() {
	s.Channel = Channel(s.T(), s.Connection)
}

// HarnessSuite uses ChannelSuite and starts a new Harness for each test.
//
// Usage:
//
//	type OrdersSuite struct {
//	  rabbittest.HarnessSuite
//	}
//
//	func (s *OrdersSuite) SetupSuite() {
//	  s.HarnessSuite.SetupSuite()
//	  s.Options = []rabbittest.Option{rabbittest.WithInputQueueName("orders")}
//	}
type HarnessSuite struct {
	ChannelSuite

	// Options applied to every harness after the suite config.
	Options []Option

	Harness *Harness
	Bus     *bus.Bus
}

// SetupTest creates channel, resets the virtual host and starts the bus.
// Implements suite.SetupTestSuite.
func (s *HarnessSuite) SetupTest() {
	s.ChannelSuite.SetupTest()

	s.Harness = New(append([]Option{WithConfig(s.Config)}, s.Options...)...)

	b, err := s.Harness.Start(context.Background())
	if err != nil {
		s.FailNow("start bus", err)
	}

	s.Bus = b
}

// TearDownTest stops the bus.
// Implements suite.TearDownTestSuite.
func (s *HarnessSuite) TearDownTest() {
	if err := s.Harness.Stop(context.Background()); err != nil {
		s.Fail("stop bus", err)
	}
}
