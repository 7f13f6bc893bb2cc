package rabbittest

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Integration returns broker config for an integration test, skipping the test when no broker is available.
// With RABBITMQ_DOCKER set, a container is started and removed on test cleanup.
func Integration(t *testing.T) Config {
	t.Helper()

	if !IntegrationEnabled() {
		t.Skip("set RABBITMQ_HOST_ADDRESS or RABBITMQ_DOCKER to run integration tests")
	}

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("config: %s", err)
	}

	if !cfg.Docker {
		return cfg
	}

	broker, err := StartBroker(cfg)
	if err != nil {
		t.Fatalf("start broker: %s", err)
	}

	t.Cleanup(func() {
		if err := broker.Close(); err != nil {
			t.Errorf("close broker: %s", err)
		}
	})

	return broker.Config
}

// Connection opens a new connection to the configured broker.
// Closes the connection on test cleanup.
func Connection(t *testing.T, cfg Config) *amqp.Connection {
	t.Helper()

	conn, err := amqp.Dial(cfg.Host.AMQPURL(cfg.Username, cfg.Password))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	t.Cleanup(func() {
		if err := conn.Close(); err != nil && !conn.IsClosed() {
			t.Errorf("close RabbitMQ connection: %v", err)
		}
	})

	return conn
}

// Channel opens a new channel on the connection.
// Closes the channel on test cleanup.
func Channel(t *testing.T, conn *amqp.Connection) *amqp.Channel {
	t.Helper()

	channel, err := conn.Channel()
	if err != nil {
		t.Fatalf("open channel: %s", err)
	}

	t.Cleanup(func() {
		if channel.IsClosed() {
			return
		}
		if err := channel.Close(); err != nil {
			t.Errorf("close RabbitMQ channel: %s", err)
		}
	})

	return channel
}
