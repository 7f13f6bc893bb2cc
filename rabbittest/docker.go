package rabbittest

import (
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bigchange/busharness/address"
)

const (
	brokerRepository = "rabbitmq"
	brokerTag        = "3.12-management"
)

// Broker is a throwaway RabbitMQ container.
type Broker struct {
	pool     *dockertest.Pool
	resource *dockertest.Resource

	// Config points to the container, with host address and management URL rewritten.
	Config Config
}

// StartBroker runs a RabbitMQ container with management plugin and waits until it accepts connections.
// Credentials are taken from cfg. Call Close to remove the container.
func StartBroker(cfg Config) (*Broker, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("connect to docker: %w", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: brokerRepository,
		Tag:        brokerTag,
		Env: []string{
			"RABBITMQ_DEFAULT_USER=" + cfg.Username,
			"RABBITMQ_DEFAULT_PASS=" + cfg.Password,
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, fmt.Errorf("run %s:%s: %w", brokerRepository, brokerTag, err)
	}

	host, err := address.Parse(fmt.Sprintf("rabbitmq://127.0.0.1:%s/", resource.GetPort("5672/tcp")))
	if err != nil {
		_ = pool.Purge(resource)
		return nil, err
	}

	cfg.Host = host
	cfg.HostAddress = host.String()
	cfg.ManagementURL = "http://127.0.0.1:" + resource.GetPort("15672/tcp")
	cfg.NodeHostName = ""

	b := Broker{
		pool:     pool,
		resource: resource,
		Config:   cfg,
	}

	if err := b.waitReady(); err != nil {
		_ = b.Close()
		return nil, err
	}

	return &b, nil
}

// Close removes the container.
func (b *Broker) Close() error {
	if err := b.pool.Purge(b.resource); err != nil {
		return fmt.Errorf("purge container: %w", err)
	}

	return nil
}

func (b *Broker) waitReady() error {
	url := b.Config.Host.AMQPURL(b.Config.Username, b.Config.Password)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = b.Config.TestTimeout

	err := backoff.Retry(func() error {
		conn, err := amqp.Dial(url)
		if err != nil {
			return err
		}

		return conn.Close()
	}, bo)
	if err != nil {
		return fmt.Errorf("wait for broker: %w", err)
	}

	return nil
}
