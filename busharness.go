// Package busharness provides RabbitMQ test fixtures: a virtual host reset and
// a bus harness (see rabbittest), plus shortcuts to create publishers and consumers
// for a bus host address.
package busharness

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bigchange/busharness/address"
	"github.com/bigchange/busharness/channel"
	"github.com/bigchange/busharness/connection"
	"github.com/bigchange/busharness/consumer"
	"github.com/bigchange/busharness/publisher"
	"github.com/bigchange/busharness/vhost"
)

// Credentials to connect to a broker.
type Credentials struct {
	Username string
	Password string
}

// Guest are the default broker credentials.
var Guest = Credentials{Username: "guest", Password: "guest"}

// NewConsumer creates a new consumer from RabbitMQ, which will consume from a queue.
// Will automatically re-open channel on channel errors.
func NewConsumer(host address.Host, creds Credentials, queue string, ops ...consumer.Option) (*consumer.Consumer, error) {
	ch, err := prepareChannel(host, creds)
	if err != nil {
		return nil, err
	}

	return consumer.New(ch, queue, ops...), nil
}

// NewPublisher creates a new publisher to RabbitMQ, which will publish to exchange.
// Will automatically re-open channel on channel errors.
func NewPublisher(host address.Host, creds Credentials, exchange string, ops ...publisher.Option) (publisher.Publisher, error) {
	ch, err := prepareChannel(host, creds)
	if err != nil {
		return publisher.Publisher{}, err
	}

	return publisher.New(ch, exchange, ops...), nil
}

// ResetVirtualHost deletes queues and exchanges of the legacy and the given input queue names.
// The returned report is informational, see vhost.Reset.
func ResetVirtualHost(host address.Host, creds Credentials, inputQueueNames ...string) vhost.Report {
	dial := func() (*amqp.Connection, error) {
		conn, err := connection.Dial(host.AMQPURL(creds.Username, creds.Password))
		if err != nil {
			return nil, err
		}

		return conn.Connection, nil
	}

	return vhost.Reset(vhost.AMQPDialer(dial), append([]string{vhost.LegacyBase}, inputQueueNames...))
}

func prepareChannel(host address.Host, creds Credentials) (*channel.Reopener, error) {
	conn, err := connection.Dial(host.AMQPURL(creds.Username, creds.Password))
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return openChannel(conn)
}

// channelOpener is a connection opening re-opening channels, e.g. connection.Redialer.
type channelOpener interface {
	Channel(ops ...channel.Option) (*channel.Reopener, error)
	Close() error
}

// openChannel opens a channel on conn, conn is closed if it can't.
func openChannel(conn channelOpener) (*channel.Reopener, error) {
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return ch, nil
}
