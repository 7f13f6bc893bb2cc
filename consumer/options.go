package consumer

import amqp "github.com/rabbitmq/amqp091-go"

// config holds basic.consume arguments.
type config struct {
	tag       string
	autoAck   bool
	exclusive bool
	noWait    bool
	args      amqp.Table
}

// Option configures a Consumer. Defaults are manual acknowledgement,
// a shared queue and waiting for consume-ok.
type Option func(c *config)

// WithConsumerTag replaces the generated "ctag-<queue>-<n>" tag.
func WithConsumerTag(tag string) Option {
	return func(c *config) {
		c.tag = tag
	}
}

// WithAutoAck lets the broker acknowledge deliveries on sending.
// Ack, Nack and Reject of such deliveries are no-ops.
func WithAutoAck() Option {
	return func(c *config) {
		c.autoAck = true
	}
}

// WithExclusive requests the consumer to be the only one of the queue.
func WithExclusive() Option {
	return func(c *config) {
		c.exclusive = true
	}
}

// WithNoWait does not wait for consume-ok.
func WithNoWait() Option {
	return func(c *config) {
		c.noWait = true
	}
}

// WithArgs replaces basic.consume arguments, set it before WithPriority.
func WithArgs(args amqp.Table) Option {
	return func(c *config) {
		c.args = args
	}
}

// WithPriority sets the x-priority argument, higher priority consumers receive deliveries first.
// See https://www.rabbitmq.com/consumer-priority.html.
func WithPriority(priority int) Option {
	return func(c *config) {
		if c.args == nil {
			c.args = amqp.Table{}
		}
		c.args["x-priority"] = priority
	}
}
