package publisher

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes messages to a single exchange.
type Publisher struct {
	channel      Channel
	exchange     string
	headers      amqp.Table
	contentType  string
	messageType  string
	deliveryMode uint8
	mandatory    bool
	immediate    bool
	expiration   string
}

// New creates new RabbitMQ Publisher.
// By default, it will publish with Persistent delivery mode, mandatory=false, immediate=false and no headers.
// Pass Options to configure it as you wish.
func New(channel Channel, exchange string, ops ...Option) Publisher {
	pub := Publisher{
		channel:      channel,
		exchange:     exchange,
		headers:      nil,
		deliveryMode: amqp.Persistent,
		mandatory:    false,
		immediate:    false,
		expiration:   "",
	}

	for _, op := range ops {
		op(&pub)
	}

	return pub
}

// Exchange returns name of the exchange messages are published to.
func (p Publisher) Exchange() string {
	return p.exchange
}

// Publish message body with routing key.
func (p Publisher) Publish(ctx context.Context, key string, message []byte, mws ...Middleware) error {
	return p.PublishMessage(ctx, key, amqp.Publishing{Body: message}, mws...)
}

// PublishMessage publishes prepared message with routing key.
// Publisher defaults fill only properties the message does not set.
func (p Publisher) PublishMessage(ctx context.Context, key string, msg amqp.Publishing, mws ...Middleware) error {
	if len(p.headers) > 0 {
		headers := make(amqp.Table, len(p.headers)+len(msg.Headers))
		for k, v := range p.headers {
			headers[k] = v
		}
		for k, v := range msg.Headers {
			headers[k] = v
		}
		msg.Headers = headers
	}
	if msg.DeliveryMode == 0 {
		msg.DeliveryMode = p.deliveryMode
	}
	if msg.ContentType == "" {
		msg.ContentType = p.contentType
	}
	if msg.Type == "" {
		msg.Type = p.messageType
	}
	if msg.Expiration == "" {
		msg.Expiration = p.expiration
	}

	channel := Wrap(p.channel, mws...)

	return channel.PublishWithContext(ctx, p.exchange, key, p.mandatory, p.immediate, msg)
}
