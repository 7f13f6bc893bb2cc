package publisher_test

import (
	"context"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bigchange/busharness/publisher"
)

type callArgs struct {
	exchange  string
	key       string
	mandatory bool
	immediate bool
	msg       amqp.Publishing
}

func TestUnitPublish(t *testing.T) {
	exchange := "orders"
	routingKey := "test-key"
	message := []byte(`test message`)

	tests := map[string]struct {
		options           []publisher.Option
		publishMiddleware []publisher.Middleware
		publishError      error
		wantCallArgs      callArgs
		wantError         error
	}{
		"no options": {
			wantCallArgs: callArgs{
				exchange: exchange,
				key:      routingKey,
				msg: amqp.Publishing{
					DeliveryMode: amqp.Persistent,
					Body:         message,
				},
			},
		},
		"publish error": {
			wantCallArgs: callArgs{
				exchange: exchange,
				key:      routingKey,
				msg: amqp.Publishing{
					DeliveryMode: amqp.Persistent,
					Body:         message,
				},
			},
			publishError: assert.AnError,
			wantError:    assert.AnError,
		},
		"all options": {
			options: []publisher.Option{
				publisher.WithConstHeaders(amqp.Table{"test": "header"}),
				publisher.WithTransientDeliveryMode(),
				publisher.WithMandatory(),
				publisher.WithImmediate(),
				publisher.WithExpiration(time.Second),
				publisher.WithContentType("application/json"),
				publisher.WithMessageType("order-created"),
			},
			wantCallArgs: callArgs{
				exchange:  exchange,
				key:       routingKey,
				mandatory: true,
				immediate: true,
				msg: amqp.Publishing{
					Headers:      amqp.Table{"test": "header"},
					ContentType:  "application/json",
					Type:         "order-created",
					DeliveryMode: amqp.Transient,
					Body:         message,
					Expiration:   "1000",
				},
			},
		},
		"publish middlewares override options": {
			options: []publisher.Option{
				publisher.WithConstHeaders(amqp.Table{"test": "header"}),
				publisher.WithExpiration(time.Second),
				publisher.WithMessageType("order-created"),
			},
			publishMiddleware: []publisher.Middleware{
				publisher.Headers(amqp.Table{"test": "other-header", "test2": "header"}),
				publisher.Expiration(2 * time.Second),
				publisher.MessageType("order-cancelled"),
				publisher.CorrelationID("42"),
			},
			wantCallArgs: callArgs{
				exchange: exchange,
				key:      routingKey,
				msg: amqp.Publishing{
					Headers:       amqp.Table{"test": "other-header", "test2": "header"},
					Type:          "order-cancelled",
					CorrelationId: "42",
					DeliveryMode:  amqp.Persistent,
					Body:          message,
					Expiration:    "2000",
				},
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			channel := new(mockChannel)
			channel.On(
				"PublishWithContext",
				mock.Anything,
				tt.wantCallArgs.exchange,
				tt.wantCallArgs.key,
				tt.wantCallArgs.mandatory,
				tt.wantCallArgs.immediate,
				tt.wantCallArgs.msg,
			).Return(tt.publishError)

			pub := publisher.New(channel, exchange, tt.options...)
			err := pub.Publish(context.TODO(), routingKey, message, tt.publishMiddleware...)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}

			assert.NoError(t, err)
			channel.AssertExpectations(t)
		})
	}
}

func TestUnitPublishMessageKeepsProperties(t *testing.T) {
	channel := new(mockChannel)
	channel.On("PublishWithContext", mock.Anything, "orders_error", "", false, false, amqp.Publishing{
		Headers:      amqp.Table{"const": "1", "x-fault-reason": "boom"},
		Type:         "order-created",
		MessageId:    "id-1",
		DeliveryMode: amqp.Transient,
		Body:         []byte("1"),
	}).Return(nil)

	pub := publisher.New(
		channel,
		"orders_error",
		publisher.WithConstHeaders(amqp.Table{"const": "1"}),
		publisher.WithMessageType("other"),
	)
	err := pub.PublishMessage(context.TODO(), "", amqp.Publishing{
		Headers:      amqp.Table{"x-fault-reason": "boom"},
		Type:         "order-created",
		MessageId:    "id-1",
		DeliveryMode: amqp.Transient,
		Body:         []byte("1"),
	})

	assert.NoError(t, err)
	assert.Equal(t, "orders_error", pub.Exchange())
	channel.AssertExpectations(t)
}

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(ctx, exchange, key, mandatory, immediate, msg).Error(0)
}
