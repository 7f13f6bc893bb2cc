package middleware_test

import (
	"bytes"
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/bigchange/busharness/process"
	"github.com/bigchange/busharness/process/middleware"
)

func TestUnitErrorLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := process.Wrap(func(context.Context, amqp.Delivery) error {
		return assert.AnError
	}, middleware.NewErrorLogging(logger))

	err := handler(context.Background(), amqp.Delivery{Type: "order-created"})

	assert.ErrorIs(t, err, assert.AnError, "should pass error on")
	assert.Contains(t, buf.String(), "can't handle delivery")
	assert.Contains(t, buf.String(), `"type":"order-created"`)
}

func TestUnitDeliveryLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	handler := process.Wrap(func(context.Context, amqp.Delivery) error {
		return nil
	}, middleware.NewDeliveryLogging(logger))

	err := handler(context.Background(), amqp.Delivery{Body: []byte("123"), RoutingKey: "key"})

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), `"bytes":3`)
	assert.Contains(t, buf.String(), `"routing_key":"key"`)
}
