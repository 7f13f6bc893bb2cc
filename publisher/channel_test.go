package publisher_test

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigchange/busharness/publisher"
)

type published struct {
	exchange  string
	key       string
	mandatory bool
	immediate bool
	msg       amqp.Publishing
}

// recordingChannel records publishings.
type recordingChannel struct {
	published []published
}

func (c *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.published = append(c.published, published{
		exchange:  exchange,
		key:       key,
		mandatory: mandatory,
		immediate: immediate,
		msg:       msg,
	})

	return nil
}

func TestUnitWrapOrder(t *testing.T) {
	appendType := func(suffix string) publisher.Middleware {
		return publisher.Modify(func(msg *amqp.Publishing) {
			msg.Type += suffix
		})
	}

	ch := &recordingChannel{}
	wrapped := publisher.Wrap(ch, appendType("order"), appendType("-created"), appendType(".v1"))

	require.NoError(t, wrapped.PublishWithContext(context.TODO(), "orders", "", false, false, amqp.Publishing{}))

	require.Len(t, ch.published, 1)
	assert.Equal(t, "order-created.v1", ch.published[0].msg.Type, "should apply middlewares in given order")
}

func TestUnitWrapWithoutMiddlewares(t *testing.T) {
	ch := &recordingChannel{}

	assert.Same(t, ch, publisher.Wrap(ch))
}

func TestUnitRedirect(t *testing.T) {
	ch := &recordingChannel{}
	wrapped := publisher.Wrap(ch, publisher.Redirect("", "orders_error"), publisher.Mandatory())

	err := wrapped.PublishWithContext(context.TODO(), "orders", "order-created", false, false, amqp.Publishing{Body: []byte("1")})
	require.NoError(t, err)

	assert.Equal(t, []published{{
		exchange:  "",
		key:       "orders_error",
		mandatory: true,
		msg:       amqp.Publishing{Body: []byte("1")},
	}}, ch.published)
}
