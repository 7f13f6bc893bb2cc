package consumer

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestUnitOptions(t *testing.T) {
	tests := map[string]struct {
		ops  []Option
		want config
	}{
		"defaults": {
			want: config{args: amqp.Table{}},
		},
		"all options": {
			ops: []Option{
				WithConsumerTag("orders-consumer"),
				WithAutoAck(),
				WithExclusive(),
				WithNoWait(),
				WithArgs(amqp.Table{"x-stream-offset": "first"}),
				WithPriority(10),
			},
			want: config{
				tag:       "orders-consumer",
				autoAck:   true,
				exclusive: true,
				noWait:    true,
				args:      amqp.Table{"x-stream-offset": "first", "x-priority": 10},
			},
		},
		"priority after nil args": {
			ops:  []Option{WithArgs(nil), WithPriority(1)},
			want: config{args: amqp.Table{"x-priority": 1}},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := config{args: amqp.Table{}}
			for _, op := range tt.ops {
				op(&cfg)
			}

			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestUnitGeneratedTag(t *testing.T) {
	first := New(nil, "orders")
	second := New(nil, "orders")
	preset := New(nil, "orders", WithConsumerTag("preset"))

	assert.Regexp(t, `^ctag-orders-\d+$`, first.Tag(), "should derive tag from queue")
	assert.NotEqual(t, first.Tag(), second.Tag(), "should generate unique tags")
	assert.Equal(t, "preset", preset.Tag(), "should keep preset tag")
	assert.Equal(t, "orders", first.Queue())
}
