package rabbittest

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeclareExchange is a test helper to declare an exchange.
// By default, creates durable fanout exchange, as the bus does.
// Exchange declaring parameters can be overwritten using ops.
// Unlike bus resources, it is not deleted on cleanup unless Cleanup is set.
func DeclareExchange(t *testing.T, channel *amqp.Channel, name string, ops ...func(p *ExchangeParams)) {
	t.Helper()

	params := ExchangeParams{
		Name:    name,
		Kind:    amqp.ExchangeFanout,
		Durable: true,
	}
	for _, op := range ops {
		op(&params)
	}

	if err := channel.ExchangeDeclare(
		params.Name,
		params.Kind,
		params.Durable,
		params.AutoDelete,
		params.Internal,
		params.NoWait,
		params.Args,
	); err != nil {
		t.Fatal("declare exchange", err)
	}

	if params.Cleanup {
		t.Cleanup(func() {
			if err := channel.ExchangeDelete(name, false, false); err != nil {
				t.Error("delete exchange", err)
			}
		})
	}
}

// ExchangeParams for exchange declaration.
type ExchangeParams struct {
	Name       string
	Kind       string
	Durable    bool
	AutoDelete bool
	Internal   bool
	NoWait     bool
	Args       amqp.Table
	// Cleanup deletes the exchange on test cleanup.
	Cleanup bool
}

// DeclareQueue is a test helper to declare a durable queue.
// Queue declaring parameters can be overwritten using ops.
func DeclareQueue(t *testing.T, channel *amqp.Channel, name string, ops ...func(p *QueueParams)) {
	t.Helper()

	params := QueueParams{
		Name:    name,
		Durable: true,
	}
	for _, op := range ops {
		op(&params)
	}

	if _, err := channel.QueueDeclare(
		params.Name,
		params.Durable,
		params.AutoDelete,
		params.Exclusive,
		params.NoWait,
		params.Args,
	); err != nil {
		t.Fatal("declare queue", err)
	}

	if params.Cleanup {
		t.Cleanup(func() {
			if _, err := channel.QueueDelete(name, false, false, false); err != nil {
				t.Error("delete queue", err)
			}
		})
	}
}

// QueueParams for queue declaration.
type QueueParams struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
	Args       amqp.Table
	// Cleanup deletes the queue on test cleanup.
	Cleanup bool
}

// BindQueue binds queue to exchange using routing key.
func BindQueue(t *testing.T, channel *amqp.Channel, name, key, exchange string) {
	t.Helper()

	if err := channel.QueueBind(name, key, exchange, false, nil); err != nil {
		t.Fatal("bind queue", err)
	}
}

// Leftovers declares every queue and exchange derived from the bases,
// simulating resources left behind by a previous run.
func Leftovers(t *testing.T, channel *amqp.Channel, names []string) {
	t.Helper()

	for _, name := range names {
		DeclareExchange(t, channel, name)
		DeclareQueue(t, channel, name)
		BindQueue(t, channel, name, "", name)
	}
}
