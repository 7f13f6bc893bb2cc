package vhost

import amqp "github.com/rabbitmq/amqp091-go"

// AMQPDialer adapts an amqp091 dial function to DialFunc.
func AMQPDialer(dial func() (*amqp.Connection, error)) DialFunc {
	return func() (Session, error) {
		conn, err := dial()
		if err != nil {
			return nil, err
		}

		return amqpSession{conn: conn}, nil
	}
}

type amqpSession struct {
	conn *amqp.Connection
}

func (s amqpSession) Channel() (Channel, error) {
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, err
	}

	return ch, nil
}

func (s amqpSession) Close() error {
	return s.conn.Close()
}
