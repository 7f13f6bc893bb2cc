package process

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

var errNoAcknowledger = errors.New("delivery has no acknowledger")

// settle acks a handled delivery or rejects a failed one.
func settle(acker amqp.Acknowledger, tag uint64, failed, rejectRequeue bool) error {
	if acker == nil {
		return errNoAcknowledger
	}

	if !failed {
		if err := acker.Ack(tag, false); err != nil {
			return fmt.Errorf("ack delivery: %w", err)
		}

		return nil
	}

	if err := acker.Reject(tag, rejectRequeue); err != nil {
		return fmt.Errorf("reject delivery: %w", err)
	}

	return nil
}
