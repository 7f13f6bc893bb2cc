// Package vhost resets a broker virtual host before a test run.
//
// Reset deletes every queue and exchange derived from the given base names.
// It is best-effort: failures are collected into the returned Report and never
// stop the run, so a fixture starts from the same state whether resources
// existed or not.
package vhost

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Kind of broker resource.
type Kind string

// Resource kinds deleted by Reset, in deletion order.
const (
	KindExchange Kind = "exchange"
	KindQueue    Kind = "queue"
)

// Channel is a broker channel able to delete resources.
// *amqp091.Channel implements it; callbacks may type-assert to reach the full channel.
type Channel interface {
	ExchangeDelete(name string, ifUnused, noWait bool) error
	QueueDelete(name string, ifUnused, ifEmpty, noWait bool) (int, error)
	Close() error
}

// Session is an open broker connection.
type Session interface {
	Channel() (Channel, error)
	Close() error
}

// DialFunc opens a new Session.
type DialFunc func() (Session, error)

// Deletion is a single attempted deletion.
type Deletion struct {
	Kind Kind
	Name string
	Err  error
}

// Report describes one Reset run.
// It is informational only: Err carries every failure joined together
// but callers are not expected to fail on it.
type Report struct {
	Deletions []Deletion
	Err       error
}

// Failed returns deletions which returned an error.
func (r Report) Failed() []Deletion {
	var failed []Deletion
	for _, d := range r.Deletions {
		if d.Err != nil {
			failed = append(failed, d)
		}
	}

	return failed
}

// Option to configure Reset.
type Option func(c *cleaner)

// WithAfterDelete registers a callback invoked with the cleanup channel after all deletions,
// before the channel is closed. Callbacks run in registration order.
func WithAfterDelete(fn func(Channel) error) Option {
	return func(c *cleaner) {
		c.afterDelete = append(c.afterDelete, fn)
	}
}

// WithLogger sets logger for failed deletions.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *cleaner) {
		c.logger = logger
	}
}

type cleaner struct {
	logger      zerolog.Logger
	afterDelete []func(Channel) error
}

// Reset deletes the exchange and the queue for every name of Union(bases...), in that order,
// sequentially on a single connection. Each deletion is attempted exactly once.
// A failed deletion closes its channel and the next one runs on a new channel,
// so one failure never prevents later deletions.
// The connection and channel are closed on every path.
func Reset(dial DialFunc, bases []string, ops ...Option) (report Report) {
	c := cleaner{logger: zerolog.Nop()}
	for _, op := range ops {
		op(&c)
	}

	var errs []error
	defer func() {
		report.Err = errors.Join(errs...)
	}()

	session, err := dial()
	if err != nil {
		errs = append(errs, fmt.Errorf("dial: %w", err))
		return report
	}
	defer func() {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}()

	ch := reopener{session: session}
	if _, err := ch.get(); err != nil {
		errs = append(errs, err)
		return report
	}
	defer func() {
		if err := ch.close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}()

	for _, name := range Union(bases...) {
		for _, kind := range []Kind{KindExchange, KindQueue} {
			err := ch.delete(kind, name)
			report.Deletions = append(report.Deletions, Deletion{Kind: kind, Name: name, Err: err})

			if err != nil {
				c.logger.Debug().
					Err(err).
					Str("kind", string(kind)).
					Str("name", name).
					Msg("can't delete resource")
				errs = append(errs, fmt.Errorf("delete %s %q: %w", kind, name, err))
			}
		}
	}

	for _, fn := range c.afterDelete {
		current, err := ch.get()
		if err != nil {
			errs = append(errs, err)
			break
		}

		if err := fn(current); err != nil {
			errs = append(errs, fmt.Errorf("after delete callback: %w", err))
			ch.discard()
		}
	}

	return report
}

// reopener holds the current cleanup channel and opens a new one after it was discarded.
type reopener struct {
	session Session
	current Channel
}

func (r *reopener) get() (Channel, error) {
	if r.current != nil {
		return r.current, nil
	}

	ch, err := r.session.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	r.current = ch

	return ch, nil
}

func (r *reopener) delete(kind Kind, name string) error {
	ch, err := r.get()
	if err != nil {
		return err
	}

	switch kind {
	case KindExchange:
		err = ch.ExchangeDelete(name, false, false)
	case KindQueue:
		_, err = ch.QueueDelete(name, false, false, false)
	}

	// a channel exception closes the channel on the broker side
	if err != nil {
		r.discard()
	}

	return err
}

func (r *reopener) discard() {
	if r.current == nil {
		return
	}

	_ = r.current.Close()
	r.current = nil
}

func (r *reopener) close() error {
	if r.current == nil {
		return nil
	}

	err := r.current.Close()
	r.current = nil

	return err
}
