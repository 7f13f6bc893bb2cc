package connection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bigchange/busharness/channel"
)

// Redialer wraps connection to add re-dial capabilities.
// All methods of the regular connection are also available.
type Redialer struct {
	*amqp.Connection

	mux       sync.Mutex
	urls      []string
	cfg       amqp.Config
	backoff   backoff.BackOff
	dialCtx   context.Context
	onDialled []func(*amqp.Connection)
	onAttempt []func(error)
}

// Dial is a regular amqp.DialConfig with cluster fallback and optional backoff.
// Each attempt tries url and then every cluster URL in order, first successful wins.
// By default only one attempt is made, use WithBackoff to retry.
// WithDialContext bounds this first dial, re-dials are not bounded by it.
func Dial(url string, ops ...Option) (*Redialer, error) {
	redialer := Redialer{
		mux:     sync.Mutex{},
		urls:    []string{url},
		cfg:     amqp.Config{},
		backoff: &backoff.StopBackOff{},
		dialCtx: context.Background(),
	}

	for _, op := range ops {
		op(&redialer)
	}

	if err := redialer.dial(redialer.dialCtx); err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &redialer, nil
}

// Option to configure Redialer.
type Option func(r *Redialer)

// Channel creates new channel.Reopener with channel re-open capabilities.
// Will re-dial if connection is closed.
// Access original channel with r.Connection.Channel().
func (r *Redialer) Channel(ops ...channel.Option) (*channel.Reopener, error) {
	if r.IsClosed() {
		if err := r.dial(context.Background()); err != nil {
			return nil, err
		}
	}

	return channel.New(r.Connection, ops...)
}

// URLs returns all URLs the Redialer dials, in order.
func (r *Redialer) URLs() []string {
	return append([]string(nil), r.urls...)
}

// dial tries all URLs per backoff attempt. A ctx which can be done bounds
// every attempt and stops retrying.
func (r *Redialer) dial(ctx context.Context) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	cfg := r.cfg
	bo := r.backoff
	if ctx.Done() != nil {
		if cfg.Dial == nil {
			cfg.Dial = contextDialer(ctx)
		}
		bo = backoff.WithContext(bo, ctx)
	}

	operation := func() error {
		var errs []error
		for _, url := range r.urls {
			conn, err := amqp.DialConfig(url, cfg)
			r.notifyAttempt(err)
			if err != nil {
				errs = append(errs, fmt.Errorf("connection dial: %w", err))
				continue
			}

			r.notifyDialled(conn)

			r.Connection = conn

			return nil
		}

		return errors.Join(errs...)
	}

	return backoff.Retry(operation, bo)
}

// contextDialer dials TCP within ctx. The ctx deadline also bounds the AMQP
// handshake, amqp clears the connection deadline once it is open.
func contextDialer(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		if deadline, ok := ctx.Deadline(); ok {
			if err := conn.SetDeadline(deadline); err != nil {
				_ = conn.Close()
				return nil, err
			}
		}

		return conn, nil
	}
}

func (r *Redialer) notifyDialled(conn *amqp.Connection) {
	for _, fn := range r.onDialled {
		fn(conn)
	}
}

func (r *Redialer) notifyAttempt(err error) {
	for _, fn := range r.onAttempt {
		fn(err)
	}
}
