package bus

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/bigchange/busharness/channel"
	"github.com/bigchange/busharness/connection"
	"github.com/bigchange/busharness/consumer"
	"github.com/bigchange/busharness/process"
	"github.com/bigchange/busharness/process/middleware"
	"github.com/bigchange/busharness/publisher"
	"github.com/bigchange/busharness/vhost"
)

// FaultReasonHeader carries the handler error of a message moved to the error queue.
const FaultReasonHeader = "x-fault-reason"

// exchangeDeclarer is the part of a channel needed to declare exchanges.
type exchangeDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
}

// receiveEndpoint is a running receive endpoint.
type receiveEndpoint struct {
	queue     string
	channel   *channel.Reopener
	consumer  *consumer.Consumer
	processor *process.One
	logger    zerolog.Logger

	// accessed only from the consuming goroutine
	declared map[string]struct{}
}

func startEndpoint(conn *connection.Redialer, cfg *EndpointConfigurator, logger zerolog.Logger) (*receiveEndpoint, error) {
	ch, err := conn.Channel(channel.WithQOS(cfg.PrefetchCount, 0, false))
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		_ = ch.Close()
		return nil, err
	}

	if cfg.PurgeOnStartup {
		purged, err := ch.QueuePurge(cfg.queue, false)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("purge queue: %w", err)
		}
		logger.Debug().Int("messages", purged).Msg("purged queue on startup")
	}

	ep := receiveEndpoint{
		queue:    cfg.queue,
		channel:  ch,
		consumer: consumer.New(ch, cfg.queue, cfg.consumerOps...),
		logger:   logger,
		declared: map[string]struct{}{},
	}

	mws := append([]process.Middleware{
		middleware.NewDeliveryLogging(logger),
		middleware.NewErrorLogging(logger),
	}, cfg.middlewares...)

	ep.processor = process.ByOne(
		process.Wrap(dispatch(cfg.handlers), mws...),
		process.WithFaultHandler(ep.moveFault),
	)

	return &ep, nil
}

func (e *receiveEndpoint) consume() error {
	return e.consumer.Start(context.Background(), e.processor)
}

func (e *receiveEndpoint) stop() error {
	return e.consumer.Stop()
}

// moveFault moves a failed delivery to the error queue, or to the skipped queue if its type is unknown.
func (e *receiveEndpoint) moveFault(ctx context.Context, d amqp.Delivery, cause error) error {
	target := e.queue + vhost.ErrorSuffix
	var mws []publisher.Middleware

	if errors.Is(cause, ErrUnknownMessageType) {
		target = e.queue + vhost.SkippedSuffix
	} else {
		mws = append(mws, publisher.Headers(amqp.Table{FaultReasonHeader: cause.Error()}))
	}

	if _, ok := e.declared[target]; !ok {
		if err := declareQueue(e.channel, target); err != nil {
			return fmt.Errorf("declare %q: %w", target, err)
		}
		e.declared[target] = struct{}{}
	}

	if err := publisher.New(e.channel, target).PublishMessage(ctx, "", publishingOf(d), mws...); err != nil {
		return fmt.Errorf("move to %q: %w", target, err)
	}

	e.logger.Debug().Str("target", target).Msg("moved delivery")

	return nil
}

func dispatch(handlers map[string]process.DeliveryHandler) process.DeliveryHandler {
	return func(ctx context.Context, d amqp.Delivery) error {
		h, ok := handlers[d.Type]
		if !ok {
			h, ok = handlers[AnyMessageType]
		}
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownMessageType, d.Type)
		}

		return h(ctx, d)
	}
}

// declareTopology declares endpoint exchange and queue, and binds message type exchanges to it.
func declareTopology(ch *channel.Reopener, cfg *EndpointConfigurator) error {
	if err := declareQueue(ch, cfg.queue); err != nil {
		return err
	}

	for _, messageType := range cfg.MessageTypes() {
		if err := declareExchange(ch, messageType); err != nil {
			return err
		}
		if err := ch.ExchangeBind(cfg.queue, "", messageType, false, nil); err != nil {
			return fmt.Errorf("bind exchange %q to %q: %w", messageType, cfg.queue, err)
		}
	}

	return nil
}

// declareQueue declares a durable queue with a same-named fanout exchange bound to it.
func declareQueue(ch *channel.Reopener, name string) error {
	if err := declareExchange(ch, name); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", name, err)
	}
	if err := ch.QueueBind(name, "", name, false, nil); err != nil {
		return fmt.Errorf("bind queue %q: %w", name, err)
	}

	return nil
}

func declareExchange(ch exchangeDeclarer, name string) error {
	if err := ch.ExchangeDeclare(name, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %q: %w", name, err)
	}

	return nil
}

// publishingOf copies delivery properties and body into a new publishing.
func publishingOf(d amqp.Delivery) amqp.Publishing {
	var headers amqp.Table
	if len(d.Headers) > 0 {
		headers = make(amqp.Table, len(d.Headers))
		for k, v := range d.Headers {
			headers[k] = v
		}
	}

	return amqp.Publishing{
		Headers:         headers,
		ContentType:     d.ContentType,
		ContentEncoding: d.ContentEncoding,
		DeliveryMode:    d.DeliveryMode,
		Priority:        d.Priority,
		CorrelationId:   d.CorrelationId,
		ReplyTo:         d.ReplyTo,
		Expiration:      d.Expiration,
		MessageId:       d.MessageId,
		Timestamp:       d.Timestamp,
		Type:            d.Type,
		UserId:          d.UserId,
		AppId:           d.AppId,
		Body:            d.Body,
	}
}
