package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"txengine/contexts/finance-core/transaction-service/ports"
	"txengine/internal/shared/events"

	"github.com/rabbitmq/amqp091-go"
)

var ErrDeliveriesClosed = errors.New("amqp delivery channel closed")

// ConsumeChannel is the subset of *amqp091.Channel the consumer uses.
type ConsumeChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// StatusHandler receives one decoded status event together with its envelope
// metadata. A returned error is logged; the message is not redelivered.
type StatusHandler func(ctx context.Context, envelope events.Envelope, event ports.StatusEvent) error

// AMQPConsumer binds an exclusive queue to the status exchange and hands
// every decoded event to a StatusHandler.
type AMQPConsumer struct {
	conn       *amqp091.Connection
	channel    ConsumeChannel
	queue      string
	deliveries <-chan amqp091.Delivery
	logger     *slog.Logger
}

func DialAMQPConsumer(url string, exchange string, logger *slog.Logger) (*AMQPConsumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connection failed: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel failed: %w", err)
	}
	consumer, err := NewAMQPConsumer(channel, exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	consumer.conn = conn
	return consumer, nil
}

func NewAMQPConsumer(channel ConsumeChannel, exchange string, logger *slog.Logger) (*AMQPConsumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = "transaction.status"
	}
	if err := channel.ExchangeDeclare(exchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	queue, err := channel.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = channel.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := channel.QueueBind(queue.Name, "", exchange, false, nil); err != nil {
		_ = channel.Close()
		return nil, fmt.Errorf("bind queue %q: %w", queue.Name, err)
	}
	deliveries, err := channel.Consume(queue.Name, "", true, true, false, false, nil)
	if err != nil {
		_ = channel.Close()
		return nil, fmt.Errorf("consume queue %q: %w", queue.Name, err)
	}

	logger.Info("amqp consumer ready",
		"event", "amqp_consumer_ready",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"exchange", exchange,
		"queue", queue.Name,
	)
	return &AMQPConsumer{
		channel:    channel,
		queue:      queue.Name,
		deliveries: deliveries,
		logger:     logger,
	}, nil
}

// Run blocks until ctx is cancelled or the broker closes the delivery
// channel. Undecodable messages are skipped.
func (c *AMQPConsumer) Run(ctx context.Context, handle StatusHandler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-c.deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			envelope, event, err := DecodeStatusEnvelope(delivery.Body)
			if err != nil {
				c.logger.Warn("status event dropped",
					"event", "amqp_status_decode_failed",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"message_id", delivery.MessageId,
					"error", err.Error(),
				)
				continue
			}
			if err := handle(ctx, envelope, event); err != nil {
				c.logger.Error("status event handler failed",
					"event", "amqp_status_handler_failed",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"event_id", envelope.EventID,
					"transaction_id", event.TransactionID,
					"error", err.Error(),
				)
			}
		}
	}
}

func (c *AMQPConsumer) Close() error {
	if c == nil {
		return nil
	}
	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DecodeStatusEnvelope parses a message produced by AMQPPublisher.
func DecodeStatusEnvelope(body []byte) (events.Envelope, ports.StatusEvent, error) {
	var raw struct {
		events.Envelope
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return events.Envelope{}, ports.StatusEvent{}, fmt.Errorf("decode envelope: %w", err)
	}
	if raw.EventType != events.TransactionStatusChanged {
		return events.Envelope{}, ports.StatusEvent{}, fmt.Errorf("unexpected event type %q", raw.EventType)
	}
	var event ports.StatusEvent
	if err := json.Unmarshal(raw.Payload, &event); err != nil {
		return events.Envelope{}, ports.StatusEvent{}, fmt.Errorf("decode status payload: %w", err)
	}
	if event.TransactionID == "" || !event.Status.Valid() {
		return events.Envelope{}, ports.StatusEvent{}, errors.New("status payload is incomplete")
	}
	envelope := raw.Envelope
	envelope.Payload = event
	return envelope, event, nil
}
