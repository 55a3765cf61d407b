package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"txengine/contexts/finance-core/transaction-service/ports"
	"txengine/internal/shared/events"

	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// Channel is the subset of *amqp091.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPPublisher publishes transaction status events to a RabbitMQ fanout
// exchange for external consumers such as cmd/worker. API instances do not
// consume the exchange, so websocket observers only see local events.
type AMQPPublisher struct {
	conn          *amqp091.Connection
	channel       Channel
	exchange      string
	sourceService string
	logger        *slog.Logger
}

func DialAMQP(url string, exchange string, sourceService string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connection failed: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel failed: %w", err)
	}

	publisher, err := NewAMQPPublisher(channel, exchange, sourceService, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	publisher.conn = conn
	return publisher, nil
}

func NewAMQPPublisher(channel Channel, exchange string, sourceService string, logger *slog.Logger) (*AMQPPublisher, error) {
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

	logger.Info("amqp publisher ready",
		"event", "amqp_publisher_ready",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"exchange", exchange,
	)
	return &AMQPPublisher{
		channel:       channel,
		exchange:      exchange,
		sourceService: sourceService,
		logger:        logger,
	}, nil
}

func (p *AMQPPublisher) PublishStatus(ctx context.Context, event ports.StatusEvent) error {
	now := time.Now().UTC()
	envelope := events.NewEnvelope(
		events.TransactionStatusChanged,
		p.sourceService,
		"transaction",
		event.TransactionID,
		event,
		now,
	)
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.channel.PublishWithContext(publishCtx, p.exchange, "", false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Transient,
		MessageId:    envelope.EventID,
		Timestamp:    now,
		Type:         envelope.EventType,
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}

	p.logger.Debug("status event published",
		"event", "amqp_status_published",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"exchange", p.exchange,
		"event_id", envelope.EventID,
		"transaction_id", event.TransactionID,
		"status", event.Status,
	)
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
