package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"txengine/contexts/finance-core/transaction-service/ports"
	"txengine/internal/platform/config"
	"txengine/internal/platform/messaging"
	"txengine/internal/shared/events"
)

// WorkerApp tails the transaction status exchange and records every terminal
// status change in the process log.
type WorkerApp struct {
	consumer *messaging.AMQPConsumer
	logger   *slog.Logger
}

func BuildWorker(cfg config.Config, logger *slog.Logger) (*WorkerApp, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AMQPURL == "" {
		return nil, errors.New("worker requires AMQP_URL")
	}
	logger = logger.With("service", cfg.ServiceName, "process", "worker")
	consumer, err := messaging.DialAMQPConsumer(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		return nil, err
	}
	return &WorkerApp{consumer: consumer, logger: logger}, nil
}

func (a *WorkerApp) Run(ctx context.Context) error {
	a.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	err := a.consumer.Run(ctx, a.recordStatus)
	a.logger.Info("worker app stopped",
		"event", "bootstrap_worker_stopped",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return err
}

func (a *WorkerApp) recordStatus(_ context.Context, envelope events.Envelope, event ports.StatusEvent) error {
	a.logger.Info("transaction status observed",
		"event", "worker_transaction_status_observed",
		"module", "internal/app/bootstrap",
		"layer", "worker",
		"event_id", envelope.EventID,
		"source_service", envelope.SourceService,
		"occurred_at_utc", envelope.OccurredAtUTC,
		"transaction_id", event.TransactionID,
		"status", event.Status,
	)
	return nil
}

func (a *WorkerApp) Close() error {
	return a.consumer.Close()
}
