package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"txengine/contexts/finance-core/transaction-service/domain/entities"
	domainerrors "txengine/contexts/finance-core/transaction-service/domain/errors"
	"txengine/contexts/finance-core/transaction-service/ports"
)

const DefaultProcessingDelay = 5 * time.Second

// DelaySimulator waits for Delay and then succeeds.
type DelaySimulator struct {
	Delay time.Duration
}

func (s DelaySimulator) Simulate(ctx context.Context, _ entities.Transaction) error {
	delay := s.Delay
	if delay < 0 {
		delay = 0
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Processor drives one pending transaction to its terminal status and
// announces the result after it is stored.
type Processor struct {
	Repo      ports.Repository
	Simulator ports.WorkSimulator
	Notifier  ports.Notifier
	Clock     ports.Clock
	Logger    *slog.Logger
}

func (p Processor) Process(ctx context.Context, transactionID string) {
	logger := ResolveLogger(p.Logger)
	transactionID = strings.TrimSpace(transactionID)

	transaction, err := p.Repo.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrTransactionNotFound) {
			logger.Debug("transaction vanished before processing",
				"event", "transaction_process_not_found",
				"module", "finance-core/transaction-service",
				"layer", "application",
				"transaction_id", transactionID,
			)
			return
		}
		logger.Error("transaction load failed",
			"event", "transaction_process_load_failed",
			"module", "finance-core/transaction-service",
			"layer", "application",
			"transaction_id", transactionID,
			"error", err.Error(),
		)
		return
	}
	if transaction.Status.Terminal() {
		logger.Warn("transaction already terminal",
			"event", "transaction_process_skipped",
			"module", "finance-core/transaction-service",
			"layer", "application",
			"transaction_id", transactionID,
			"status", transaction.Status,
		)
		return
	}

	target := entities.StatusProcessed
	if err := p.simulate(ctx, transaction); err != nil {
		target = entities.StatusFailed
		logger.Warn("transaction processing failed",
			"event", "transaction_process_work_failed",
			"module", "finance-core/transaction-service",
			"layer", "application",
			"transaction_id", transactionID,
			"error", err.Error(),
		)
	}

	completed, err := p.Repo.CompleteTransaction(ctx, transactionID, target, p.now())
	if err != nil && target == entities.StatusProcessed && !errors.Is(err, domainerrors.ErrInvalidTransition) {
		logger.Error("persist processed status failed",
			"event", "transaction_process_persist_failed",
			"module", "finance-core/transaction-service",
			"layer", "application",
			"transaction_id", transactionID,
			"status", target,
			"error", err.Error(),
		)
		target = entities.StatusFailed
		completed, err = p.Repo.CompleteTransaction(ctx, transactionID, target, p.now())
	}
	if err != nil {
		logger.Error("persist terminal status failed",
			"event", "transaction_process_persist_failed",
			"module", "finance-core/transaction-service",
			"layer", "application",
			"transaction_id", transactionID,
			"status", target,
			"error", err.Error(),
		)
		return
	}

	logger.Info("transaction processed",
		"event", "transaction_processed",
		"module", "finance-core/transaction-service",
		"layer", "application",
		"transaction_id", completed.TransactionID,
		"status", completed.Status,
	)

	if p.Notifier == nil {
		return
	}
	if err := p.Notifier.Broadcast(ctx, ports.StatusEvent{
		TransactionID: completed.TransactionID,
		Status:        completed.Status,
	}); err != nil {
		logger.Error("status broadcast failed",
			"event", "transaction_status_broadcast_failed",
			"module", "finance-core/transaction-service",
			"layer", "application",
			"transaction_id", completed.TransactionID,
			"error", err.Error(),
		)
	}
}

func (p Processor) simulate(ctx context.Context, transaction entities.Transaction) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("processing panic: %v", recovered)
		}
	}()
	if p.Simulator == nil {
		return nil
	}
	return p.Simulator.Simulate(ctx, transaction)
}

func (p Processor) now() time.Time {
	if p.Clock == nil {
		return time.Now().UTC()
	}
	return p.Clock.Now().UTC()
}
