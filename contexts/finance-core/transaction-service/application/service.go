package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"txengine/contexts/finance-core/transaction-service/domain/entities"
	domainerrors "txengine/contexts/finance-core/transaction-service/domain/errors"
	"txengine/contexts/finance-core/transaction-service/ports"
)

// Service is the orchestration entry point used by the transport layer.
type Service struct {
	Repo      ports.Repository
	Guard     IdempotencyGuard
	Processor Processor
	Scheduler ports.Scheduler
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// CreateTransaction stores a pending transaction for key, or returns the one
// already bound to it with replayed=true.
func (s Service) CreateTransaction(
	ctx context.Context,
	idempotencyKey string,
	input ports.CreateTransactionInput,
) (entities.Transaction, bool, error) {
	transaction, created, err := s.Guard.ReserveOrFetch(ctx, idempotencyKey, s.factory(idempotencyKey, input))
	if err != nil {
		return entities.Transaction{}, false, err
	}
	if created {
		ResolveLogger(s.Logger).Info("transaction created",
			"event", "transaction_created",
			"module", "finance-core/transaction-service",
			"layer", "application",
			"transaction_id", transaction.TransactionID,
			"user_id", transaction.UserID,
			"type", transaction.Type,
		)
	}
	return transaction, !created, nil
}

// CreateAndProcessTransaction behaves like CreateTransaction and, only for a
// newly created transaction, schedules its processing in the background.
func (s Service) CreateAndProcessTransaction(
	ctx context.Context,
	idempotencyKey string,
	input ports.CreateTransactionInput,
) (entities.Transaction, bool, error) {
	transaction, replayed, err := s.CreateTransaction(ctx, idempotencyKey, input)
	if err != nil || replayed {
		return transaction, replayed, err
	}

	transactionID := transaction.TransactionID
	processor := s.Processor
	if s.Scheduler == nil {
		go processor.Process(context.WithoutCancel(ctx), transactionID)
	} else {
		s.Scheduler.Submit("process_transaction", func(workCtx context.Context) {
			processor.Process(workCtx, transactionID)
		})
	}

	ResolveLogger(s.Logger).Info("transaction processing scheduled",
		"event", "transaction_processing_scheduled",
		"module", "finance-core/transaction-service",
		"layer", "application",
		"transaction_id", transactionID,
	)
	return transaction, false, nil
}

func (s Service) GetTransaction(ctx context.Context, transactionID string) (entities.Transaction, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return entities.Transaction{}, domainerrors.ErrTransactionNotFound
	}
	return s.Repo.GetByID(ctx, transactionID)
}

func (s Service) ListTransactions(ctx context.Context) ([]entities.Transaction, error) {
	return s.Repo.List(ctx)
}

func (s Service) factory(idempotencyKey string, input ports.CreateTransactionInput) TransactionFactory {
	return func(ctx context.Context) (entities.Transaction, error) {
		transactionID, err := s.IDGen.NewID(ctx)
		if err != nil {
			return entities.Transaction{}, err
		}
		return entities.NewTransaction(
			transactionID,
			input.UserID,
			input.Amount,
			input.Type,
			idempotencyKey,
			s.now(),
		)
	}
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
