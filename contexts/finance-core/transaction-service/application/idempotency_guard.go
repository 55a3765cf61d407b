package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"txengine/contexts/finance-core/transaction-service/domain/entities"
	domainerrors "txengine/contexts/finance-core/transaction-service/domain/errors"
	"txengine/contexts/finance-core/transaction-service/ports"
)

// TransactionFactory builds the pending transaction to store when a key is
// seen for the first time.
type TransactionFactory func(ctx context.Context) (entities.Transaction, error)

type IdempotencyGuard struct {
	Repo   ports.Repository
	Locker ports.KeyLocker
	Logger *slog.Logger
}

// ReserveOrFetch returns the transaction bound to key, creating it with
// factory when none exists. created reports whether this call stored it.
func (g IdempotencyGuard) ReserveOrFetch(
	ctx context.Context,
	key string,
	factory TransactionFactory,
) (entities.Transaction, bool, error) {
	logger := ResolveLogger(g.Logger)
	key = strings.TrimSpace(key)
	if key == "" {
		return entities.Transaction{}, false, domainerrors.ErrIdempotencyKeyRequired
	}

	if g.Locker != nil {
		unlock, err := g.Locker.Lock(ctx, key)
		if err != nil {
			logger.Error("idempotency lock failed",
				"event", "transaction_idempotency_lock_failed",
				"module", "finance-core/transaction-service",
				"layer", "application",
				"idempotency_key", key,
				"error", err.Error(),
			)
			return entities.Transaction{}, false, err
		}
		defer unlock()
	}

	existing, err := g.Repo.GetByIdempotencyKey(ctx, key)
	if err == nil {
		logger.Info("idempotent replay",
			"event", "transaction_idempotent_replay",
			"module", "finance-core/transaction-service",
			"layer", "application",
			"idempotency_key", key,
			"transaction_id", existing.TransactionID,
		)
		return existing, false, nil
	}
	if !errors.Is(err, domainerrors.ErrTransactionNotFound) {
		return entities.Transaction{}, false, err
	}

	transaction, err := factory(ctx)
	if err != nil {
		return entities.Transaction{}, false, err
	}
	transaction.IdempotencyKey = key

	if err := g.Repo.Create(ctx, transaction); err != nil {
		if !errors.Is(err, domainerrors.ErrIdempotencyKeyTaken) {
			return entities.Transaction{}, false, err
		}
		// Another process holding a different locker won the insert.
		winner, getErr := g.Repo.GetByIdempotencyKey(ctx, key)
		if getErr != nil {
			return entities.Transaction{}, false, getErr
		}
		logger.Warn("idempotency insert race resolved by store",
			"event", "transaction_idempotency_race_resolved",
			"module", "finance-core/transaction-service",
			"layer", "application",
			"idempotency_key", key,
			"transaction_id", winner.TransactionID,
		)
		return winner, false, nil
	}
	return transaction, true, nil
}
