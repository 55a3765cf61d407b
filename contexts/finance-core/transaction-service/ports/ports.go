package ports

import (
	"context"
	"time"

	"txengine/contexts/finance-core/transaction-service/domain/entities"

	"github.com/shopspring/decimal"
)

type CreateTransactionInput struct {
	UserID string
	Amount decimal.Decimal
	Type   string
}

// Repository is the Transaction Store. Every operation is atomic per record
// and returns copies.
type Repository interface {
	Put(ctx context.Context, transaction entities.Transaction) error
	Create(ctx context.Context, transaction entities.Transaction) error
	GetByID(ctx context.Context, transactionID string) (entities.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (entities.Transaction, error)
	List(ctx context.Context) ([]entities.Transaction, error)
	CompleteTransaction(
		ctx context.Context,
		transactionID string,
		status entities.Status,
		completedAt time.Time,
	) (entities.Transaction, error)
}

// KeyLocker serializes callers that share a key. The returned func releases
// the lock and must be called exactly once.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type StatusEvent struct {
	TransactionID string          `json:"transaction_id"`
	Status        entities.Status `json:"status"`
}

type Notifier interface {
	Broadcast(ctx context.Context, event StatusEvent) error
}

// WorkSimulator stands in for the real processing step (payment network call).
type WorkSimulator interface {
	Simulate(ctx context.Context, transaction entities.Transaction) error
}

type Scheduler interface {
	Submit(name string, fn func(ctx context.Context))
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

// StatusPublisher forwards status events to an external broker.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, event StatusEvent) error
}
