package entities

import (
	"strings"
	"time"

	domainerrors "txengine/contexts/finance-core/transaction-service/domain/errors"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition can leave this status.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

func (s Status) Valid() bool {
	return s == StatusPending || s.Terminal()
}

type Transaction struct {
	TransactionID  string
	UserID         string
	Amount         decimal.Decimal
	Type           string
	Status         Status
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewTransaction(
	transactionID string,
	userID string,
	amount decimal.Decimal,
	transactionType string,
	idempotencyKey string,
	createdAt time.Time,
) (Transaction, error) {
	if strings.TrimSpace(transactionID) == "" ||
		strings.TrimSpace(userID) == "" ||
		strings.TrimSpace(transactionType) == "" {
		return Transaction{}, domainerrors.ErrInvalidInput
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return Transaction{}, domainerrors.ErrIdempotencyKeyRequired
	}

	return Transaction{
		TransactionID:  strings.TrimSpace(transactionID),
		UserID:         strings.TrimSpace(userID),
		Amount:         amount,
		Type:           strings.TrimSpace(transactionType),
		Status:         StatusPending,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		CreatedAt:      createdAt.UTC(),
		UpdatedAt:      createdAt.UTC(),
	}, nil
}

// Transition moves a pending transaction to a terminal status.
// Terminal transactions are immutable.
func (t Transaction) Transition(target Status, at time.Time) (Transaction, error) {
	if t.Status != StatusPending || !target.Terminal() {
		return t, domainerrors.ErrInvalidTransition
	}
	t.Status = target
	t.UpdatedAt = at.UTC()
	return t, nil
}
