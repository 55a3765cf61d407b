package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"txengine/contexts/finance-core/transaction-service/domain/entities"
	domainerrors "txengine/contexts/finance-core/transaction-service/domain/errors"

	"github.com/google/uuid"
)

// Store is the in-memory Transaction Store used by the single-process runtime
// and tests.
type Store struct {
	mu sync.RWMutex

	transactions map[string]storedTransaction
	byKey        map[string]string
	sequence     uint64
}

type storedTransaction struct {
	Transaction entities.Transaction
	Sequence    uint64
}

func NewStore() *Store {
	return &Store{
		transactions: make(map[string]storedTransaction),
		byKey:        make(map[string]string),
	}
}

// Put inserts transaction, or overwrites the stored record with the same id.
// An overwrite keeps the stored immutable fields and may only move the
// status from pending to a terminal one.
func (s *Store) Put(_ context.Context, transaction entities.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(transaction.TransactionID)
	key := strings.TrimSpace(transaction.IdempotencyKey)
	if id == "" || key == "" || !transaction.Status.Valid() {
		return domainerrors.ErrInvalidInput
	}
	if owner, ok := s.byKey[key]; ok && owner != id {
		return domainerrors.ErrIdempotencyKeyTaken
	}

	existing, exists := s.transactions[id]
	if !exists {
		s.sequence++
		s.transactions[id] = storedTransaction{Transaction: transaction, Sequence: s.sequence}
		s.byKey[key] = id
		return nil
	}
	if existing.Transaction.IdempotencyKey != key {
		return domainerrors.ErrInvalidInput
	}
	if transaction.Status == existing.Transaction.Status {
		return nil
	}
	updated, err := existing.Transaction.Transition(transaction.Status, overwriteTime(transaction))
	if err != nil {
		return err
	}
	existing.Transaction = updated
	s.transactions[id] = existing
	return nil
}

func (s *Store) Create(_ context.Context, transaction entities.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(transaction.TransactionID)
	key := strings.TrimSpace(transaction.IdempotencyKey)
	if id == "" || key == "" {
		return domainerrors.ErrInvalidInput
	}
	if _, ok := s.byKey[key]; ok {
		return domainerrors.ErrIdempotencyKeyTaken
	}
	if _, ok := s.transactions[id]; ok {
		return domainerrors.ErrInvalidInput
	}

	s.sequence++
	s.transactions[id] = storedTransaction{Transaction: transaction, Sequence: s.sequence}
	s.byKey[key] = id
	return nil
}

func (s *Store) GetByID(_ context.Context, transactionID string) (entities.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.transactions[strings.TrimSpace(transactionID)]
	if !ok {
		return entities.Transaction{}, domainerrors.ErrTransactionNotFound
	}
	return row.Transaction, nil
}

func (s *Store) GetByIdempotencyKey(_ context.Context, key string) (entities.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byKey[strings.TrimSpace(key)]
	if !ok {
		return entities.Transaction{}, domainerrors.ErrTransactionNotFound
	}
	return s.transactions[id].Transaction, nil
}

func (s *Store) List(_ context.Context) ([]entities.Transaction, error) {
	s.mu.RLock()
	rows := make([]storedTransaction, 0, len(s.transactions))
	for _, row := range s.transactions {
		rows = append(rows, row)
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Transaction.CreatedAt.Equal(rows[j].Transaction.CreatedAt) {
			return rows[i].Sequence > rows[j].Sequence
		}
		return rows[i].Transaction.CreatedAt.After(rows[j].Transaction.CreatedAt)
	})

	items := make([]entities.Transaction, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.Transaction)
	}
	return items, nil
}

func (s *Store) CompleteTransaction(
	_ context.Context,
	transactionID string,
	status entities.Status,
	completedAt time.Time,
) (entities.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimSpace(transactionID)
	row, ok := s.transactions[id]
	if !ok {
		return entities.Transaction{}, domainerrors.ErrTransactionNotFound
	}
	updated, err := row.Transaction.Transition(status, completedAt)
	if err != nil {
		return entities.Transaction{}, err
	}
	row.Transaction = updated
	s.transactions[id] = row
	return updated, nil
}

func overwriteTime(transaction entities.Transaction) time.Time {
	if transaction.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return transaction.UpdatedAt
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

// NewID returns UUIDv7 values so ids sort by creation time.
func (s *Store) NewID(_ context.Context) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
