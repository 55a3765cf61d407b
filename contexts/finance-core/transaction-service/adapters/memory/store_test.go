package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"txengine/contexts/finance-core/transaction-service/domain/entities"
	domainerrors "txengine/contexts/finance-core/transaction-service/domain/errors"

	"github.com/shopspring/decimal"
)

func newTransaction(t *testing.T, id string, key string, createdAt time.Time) entities.Transaction {
	t.Helper()
	tx, err := entities.NewTransaction(id, "user-1", decimal.NewFromInt(10), "credit", key, createdAt)
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	return tx
}

func TestStoreCreateRejectsTakenKey(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Create(ctx, newTransaction(t, "tx-1", "k1", now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, newTransaction(t, "tx-2", "k1", now)); !errors.Is(err, domainerrors.ErrIdempotencyKeyTaken) {
		t.Fatalf("expected key taken, got %v", err)
	}

	got, err := store.GetByIdempotencyKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if got.TransactionID != "tx-1" {
		t.Fatalf("expected tx-1 to own k1, got %s", got.TransactionID)
	}
}

func TestStorePutKeepsKeyImmutable(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Put(ctx, newTransaction(t, "tx-1", "k1", now)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, newTransaction(t, "tx-2", "k1", now)); !errors.Is(err, domainerrors.ErrIdempotencyKeyTaken) {
		t.Fatalf("expected key taken for second id, got %v", err)
	}
	if err := store.Put(ctx, newTransaction(t, "tx-1", "k2", now)); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected rekey rejected, got %v", err)
	}

	if err := store.Put(ctx, newTransaction(t, "tx-1", "k1", now)); err != nil {
		t.Fatalf("same-status overwrite: %v", err)
	}
}

func TestStorePutOnlyAdvancesPendingAndKeepsImmutableFields(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Put(ctx, newTransaction(t, "tx-1", "k1", created)); err != nil {
		t.Fatalf("put: %v", err)
	}

	overwrite := newTransaction(t, "tx-1", "k1", created.Add(time.Hour))
	overwrite.UserID = "someone-else"
	overwrite.Amount = decimal.NewFromInt(999)
	overwrite.Status = entities.StatusProcessed
	if err := store.Put(ctx, overwrite); err != nil {
		t.Fatalf("pending -> processed overwrite: %v", err)
	}
	got, err := store.GetByID(ctx, "tx-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != entities.StatusProcessed {
		t.Fatalf("expected processed, got %s", got.Status)
	}
	if got.UserID != "user-1" || !got.Amount.Equal(decimal.NewFromInt(10)) || !got.CreatedAt.Equal(created) {
		t.Fatalf("immutable fields rewritten: %+v", got)
	}

	for _, status := range []entities.Status{entities.StatusPending, entities.StatusFailed} {
		regress := newTransaction(t, "tx-1", "k1", created)
		regress.Status = status
		if err := store.Put(ctx, regress); !errors.Is(err, domainerrors.ErrInvalidTransition) {
			t.Fatalf("expected terminal -> %s rejected, got %v", status, err)
		}
	}
	got, _ = store.GetByID(ctx, "tx-1")
	if got.Status != entities.StatusProcessed {
		t.Fatalf("terminal status changed to %s", got.Status)
	}
}

func TestStorePutAfterCompleteCannotReopen(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := store.Create(ctx, newTransaction(t, "tx-1", "k1", now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CompleteTransaction(ctx, "tx-1", entities.StatusProcessed, now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	reopen := newTransaction(t, "tx-1", "k1", now)
	reopen.UserID = "someone-else"
	if err := store.Put(ctx, reopen); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected reopen rejected, got %v", err)
	}
	got, _ := store.GetByID(ctx, "tx-1")
	if got.Status != entities.StatusProcessed || got.UserID != "user-1" {
		t.Fatalf("record changed by rejected put: %+v", got)
	}
}

func TestStoreGetMissingReturnsNotFound(t *testing.T) {
	store := NewStore()
	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, domainerrors.ErrTransactionNotFound) {
		t.Fatalf("expected not found by id, got %v", err)
	}
	if _, err := store.GetByIdempotencyKey(context.Background(), "missing"); !errors.Is(err, domainerrors.ErrTransactionNotFound) {
		t.Fatalf("expected not found by key, got %v", err)
	}
}

func TestStoreListNewestFirstWithInsertionTieBreak(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, item := range []struct {
		id string
		at time.Time
	}{
		{"old", base},
		{"tie-a", base.Add(time.Minute)},
		{"tie-b", base.Add(time.Minute)},
		{"new", base.Add(time.Hour)},
	} {
		if err := store.Create(ctx, newTransaction(t, item.id, "key-"+item.id, item.at)); err != nil {
			t.Fatalf("create %s: %v", item.id, err)
		}
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"new", "tie-b", "tie-a", "old"}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, id := range want {
		if items[i].TransactionID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, items[i].TransactionID)
		}
	}
}

func TestStoreCompleteTransactionSingleTerminalWrite(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.Create(ctx, newTransaction(t, "tx-1", "k1", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := entities.StatusProcessed
			if i%2 == 0 {
				status = entities.StatusFailed
			}
			if _, err := store.CompleteTransaction(ctx, "tx-1", status, time.Now()); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			} else if !errors.Is(err, domainerrors.ErrInvalidTransition) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one terminal write, got %d", winners)
	}

	if _, err := store.CompleteTransaction(ctx, "missing", entities.StatusProcessed, time.Now()); !errors.Is(err, domainerrors.ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestKeyLockerSerializesSameKey(t *testing.T) {
	locker := NewKeyLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "k1")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		release, err := locker.Lock(ctx, "k1")
		if err != nil {
			t.Errorf("second lock: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		release()
	}()

	other, err := locker.Lock(ctx, "k2")
	if err != nil {
		t.Fatalf("lock other key: %v", err)
	}
	other()

	select {
	case <-acquired:
		t.Fatalf("second holder acquired k1 while it was locked")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second holder never acquired k1")
	}
}

func TestKeyLockerRejectsBlankKey(t *testing.T) {
	if _, err := NewKeyLocker().Lock(context.Background(), " "); !errors.Is(err, domainerrors.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected key required, got %v", err)
	}
}
