package postgresadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"txengine/contexts/finance-core/transaction-service/domain/entities"
	domainerrors "txengine/contexts/finance-core/transaction-service/domain/errors"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewRepository(db, nil)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func newTransaction(t *testing.T, id string, key string, createdAt time.Time) entities.Transaction {
	t.Helper()
	tx, err := entities.NewTransaction(id, "user-1", decimal.RequireFromString("100.5"), "credit", key, createdAt)
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	return tx
}

func TestRepositoryCreateAndRead(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	createdAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.Create(ctx, newTransaction(t, "tx-1", "k1", createdAt)); err != nil {
		t.Fatalf("create: %v", err)
	}

	byID, err := repo.GetByID(ctx, "tx-1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Status != entities.StatusPending || byID.IdempotencyKey != "k1" {
		t.Fatalf("unexpected row: %+v", byID)
	}
	if !byID.Amount.Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("expected amount 100.5, got %s", byID.Amount)
	}
	if !byID.CreatedAt.Equal(createdAt) {
		t.Fatalf("expected created_at %v, got %v", createdAt, byID.CreatedAt)
	}

	byKey, err := repo.GetByIdempotencyKey(ctx, "k1")
	if err != nil {
		t.Fatalf("get by key: %v", err)
	}
	if byKey.TransactionID != "tx-1" {
		t.Fatalf("expected tx-1, got %s", byKey.TransactionID)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, domainerrors.ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRepositoryCreateDuplicateKey(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Create(ctx, newTransaction(t, "tx-1", "k1", now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, newTransaction(t, "tx-2", "k1", now)); !errors.Is(err, domainerrors.ErrIdempotencyKeyTaken) {
		t.Fatalf("expected key taken, got %v", err)
	}
	if _, err := repo.GetByID(ctx, "tx-2"); !errors.Is(err, domainerrors.ErrTransactionNotFound) {
		t.Fatalf("expected losing insert to leave no row, got %v", err)
	}
}

func TestRepositoryPutAdvancesPendingOnly(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tx := newTransaction(t, "tx-1", "k1", created)
	if err := repo.Put(ctx, tx); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.Put(ctx, tx); err != nil {
		t.Fatalf("same-status overwrite: %v", err)
	}

	overwrite := tx
	overwrite.UserID = "someone-else"
	overwrite.Amount = decimal.NewFromInt(999)
	overwrite.CreatedAt = created.Add(time.Hour)
	overwrite.UpdatedAt = created.Add(time.Hour)
	overwrite.Status = entities.StatusFailed
	if err := repo.Put(ctx, overwrite); err != nil {
		t.Fatalf("pending -> failed overwrite: %v", err)
	}
	got, err := repo.GetByID(ctx, "tx-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != entities.StatusFailed {
		t.Fatalf("expected failed after overwrite, got %s", got.Status)
	}
	if got.UserID != tx.UserID || !got.Amount.Equal(tx.Amount) || !got.CreatedAt.Equal(created) {
		t.Fatalf("immutable columns rewritten: %+v", got)
	}

	for _, status := range []entities.Status{entities.StatusPending, entities.StatusProcessed} {
		regress := tx
		regress.Status = status
		if err := repo.Put(ctx, regress); !errors.Is(err, domainerrors.ErrInvalidTransition) {
			t.Fatalf("expected failed -> %s rejected, got %v", status, err)
		}
	}
	got, _ = repo.GetByID(ctx, "tx-1")
	if got.Status != entities.StatusFailed {
		t.Fatalf("terminal status changed to %s", got.Status)
	}

	if err := repo.Put(ctx, newTransaction(t, "tx-1", "k2", created)); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected rekey rejected, got %v", err)
	}
	if err := repo.Put(ctx, newTransaction(t, "tx-2", "k1", created)); !errors.Is(err, domainerrors.ErrIdempotencyKeyTaken) {
		t.Fatalf("expected key taken, got %v", err)
	}
}

func TestRepositoryPutAfterCompleteCannotReopen(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := repo.Create(ctx, newTransaction(t, "tx-1", "k1", now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CompleteTransaction(ctx, "tx-1", entities.StatusProcessed, now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	reopen := newTransaction(t, "tx-1", "k1", now)
	reopen.UserID = "someone-else"
	if err := repo.Put(ctx, reopen); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected reopen rejected, got %v", err)
	}
	got, err := repo.GetByID(ctx, "tx-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != entities.StatusProcessed || got.UserID != "user-1" {
		t.Fatalf("row changed by rejected put: %+v", got)
	}
}

func TestRepositoryListNewestFirst(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"tx-a", "tx-b", "tx-c"} {
		if err := repo.Create(ctx, newTransaction(t, id, "key-"+id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	items, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 || items[0].TransactionID != "tx-c" || items[2].TransactionID != "tx-a" {
		t.Fatalf("unexpected order: %+v", items)
	}
}

func TestRepositoryCompleteTransactionIsConditional(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	if err := repo.Create(ctx, newTransaction(t, "tx-1", "k1", time.Now().UTC())); err != nil {
		t.Fatalf("create: %v", err)
	}

	completedAt := time.Now().UTC().Add(time.Second)
	done, err := repo.CompleteTransaction(ctx, "tx-1", entities.StatusProcessed, completedAt)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != entities.StatusProcessed {
		t.Fatalf("expected processed, got %s", done.Status)
	}

	if _, err := repo.CompleteTransaction(ctx, "tx-1", entities.StatusFailed, time.Now()); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected second terminal write rejected, got %v", err)
	}
	got, err := repo.GetByID(ctx, "tx-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != entities.StatusProcessed {
		t.Fatalf("terminal status changed to %s", got.Status)
	}

	if _, err := repo.CompleteTransaction(ctx, "missing", entities.StatusProcessed, time.Now()); !errors.Is(err, domainerrors.ErrTransactionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := repo.CompleteTransaction(ctx, "tx-1", entities.StatusPending, time.Now()); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected pending target rejected, got %v", err)
	}
}
