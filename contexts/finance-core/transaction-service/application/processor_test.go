package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"txengine/contexts/finance-core/transaction-service/adapters/memory"
	"txengine/contexts/finance-core/transaction-service/domain/entities"
	"txengine/contexts/finance-core/transaction-service/ports"

	"github.com/shopspring/decimal"
)

type simulatorFunc func(ctx context.Context, transaction entities.Transaction) error

func (f simulatorFunc) Simulate(ctx context.Context, transaction entities.Transaction) error {
	return f(ctx, transaction)
}

// storeCheckingNotifier records events together with the stored status seen
// at delivery time.
type storeCheckingNotifier struct {
	repo ports.Repository

	mu     sync.Mutex
	events []ports.StatusEvent
	stored []entities.Status
}

func (n *storeCheckingNotifier) Broadcast(ctx context.Context, event ports.StatusEvent) error {
	tx, err := n.repo.GetByID(ctx, event.TransactionID)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	if err == nil {
		n.stored = append(n.stored, tx.Status)
	}
	return nil
}

func (n *storeCheckingNotifier) snapshot() ([]ports.StatusEvent, []entities.Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ports.StatusEvent(nil), n.events...), append([]entities.Status(nil), n.stored...)
}

func seedPending(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	tx, err := entities.NewTransaction(id, "user-1", decimal.RequireFromString("100.50"), "credit", "key-"+id, time.Now())
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	if err := store.Create(context.Background(), tx); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func runProcessor(t *testing.T, simulator ports.WorkSimulator) (*memory.Store, *storeCheckingNotifier) {
	t.Helper()
	store := memory.NewStore()
	seedPending(t, store, "tx-1")
	notifier := &storeCheckingNotifier{repo: store}
	Processor{Repo: store, Simulator: simulator, Notifier: notifier, Clock: store}.Process(context.Background(), "tx-1")
	return store, notifier
}

func assertTerminal(t *testing.T, store *memory.Store, notifier *storeCheckingNotifier, want entities.Status) {
	t.Helper()
	tx, err := store.GetByID(context.Background(), "tx-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tx.Status != want {
		t.Fatalf("expected stored status %s, got %s", want, tx.Status)
	}
	events, stored := notifier.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	if events[0].TransactionID != "tx-1" || events[0].Status != want {
		t.Fatalf("unexpected event: %+v", events[0])
	}
	if len(stored) != 1 || stored[0] != want {
		t.Fatalf("expected store to reflect %s before delivery, got %v", want, stored)
	}
}

func TestProcessorMarksProcessedAndNotifies(t *testing.T) {
	store, notifier := runProcessor(t, DelaySimulator{Delay: time.Millisecond})
	assertTerminal(t, store, notifier, entities.StatusProcessed)
}

func TestProcessorMarksFailedOnWorkError(t *testing.T) {
	store, notifier := runProcessor(t, simulatorFunc(func(context.Context, entities.Transaction) error {
		return errors.New("network down")
	}))
	assertTerminal(t, store, notifier, entities.StatusFailed)
}

func TestProcessorMarksFailedOnWorkPanic(t *testing.T) {
	store, notifier := runProcessor(t, simulatorFunc(func(context.Context, entities.Transaction) error {
		panic("boom")
	}))
	assertTerminal(t, store, notifier, entities.StatusFailed)
}

func TestProcessorIgnoresUnknownTransaction(t *testing.T) {
	store := memory.NewStore()
	notifier := &storeCheckingNotifier{repo: store}
	Processor{Repo: store, Notifier: notifier}.Process(context.Background(), "missing")

	if events, _ := notifier.snapshot(); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
	items, _ := store.List(context.Background())
	if len(items) != 0 {
		t.Fatalf("expected no records created, got %d", len(items))
	}
}

func TestProcessorSkipsTerminalTransaction(t *testing.T) {
	store := memory.NewStore()
	seedPending(t, store, "tx-1")
	if _, err := store.CompleteTransaction(context.Background(), "tx-1", entities.StatusFailed, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	called := false
	notifier := &storeCheckingNotifier{repo: store}
	Processor{
		Repo: store,
		Simulator: simulatorFunc(func(context.Context, entities.Transaction) error {
			called = true
			return nil
		}),
		Notifier: notifier,
	}.Process(context.Background(), "tx-1")

	if called {
		t.Fatalf("expected terminal transaction not to be reprocessed")
	}
	if events, _ := notifier.snapshot(); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

// flakyCompleter fails the first processed write so the processor falls back
// to recording failure.
type flakyCompleter struct {
	*memory.Store
	attempts []entities.Status
}

func (f *flakyCompleter) CompleteTransaction(
	ctx context.Context,
	transactionID string,
	status entities.Status,
	completedAt time.Time,
) (entities.Transaction, error) {
	f.attempts = append(f.attempts, status)
	if status == entities.StatusProcessed {
		return entities.Transaction{}, errors.New("write timeout")
	}
	return f.Store.CompleteTransaction(ctx, transactionID, status, completedAt)
}

func TestProcessorFallsBackToFailedWhenPersistFails(t *testing.T) {
	store := memory.NewStore()
	seedPending(t, store, "tx-1")
	repo := &flakyCompleter{Store: store}
	notifier := &storeCheckingNotifier{repo: store}

	Processor{Repo: repo, Simulator: DelaySimulator{}, Notifier: notifier}.Process(context.Background(), "tx-1")

	if len(repo.attempts) != 2 || repo.attempts[0] != entities.StatusProcessed || repo.attempts[1] != entities.StatusFailed {
		t.Fatalf("unexpected write attempts: %v", repo.attempts)
	}
	assertTerminal(t, store, notifier, entities.StatusFailed)
}

func TestDelaySimulatorHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (DelaySimulator{Delay: time.Hour}).Simulate(ctx, entities.Transaction{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
