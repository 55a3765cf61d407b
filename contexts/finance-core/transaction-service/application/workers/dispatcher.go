package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	application "txengine/contexts/finance-core/transaction-service/application"
)

// Dispatcher runs fire-and-forget work units on their own goroutines.
// Units get a context that no request can cancel.
type Dispatcher struct {
	Logger *slog.Logger

	wg sync.WaitGroup
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{Logger: logger}
}

func (d *Dispatcher) Submit(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	logger := application.ResolveLogger(d.Logger)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Error("background work panicked",
					"event", "transaction_worker_panic",
					"module", "finance-core/transaction-service",
					"layer", "worker",
					"work", name,
					"panic", fmt.Sprint(recovered),
				)
			}
		}()
		fn(context.Background())
	}()
}

// Wait blocks until every submitted unit has returned or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
