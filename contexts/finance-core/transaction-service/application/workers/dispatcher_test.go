package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherRunsAndDrains(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		dispatcher.Submit("count", func(ctx context.Context) {
			if ctx.Err() != nil {
				t.Errorf("expected live context")
			}
			ran.Add(1)
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := dispatcher.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if ran.Load() != 10 {
		t.Fatalf("expected 10 runs, got %d", ran.Load())
	}
}

func TestDispatcherRecoversPanics(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	dispatcher.Submit("panic", func(context.Context) { panic("boom") })
	dispatcher.Submit("nil", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := dispatcher.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestDispatcherWaitTimesOut(t *testing.T) {
	dispatcher := NewDispatcher(nil)
	release := make(chan struct{})
	defer close(release)
	dispatcher.Submit("block", func(context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := dispatcher.Wait(ctx); err == nil {
		t.Fatalf("expected wait to time out while work is in flight")
	}
}
