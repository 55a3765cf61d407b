package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"txengine/contexts/finance-core/transaction-service/ports"

	"github.com/google/uuid"
)

const DefaultBufferSize = 64

// Subscription is one registered observer. Events are delivered in broadcast
// order; both channels are closed once the observer leaves the registry.
type Subscription struct {
	id     string
	events chan ports.StatusEvent
	done   chan struct{}

	evicted   atomic.Bool
	closeOnce sync.Once
}

func (s *Subscription) ID() string {
	return s.id
}

func (s *Subscription) Events() <-chan ports.StatusEvent {
	return s.events
}

// Done is closed when the subscription ends, whether by Unsubscribe,
// eviction or registry shutdown.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Evicted() bool {
	return s.evicted.Load()
}

func (s *Subscription) close() {
	s.closeOnce.Do(func() {
		close(s.events)
		close(s.done)
	})
}

// Registry keeps the set of live observers and fans status events out to
// them. A full observer buffer evicts that observer only.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription
	bufferSize  int
	closed      bool
	logger      *slog.Logger
}

func NewRegistry(bufferSize int, logger *slog.Logger) *Registry {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		subscribers: make(map[string]*Subscription),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe registers a new observer. After Close it returns an already
// ended subscription.
func (r *Registry) Subscribe() *Subscription {
	sub := &Subscription{
		id:     uuid.NewString(),
		events: make(chan ports.StatusEvent, r.bufferSize),
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		sub.close()
		return sub
	}
	r.subscribers[sub.id] = sub

	r.logger.Debug("subscriber registered",
		"event", "transaction_stream_subscribed",
		"module", "finance-core/transaction-service",
		"layer", "adapter",
		"subscriber_id", sub.id,
		"subscribers", len(r.subscribers),
	)
	return sub
}

// Unsubscribe removes sub. Calling it more than once is a no-op.
func (r *Registry) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sub)
}

// Broadcast never blocks on a slow observer and never fails.
func (r *Registry) Broadcast(_ context.Context, event ports.StatusEvent) error {
	var stale []*Subscription

	r.mu.RLock()
	for _, sub := range r.subscribers {
		if sub.evicted.Load() {
			continue
		}
		select {
		case sub.events <- event:
		default:
			sub.evicted.Store(true)
			stale = append(stale, sub)
		}
	}
	delivered := len(r.subscribers) - len(stale)
	r.mu.RUnlock()

	for _, sub := range stale {
		r.logger.Warn("evicting slow subscriber",
			"event", "transaction_stream_subscriber_evicted",
			"module", "finance-core/transaction-service",
			"layer", "adapter",
			"subscriber_id", sub.id,
			"transaction_id", event.TransactionID,
		)
		r.Unsubscribe(sub)
	}

	r.logger.Debug("status event broadcast",
		"event", "transaction_status_broadcast",
		"module", "finance-core/transaction-service",
		"layer", "adapter",
		"transaction_id", event.TransactionID,
		"status", event.Status,
		"delivered", delivered,
	)
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// Close ends every subscription and rejects new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, sub := range r.subscribers {
		r.removeLocked(sub)
	}
}

func (r *Registry) removeLocked(sub *Subscription) {
	if current, ok := r.subscribers[sub.id]; ok && current == sub {
		delete(r.subscribers, sub.id)
	}
	sub.close()
}
