package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"txengine/contexts/assistant/summary-service/domain/entities"

	"github.com/google/uuid"
)

type Store struct {
	mu        sync.RWMutex
	summaries []entities.SummaryRecord
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) SaveSummary(_ context.Context, record entities.SummaryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, record)
	return nil
}

func (s *Store) ListSummaries(_ context.Context, limit int) ([]entities.SummaryRecord, error) {
	s.mu.RLock()
	items := make([]entities.SummaryRecord, 0, len(s.summaries))
	for i := len(s.summaries) - 1; i >= 0; i-- {
		items = append(items, s.summaries[i])
	}
	s.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
