package ports

import (
	"context"
	"time"

	"txengine/contexts/assistant/summary-service/domain/entities"
)

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type Repository interface {
	SaveSummary(ctx context.Context, record entities.SummaryRecord) error
	ListSummaries(ctx context.Context, limit int) ([]entities.SummaryRecord, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
