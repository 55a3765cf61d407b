package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"txengine/contexts/assistant/summary-service/domain/entities"
	domainerrors "txengine/contexts/assistant/summary-service/domain/errors"
	"txengine/contexts/assistant/summary-service/ports"
)

type Service struct {
	Summarizer ports.Summarizer
	Repo       ports.Repository
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func (s Service) Summarize(ctx context.Context, text string) (entities.SummaryRecord, error) {
	logger := ResolveLogger(s.Logger)
	if strings.TrimSpace(text) == "" {
		return entities.SummaryRecord{}, domainerrors.ErrInvalidInput
	}
	if s.Summarizer == nil {
		return entities.SummaryRecord{}, domainerrors.ErrSummarizerUnavailable
	}

	summary, err := s.Summarizer.Summarize(ctx, text)
	if err != nil {
		logger.Error("summarizer call failed",
			"event", "summary_generation_failed",
			"module", "assistant/summary-service",
			"layer", "application",
			"input_length", len(text),
			"error", err.Error(),
		)
		return entities.SummaryRecord{}, fmt.Errorf("%w: %v", domainerrors.ErrSummarizerFailed, err)
	}

	id, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.SummaryRecord{}, err
	}
	record := entities.SummaryRecord{
		ID:            id,
		InputText:     text,
		OutputSummary: summary,
		CreatedAt:     s.now(),
	}
	if err := s.Repo.SaveSummary(ctx, record); err != nil {
		return entities.SummaryRecord{}, err
	}

	logger.Info("summary generated",
		"event", "summary_generated",
		"module", "assistant/summary-service",
		"layer", "application",
		"summary_id", record.ID,
		"input_length", len(text),
		"output_length", len(summary),
	)
	return record, nil
}

func (s Service) ListSummaries(ctx context.Context, limit int) ([]entities.SummaryRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.Repo.ListSummaries(ctx, limit)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}
