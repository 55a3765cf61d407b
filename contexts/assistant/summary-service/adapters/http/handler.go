package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"txengine/contexts/assistant/summary-service/application"
	"txengine/contexts/assistant/summary-service/domain/entities"
	httptransport "txengine/contexts/assistant/summary-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// SummarizeHandler godoc
// @Summary Summarize text
// @Description Generates a short summary and stores the request with its result.
// @Tags assistant
// @Accept json
// @Produce json
// @Param request body httptransport.SummarizeRequest true "Text to summarize"
// @Success 200 {object} httptransport.SummaryDTO
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 502 {object} httptransport.ErrorResponse
// @Failure 503 {object} httptransport.ErrorResponse
// @Router /assistant/summarize [post]
func (h Handler) SummarizeHandler(ctx context.Context, req httptransport.SummarizeRequest) (httptransport.SummaryDTO, error) {
	record, err := h.Service.Summarize(ctx, req.Text)
	if err != nil {
		return httptransport.SummaryDTO{}, err
	}
	return toDTO(record), nil
}

// ListSummariesHandler godoc
// @Summary List recent summaries
// @Tags assistant
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} httptransport.ListSummariesResponse
// @Router /assistant/summaries [get]
func (h Handler) ListSummariesHandler(ctx context.Context, limit int) (httptransport.ListSummariesResponse, error) {
	items, err := h.Service.ListSummaries(ctx, limit)
	if err != nil {
		return httptransport.ListSummariesResponse{}, err
	}
	resp := httptransport.ListSummariesResponse{
		Status: "success",
		Data:   make([]httptransport.SummaryDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toDTO(item))
	}
	return resp, nil
}

func toDTO(record entities.SummaryRecord) httptransport.SummaryDTO {
	return httptransport.SummaryDTO{
		ID:            record.ID,
		InputText:     record.InputText,
		OutputSummary: record.OutputSummary,
		CreatedAt:     record.CreatedAt.UTC().Format(time.RFC3339),
	}
}
