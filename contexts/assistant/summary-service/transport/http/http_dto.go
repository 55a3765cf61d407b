package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type SummarizeRequest struct {
	Text string `json:"text" validate:"required"`
}

type SummaryDTO struct {
	ID            string `json:"id"`
	InputText     string `json:"input_text"`
	OutputSummary string `json:"output_summary"`
	CreatedAt     string `json:"created_at"`
}

type ListSummariesResponse struct {
	Status string       `json:"status"`
	Data   []SummaryDTO `json:"data"`
}
