package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	summaryservice "txengine/contexts/assistant/summary-service"
	summaryerrors "txengine/contexts/assistant/summary-service/domain/errors"
	summaryhttp "txengine/contexts/assistant/summary-service/transport/http"
	transactionservice "txengine/contexts/finance-core/transaction-service"
	transactionerrors "txengine/contexts/finance-core/transaction-service/domain/errors"
	transactionhttp "txengine/contexts/finance-core/transaction-service/transport/http"
	_ "txengine/internal/platform/httpserver/docs"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

const replayedHeader = "Idempotent-Replayed"

type Options struct {
	AllowedOrigins     []string
	StreamWriteTimeout time.Duration
	StreamPingInterval time.Duration
}

type Server struct {
	mux          *http.ServeMux
	handler      http.Handler
	httpServer   *http.Server
	logger       *slog.Logger
	addr         string
	options      Options
	validate     *validator.Validate
	upgrader     websocket.Upgrader
	transactions transactionservice.Module
	summaries    summaryservice.Module
}

func New(
	transactions transactionservice.Module,
	summaries summaryservice.Module,
	logger *slog.Logger,
	addr string,
	options Options,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8000"
	}
	if options.StreamWriteTimeout <= 0 {
		options.StreamWriteTimeout = 10 * time.Second
	}
	if options.StreamPingInterval <= 0 {
		options.StreamPingInterval = 30 * time.Second
	}
	if len(options.AllowedOrigins) == 0 {
		options.AllowedOrigins = []string{"http://localhost:3000"}
	}

	s := &Server{
		mux:          http.NewServeMux(),
		logger:       logger,
		addr:         addr,
		options:      options,
		validate:     validator.New(),
		transactions: transactions,
		summaries:    summaries,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.registerRoutes()
	s.handler = cors.New(cors.Options{
		AllowedOrigins:   options.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{replayedHeader},
	}).Handler(s.mux)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler wrapped with CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Open
// streams are ended by closing the subscriber registry.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /transactions", s.handleListTransactions)
	s.mux.HandleFunc("POST /transactions/create", s.handleCreateTransaction)
	s.mux.HandleFunc("POST /transactions/async-process", s.handleAsyncProcessTransaction)
	s.mux.HandleFunc("GET /transactions/stream", s.handleTransactionStream)
	s.mux.HandleFunc("GET /transactions/{transaction_id}", s.handleGetTransaction)

	s.mux.HandleFunc("POST /assistant/summarize", s.handleSummarize)
	s.mux.HandleFunc("GET /assistant/summaries", s.handleListSummaries)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "API running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	subscribers := 0
	if s.transactions.Registry != nil {
		subscribers = s.transactions.Registry.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": subscribers,
	})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	resp, err := s.transactions.Handler.ListTransactionsHandler(r.Context())
	if err != nil {
		writeTransactionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTransactionRequest(w, r)
	if !ok {
		return
	}
	resp, err := s.transactions.Handler.CreateTransactionHandler(r.Context(), r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		writeTransactionDomainError(w, err)
		return
	}
	writeTransactionResponse(w, resp)
}

func (s *Server) handleAsyncProcessTransaction(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTransactionRequest(w, r)
	if !ok {
		return
	}
	resp, err := s.transactions.Handler.CreateAndProcessTransactionHandler(r.Context(), r.Header.Get("Idempotency-Key"), req)
	if err != nil {
		writeTransactionDomainError(w, err)
		return
	}
	writeTransactionResponse(w, resp)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	resp, err := s.transactions.Handler.GetTransactionHandler(r.Context(), r.PathValue("transaction_id"))
	if err != nil {
		writeTransactionDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req summaryhttp.SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeSummaryError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeSummaryError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	resp, err := s.summaries.Handler.SummarizeHandler(r.Context(), req)
	if err != nil {
		writeSummaryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			writeSummaryError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = value
	}
	resp, err := s.summaries.Handler.ListSummariesHandler(r.Context(), limit)
	if err != nil {
		writeSummaryDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeTransactionRequest(w http.ResponseWriter, r *http.Request) (transactionhttp.CreateTransactionRequest, bool) {
	var req transactionhttp.CreateTransactionRequest
	body, err := io.ReadAll(r.Body)
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		writeTransactionError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return req, false
	}
	// decimal.Decimal also unmarshals "100" from a JSON string.
	var raw struct {
		Amount json.RawMessage `json:"amount"`
	}
	if json.Unmarshal(body, &raw) == nil && bytes.HasPrefix(bytes.TrimSpace(raw.Amount), []byte(`"`)) {
		writeTransactionError(w, http.StatusBadRequest, "invalid_request", "amount must be a JSON number")
		return req, false
	}
	if err := s.validate.Struct(req); err != nil {
		writeTransactionError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return req, false
	}
	return req, true
}

func writeTransactionResponse(w http.ResponseWriter, resp transactionhttp.CreateTransactionResponse) {
	if resp.Replayed {
		w.Header().Set(replayedHeader, "true")
	}
	writeJSON(w, http.StatusOK, resp.Transaction)
}

func writeTransactionDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transactionerrors.ErrInvalidInput):
		writeTransactionError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, transactionerrors.ErrIdempotencyKeyRequired):
		writeTransactionError(w, http.StatusBadRequest, "idempotency_key_required", "Idempotency-Key header is required")
	case errors.Is(err, transactionerrors.ErrTransactionNotFound):
		writeTransactionError(w, http.StatusNotFound, "transaction_not_found", "Transaction not found")
	case errors.Is(err, transactionerrors.ErrIdempotencyKeyTaken):
		writeTransactionError(w, http.StatusConflict, "idempotency_conflict", err.Error())
	default:
		writeTransactionError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeSummaryDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, summaryerrors.ErrInvalidInput):
		writeSummaryError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, summaryerrors.ErrSummarizerUnavailable):
		writeSummaryError(w, http.StatusServiceUnavailable, "summarizer_unavailable", err.Error())
	case errors.Is(err, summaryerrors.ErrSummarizerFailed):
		writeSummaryError(w, http.StatusBadGateway, "summarizer_failed", summaryerrors.ErrSummarizerFailed.Error())
	default:
		writeSummaryError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeTransactionError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, transactionhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeSummaryError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, summaryhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
