package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "txengine/contexts/finance-core/transaction-service/application"
	"txengine/contexts/finance-core/transaction-service/domain/entities"
	domainerrors "txengine/contexts/finance-core/transaction-service/domain/errors"
	"txengine/contexts/finance-core/transaction-service/ports"
	httptransport "txengine/contexts/finance-core/transaction-service/transport/http"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

// CreateTransactionHandler godoc
// @Summary Create a transaction
// @Description Stores a pending transaction once per Idempotency-Key. Replays answer with the original record.
// @Tags transactions
// @Accept json
// @Produce json
// @Param Idempotency-Key header string true "Client idempotency token"
// @Param request body httptransport.CreateTransactionRequest true "Transaction"
// @Success 200 {object} httptransport.TransactionDTO
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /transactions/create [post]
func (h Handler) CreateTransactionHandler(
	ctx context.Context,
	idempotencyKey string,
	req httptransport.CreateTransactionRequest,
) (httptransport.CreateTransactionResponse, error) {
	input, err := toInput(req)
	if err != nil {
		return httptransport.CreateTransactionResponse{}, err
	}
	transaction, replayed, err := h.Service.CreateTransaction(ctx, idempotencyKey, input)
	if err != nil {
		h.logFailure("create", err)
		return httptransport.CreateTransactionResponse{}, err
	}
	return httptransport.CreateTransactionResponse{
		Transaction: ToDTO(transaction),
		Replayed:    replayed,
	}, nil
}

// CreateAndProcessTransactionHandler godoc
// @Summary Create and process a transaction asynchronously
// @Description Same as create, and schedules background processing for new transactions. The response is the pending record.
// @Tags transactions
// @Accept json
// @Produce json
// @Param Idempotency-Key header string true "Client idempotency token"
// @Param request body httptransport.CreateTransactionRequest true "Transaction"
// @Success 200 {object} httptransport.TransactionDTO
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /transactions/async-process [post]
func (h Handler) CreateAndProcessTransactionHandler(
	ctx context.Context,
	idempotencyKey string,
	req httptransport.CreateTransactionRequest,
) (httptransport.CreateTransactionResponse, error) {
	input, err := toInput(req)
	if err != nil {
		return httptransport.CreateTransactionResponse{}, err
	}
	transaction, replayed, err := h.Service.CreateAndProcessTransaction(ctx, idempotencyKey, input)
	if err != nil {
		h.logFailure("async_process", err)
		return httptransport.CreateTransactionResponse{}, err
	}
	return httptransport.CreateTransactionResponse{
		Transaction: ToDTO(transaction),
		Replayed:    replayed,
	}, nil
}

// GetTransactionHandler godoc
// @Summary Get a transaction
// @Tags transactions
// @Produce json
// @Param transaction_id path string true "Transaction id"
// @Success 200 {object} httptransport.TransactionDTO
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /transactions/{transaction_id} [get]
func (h Handler) GetTransactionHandler(ctx context.Context, transactionID string) (httptransport.TransactionDTO, error) {
	transaction, err := h.Service.GetTransaction(ctx, transactionID)
	if err != nil {
		return httptransport.TransactionDTO{}, err
	}
	return ToDTO(transaction), nil
}

// ListTransactionsHandler godoc
// @Summary List transactions
// @Description Newest first.
// @Tags transactions
// @Produce json
// @Success 200 {array} httptransport.TransactionDTO
// @Router /transactions [get]
func (h Handler) ListTransactionsHandler(ctx context.Context) ([]httptransport.TransactionDTO, error) {
	items, err := h.Service.ListTransactions(ctx)
	if err != nil {
		h.logFailure("list", err)
		return nil, err
	}
	resp := make([]httptransport.TransactionDTO, 0, len(items))
	for _, item := range items {
		resp = append(resp, ToDTO(item))
	}
	return resp, nil
}

func ToDTO(transaction entities.Transaction) httptransport.TransactionDTO {
	return httptransport.TransactionDTO{
		ID:        transaction.TransactionID,
		UserID:    transaction.UserID,
		Amount:    json.Number(transaction.Amount.String()),
		Type:      transaction.Type,
		Status:    string(transaction.Status),
		CreatedAt: transaction.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toInput(req httptransport.CreateTransactionRequest) (ports.CreateTransactionInput, error) {
	if req.Amount == nil {
		return ports.CreateTransactionInput{}, domainerrors.ErrInvalidInput
	}
	return ports.CreateTransactionInput{
		UserID: req.UserID,
		Amount: *req.Amount,
		Type:   req.Type,
	}, nil
}

func (h Handler) logFailure(operation string, err error) {
	application.ResolveLogger(h.Logger).Error("transaction request failed",
		"event", "http_transaction_request_failed",
		"module", "finance-core/transaction-service",
		"layer", "transport",
		"operation", operation,
		"error", err.Error(),
	)
}
