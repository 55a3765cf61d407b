package http

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateTransactionRequest struct {
	UserID string           `json:"user_id" validate:"required"`
	Amount *decimal.Decimal `json:"amount" validate:"required" swaggertype:"number"`
	Type   string           `json:"type" validate:"required"`
}

type TransactionDTO struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Amount    json.Number `json:"amount" swaggertype:"number"`
	Type      string      `json:"type"`
	Status    string      `json:"status"`
	CreatedAt string      `json:"created_at"`
}

type CreateTransactionResponse struct {
	Transaction TransactionDTO
	Replayed    bool
}

type StatusEventDTO struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}
