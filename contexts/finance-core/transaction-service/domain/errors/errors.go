package errors

import "errors"

var (
	ErrInvalidInput           = errors.New("transaction input is invalid")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyKeyTaken    = errors.New("idempotency key already bound to another transaction")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvalidTransition      = errors.New("transaction status transition is not allowed")
)
