// Package transactionservice contains the transaction lifecycle engine:
// idempotent creation, background processing to a terminal status, and the
// subscriber registry that streams status changes to connected observers.
//
// Domain and application code depend only on ports; storage, locking and
// delivery are chosen by adapter composition in module.go.
package transactionservice
