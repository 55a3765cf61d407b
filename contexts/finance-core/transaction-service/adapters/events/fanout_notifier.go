package events

import (
	"context"
	"log/slog"

	"txengine/contexts/finance-core/transaction-service/ports"
)

// FanoutNotifier delivers to the local subscriber registry first and then,
// best effort, to an external publisher.
type FanoutNotifier struct {
	Local     ports.Notifier
	Publisher ports.StatusPublisher
	Logger    *slog.Logger
}

func (n FanoutNotifier) Broadcast(ctx context.Context, event ports.StatusEvent) error {
	var localErr error
	if n.Local != nil {
		localErr = n.Local.Broadcast(ctx, event)
	}
	if n.Publisher == nil {
		return localErr
	}
	if err := n.Publisher.PublishStatus(ctx, event); err != nil {
		logger := n.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("status event publish failed",
			"event", "transaction_status_publish_failed",
			"module", "finance-core/transaction-service",
			"layer", "adapter",
			"transaction_id", event.TransactionID,
			"status", event.Status,
			"error", err.Error(),
		)
	}
	return localErr
}
