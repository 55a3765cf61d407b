package events

import (
	"time"

	"github.com/google/uuid"
)

const TransactionStatusChanged = "transaction.status_changed"

// Envelope is the event shape published to external brokers.
type Envelope struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	SourceService  string    `json:"source_service"`
	OccurredAtUTC  time.Time `json:"occurred_at_utc"`
	EntityType     string    `json:"entity_type"`
	EntityID       string    `json:"entity_id"`
	PayloadVersion int       `json:"payload_version"`
	Payload        any       `json:"payload"`
}

func NewEnvelope(eventType string, sourceService string, entityType string, entityID string, payload any, at time.Time) Envelope {
	return Envelope{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		SourceService:  sourceService,
		OccurredAtUTC:  at.UTC(),
		EntityType:     entityType,
		EntityID:       entityID,
		PayloadVersion: 1,
		Payload:        payload,
	}
}
