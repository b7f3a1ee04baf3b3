package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventApplicationSubmitted = "application.submitted"
	EventApplicationApproved  = "application.approved"
	EventApplicationRejected  = "application.rejected"
	EventPaymentStatusChanged = "payment.status_changed"
	EventSettlementCreated    = "settlement.created"
)

// Event is a domain event published once the change it describes has been persisted.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	ActorID    string      `json:"actor_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

func NewEvent(typ, actorID string, data interface{}) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       typ,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// EventPublisher delivers domain events to interested parties.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}
