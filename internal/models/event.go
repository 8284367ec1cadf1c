package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types recorded in the append-only order history.
const (
	EventOrderCreated        = "order_created"
	EventStatusChanged       = "status_changed"
	EventBatchRegistered     = "capture_batch_registered"
	EventProcessingSubmitted = "processing_submitted"
	EventProcessingProgress  = "processing_progress"
	EventProcessingCompleted = "processing_completed"
	EventProcessingFailed    = "processing_failed"
	EventAssignmentCreated   = "assignment_created"
	EventAssignmentClaimed   = "assignment_claimed"
	EventEditsSubmitted      = "edits_submitted"
	EventQCReviewRecorded    = "qc_review_recorded"
	EventAssignmentEscalated = "assignment_escalated"
)

type ActorType string

const (
	ActorClient   ActorType = "client"
	ActorStaff    ActorType = "staff"
	ActorEditor   ActorType = "editor"
	ActorReviewer ActorType = "reviewer"
	ActorSystem   ActorType = "system"
)

type Actor struct {
	ID   uuid.UUID
	Type ActorType
}

// SystemActor is used by background sweeps and callback handlers.
var SystemActor = Actor{ID: uuid.Nil, Type: ActorSystem}

type Event struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Type      string
	Payload   json.RawMessage
	ActorID   uuid.UUID
	ActorType ActorType
	CreatedAt time.Time
}

// DecodePayload unmarshals the event payload into a generic map. Events with
// no payload decode to an empty map.
func (e Event) DecodePayload() map[string]any {
	out := map[string]any{}
	if len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &out)
	}
	return out
}

// NewEvent builds an event with a marshaled payload. Marshal errors cannot
// occur for the map types used by callers.
func NewEvent(orderID uuid.UUID, eventType string, actor Actor, payload map[string]any) Event {
	raw, _ := json.Marshal(payload)
	return Event{
		ID:        uuid.New(),
		OrderID:   orderID,
		Type:      eventType,
		Payload:   raw,
		ActorID:   actor.ID,
		ActorType: actor.Type,
		CreatedAt: time.Now().UTC(),
	}
}
