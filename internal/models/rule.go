package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type TriggerType string

const (
	TriggerStatusChange        TriggerType = "status_change"
	TriggerTimeDelay           TriggerType = "time_delay"
	TriggerSchedule            TriggerType = "schedule"
	TriggerIntegrationComplete TriggerType = "integration_complete"
	TriggerIntegrationFailed   TriggerType = "integration_failed"
	TriggerEscalation          TriggerType = "escalation"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type NotificationRule struct {
	ID                uuid.UUID
	Name              string
	TriggerType       TriggerType
	TriggerConditions json.RawMessage
	Channels          pq.StringArray
	TemplateID        string
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DispatchRequest is the outbound payload handed to the messaging collaborator.
type DispatchRequest struct {
	Channel    Channel        `json:"channel"`
	Recipient  string         `json:"recipient"`
	TemplateID string         `json:"template_id"`
	Variables  map[string]any `json:"variables"`
}
