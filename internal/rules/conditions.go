// Package rules evaluates persisted notification rules against the event
// stream and a time-delay sweep, and hands matched dispatches to the notify
// worker.
package rules

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
)

// StatusChangeConditions filter status transition events. Absent fields act
// as wildcards.
type StatusChangeConditions struct {
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
}

// TimeDelayConditions fire once an order has sat in a status for the delay.
type TimeDelayConditions struct {
	Status       string `json:"status,omitempty"`
	DelayMinutes int    `json:"delay_minutes"`
}

// IntegrationConditions optionally narrow terminal processing events to one
// integration type.
type IntegrationConditions struct {
	IntegrationType string `json:"integration_type,omitempty"`
}

// ScheduleConditions describe an external cadence. Validated and stored,
// never matched against events here.
type ScheduleConditions struct {
	Cadence string `json:"cadence"`
}

var conditionSchemas = map[models.TriggerType]*jsonschema.Schema{
	models.TriggerStatusChange: jsonschema.MustCompileString("status_change.json", `{
		"type": "object",
		"properties": {
			"from_status": {"type": "string", "enum": ["pending", "scheduled", "in_progress", "staged", "processing", "ready_for_qc", "in_qc", "delivered", "cancelled"]},
			"to_status":   {"type": "string", "enum": ["pending", "scheduled", "in_progress", "staged", "processing", "ready_for_qc", "in_qc", "delivered", "cancelled"]}
		},
		"additionalProperties": false
	}`),
	models.TriggerTimeDelay: jsonschema.MustCompileString("time_delay.json", `{
		"type": "object",
		"properties": {
			"status":        {"type": "string"},
			"delay_minutes": {"type": "integer", "minimum": 1}
		},
		"required": ["delay_minutes"],
		"additionalProperties": false
	}`),
	models.TriggerSchedule: jsonschema.MustCompileString("schedule.json", `{
		"type": "object",
		"properties": {
			"cadence": {"type": "string", "minLength": 1}
		},
		"required": ["cadence"],
		"additionalProperties": false
	}`),
	models.TriggerIntegrationComplete: jsonschema.MustCompileString("integration.json", `{
		"type": "object",
		"properties": {
			"integration_type": {"type": "string"}
		},
		"additionalProperties": false
	}`),
	models.TriggerIntegrationFailed: jsonschema.MustCompileString("integration.json", `{
		"type": "object",
		"properties": {
			"integration_type": {"type": "string"}
		},
		"additionalProperties": false
	}`),
	models.TriggerEscalation: jsonschema.MustCompileString("escalation.json", `{
		"type": "object",
		"additionalProperties": false
	}`),
}

// ValidateConditions checks a trigger_conditions document against the schema
// for its trigger type before the rule is persisted.
func ValidateConditions(triggerType models.TriggerType, raw json.RawMessage) error {
	schema, ok := conditionSchemas[triggerType]
	if !ok {
		return apperrors.Validation(fmt.Sprintf("unknown trigger type %q", triggerType))
	}
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return apperrors.Validation("trigger_conditions is not valid JSON")
	}
	if err := schema.Validate(doc); err != nil {
		return apperrors.Validation(fmt.Sprintf("trigger_conditions does not match %s schema: %v", triggerType, err))
	}
	return nil
}

func decodeConditions(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, into)
}
