package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
)

func TestValidateConditions(t *testing.T) {
	tests := []struct {
		name        string
		triggerType models.TriggerType
		conditions  string
		wantErr     bool
	}{
		{"status change both bounds", models.TriggerStatusChange, `{"from_status": "in_qc", "to_status": "delivered"}`, false},
		{"status change wildcard", models.TriggerStatusChange, `{}`, false},
		{"status change bad status", models.TriggerStatusChange, `{"to_status": "shipped"}`, true},
		{"status change unknown field", models.TriggerStatusChange, `{"status": "delivered"}`, true},
		{"time delay", models.TriggerTimeDelay, `{"status": "ready_for_qc", "delay_minutes": 120}`, false},
		{"time delay missing delay", models.TriggerTimeDelay, `{"status": "ready_for_qc"}`, true},
		{"time delay zero delay", models.TriggerTimeDelay, `{"delay_minutes": 0}`, true},
		{"integration complete bare", models.TriggerIntegrationComplete, `{}`, false},
		{"integration failed filtered", models.TriggerIntegrationFailed, `{"integration_type": "hdr_merge"}`, false},
		{"schedule", models.TriggerSchedule, `{"cadence": "daily_9am"}`, false},
		{"schedule missing cadence", models.TriggerSchedule, `{}`, true},
		{"escalation empty", models.TriggerEscalation, `{}`, false},
		{"escalation rejects fields", models.TriggerEscalation, `{"level": 2}`, true},
		{"not json", models.TriggerStatusChange, `{from: x}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConditions(tt.triggerType, json.RawMessage(tt.conditions))
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateConditions_UnknownTrigger(t *testing.T) {
	err := ValidateConditions(models.TriggerType("webhook"), json.RawMessage(`{}`))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestValidateConditions_EmptyDefaultsToObject(t *testing.T) {
	assert.NoError(t, ValidateConditions(models.TriggerStatusChange, nil))
}
