// Package handlers exposes the orchestrator over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
)

func writeError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		c.JSON(status, models.ErrorResponse{
			Error:   appErr.Sentinel.Error(),
			Message: appErr.Message,
		})
		return
	}

	if status == http.StatusInternalServerError {
		c.JSON(status, models.ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(status, models.ErrorResponse{Error: err.Error()})
}

func toOrderResponse(o *models.Order) models.OrderResponse {
	resp := models.OrderResponse{
		ID:        o.ID.String(),
		Status:    string(o.Status),
		IsRush:    o.IsRush,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if o.ScheduledAt.Valid {
		t := o.ScheduledAt.Time
		resp.ScheduledAt = &t
	}
	if o.DeliveredAt.Valid {
		t := o.DeliveredAt.Time
		resp.DeliveredAt = &t
	}
	if len(o.Metadata) > 0 {
		_ = json.Unmarshal(o.Metadata, &resp.Metadata)
	}
	return resp
}

func toEventResponse(ev models.Event) models.EventResponse {
	return models.EventResponse{
		ID:        ev.ID.String(),
		Type:      ev.Type,
		Payload:   ev.DecodePayload(),
		ActorType: string(ev.ActorType),
		CreatedAt: ev.CreatedAt,
	}
}

func toAssignmentResponse(a *models.EditingAssignment) models.AssignmentResponse {
	resp := models.AssignmentResponse{
		ID:            a.ID.String(),
		OrderID:       a.OrderID.String(),
		Status:        string(a.Status),
		RevisionCount: a.RevisionCount,
		MaxRevisions:  a.MaxRevisions,
		IsRush:        a.IsRush,
		CreatedAt:     a.CreatedAt,
	}
	if a.EditorID.Valid {
		resp.EditorID = a.EditorID.UUID.String()
	}
	if a.ClaimedAt.Valid {
		t := a.ClaimedAt.Time
		resp.ClaimedAt = &t
	}
	return resp
}

func toJobResponse(j *models.ProcessingJob) models.ProcessingJobResponse {
	return models.ProcessingJobResponse{
		ID:           j.ID.String(),
		OrderID:      j.OrderID.String(),
		Status:       string(j.Status),
		Stage:        j.Stage,
		Percent:      j.Percent,
		ErrorMessage: j.ErrorMessage.String,
	}
}

func toRuleResponse(r *models.NotificationRule) models.RuleResponse {
	resp := models.RuleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		TriggerType: string(r.TriggerType),
		Channels:    []string(r.Channels),
		TemplateID:  r.TemplateID,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
	}
	if len(r.TriggerConditions) > 0 {
		_ = json.Unmarshal(r.TriggerConditions, &resp.TriggerConditions)
	}
	return resp
}
