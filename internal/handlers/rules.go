package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"shootflow-backend/internal/models"
	"shootflow-backend/internal/rules"
	"shootflow-backend/internal/store"
)

type RulesHandler struct {
	store *store.Store
}

func NewRulesHandler(st *store.Store) *RulesHandler {
	return &RulesHandler{store: st}
}

func validChannels(channels []string) bool {
	for _, ch := range channels {
		switch models.Channel(ch) {
		case models.ChannelEmail, models.ChannelSMS:
		default:
			return false
		}
	}
	return len(channels) > 0
}

// CreateRule godoc
// @Summary     Create a notification rule
// @Description Creates a rule whose trigger conditions are validated against the per-trigger-type schema
// @Tags        rules
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateRuleRequest true "Rule definition"
// @Success     201 {object} models.RuleResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /rules [post]
func (h *RulesHandler) CreateRule(c *gin.Context) {
	var req models.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}
	if !validChannels(req.Channels) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "channels must be a non-empty subset of email, sms"})
		return
	}

	if req.TriggerConditions == nil {
		req.TriggerConditions = map[string]any{}
	}
	conditions, _ := json.Marshal(req.TriggerConditions)
	triggerType := models.TriggerType(req.TriggerType)
	if err := rules.ValidateConditions(triggerType, conditions); err != nil {
		writeError(c, err)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	created, err := h.store.CreateRule(c.Request.Context(), &models.NotificationRule{
		ID:                uuid.New(),
		Name:              req.Name,
		TriggerType:       triggerType,
		TriggerConditions: conditions,
		Channels:          pq.StringArray(req.Channels),
		TemplateID:        req.TemplateID,
		IsActive:          isActive,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRuleResponse(created))
}

// ListRules godoc
// @Summary     List notification rules
// @Tags        rules
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.RuleListResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /rules [get]
func (h *RulesHandler) ListRules(c *gin.Context) {
	listed, err := h.store.ListRules(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := models.RuleListResponse{Rules: make([]models.RuleResponse, 0, len(listed))}
	for i := range listed {
		resp.Rules = append(resp.Rules, toRuleResponse(&listed[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetRule godoc
// @Summary     Get a notification rule
// @Tags        rules
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Rule ID (UUID)"
// @Success     200 {object} models.RuleResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /rules/{id} [get]
func (h *RulesHandler) GetRule(c *gin.Context) {
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid rule id"})
		return
	}

	rule, err := h.store.GetRule(c.Request.Context(), ruleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRuleResponse(rule))
}

// UpdateRule godoc
// @Summary     Update a notification rule
// @Description Patches mutable fields. The trigger type is fixed at creation; changing the shape of a rule means creating a new one.
// @Tags        rules
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Rule ID (UUID)"
// @Param       request body models.UpdateRuleRequest true "Fields to patch"
// @Success     200 {object} models.RuleResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /rules/{id} [patch]
func (h *RulesHandler) UpdateRule(c *gin.Context) {
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid rule id"})
		return
	}

	var req models.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	rule, err := h.store.GetRule(c.Request.Context(), ruleID)
	if err != nil {
		writeError(c, err)
		return
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.TriggerConditions != nil {
		conditions, _ := json.Marshal(req.TriggerConditions)
		if err := rules.ValidateConditions(rule.TriggerType, conditions); err != nil {
			writeError(c, err)
			return
		}
		rule.TriggerConditions = conditions
	}
	if req.Channels != nil {
		if !validChannels(req.Channels) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "channels must be a non-empty subset of email, sms"})
			return
		}
		rule.Channels = pq.StringArray(req.Channels)
	}
	if req.TemplateID != nil {
		rule.TemplateID = *req.TemplateID
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	updated, err := h.store.UpdateRule(c.Request.Context(), rule)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRuleResponse(updated))
}

// DeleteRule godoc
// @Summary     Delete a notification rule
// @Tags        rules
// @Security    Bearer
// @Param       id path string true "Rule ID (UUID)"
// @Success     204 "deleted"
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /rules/{id} [delete]
func (h *RulesHandler) DeleteRule(c *gin.Context) {
	ruleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid rule id"})
		return
	}

	if err := h.store.DeleteRule(c.Request.Context(), ruleID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
