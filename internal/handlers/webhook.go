package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"shootflow-backend/internal/apperrors"
	"shootflow-backend/internal/models"
	"shootflow-backend/internal/processing"
)

// CallbackHandler is the tracker operation the webhook invokes.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, payload processing.CallbackPayload) error
}

type WebhookHandler struct {
	tracker      CallbackHandler
	webhookToken string
	logger       *slog.Logger
}

func NewWebhookHandler(tracker CallbackHandler, webhookToken string) *WebhookHandler {
	return &WebhookHandler{
		tracker:      tracker,
		webhookToken: webhookToken,
		logger:       slog.With("component", "webhook"),
	}
}

// HandleProviderCallback godoc
// @Summary     Provider processing callback
// @Description Receives merge-job status callbacks. Understood payloads always get a 200 so the provider stops retrying; unknown jobs and replays are logged, not surfaced.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       request body processing.CallbackPayload true "Job status payload"
// @Success     200 {object} map[string]string
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /webhooks/processing [post]
func (h *WebhookHandler) HandleProviderCallback(c *gin.Context) {
	token := ""
	if parts := strings.Split(c.GetHeader("Authorization"), " "); len(parts) == 2 && parts[0] == "Bearer" {
		token = strings.TrimSpace(parts[1])
	}
	if h.webhookToken != "" && token != h.webhookToken {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid authorization token"})
		return
	}

	var payload processing.CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "failed to parse callback", Message: err.Error()})
		return
	}
	if payload.JobID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "missing job_id"})
		return
	}

	if err := h.tracker.HandleCallback(c.Request.Context(), payload); err != nil {
		status := apperrors.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("callback handling failed", "job_id", payload.JobID, "error", err)
			c.JSON(status, models.ErrorResponse{Error: "callback handling failed"})
			return
		}
		// Unknown job or stale replay: acknowledge so the provider stops
		// resending, the payload cannot be acted on.
		h.logger.Warn("callback discarded", "job_id", payload.JobID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
