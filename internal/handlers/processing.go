package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"shootflow-backend/internal/middleware"
	"shootflow-backend/internal/models"
	"shootflow-backend/internal/processing"
	"shootflow-backend/internal/store"
)

type ProcessingHandler struct {
	store   *store.Store
	tracker *processing.Tracker
}

func NewProcessingHandler(st *store.Store, tracker *processing.Tracker) *ProcessingHandler {
	return &ProcessingHandler{store: st, tracker: tracker}
}

// Submit godoc
// @Summary     Submit a batch for HDR processing
// @Description Hands a capture batch to the external merge provider. At least two bracketed assets are required.
// @Tags        processing
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Order ID (UUID)"
// @Param       request body models.SubmitProcessingRequest true "Batch and asset ids"
// @Success     202 {object} models.ProcessingJobResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /orders/{id}/processing [post]
func (h *ProcessingHandler) Submit(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "actor not found"})
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid order id"})
		return
	}

	var req models.SubmitProcessingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	batchID, err := uuid.Parse(req.BatchID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid batch id"})
		return
	}

	assetIDs := make([]uuid.UUID, 0, len(req.AssetIDs))
	for _, raw := range req.AssetIDs {
		assetID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid asset id", Message: raw})
			return
		}
		assetIDs = append(assetIDs, assetID)
	}

	job, err := h.tracker.Submit(c.Request.Context(), orderID, batchID, assetIDs, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toJobResponse(job))
}

// GetJob godoc
// @Summary     Get processing job status
// @Description Returns the tracked job with its stage and percent
// @Tags        processing
// @Produce     json
// @Security    Bearer
// @Param       jobId path string true "Job ID (UUID)"
// @Success     200 {object} models.ProcessingJobResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /processing/{jobId} [get]
func (h *ProcessingHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid job id"})
		return
	}

	job, err := h.store.GetProcessingJob(c.Request.Context(), jobID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job))
}
