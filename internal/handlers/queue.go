package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"shootflow-backend/internal/assignments"
	"shootflow-backend/internal/middleware"
	"shootflow-backend/internal/models"
)

type QueueHandler struct {
	queue *assignments.Queue
}

func NewQueueHandler(queue *assignments.Queue) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// ListQueue godoc
// @Summary     List the open editing queue
// @Description Returns unclaimed assignments, rush orders first
// @Tags        queue
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.QueueResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /queue [get]
func (h *QueueHandler) ListQueue(c *gin.Context) {
	listed, err := h.queue.ListQueue(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQueueResponse(listed))
}

// ListMine godoc
// @Summary     List my assignments
// @Description Returns the calling editor's open assignments, revision rounds included
// @Tags        queue
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.QueueResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /queue/mine [get]
func (h *QueueHandler) ListMine(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "actor not found"})
		return
	}

	listed, err := h.queue.ListForEditor(c.Request.Context(), actor.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toQueueResponse(listed))
}

// Claim godoc
// @Summary     Claim an assignment
// @Description Claims a pending assignment for the calling editor. Exactly one concurrent claimant wins; the workload cap applies unless a staff caller overrides it.
// @Tags        queue
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Assignment ID (UUID)"
// @Param       request body models.ClaimRequest false "Claim options"
// @Success     200 {object} models.AssignmentResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /assignments/{id}/claim [post]
func (h *QueueHandler) Claim(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "actor not found"})
		return
	}

	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid assignment id"})
		return
	}

	var req models.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	// The cap override is for staff untangling a backlog, not editors.
	override := req.Override && actor.Type == models.ActorStaff

	claimed, err := h.queue.Claim(c.Request.Context(), assignmentID, actor.ID, override)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAssignmentResponse(claimed))
}

// SubmitEdits godoc
// @Summary     Submit edited assets
// @Description Submits the edited set for QC. Every asset in the batch needs an edited counterpart.
// @Tags        queue
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Assignment ID (UUID)"
// @Param       request body models.SubmitEditsRequest true "Edited asset references"
// @Success     200 {object} models.AssignmentResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /assignments/{id}/edits [post]
func (h *QueueHandler) SubmitEdits(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "actor not found"})
		return
	}

	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid assignment id"})
		return
	}

	var req models.SubmitEditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	edits := make(map[uuid.UUID]string, len(req.EditedAssets))
	for _, e := range req.EditedAssets {
		assetID, err := uuid.Parse(e.AssetID)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid asset id", Message: e.AssetID})
			return
		}
		edits[assetID] = e.EditedURL
	}

	updated, err := h.queue.SubmitEdits(c.Request.Context(), assignmentID, edits, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAssignmentResponse(updated))
}

func toQueueResponse(listed []models.EditingAssignment) models.QueueResponse {
	resp := models.QueueResponse{Assignments: make([]models.AssignmentResponse, 0, len(listed))}
	for i := range listed {
		resp.Assignments = append(resp.Assignments, toAssignmentResponse(&listed[i]))
	}
	return resp
}
