package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"shootflow-backend/internal/assignments"
	"shootflow-backend/internal/middleware"
	"shootflow-backend/internal/models"
)

type QCHandler struct {
	reviewer *assignments.Reviewer
}

func NewQCHandler(reviewer *assignments.Reviewer) *QCHandler {
	return &QCHandler{reviewer: reviewer}
}

// Review godoc
// @Summary     Record a QC review
// @Description Approves or rejects an assignment sitting at pending_qc. Approving the last open assignment delivers the order; a rejection requeues a revision round or escalates at the cap.
// @Tags        qc
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Assignment ID (UUID)"
// @Param       request body models.ReviewRequest true "Outcome, rejected assets and notes"
// @Success     200 {object} models.ReviewResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /assignments/{id}/review [post]
func (h *QCHandler) Review(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "actor not found"})
		return
	}
	if actor.Type != models.ActorReviewer && actor.Type != models.ActorStaff {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "reviews require a reviewer role"})
		return
	}

	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid assignment id"})
		return
	}

	var req models.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	rejected := make([]uuid.UUID, 0, len(req.RejectedAssetIDs))
	for _, raw := range req.RejectedAssetIDs {
		assetID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid asset id", Message: raw})
			return
		}
		rejected = append(rejected, assetID)
	}

	updated, err := h.reviewer.Review(c.Request.Context(), assignmentID, actor.ID,
		models.ReviewOutcome(req.Outcome), rejected, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ReviewResponse{
		AssignmentID:  updated.ID.String(),
		Outcome:       req.Outcome,
		RevisionCount: updated.RevisionCount,
		Status:        string(updated.Status),
	})
}

// ListReviews godoc
// @Summary     List reviews for an assignment
// @Description Returns the assignment's review history in round order
// @Tags        qc
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Assignment ID (UUID)"
// @Success     200 {object} map[string]interface{}
// @Failure     400 {object} models.ErrorResponse
// @Router      /assignments/{id}/reviews [get]
func (h *QCHandler) ListReviews(c *gin.Context) {
	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid assignment id"})
		return
	}

	reviews, err := h.reviewer.ListReviews(c.Request.Context(), assignmentID)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]gin.H, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, gin.H{
			"id":              r.ID.String(),
			"outcome":         string(r.Outcome),
			"rejected_assets": []string(r.RejectedAssets),
			"notes":           r.Notes,
			"round":           r.Round,
			"created_at":      r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"assignment_id": assignmentID.String(), "reviews": out})
}
