package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"shootflow-backend/internal/lifecycle"
	"shootflow-backend/internal/middleware"
	"shootflow-backend/internal/models"
	"shootflow-backend/internal/store"
)

type CaptureHandler struct {
	store   *store.Store
	machine *lifecycle.Machine
}

func NewCaptureHandler(st *store.Store, machine *lifecycle.Machine) *CaptureHandler {
	return &CaptureHandler{store: st, machine: machine}
}

// RegisterBatch godoc
// @Summary     Register a capture batch
// @Description Records a set of captured raw assets for an order. Batches are immutable once a processing job starts; late assets need a new batch.
// @Tags        capture
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Order ID (UUID)"
// @Param       request body models.RegisterBatchRequest true "Batch category and assets"
// @Success     201 {object} models.BatchResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Router      /orders/{id}/capture-batches [post]
func (h *CaptureHandler) RegisterBatch(c *gin.Context) {
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

	var req models.RegisterBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	order, err := h.store.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	if order.Status.Terminal() {
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error: "order is closed", Message: "cannot register assets on a " + string(order.Status) + " order",
		})
		return
	}

	batch := &models.CaptureBatch{
		ID:       uuid.New(),
		OrderID:  orderID,
		Category: req.Category,
	}
	assets := make([]models.CaptureAsset, 0, len(req.Assets))
	for _, a := range req.Assets {
		assets = append(assets, models.CaptureAsset{
			ID:        uuid.New(),
			BatchID:   batch.ID,
			Filename:  a.Filename,
			SourceURL: a.SourceURL,
		})
	}

	ev := models.NewEvent(orderID, models.EventBatchRegistered, actor, map[string]any{
		"batch_id":    batch.ID.String(),
		"category":    batch.Category,
		"asset_count": len(assets),
	})

	if err := h.store.CreateBatch(c.Request.Context(), batch, assets, ev); err != nil {
		writeError(c, err)
		return
	}
	h.machine.Notify(ev)

	resp := models.BatchResponse{
		ID:       batch.ID.String(),
		Category: batch.Category,
		AssetIDs: make([]string, 0, len(assets)),
	}
	for _, a := range assets {
		resp.AssetIDs = append(resp.AssetIDs, a.ID.String())
	}
	c.JSON(http.StatusCreated, resp)
}
