package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"shootflow-backend/internal/lifecycle"
	"shootflow-backend/internal/middleware"
	"shootflow-backend/internal/models"
	"shootflow-backend/internal/store"
)

type OrdersHandler struct {
	store   *store.Store
	machine *lifecycle.Machine
}

func NewOrdersHandler(st *store.Store, machine *lifecycle.Machine) *OrdersHandler {
	return &OrdersHandler{store: st, machine: machine}
}

// CreateOrder godoc
// @Summary     Create a new order
// @Description Creates a media order for the authenticated client. Rush orders jump the editing queue.
// @Tags        orders
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateOrderRequest true "Order details"
// @Success     201 {object} models.OrderResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /orders [post]
func (h *OrdersHandler) CreateOrder(c *gin.Context) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "actor not found"})
		return
	}

	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	order := &models.Order{
		ID:          uuid.New(),
		ClientID:    actor.ID,
		ClientEmail: req.ClientEmail,
		Status:      models.StatusPending,
		IsRush:      req.IsRush,
	}
	if req.ClientPhone != "" {
		order.ClientPhone = sql.NullString{String: req.ClientPhone, Valid: true}
	}
	if req.ScheduledAt != "" {
		scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid scheduled_at", Message: err.Error()})
			return
		}
		order.ScheduledAt = sql.NullTime{Time: scheduledAt, Valid: true}
	}
	if req.Metadata != nil {
		order.Metadata, _ = json.Marshal(req.Metadata)
	}

	ev := models.NewEvent(order.ID, models.EventOrderCreated, actor, map[string]any{
		"status":  string(models.StatusPending),
		"is_rush": order.IsRush,
	})

	created, err := h.store.CreateOrder(c.Request.Context(), order, ev)
	if err != nil {
		writeError(c, err)
		return
	}
	h.machine.Notify(ev)

	c.JSON(http.StatusCreated, toOrderResponse(created))
}

// ListOrders godoc
// @Summary     List all orders
// @Description Returns every order, newest first
// @Tags        orders
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.OrderListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /orders [get]
func (h *OrdersHandler) ListOrders(c *gin.Context) {
	orders, err := h.store.ListOrders(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := models.OrderListResponse{Orders: make([]models.OrderResponse, 0, len(orders))}
	for i := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// GetOrder godoc
// @Summary     Get order details
// @Description Returns one order with its current status and metadata
// @Tags        orders
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Order ID (UUID)"
// @Success     200 {object} models.OrderResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /orders/{id} [get]
func (h *OrdersHandler) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid order id"})
		return
	}

	order, err := h.store.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// GetOrderStatus godoc
// @Summary     Get order status
// @Description Returns just the order's current lifecycle status
// @Tags        orders
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Order ID (UUID)"
// @Success     200 {object} map[string]string
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /orders/{id}/status [get]
func (h *OrdersHandler) GetOrderStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid order id"})
		return
	}

	order, err := h.store.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": order.ID.String(), "status": string(order.Status)})
}

// Transition godoc
// @Summary     Transition order status
// @Description Applies a status change through the state machine. Re-submitting with the same idempotency key is a no-op.
// @Tags        orders
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Order ID (UUID)"
// @Param       request body models.TransitionRequest true "Target status and optional idempotency key"
// @Success     200 {object} models.OrderResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     422 {object} models.ErrorResponse
// @Router      /orders/{id}/transition [post]
func (h *OrdersHandler) Transition(c *gin.Context) {
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

	var req models.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error()})
		return
	}

	order, err := h.machine.Transition(c.Request.Context(), orderID,
		models.OrderStatus(req.TargetStatus), actor, req.IdempotencyKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// ListEvents godoc
// @Summary     List order events
// @Description Returns the order's full event timeline in append order
// @Tags        orders
// @Produce     json
// @Security    Bearer
// @Param       id path string true "Order ID (UUID)"
// @Success     200 {object} models.EventListResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /orders/{id}/events [get]
func (h *OrdersHandler) ListEvents(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid order id"})
		return
	}

	if _, err := h.store.GetOrder(c.Request.Context(), orderID); err != nil {
		writeError(c, err)
		return
	}

	events, err := h.store.ListEvents(c.Request.Context(), orderID.String())
	if err != nil {
		writeError(c, err)
		return
	}

	resp := models.EventListResponse{
		OrderID: orderID.String(),
		Events:  make([]models.EventResponse, 0, len(events)),
	}
	for _, ev := range events {
		resp.Events = append(resp.Events, toEventResponse(ev))
	}
	c.JSON(http.StatusOK, resp)
}
