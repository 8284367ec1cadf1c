package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"shootflow-backend/internal/models"
)

// Health godoc
// @Summary     Health check
// @Description Returns the health status of the API
// @Tags        health
// @Produce     json
// @Success     200 {object} models.HealthResponse
// @Router      /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}
