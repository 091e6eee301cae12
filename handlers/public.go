package handlers

import (
	"context"
	"net/http"
	"time"

	"food-ordering-api/models"
	"food-ordering-api/statemachine"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// GetStateMachineInfo documents the order lifecycle for API clients.
func (h *Handler) GetStateMachineInfo(c *gin.Context) {
	var terminal []models.OrderStatus
	for _, s := range models.AllOrderStatuses {
		if s.Terminal() {
			terminal = append(terminal, s)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"statuses":       models.AllOrderStatuses,
		"terminalStates": terminal,
		"transitions":    statemachine.GetAllTransitions(),
		"notes": []string{
			"Admins may move any non-terminal order to any other status.",
			"Cancelling an order with a completed payment triggers a refund.",
		},
	})
}

// Health reports liveness plus a database ping. It answers 503 when the
// database is unreachable.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code, dbState := "ok", http.StatusOK, "up"
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		log.Error().Err(err).Msg("health check: database ping failed")
		status, code, dbState = "degraded", http.StatusServiceUnavailable, "down"
	}
	c.JSON(code, gin.H{
		"status":   status,
		"database": dbState,
		"time":     h.now().Format(time.RFC3339),
	})
}
