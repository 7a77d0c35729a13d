package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pixelhost/internal/middleware"
)

// TriggerReconcile queues an immediate image count reconciliation.
func (h HandlerSet) TriggerReconcile(c *gin.Context) {
	if h.reconcile == nil {
		middleware.AbortWithErrors(c, http.StatusServiceUnavailable, "reconcile is not available")
		return
	}

	if err := h.reconcile.EnqueueReconcile(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("enqueue reconcile failed")
		middleware.AbortWithErrors(c, http.StatusInternalServerError, "internal server error")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "reconcile queued",
	})
}
