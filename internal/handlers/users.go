package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pixelhost/internal/middleware"
	"pixelhost/internal/models"
	"pixelhost/internal/service"
)

const selfAlias = "@me"

// NukeImages queues the deletion of every active image of the target account
// and returns before any image is touched.
func (h HandlerSet) NukeImages(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		middleware.AbortWithErrors(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	targetID, reason, ok := resolveTarget(account, c.Param("id"))
	if !ok {
		middleware.AbortWithErrors(c, http.StatusForbidden, "you may only act on your own account")
		return
	}

	ticket, err := h.lifecycle.RequestPurge(c.Request.Context(), targetID, reason, account.ID)
	if err != nil {
		if errors.Is(err, service.ErrTargetNotFound) {
			middleware.AbortWithErrors(c, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Str("account_id", account.ID).Str("target_id", targetID).Msg("queue purge failed")
		middleware.AbortWithErrors(c, http.StatusInternalServerError, "internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "your images have been queued for deletion",
		"jobId":   ticket.JobID,
	})
}

// resolveTarget maps the :id path segment to an account id. Only admins may
// name an account other than their own.
func resolveTarget(actor models.Account, id string) (string, models.DeletionReason, bool) {
	if id == selfAlias || id == actor.ID {
		return actor.ID, models.DeletionReasonUser, true
	}
	if !actor.IsAdmin() {
		return "", "", false
	}
	return id, models.DeletionReasonAdmin, true
}
