package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pixelhost/internal/middleware"
	"pixelhost/internal/service"
)

// DeleteImage serves the deletion links handed out at upload time.
func (h HandlerSet) DeleteImage(c *gin.Context) {
	key := c.Query("k")
	if key == "" {
		middleware.AbortWithErrors(c, http.StatusBadRequest, "deletion key is required")
		return
	}

	image, err := h.lifecycle.DeleteWithKey(c.Request.Context(), c.Param("key"), key)
	switch {
	case errors.Is(err, service.ErrImageNotFound):
		middleware.AbortWithErrors(c, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, service.ErrInvalidDeletionKey):
		middleware.AbortWithErrors(c, http.StatusForbidden, err.Error())
		return
	case err != nil:
		h.log.Error().Err(err).Str("storage_key", c.Param("key")).Msg("delete by key failed")
		middleware.AbortWithErrors(c, http.StatusInternalServerError, "internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "image deleted",
		"image":   newImageResponse(image),
	})
}
