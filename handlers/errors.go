package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"insightflow/api/logger"
	"insightflow/api/services"
)

const requestTimeout = 10 * time.Second

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
}

// respondError maps service errors onto status codes. Anything that is not
// a validation or lookup failure is reported as a generic 500.
func respondError(c *gin.Context, log *logger.Logger, err error, msg string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		log.Error(msg, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
