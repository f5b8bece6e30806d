package httpapi

import (
	"errors"
	"net/http"

	"couplecare-crisis/internal/consumer"
	"couplecare-crisis/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps domain sentinels to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyResolved),
		errors.Is(err, models.ErrCoolingOffActive),
		errors.Is(err, models.ErrSafetyCheckPending),
		errors.Is(err, consumer.ErrSweepInProgress):
		return http.StatusConflict
	case errors.Is(err, models.ErrRetryable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the mapped status; 5xx details stay in the log
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, Fail(http.StatusText(status)))
		return
	}
	c.JSON(status, Fail(err.Error()))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Fail(message))
}
