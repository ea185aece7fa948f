package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/pizzaguard/pkg/logger"
	"go.uber.org/zap"
)

// HandleServiceError writes the response for a failed service call.
// Returns true if an error was handled (and response was sent), false otherwise.
//
// Usage:
//
//	result, err := h.engine.ValidateOrder(ctx, req)
//	if HandleServiceError(c, err, "failed to validate order") {
//	    return
//	}
func HandleServiceError(c *gin.Context, err error, fallbackMessage string) bool {
	if err == nil {
		return false
	}

	if appErr, ok := AsAppError(err); ok {
		AppErrorResponse(c, appErr)
		return true
	}

	logger.ErrorContext(c.Request.Context(), fallbackMessage,
		zap.Error(err),
	)

	ErrorResponse(c, http.StatusInternalServerError, fallbackMessage)
	return true
}

// BindJSON binds the request body and writes a 400 on failure.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		AppErrorResponse(c, NewBadRequestError("invalid request body", err).WithCode(CodeValidationIncomplete))
		return false
	}
	return true
}

// ClientIP returns the caller address used as the key for per-IP trackers.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
