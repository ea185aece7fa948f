package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/pizzaguard/pkg/common"
	"github.com/richxcame/pizzaguard/pkg/errors"
	"github.com/richxcame/pizzaguard/pkg/logger"
	"go.uber.org/zap"
)

// SentryMiddleware attaches a Sentry hub to every request.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ErrorHandler reports unexpected failures to Sentry after the handler ran.
// Risk rejections are 4xx and never reported.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		errors.AddBreadcrumbForRequest(c.Request.Method, c.Request.URL.Path, status, duration)

		for _, err := range c.Errors {
			if errors.ShouldReportError(err.Err, status) {
				captureError(c, err.Err, status, duration)
			}
		}

		if status >= http.StatusInternalServerError && len(c.Errors) == 0 {
			captureError(c, nil, status, duration)
		}
	}
}

// RecoveryWithSentry recovers from panics, reports them and answers 500 in the
// standard envelope.
func RecoveryWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				hub := hubFor(c)
				hub.Scope().SetRequest(c.Request)
				hub.Scope().SetContext("panic", map[string]interface{}{
					"value":      fmt.Sprintf("%v", rec),
					"stacktrace": string(debug.Stack()),
				})
				hub.RecoverWithContext(c.Request.Context(), rec)
				hub.Flush(2 * time.Second)

				logger.ErrorContext(c.Request.Context(), "panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
				)
				common.ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
				c.Abort()
			}
		}()

		c.Next()
	}
}

func hubFor(c *gin.Context) *sentry.Hub {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		return hub
	}
	return sentry.CurrentHub().Clone()
}

func captureError(c *gin.Context, err error, status int, duration time.Duration) {
	hub := hubFor(c)
	scope := hub.Scope()
	scope.SetRequest(c.Request)
	scope.SetLevel(sentryLevel(status))
	scope.SetTag("http.method", c.Request.Method)
	scope.SetTag("http.status_code", fmt.Sprintf("%d", status))
	scope.SetTag("endpoint", c.FullPath())
	if id := GetCorrelationID(c); id != "" {
		scope.SetTag("correlation_id", id)
	}
	if userID, ok := c.Get(UserIDKey); ok {
		scope.SetUser(sentry.User{ID: fmt.Sprintf("%v", userID)})
	}
	scope.SetContext("http", map[string]interface{}{
		"method":      c.Request.Method,
		"status_code": status,
		"duration_ms": duration.Milliseconds(),
		"handler":     c.HandlerName(),
	})

	if err != nil {
		hub.CaptureException(err)
		return
	}
	hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s %s", status, c.Request.Method, c.Request.URL.Path))
}

func sentryLevel(status int) sentry.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return sentry.LevelError
	case status == http.StatusTooManyRequests:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
