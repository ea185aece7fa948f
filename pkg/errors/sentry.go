package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/pizzaguard/pkg/config"
	"github.com/richxcame/pizzaguard/pkg/logger"
)

// SentryConfig holds configuration for Sentry integration
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	TracesSampleRate float64
	ServerName       string
}

// SentryConfigFrom builds the Sentry configuration of a service.
func SentryConfigFrom(cfg *config.Config) *SentryConfig {
	return &SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.Server.Environment,
		Release:          cfg.Server.Version,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		ServerName:       cfg.Server.ServiceName,
	}
}

// InitSentry initializes the Sentry SDK with the given configuration
func InitSentry(cfg *SentryConfig) error {
	if cfg.DSN == "" {
		return fmt.Errorf("sentry DSN is not configured")
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.TracesSampleRate,
		EnableTracing:    cfg.TracesSampleRate > 0,
		ServerName:       cfg.ServerName,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Level == sentry.LevelInfo || event.Level == sentry.LevelDebug {
				return nil
			}
			return event
		},
		BeforeBreadcrumb: func(breadcrumb *sentry.Breadcrumb, hint *sentry.BreadcrumbHint) *sentry.Breadcrumb {
			if breadcrumb.Category == "http" && breadcrumb.Data != nil {
				delete(breadcrumb.Data, "Authorization")
				delete(breadcrumb.Data, "Cookie")
				delete(breadcrumb.Data, "X-Session-ID")
			}
			return breadcrumb
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}

	return nil
}

// Flush flushes the Sentry buffer
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// AlertOperators sends a security message to Sentry at warning level so that
// operators are paged for sustained abuse.
func AlertOperators(message string, tags map[string]string, extras map[string]interface{}) *sentry.EventID {
	var id *sentry.EventID
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTag("category", logger.SecurityCategory)
		for key, value := range tags {
			scope.SetTag(key, value)
		}
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		id = sentry.CaptureMessage(message)
	})
	return id
}

// AddBreadcrumbForRequest adds a breadcrumb for HTTP request
func AddBreadcrumbForRequest(method, url string, statusCode int, duration time.Duration) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "http",
		Category:  "http.request",
		Level:     sentry.LevelInfo,
		Message:   fmt.Sprintf("%s %s", method, url),
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"method":      method,
			"url":         url,
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

// IsBusinessError checks if an error is a business logic error that shouldn't be reported
func IsBusinessError(err error) bool {
	if err == nil {
		return false
	}

	businessErrors := []string{
		"validation failed",
		"invalid request body",
		"unauthorized",
		"forbidden",
		"not found",
		"rate exceeded",
	}

	errMsg := strings.ToLower(err.Error())
	for _, businessErr := range businessErrors {
		if strings.Contains(errMsg, businessErr) {
			return true
		}
	}
	return false
}

// ShouldReportError determines if an error should be reported to Sentry
func ShouldReportError(err error, statusCode int) bool {
	if err == nil || IsBusinessError(err) {
		return false
	}

	// Client errors are expected outcomes of the risk checks.
	if statusCode >= 400 && statusCode < 500 {
		return false
	}
	return true
}

func addGinContextToScope(scope *sentry.Scope, c *gin.Context) {
	scope.SetRequest(c.Request)

	if userID, exists := c.Get("user_id"); exists {
		scope.SetUser(sentry.User{ID: fmt.Sprintf("%v", userID)})
	}

	if correlationID := c.GetHeader("X-Request-ID"); correlationID != "" {
		scope.SetTag("correlation_id", correlationID)
	}

	scope.SetContext("http", map[string]interface{}{
		"method":      c.Request.Method,
		"url":         c.Request.URL.Path,
		"headers":     sanitizeHeaders(c.Request.Header),
		"remote_addr": c.ClientIP(),
		"user_agent":  c.Request.UserAgent(),
	})
}

func sanitizeHeaders(headers http.Header) map[string]string {
	sanitized := make(map[string]string)
	sensitiveHeaders := map[string]bool{
		"Authorization": true,
		"Cookie":        true,
		"X-Session-Id":  true,
	}

	for key, values := range headers {
		if sensitiveHeaders[http.CanonicalHeaderKey(key)] {
			sanitized[key] = "[REDACTED]"
		} else if len(values) > 0 {
			sanitized[key] = values[0]
		}
	}
	return sanitized
}
