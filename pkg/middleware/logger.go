package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/pizzaguard/pkg/logger"
	"github.com/richxcame/pizzaguard/pkg/security"
	"go.uber.org/zap"
)

const maxLoggedPayload = 512

type responseRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}

func (r *responseRecorder) WriteString(data string) (int, error) {
	r.body.WriteString(data)
	return r.ResponseWriter.WriteString(data)
}

// RequestLogger logs every request with redacted bodies. Rejections that
// carry a risk decision (401, 403, 409, 429) are logged in the security category.
func RequestLogger(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestBody := captureRequestBody(c)
		recorder := &responseRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = recorder

		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("response_size", recorder.body.Len()),
		}
		if requestBody != "" {
			fields = append(fields, zap.String("request_body", requestBody))
		}
		if status >= http.StatusBadRequest {
			if responseBody := sanitizePayload(recorder.body.Bytes()); responseBody != "" {
				fields = append(fields, zap.String("response_body", responseBody))
			}
		}

		ctx := c.Request.Context()
		switch {
		case len(c.Errors) > 0:
			fields = append(fields, zap.String("errors", c.Errors.String()))
			logger.WithContext(ctx).Error("Request completed with errors", fields...)
		case isRiskRejection(status):
			logger.Security(ctx, "Request rejected", fields...)
		default:
			logger.WithContext(ctx).Info("Request completed", fields...)
		}
	}
}

func isRiskRejection(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return false
}

func captureRequestBody(c *gin.Context) string {
	if c.Request == nil || c.Request.Body == nil {
		return ""
	}

	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}

	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	return sanitizePayload(bodyBytes)
}

func sanitizePayload(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}

	sanitized := security.RedactSecrets(string(payload))
	sanitized = security.StripHTMLTags(sanitized)
	sanitized = security.SanitizeString(sanitized)
	sanitized = strings.Join(strings.Fields(sanitized), " ")

	if len(sanitized) > maxLoggedPayload {
		sanitized = security.TruncateString(sanitized, maxLoggedPayload) + "...(truncated)"
	}
	return sanitized
}
