package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldReportError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   bool
	}{
		{"nil", nil, 500, false},
		{"server failure", errors.New("connection refused"), 500, true},
		{"business error", errors.New("user not found"), 500, false},
		{"client error", errors.New("boom"), 400, false},
		{"rate limited", errors.New("boom"), 429, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldReportError(tt.err, tt.status))
		})
	}
}

func TestSanitizeHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("X-Session-ID", "abc")
	h.Set("User-Agent", "Mozilla/5.0")

	got := sanitizeHeaders(h)
	assert.Equal(t, "[REDACTED]", got["Authorization"])
	assert.Equal(t, "[REDACTED]", got["X-Session-Id"])
	assert.Equal(t, "Mozilla/5.0", got["User-Agent"])
}

func TestInitSentryRequiresDSN(t *testing.T) {
	assert.Error(t, InitSentry(&SentryConfig{}))
}
