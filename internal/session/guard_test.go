package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func headers(ua string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", ua)
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	return h
}

func TestGuardBindsThenVerifies(t *testing.T) {
	g := NewGuard(30 * time.Minute)
	s := New("user-1", t0)

	res := g.Check(context.Background(), s, headers("Firefox/125.0"), t0)
	assert.Equal(t, StatusBound, res.Status)
	require.NotEmpty(t, s.DeviceFingerprint())

	res = g.Check(context.Background(), s, headers("Firefox/125.0"), t0.Add(time.Minute))
	assert.Equal(t, StatusVerified, res.Status)
	assert.False(t, res.Invalidated)
	assert.Equal(t, t0.Add(time.Minute), s.LastActivity())
	assert.False(t, s.Destroyed())
}

func TestGuardInvalidatesOnFingerprintMismatch(t *testing.T) {
	g := NewGuard(30 * time.Minute)
	s := New("user-1", t0)

	g.Check(context.Background(), s, headers("Firefox/125.0"), t0)
	f1 := s.DeviceFingerprint()

	res := g.Check(context.Background(), s, headers("Chrome/124.0"), t0.Add(time.Minute))
	assert.Equal(t, StatusInvalidated, res.Status)
	assert.True(t, res.Invalidated)
	assert.Equal(t, ReasonFingerprintMismatch, res.Reason)
	assert.True(t, s.Destroyed())
	assert.Equal(t, f1, s.DeviceFingerprint(), "stored fingerprint is not overwritten")
}

func TestGuardExpiresIdleSession(t *testing.T) {
	g := NewGuard(30 * time.Minute)
	s := New("user-1", t0)
	g.Check(context.Background(), s, headers("Firefox/125.0"), t0)

	res := g.Check(context.Background(), s, headers("Firefox/125.0"), t0.Add(30*time.Minute))
	assert.Equal(t, StatusVerified, res.Status, "exactly at the timeout is still active")

	res = g.Check(context.Background(), s, headers("Firefox/125.0"), t0.Add(61*time.Minute))
	assert.Equal(t, StatusExpired, res.Status)
	assert.True(t, res.Invalidated)
	assert.True(t, s.Destroyed())
}

func TestGuardWithoutIdleTimeout(t *testing.T) {
	g := NewGuard(0)
	s := New("user-1", t0)
	g.Check(context.Background(), s, headers("Firefox/125.0"), t0)

	res := g.Check(context.Background(), s, headers("Firefox/125.0"), t0.Add(72*time.Hour))
	assert.Equal(t, StatusVerified, res.Status)
}
