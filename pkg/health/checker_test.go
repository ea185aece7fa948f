package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/richxcame/pizzaguard/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingChecker(t *testing.T) {
	ok := PingChecker("redis", pingFunc(func(context.Context) error { return nil }), time.Second)
	assert.NoError(t, ok())

	failing := PingChecker("postgres", pingFunc(func(context.Context) error { return errors.New("refused") }), time.Second)
	assert.EqualError(t, failing(), "postgres ping failed: refused")

	assert.Error(t, PingChecker("redis", nil, time.Second)())
}

func TestConnectedChecker(t *testing.T) {
	connected := false
	check := ConnectedChecker("nats", func() bool { return connected })
	assert.EqualError(t, check(), "nats disconnected")

	connected = true
	assert.NoError(t, check())
}

func TestBreakerChecker(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.Settings{Name: "menu-service"}, nil)
	assert.NoError(t, BreakerChecker(cb)())
}

func TestHTTPEndpointChecker(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	assert.NoError(t, HTTPEndpointChecker(healthy.URL, time.Second)())
	assert.EqualError(t, HTTPEndpointChecker(unhealthy.URL, time.Second)(), "unhealthy status code: 503")
}

func TestWithTimeout(t *testing.T) {
	slow := func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}
	assert.ErrorIs(t, WithTimeout(slow, 10*time.Millisecond)(), ErrTimeout)
	assert.NoError(t, WithTimeout(func() error { return nil }, time.Second)())
}

func TestCachedChecker(t *testing.T) {
	calls := 0
	c := NewCachedChecker(func() error {
		calls++
		return nil
	}, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Check())
	require.NoError(t, c.Check())
	assert.Equal(t, 1, calls)

	now = now.Add(2 * time.Minute)
	require.NoError(t, c.Check())
	assert.Equal(t, 2, calls)
}
