// Package health builds the dependency checks behind the readiness probe.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/richxcame/pizzaguard/pkg/resilience"
)

// Checker is a health check function that returns an error if unhealthy
type Checker func() error

// DefaultTimeout bounds a single dependency check.
const DefaultTimeout = 2 * time.Second

// Pinger is implemented by the Redis client and the Postgres pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker pings p within timeout.
func PingChecker(name string, p Pinger, timeout time.Duration) Checker {
	return func() error {
		if p == nil {
			return fmt.Errorf("%s client is nil", name)
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
		return nil
	}
}

// ConnectedChecker fails while connected reports false. Used for the event bus.
func ConnectedChecker(name string, connected func() bool) Checker {
	return func() error {
		if !connected() {
			return fmt.Errorf("%s disconnected", name)
		}
		return nil
	}
}

// BreakerChecker fails while the breaker rejects calls.
func BreakerChecker(cb *resilience.CircuitBreaker) Checker {
	return func() error {
		if !cb.Allow() {
			return fmt.Errorf("circuit breaker %s is open", cb.Name())
		}
		return nil
	}
}

// HTTPEndpointChecker requires a non-error status from url, e.g. the remote menu service.
func HTTPEndpointChecker(url string, timeout time.Duration) Checker {
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("unhealthy status code: %d", resp.StatusCode)
		}
		return nil
	}
}

// ErrTimeout is returned by a check that did not finish in time.
var ErrTimeout = errors.New("health check timed out")

// WithTimeout stops waiting for checker after timeout.
func WithTimeout(checker Checker, timeout time.Duration) Checker {
	return func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- checker() }()

		select {
		case err := <-errCh:
			return err
		case <-time.After(timeout):
			return fmt.Errorf("%w after %v", ErrTimeout, timeout)
		}
	}
}

// CachedChecker caches the result of a health check for a given duration
type CachedChecker struct {
	mu         sync.Mutex
	checker    Checker
	ttl        time.Duration
	lastCheck  time.Time
	lastResult error
	now        func() time.Time
}

// NewCachedChecker creates a new cached health checker
func NewCachedChecker(checker Checker, ttl time.Duration) *CachedChecker {
	return &CachedChecker{checker: checker, ttl: ttl, now: time.Now}
}

// Check runs the health check, using cached result if still valid
func (c *CachedChecker) Check() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastCheck.IsZero() && now.Sub(c.lastCheck) < c.ttl {
		return c.lastResult
	}
	c.lastResult = c.checker()
	c.lastCheck = now
	return c.lastResult
}
