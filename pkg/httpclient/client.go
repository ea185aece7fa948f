package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/richxcame/pizzaguard/pkg/logger"
	"github.com/richxcame/pizzaguard/pkg/resilience"
	"github.com/richxcame/pizzaguard/pkg/tracing"
)

const tracerName = "httpclient"

// CorrelationIDHeader propagates the request correlation id to upstreams.
const CorrelationIDHeader = "X-Request-ID"

// Client wraps http.Client with retry and circuit breaker support
type Client struct {
	httpClient  *http.Client
	baseURL     string
	retryConfig *resilience.RetryConfig
	breaker     *resilience.CircuitBreaker
}

// Option configures the HTTP client
type Option func(*Client)

// WithRetry enables retry logic with the given configuration
func WithRetry(config resilience.RetryConfig) Option {
	return func(c *Client) {
		if config.RetryableChecker == nil {
			config.RetryableChecker = isHTTPRetryable
		}
		c.retryConfig = &config
	}
}

// WithDefaultRetry enables default retry configuration
func WithDefaultRetry() Option {
	return WithRetry(resilience.DefaultRetryConfig())
}

// WithBreaker routes every attempt through the given circuit breaker.
func WithBreaker(b *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new HTTP client
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Get makes a GET request and returns the body of a 2xx/3xx response.
func (c *Client) Get(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	attempt := func(ctx context.Context) (interface{}, error) {
		if c.breaker != nil {
			return c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
				return c.doGet(ctx, path, headers)
			})
		}
		return c.doGet(ctx, path, headers)
	}

	if c.retryConfig == nil {
		result, err := attempt(ctx)
		if err != nil {
			return nil, err
		}
		return result.([]byte), nil
	}

	result, err := resilience.RetryWithName(ctx, *c.retryConfig, attempt, "http.get")
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) doGet(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	url := c.baseURL + path
	var body []byte

	_, err := tracing.TraceHTTPClient(ctx, tracerName, http.MethodGet, url, func(ctx context.Context) (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		injectCorrelationID(ctx, req)
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("failed to make request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return resp.StatusCode, &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		body = respBody
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is an HTTPError with the given status code.
func IsStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == status
}

func isHTTPRetryable(err error) bool {
	if err == nil || errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return resilience.IsRetryableHTTPStatus(httpErr.StatusCode)
	}

	// Network errors and timeouts
	return true
}

func injectCorrelationID(ctx context.Context, req *http.Request) {
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set(CorrelationIDHeader, correlationID)
	}
}
