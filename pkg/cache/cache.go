package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/richxcame/pizzaguard/pkg/logger"
	"go.uber.org/zap"
)

// Store is the subset of the Redis client the cache needs.
type Store interface {
	GetString(ctx context.Context, key string) (string, error)
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Manager handles caching operations with JSON serialization
type Manager struct {
	store Store
}

// NewManager creates a new cache manager
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Get retrieves a cached value and unmarshals it into result
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	data, err := m.store.GetString(ctx, key)
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), result)
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return m.store.SetWithExpiration(ctx, key, string(data), ttl)
}

// GetOrSet retrieves from cache or executes fn and caches the result.
// A failed cache write is logged and does not fail the call.
func (m *Manager) GetOrSet(ctx context.Context, key string, ttl time.Duration, result interface{}, fn func() (interface{}, error)) error {
	if err := m.Get(ctx, key, result); err == nil {
		return nil
	}

	data, err := fn()
	if err != nil {
		return err
	}

	if err := m.Set(ctx, key, data, ttl); err != nil {
		logger.WarnContext(ctx, "failed to cache value", zap.String("key", key), zap.Error(err))
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return json.Unmarshal(jsonData, result)
}

// Delete removes a key from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	return m.store.Delete(ctx, keys...)
}

// CacheKeys defines common cache key patterns
type CacheKeys struct{}

var Keys = CacheKeys{}

// Product returns cache key for a catalog product
func (k CacheKeys) Product(productID string) string {
	return fmt.Sprintf("catalog:product:%s", productID)
}

// Session returns cache key for session data
func (k CacheKeys) Session(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// OTP returns cache key for a pending login code
func (k CacheKeys) OTP(userID string) string {
	return fmt.Sprintf("otp:%s", userID)
}

// OTPAttempts returns the key counting verification attempts of a pending code
func (k CacheKeys) OTPAttempts(userID string) string {
	return fmt.Sprintf("otp:%s:attempts", userID)
}
