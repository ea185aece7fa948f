package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richxcame/pizzaguard/pkg/cache"
	redisclient "github.com/richxcame/pizzaguard/pkg/redis"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Store keeps sessions in Redis as JSON.
type Store struct {
	cache *cache.Manager
	ttl   time.Duration
}

// NewStore creates a Store whose entries expire ttl after their last save.
func NewStore(c *cache.Manager, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

// Get loads the session with the given id.
func (s *Store) Get(ctx context.Context, id string) (*Data, error) {
	var d Data
	if err := s.cache.Get(ctx, cache.Keys.Session(id), &d); err != nil {
		if errors.Is(err, redisclient.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &d, nil
}

// Save writes d and refreshes its expiry.
func (s *Store) Save(ctx context.Context, d *Data) error {
	if err := s.cache.Set(ctx, cache.Keys.Session(d.ID), d, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the session with the given id.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.cache.Delete(ctx, cache.Keys.Session(id)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
