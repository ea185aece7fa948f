package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/pizzaguard/pkg/config"
)

// Nil is returned by reads of a missing key.
var Nil = redis.Nil

// Client wraps the Redis client
type Client struct {
	*redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return &Client{Client: client}, nil
}

// Wrap adapts an existing go-redis client, e.g. one returned by redismock.
func Wrap(client *redis.Client) *Client {
	return &Client{Client: client}
}

// SetWithExpiration sets a key-value pair with expiration, retrying transient failures.
func (c *Client) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.RetryableSet(ctx, key, value, expiration)
}

// GetString gets a string value by key. A missing key returns Nil without retrying.
func (c *Client) GetString(ctx context.Context, key string) (string, error) {
	return c.RetryableGet(ctx, key)
}

// Delete deletes keys, retrying transient failures.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	return c.RetryableDelete(ctx, keys...)
}

// Exists checks if a key exists
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.Client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// Expire sets an expiration on a key
func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return c.Client.Expire(ctx, key, expiration).Err()
}

const incrScript = `
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`

var incrWithExpiry = redis.NewScript(incrScript)

// IncrWithExpiration atomically increments key and starts its TTL on the
// first increment. It is not retried: a repeated INCR would double count.
func (c *Client) IncrWithExpiration(ctx context.Context, key string, expiration time.Duration) (int64, error) {
	return incrWithExpiry.Run(ctx, c.Client, []string{key}, expiration.Milliseconds()).Int64()
}

// Ping checks connectivity; used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *Client) Close() error {
	return c.Client.Close()
}
