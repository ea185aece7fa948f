package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/richxcame/pizzaguard/pkg/config"
)

// IdentityType represents the subject of a rate limit decision.
type IdentityType int

const (
	// IdentityAnonymous represents unauthenticated traffic keyed by IP address.
	IdentityAnonymous IdentityType = iota
	// IdentityAuthenticated represents authenticated users keyed by user ID.
	IdentityAuthenticated
)

// Rule defines a rate limiting policy for a single identity and endpoint.
type Rule struct {
	Limit  int
	Burst  int
	Window time.Duration
}

// Result captures the outcome of a rate limiting decision.
type Result struct {
	Allowed      bool
	Remaining    int
	RetryAfter   time.Duration
	Limit        int
	Window       time.Duration
	ResetAfter   time.Duration
	IdentityKey  string
	EndpointKey  string
	IdentityType IdentityType
}

// Limiter implements a Redis-backed token bucket rate limiter.
type Limiter struct {
	client redis.Cmdable
	cfg    config.RateLimitConfig
	script *redis.Script
	now    func() time.Time
}

const tokenBucketScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local refillRate = tonumber(ARGV[2])
local capacity = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call("HMGET", key, "tokens", "timestamp")
local tokens = tonumber(data[1])
local timestamp = tonumber(data[2])

if tokens == nil then
    tokens = capacity
    timestamp = now
else
    if timestamp == nil then
        timestamp = now
    end
    local delta = now - timestamp
    if delta > 0 then
        tokens = math.min(capacity, tokens + (delta * refillRate))
        timestamp = now
    end
end

local allowed = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
end

redis.call("HMSET", key, "tokens", tokens, "timestamp", now)
redis.call("PEXPIRE", key, ttl)

local retryAfter = 0
if allowed == 0 then
    retryAfter = math.ceil((1 - tokens) / refillRate)
end

return {allowed, tokens, retryAfter}
`

// NewLimiter creates a new Limiter instance.
func NewLimiter(client redis.Cmdable, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(tokenBucketScript),
		now:    time.Now,
	}
}

// RuleFor determines the effective rule for the provided endpoint and identity type.
// A zero Limit disables limiting for that pair.
func (l *Limiter) RuleFor(endpoint string, identityType IdentityType) Rule {
	rule := Rule{Limit: l.cfg.DefaultLimit, Burst: l.cfg.DefaultBurst, Window: l.cfg.Window()}
	if identityType == IdentityAnonymous {
		rule.Limit, rule.Burst = l.cfg.AnonymousLimit, l.cfg.AnonymousBurst
	}

	if o, ok := l.cfg.EndpointOverrides[endpoint]; ok {
		if o.WindowSeconds > 0 {
			rule.Window = time.Duration(o.WindowSeconds) * time.Second
		}
		limit, burst := o.AuthenticatedLimit, o.AuthenticatedBurst
		if identityType == IdentityAnonymous {
			limit, burst = o.AnonymousLimit, o.AnonymousBurst
		}
		if limit > 0 {
			rule.Limit = limit
		}
		if burst >= 0 {
			rule.Burst = burst
		}
	}

	if rule.Limit < 0 {
		rule.Limit = 0
	}
	if rule.Burst < 0 {
		rule.Burst = 0
	}
	return rule
}

// Allow takes one token from the bucket of identityKey on endpointKey.
func (l *Limiter) Allow(ctx context.Context, endpointKey, identityKey string, rule Rule, identityType IdentityType) (Result, error) {
	result := Result{
		Limit:        rule.Limit,
		Window:       rule.Window,
		IdentityKey:  identityKey,
		EndpointKey:  endpointKey,
		IdentityType: identityType,
	}
	if !l.cfg.Enabled || rule.Limit <= 0 {
		result.Allowed = true
		result.Remaining = rule.Limit
		return result, nil
	}

	windowMillis := rule.Window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = l.cfg.Window().Milliseconds()
	}
	if windowMillis <= 0 {
		windowMillis = time.Minute.Milliseconds()
	}

	refillRate := float64(rule.Limit) / float64(windowMillis)
	capacity := math.Max(1, float64(rule.Limit+rule.Burst))

	key := fmt.Sprintf("%s:%s:%s", l.cfg.RedisPrefix, endpointKey, identityKey)
	raw, err := l.script.Run(ctx, l.client, []string{key},
		l.now().UnixMilli(), formatFloat(refillRate), formatFloat(capacity), windowMillis*2,
	).Result()
	if err != nil {
		return Result{}, fmt.Errorf("run token bucket: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 3 {
		return Result{}, errors.New("unexpected script response")
	}

	tokens := toFloat(values[1])
	result.Allowed = toInt(values[0]) == 1
	result.Remaining = int(math.Max(0, math.Floor(tokens)))

	if result.Allowed {
		missing := math.Max(0, capacity-tokens)
		result.ResetAfter = time.Duration(math.Ceil(missing/refillRate)) * time.Millisecond
		return result, nil
	}

	result.RetryAfter = time.Duration(toInt(values[2])) * time.Millisecond
	result.ResetAfter = result.RetryAfter
	return result, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 10, 64)
}

func toInt(value interface{}) int {
	switch v := value.(type) {
	case int64:
		return int(v)
	case int:
		return v
	case string:
		i, _ := strconv.Atoi(v)
		return i
	case float64:
		return int(v)
	default:
		return 0
	}
}

func toFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

// WithNow overrides the time source (useful for tests).
func (l *Limiter) WithNow(now func() time.Time) {
	l.now = now
}
