package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/richxcame/pizzaguard/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		WindowSeconds:  60,
		DefaultLimit:   10,
		DefaultBurst:   2,
		AnonymousLimit: 5,
		AnonymousBurst: 1,
		RedisPrefix:    "rl",
		EndpointOverrides: map[string]config.EndpointRateLimitConfig{
			"POST:/api/v1/risk/payments/evaluate": {
				AuthenticatedLimit: 3,
				AuthenticatedBurst: -1,
				AnonymousLimit:     1,
				AnonymousBurst:     0,
				WindowSeconds:      30,
			},
		},
	}
}

func TestRuleFor(t *testing.T) {
	l := NewLimiter(nil, testConfig())

	assert.Equal(t, Rule{Limit: 10, Burst: 2, Window: time.Minute}, l.RuleFor("GET:/x", IdentityAuthenticated))
	assert.Equal(t, Rule{Limit: 5, Burst: 1, Window: time.Minute}, l.RuleFor("GET:/x", IdentityAnonymous))

	endpoint := "POST:/api/v1/risk/payments/evaluate"
	assert.Equal(t, Rule{Limit: 3, Burst: 2, Window: 30 * time.Second}, l.RuleFor(endpoint, IdentityAuthenticated))
	assert.Equal(t, Rule{Limit: 1, Burst: 0, Window: 30 * time.Second}, l.RuleFor(endpoint, IdentityAnonymous))
}

func TestAllowDisabledSkipsRedis(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	l := NewLimiter(nil, cfg)

	res, err := l.Allow(context.Background(), "GET:/x", "10.0.0.1", Rule{Limit: 5, Window: time.Minute}, IdentityAnonymous)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 5, res.Remaining)
}

func TestAllowRunsTokenBucket(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLimiter(db, testConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.WithNow(func() time.Time { return now })

	rule := Rule{Limit: 10, Burst: 2, Window: time.Minute}
	sha := l.script.Hash()
	keys := []string{"rl:GET:/x:user-1"}
	args := []interface{}{now.UnixMilli(), formatFloat(10.0 / 60000), formatFloat(12), int64(120000)}

	mock.ExpectEvalSha(sha, keys, args...).SetVal([]interface{}{int64(1), int64(11), int64(0)})
	res, err := l.Allow(context.Background(), "GET:/x", "user-1", rule, IdentityAuthenticated)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 11, res.Remaining)
	assert.Zero(t, res.RetryAfter)
	assert.InDelta(t, 6*time.Second, res.ResetAfter, float64(2*time.Millisecond))

	mock.ExpectEvalSha(sha, keys, args...).SetVal([]interface{}{int64(0), int64(0), int64(6000)})
	res, err = l.Allow(context.Background(), "GET:/x", "user-1", rule, IdentityAuthenticated)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 6*time.Second, res.RetryAfter)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowRejectsMalformedReply(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewLimiter(db, testConfig())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.WithNow(func() time.Time { return now })

	args := []interface{}{now.UnixMilli(), formatFloat(5.0 / 60000), formatFloat(6), int64(120000)}
	mock.ExpectEvalSha(l.script.Hash(), []string{"rl:GET:/x:10.0.0.1"}, args...).SetVal([]interface{}{int64(1)})

	_, err := l.Allow(context.Background(), "GET:/x", "10.0.0.1", Rule{Limit: 5, Burst: 1, Window: time.Minute}, IdentityAnonymous)
	assert.EqualError(t, err, "unexpected script response")
}
