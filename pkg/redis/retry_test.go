package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRedisRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"missing key", redis.Nil, false},
		{"canceled", context.Canceled, false},
		{"refused", errors.New("dial tcp 127.0.0.1:6379: connection refused"), true},
		{"loading", errors.New("LOADING Redis is loading the dataset in memory"), true},
		{"wrong type", errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"), false},
		{"auth", errors.New("NOAUTH Authentication required"), false},
		{"unknown", errors.New("something odd"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRedisRetryable(tt.err))
		})
	}
}

func TestRetryableGetMissingKeyIsNotRetried(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := Wrap(db)

	mock.ExpectGet("session:abc").RedisNil()

	_, err := c.RetryableGet(context.Background(), "session:abc")
	require.ErrorIs(t, err, redis.Nil)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClientHelpers(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := Wrap(db)
	ctx := context.Background()

	mock.ExpectExists("k").SetVal(1)
	mock.ExpectDel("k").SetVal(1)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrWithExpiration(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := Wrap(db)
	ctx := context.Background()
	sha := incrWithExpiry.Hash()

	mock.ExpectEvalSha(sha, []string{"otp:u1:attempts"}, int64(600000)).SetVal(int64(1))
	mock.ExpectEvalSha(sha, []string{"otp:u1:attempts"}, int64(600000)).SetVal(int64(2))

	n, err := c.IncrWithExpiration(ctx, "otp:u1:attempts", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.IncrWithExpiration(ctx, "otp:u1:attempts", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.NoError(t, mock.ExpectationsWereMet())
}
