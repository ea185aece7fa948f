package otp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/richxcame/pizzaguard/pkg/common"
	redisclient "github.com/richxcame/pizzaguard/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memoryStore) GetString(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redisclient.Nil
	}
	return v, nil
}

func (m *memoryStore) SetWithExpiration(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	m.ttl[key] = ttl
	return nil
}

func (m *memoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) IncrWithExpiration(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	if n == 1 {
		m.ttl[key] = ttl
	}
	return n, nil
}

type captureSender struct {
	to, code string
	err      error
}

func (c *captureSender) SendOTP(_ context.Context, to, code string) error {
	c.to, c.code = to, code
	return c.err
}

func newTestService(store *memoryStore, sender Sender) *Service {
	s := NewService(store, sender, Settings{Length: 6, TTL: 10 * time.Minute, MaxAttempts: 5})
	s.cost = bcrypt.MinCost
	return s
}

func wrong(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestIssueStoresHashNotCode(t *testing.T) {
	store := newMemoryStore()
	sender := &captureSender{}
	svc := newTestService(store, sender)

	ch, err := svc.Issue(context.Background(), "u1", "+15551234567", t0)
	require.NoError(t, err)

	assert.Len(t, sender.code, 6)
	assert.Equal(t, "+15551234567", sender.to)
	assert.Equal(t, "****4567", ch.Destination)
	assert.Equal(t, t0.Add(10*time.Minute), ch.ExpiresAt)

	stored := store.data["otp:u1"]
	assert.NotContains(t, stored, sender.code)
	assert.Equal(t, 10*time.Minute, store.ttl["otp:u1"])
}

func TestVerifyConsumesCode(t *testing.T) {
	store := newMemoryStore()
	sender := &captureSender{}
	svc := newTestService(store, sender)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "u1", "+15551234567", t0)
	require.NoError(t, err)

	require.NoError(t, svc.Verify(ctx, "u1", sender.code, t0.Add(time.Minute)))

	err = svc.Verify(ctx, "u1", sender.code, t0.Add(time.Minute))
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	assert.Equal(t, common.CodeOTPRequired, appErr.ErrorCode)
}

func TestVerifyWrongCodeCountsAttempts(t *testing.T) {
	store := newMemoryStore()
	sender := &captureSender{}
	svc := newTestService(store, sender)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "u1", "+15551234567", t0)
	require.NoError(t, err)
	bad := wrong(sender.code)

	for i := 1; i < 5; i++ {
		err := svc.Verify(ctx, "u1", bad, t0.Add(time.Minute))
		appErr, ok := common.AsAppError(err)
		require.True(t, ok, "attempt %d", i)
		assert.Equal(t, http.StatusBadRequest, appErr.Code)
	}
	assert.Equal(t, "4", store.data["otp:u1:attempts"])
	assert.Equal(t, 9*time.Minute, store.ttl["otp:u1:attempts"], "counter expires with the code")

	err = svc.Verify(ctx, "u1", bad, t0.Add(time.Minute))
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Code)

	// the challenge is gone, even the right code no longer works
	err = svc.Verify(ctx, "u1", sender.code, t0.Add(time.Minute))
	assert.Error(t, err)
}

func TestVerifyExpired(t *testing.T) {
	store := newMemoryStore()
	sender := &captureSender{}
	svc := newTestService(store, sender)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "u1", "+15551234567", t0)
	require.NoError(t, err)

	err = svc.Verify(ctx, "u1", sender.code, t0.Add(10*time.Minute))
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, common.CodeOTPRequired, appErr.ErrorCode)
	assert.Empty(t, store.data)
}

func TestIssueSendFailureDropsChallenge(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &captureSender{err: errors.New("sms down")})

	_, err := svc.Issue(context.Background(), "u1", "+15551234567", t0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send otp")
	assert.Empty(t, store.data)
}

func TestGenerateCodeDigits(t *testing.T) {
	code, err := generateCode(8)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{8}$`, code)
}

func TestVerifyParallelGuessesAreBounded(t *testing.T) {
	store := newMemoryStore()
	sender := &captureSender{}
	svc := newTestService(store, sender)
	ctx := context.Background()

	_, err := svc.Issue(ctx, "u1", "+15551234567", t0)
	require.NoError(t, err)
	bad := wrong(sender.code)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		compared int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Verify(ctx, "u1", bad, t0.Add(time.Minute))
			if appErr, ok := common.AsAppError(err); ok && appErr.Message == "invalid OTP" {
				mu.Lock()
				compared++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// At most MaxAttempts-1 guesses get "invalid OTP"; the rest are refused.
	assert.LessOrEqual(t, compared, 4)
	assert.Error(t, svc.Verify(ctx, "u1", sender.code, t0.Add(time.Minute)))
}

func TestVerifyCountsAttemptsInRedis(t *testing.T) {
	db, mock := redismock.NewClientMock()
	svc := NewService(redisclient.Wrap(db), &captureSender{}, Settings{Length: 6, TTL: 10 * time.Minute, MaxAttempts: 5})
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.MinCost)
	require.NoError(t, err)
	raw, err := json.Marshal(record{Hash: string(hash), ExpiresAt: t0.Add(10 * time.Minute)})
	require.NoError(t, err)

	mock.ExpectGet("otp:u1").SetVal(string(raw))
	mock.Regexp().ExpectEvalSha(".*", []string{"otp:u1:attempts"}, int64(540000)).SetVal(int64(5))
	mock.ExpectDel("otp:u1", "otp:u1:attempts").SetVal(2)

	err = svc.Verify(ctx, "u1", "000000", t0.Add(time.Minute))
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
