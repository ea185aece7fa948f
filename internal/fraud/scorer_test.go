package fraud

import (
	"net/http"
	"testing"
	"time"

	"github.com/richxcame/pizzaguard/internal/suspicion"
	"github.com/richxcame/pizzaguard/internal/velocity"
	"github.com/richxcame/pizzaguard/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 Safari/605.1.15"

type mockSuspicionStore struct {
	mock.Mock
}

func (m *mockSuspicionStore) IsSuspicious(ip string, now time.Time) bool {
	return m.Called(ip, now).Bool(0)
}

func (m *mockSuspicionStore) Mark(ip, reason string, now time.Time) suspicion.Record {
	args := m.Called(ip, reason, now)
	rec, _ := args.Get(0).(suspicion.Record)
	return rec
}

type mockVelocityLimiter struct {
	mock.Mock
}

func (m *mockVelocityLimiter) TryAdmit(key string, amount float64, now time.Time) (velocity.Usage, velocity.Breach) {
	args := m.Called(key, amount, now)
	return args.Get(0).(velocity.Usage), args.Get(1).(velocity.Breach)
}

func defaultScoring() ScoringConfig {
	return ScoringConfigFrom(config.DefaultRiskConfig())
}

func request(ip, ua string) RequestContext {
	h := http.Header{}
	h.Set("User-Agent", ua)
	return RequestContext{IP: ip, Headers: h}
}

type signals struct {
	suspiciousIP bool
	automated    bool
	velocity     velocity.Breach
	amount       float64
	newAccount   bool
}

func scoreWith(t *testing.T, s signals) ScoreResult {
	t.Helper()

	store := new(mockSuspicionStore)
	store.On("IsSuspicious", "10.0.0.1", t0).Return(s.suspiciousIP)
	store.On("Mark", "10.0.0.1", suspicion.ReasonAutomatedUA, t0).Return(suspicion.Record{}).Maybe()

	limiter := new(mockVelocityLimiter)
	limiter.On("TryAdmit", "user-1", s.amount, t0).Return(velocity.Usage{Count: 1, Total: s.amount}, s.velocity)

	ua := browserUA
	if s.automated {
		ua = "python-requests/2.31"
	}

	res := NewScorer(defaultScoring(), store, limiter).
		Score(request("10.0.0.1", ua), "user-1", s.amount, OrderContext{IsNewAccount: s.newAccount}, t0)

	store.AssertExpectations(t)
	limiter.AssertExpectations(t)
	return res
}

func TestScoreNoSignals(t *testing.T) {
	res := scoreWith(t, signals{amount: 40})

	assert.Equal(t, 0, res.Score)
	assert.Equal(t, TierLow, res.Tier)
	assert.False(t, res.Blocked)
	assert.Empty(t, res.Reasons)
}

func TestScoreWeights(t *testing.T) {
	tests := []struct {
		name   string
		s      signals
		score  int
		tier   RiskTier
		reason string
	}{
		{"suspicious ip", signals{suspiciousIP: true, amount: 10}, 30, TierMedium, ReasonSuspiciousIP},
		{"automation", signals{automated: true, amount: 10}, 20, TierLow, "Automated tool detected"},
		{"velocity count", signals{velocity: velocity.BreachCount, amount: 10}, 25, TierMedium, ReasonTooManyTx},
		{"velocity amount", signals{velocity: velocity.BreachAmount, amount: 10}, 25, TierMedium, ReasonAmountVelocity},
		{"high amount", signals{amount: 200.01}, 10, TierLow, ReasonHighAmount},
		{"new account", signals{newAccount: true, amount: 10}, 10, TierLow, ReasonNewAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := scoreWith(t, tt.s)
			assert.Equal(t, tt.score, res.Score)
			assert.Equal(t, tt.tier, res.Tier)
			assert.Equal(t, []string{tt.reason}, res.Reasons)
		})
	}
}

func TestScoreAmountThresholdIsExclusive(t *testing.T) {
	assert.Equal(t, 0, scoreWith(t, signals{amount: 200}).Score)
}

func TestScoreBlocksAtHighTier(t *testing.T) {
	res := scoreWith(t, signals{suspiciousIP: true, automated: true, amount: 10})

	assert.Equal(t, 50, res.Score)
	assert.Equal(t, TierHigh, res.Tier)
	assert.True(t, res.Blocked)
}

func TestTierBoundaries(t *testing.T) {
	s := NewScorer(defaultScoring(), nil, nil)

	assert.Equal(t, TierHigh, s.TierFor(50))
	assert.Equal(t, TierMedium, s.TierFor(49))
	assert.Equal(t, TierMedium, s.TierFor(25))
	assert.Equal(t, TierLow, s.TierFor(24))
	assert.Equal(t, TierLow, s.TierFor(0))
}

func TestScoreIsMonotonic(t *testing.T) {
	base := signals{amount: 50}
	baseline := scoreWith(t, base).Score

	toggles := []func(*signals){
		func(s *signals) { s.suspiciousIP = true },
		func(s *signals) { s.automated = true },
		func(s *signals) { s.velocity = velocity.BreachCount },
		func(s *signals) { s.amount = 250 },
		func(s *signals) { s.newAccount = true },
	}

	prev := baseline
	current := base
	for i, toggle := range toggles {
		toggle(&current)
		got := scoreWith(t, current).Score
		require.GreaterOrEqual(t, got, prev, "signal %d lowered the score", i)
		prev = got
	}
	assert.Equal(t, 95, prev)
}

func TestScoreMarksAutomationStrike(t *testing.T) {
	reg := suspicion.NewRegistry(3, time.Hour)
	limiter := velocity.NewAmountTracker(velocity.Rule{Window: 5 * time.Minute, Cap: 5}, 500)
	s := NewScorer(defaultScoring(), reg, limiter)

	for i := 0; i < 3; i++ {
		s.Score(request("6.6.6.6", "curl/8.4.0"), "u", 1, OrderContext{}, t0.Add(time.Duration(i)*time.Second))
	}

	res := s.Score(request("6.6.6.6", "curl/8.4.0"), "u", 1, OrderContext{}, t0.Add(5*time.Second))
	assert.True(t, reg.IsSuspicious("6.6.6.6", t0.Add(5*time.Second)))
	assert.Equal(t, 50, res.Score)
	assert.True(t, res.Blocked)
}

func TestScoreVelocityWithRealTracker(t *testing.T) {
	reg := suspicion.NewRegistry(3, time.Hour)
	limiter := velocity.NewAmountTracker(velocity.Rule{Window: 5 * time.Minute, Cap: 5}, 500)
	s := NewScorer(defaultScoring(), reg, limiter)
	req := request("10.1.1.1", browserUA)

	for i := 0; i < 5; i++ {
		res := s.Score(req, "u1", 20, OrderContext{}, t0.Add(time.Duration(i)*time.Second))
		require.Equal(t, 0, res.Score, "payment %d", i+1)
	}

	res := s.Score(req, "u1", 20, OrderContext{}, t0.Add(10*time.Second))
	assert.Equal(t, 25, res.Score)
	assert.Contains(t, res.Reasons, ReasonTooManyTx)
}
