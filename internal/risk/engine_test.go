package risk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/pizzaguard/internal/account"
	"github.com/richxcame/pizzaguard/internal/fraud"
	"github.com/richxcame/pizzaguard/internal/pricing"
	"github.com/richxcame/pizzaguard/internal/session"
	"github.com/richxcame/pizzaguard/pkg/config"
	"github.com/richxcame/pizzaguard/pkg/eventbus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakePublisher struct {
	events chan *eventbus.Event
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{events: make(chan *eventbus.Event, 64)}
}

func (p *fakePublisher) Publish(_ context.Context, _ string, event *eventbus.Event) error {
	p.events <- event
	return nil
}

func (p *fakePublisher) expect(t *testing.T, subject string) *eventbus.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-p.events:
			if ev.Type == subject {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %s event published", subject)
			return nil
		}
	}
}

type fakeAlerts struct {
	created chan *fraud.ReviewAlert
}

func (a *fakeAlerts) CreateAlert(_ context.Context, alert *fraud.ReviewAlert) error {
	a.created <- alert
	return nil
}

type mockAccounts struct {
	mock.Mock
}

func (m *mockAccounts) IsNewAccount(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, id, now)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccounts) LockStatus(ctx context.Context, id uuid.UUID, now time.Time) (account.LockStatus, error) {
	args := m.Called(ctx, id, now)
	return args.Get(0).(account.LockStatus), args.Error(1)
}

func (m *mockAccounts) RecordLogin(ctx context.Context, id uuid.UUID, success bool, now time.Time) (account.LockStatus, error) {
	args := m.Called(ctx, id, success, now)
	return args.Get(0).(account.LockStatus), args.Error(1)
}

type stubOrders struct {
	result *pricing.Result
	err    error
}

func (s stubOrders) ValidateOrder(context.Context, pricing.OrderPayload) (*pricing.Result, error) {
	return s.result, s.err
}

type testEnv struct {
	engine *Engine
	clock  *fakeClock
	events *fakePublisher
	alerts *fakeAlerts
}

func newTestEnv(t *testing.T, mutate func(*config.RiskConfig, *Deps)) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:  &fakeClock{now: t0},
		events: newFakePublisher(),
		alerts: &fakeAlerts{created: make(chan *fraud.ReviewAlert, 16)},
	}
	cfg := config.DefaultRiskConfig()
	deps := Deps{
		Orders: stubOrders{result: &pricing.Result{IsValid: true}},
		Alerts: env.alerts,
		Events: env.events,
		Source: "riskgate-test",
		Now:    env.clock.Now,
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	env.engine = NewEngine(cfg, deps)
	return env
}

func browserHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/124.0")
	h.Set("Accept-Language", "en-US")
	h.Set("Accept-Encoding", "gzip")
	return h
}

func TestIPThrottleBlocksEleventhRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d := env.engine.IPThrottle(ctx, "10.0.0.1", t0.Add(time.Duration(i)*50*time.Millisecond))
		require.True(t, d.Allowed, "request %d", i+1)
	}

	d := env.engine.IPThrottle(ctx, "10.0.0.1", t0.Add(600*time.Millisecond))
	assert.False(t, d.Allowed)
	assert.Equal(t, 60, d.RetryAfterSeconds)

	d = env.engine.IPThrottle(ctx, "10.0.0.1", t0.Add(30*time.Second))
	assert.False(t, d.Allowed)
	assert.Equal(t, 31, d.RetryAfterSeconds)

	assert.True(t, env.engine.IPThrottle(ctx, "10.0.0.2", t0).Allowed)
	assert.True(t, env.engine.IPThrottle(ctx, "10.0.0.1", t0.Add(62*time.Second)).Allowed)

	rec, ok := env.engine.suspicion.Get("10.0.0.1", t0.Add(62*time.Second))
	require.True(t, ok)
	assert.Equal(t, 1, rec.Count)
}

func TestThreeStrikesBlockIPAndPublish(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	ip := "198.51.100.7"

	for i := 0; i < 5; i++ {
		require.True(t, env.engine.CheckLoginVelocity(ctx, ip, t0))
	}
	assert.False(t, env.engine.CheckLoginVelocity(ctx, ip, t0))
	assert.False(t, env.engine.CheckLoginVelocity(ctx, ip, t0))
	assert.False(t, env.engine.InspectIP(ip, t0).Suspicious)

	assert.False(t, env.engine.CheckLoginVelocity(ctx, ip, t0))

	report := env.engine.InspectIP(ip, t0)
	assert.True(t, report.Suspicious)
	require.NotNil(t, report.Record)
	assert.Equal(t, 3, report.Record.Count)

	ev := env.events.expect(t, eventbus.SubjectIPBlocked)
	assert.Equal(t, "riskgate-test", ev.Source)

	d, err := env.engine.EvaluatePayment(ctx, PaymentAttempt{UserID: "u1", IP: ip, Amount: 10, OrderTotal: 10})
	require.NoError(t, err)
	assert.Equal(t, StageIPBlocked, d.Stage)

	assert.False(t, env.engine.InspectIP(ip, t0.Add(61*time.Minute)).Suspicious)
}

func TestRegistrationLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	ip := "203.0.113.4"

	assert.Equal(t, RegistrationStats{Status: "new"}, env.engine.RegistrationStats(ip, t0))

	for i := 0; i < 5; i++ {
		d := env.engine.CheckRegistrationLimit(ctx, ip, t0.Add(time.Duration(i)*time.Hour))
		require.True(t, d.Allowed)
	}

	stats := env.engine.RegistrationStats(ip, t0.Add(5*time.Hour))
	assert.Equal(t, "blocked", stats.Status)
	assert.Equal(t, 5, stats.Count)
	assert.Equal(t, 5, stats.Limit)
	assert.Equal(t, 19*60, stats.ResetInMinutes)

	d := env.engine.CheckRegistrationLimit(ctx, ip, t0.Add(5*time.Hour))
	assert.False(t, d.Allowed)
	assert.Equal(t, 19*60, d.ResetInMinutes)

	assert.True(t, env.engine.CheckRegistrationLimit(ctx, ip, t0.Add(24*time.Hour+time.Second)).Allowed)
}

func TestPromoAbuseScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for _, user := range []string{"a", "b", "c"} {
		assert.False(t, env.engine.CheckPromoAbuse(ctx, user, "10.1.1.1", "PIZZA50", t0).Abused)
	}

	res := env.engine.CheckPromoAbuse(ctx, "d", "10.1.1.1", "PIZZA50", t0)
	assert.True(t, res.Abused)
	env.events.expect(t, eventbus.SubjectPromoAbuse)

	res = env.engine.CheckPromoAbuse(ctx, "a", "10.9.9.9", "PIZZA50", t0)
	assert.True(t, res.Abused)
	assert.Equal(t, fraud.ReasonPromoReused, res.Reason)
}

func TestPromoRejectsFourthDistinctIP(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	for i, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		res := env.engine.CheckPromoAbuse(ctx, fmt.Sprintf("user-%d", i), ip, "SAVE10", t0)
		require.False(t, res.Abused, "ip %s", ip)
	}

	res := env.engine.CheckPromoAbuse(ctx, "user-4", "10.0.0.4", "SAVE10", t0)
	assert.True(t, res.Abused)
	assert.Equal(t, fraud.ReasonPromoAbuse, res.Reason)
	env.events.expect(t, eventbus.SubjectPromoAbuse)

	// A known IP may still bring new users up to the per-IP cap.
	assert.False(t, env.engine.CheckPromoAbuse(ctx, "user-5", "10.0.0.2", "SAVE10", t0).Abused)
	assert.False(t, env.engine.CheckPromoAbuse(ctx, "user-6", "10.0.0.4", "SAVE10", t0.Add(25*time.Hour)).Abused)
}

func TestValidateOrderPublishesTampering(t *testing.T) {
	tampered := &pricing.Result{
		Errors: []pricing.Issue{{Kind: pricing.IssueTotalMismatch, Message: "Order total mismatch"}},
	}
	env := newTestEnv(t, func(_ *config.RiskConfig, d *Deps) {
		d.Orders = stubOrders{result: tampered}
	})

	res, err := env.engine.ValidateOrder(context.Background(), "10.2.2.2", pricing.OrderPayload{Total: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.False(t, res.IsValid)

	ev := env.events.expect(t, eventbus.SubjectPriceTampering)
	assert.Contains(t, string(ev.Data), "10.2.2.2")
}

func TestValidateOrderPropagatesCatalogError(t *testing.T) {
	env := newTestEnv(t, func(_ *config.RiskConfig, d *Deps) {
		d.Orders = stubOrders{err: errors.New("catalog unavailable")}
	})

	_, err := env.engine.ValidateOrder(context.Background(), "10.2.2.2", pricing.OrderPayload{})
	assert.Error(t, err)
}

func TestDeviceBindingInvalidatesOnChange(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	s := session.New("user-1", t0)

	assert.Equal(t, session.StatusBound, env.engine.BindOrCheckDeviceFingerprint(ctx, s, browserHeaders()).Status)
	assert.Equal(t, session.StatusVerified, env.engine.BindOrCheckDeviceFingerprint(ctx, s, browserHeaders()).Status)

	other := browserHeaders()
	other.Set("User-Agent", "Mozilla/5.0 (Macintosh) Safari/17.0")
	res := env.engine.BindOrCheckDeviceFingerprint(ctx, s, other)
	assert.True(t, res.Invalidated)
	assert.True(t, s.Destroyed())

	ev := env.events.expect(t, eventbus.SubjectSessionInvalidated)
	assert.Contains(t, string(ev.Data), s.ID)
}

func TestDeviceBindingExpiresIdleSession(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	s := session.New("user-1", t0)

	env.engine.BindOrCheckDeviceFingerprint(ctx, s, browserHeaders())
	env.clock.Advance(31 * time.Minute)

	res := env.engine.BindOrCheckDeviceFingerprint(ctx, s, browserHeaders())
	assert.Equal(t, session.StatusExpired, res.Status)
}

func TestRecordLoginOutcomePublishesLock(t *testing.T) {
	accounts := new(mockAccounts)
	env := newTestEnv(t, func(_ *config.RiskConfig, d *Deps) { d.Accounts = accounts })
	id := uuid.New()
	until := t0.Add(2 * time.Hour)

	accounts.On("RecordLogin", mock.Anything, id, false, t0).
		Return(account.LockStatus{Locked: true, LockUntil: &until}, nil)

	st, err := env.engine.RecordLoginOutcome(context.Background(), id, "10.3.3.3", false, t0)
	require.NoError(t, err)
	assert.True(t, st.Locked)

	ev := env.events.expect(t, eventbus.SubjectAccountLocked)
	assert.Contains(t, string(ev.Data), id.String())
	accounts.AssertExpectations(t)
}

func TestAccountChecksWithoutStore(t *testing.T) {
	env := newTestEnv(t, nil)

	st, err := env.engine.AccountLockStatus(context.Background(), uuid.New(), t0)
	require.NoError(t, err)
	assert.False(t, st.Locked)

	st, err = env.engine.RecordLoginOutcome(context.Background(), uuid.New(), "10.3.3.3", false, t0)
	require.NoError(t, err)
	assert.False(t, st.Locked)
}

func TestIsDuplicateTransaction(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.False(t, env.engine.IsDuplicateTransaction("u1", 42.5, t0))
	assert.True(t, env.engine.IsDuplicateTransaction("u1", 42.5, t0.Add(10*time.Second)))
	assert.False(t, env.engine.IsDuplicateTransaction("u1", 42.6, t0))
	assert.False(t, env.engine.IsDuplicateTransaction("u2", 42.5, t0))
}

func TestMinutesCeil(t *testing.T) {
	assert.Equal(t, 0, minutesCeil(0))
	assert.Equal(t, 1, minutesCeil(time.Second))
	assert.Equal(t, 2, minutesCeil(61*time.Second))
}
