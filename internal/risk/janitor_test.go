package risk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestJanitorSweepsIdleKeys(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.engine.IPThrottle(ctx, "10.0.0.1", t0)
	env.engine.CheckLoginVelocity(ctx, "10.0.0.1", t0)
	env.engine.CheckPromoAbuse(ctx, "u1", "10.0.0.1", "PIZZA50", t0)

	j := NewJanitor(env.engine, zap.NewNop(), time.Minute)
	removed := j.Sweep()
	assert.Zero(t, removed["logins"])

	env.clock.Advance(25 * time.Hour)
	removed = j.Sweep()
	assert.Equal(t, 1, removed["throttle"])
	assert.Equal(t, 1, removed["logins"])
	assert.Equal(t, 1, removed["promos"])
}

func TestJanitorStopsOnStopAndContext(t *testing.T) {
	env := newTestEnv(t, nil)

	j := NewJanitor(env.engine, zap.NewNop(), 5*time.Millisecond)
	done := make(chan struct{})
	go func() {
		j.Start(context.Background())
		close(done)
	}()
	j.Stop()
	j.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}

	ctx, cancel := context.WithCancel(context.Background())
	j = NewJanitor(env.engine, zap.NewNop(), 0)
	assert.Equal(t, 10*time.Minute, j.interval)
	done = make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor ignored context cancellation")
	}
}
