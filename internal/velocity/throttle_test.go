package velocity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleBlocksEleventhRequest(t *testing.T) {
	th := NewThrottle(time.Second, 10, time.Minute)
	ip := "1.2.3.4"

	for i := 0; i < 10; i++ {
		d := th.Allow(ip, t0.Add(time.Duration(i*50)*time.Millisecond))
		require.True(t, d.Allowed, "request %d", i+1)
	}

	d := th.Allow(ip, t0.Add(600*time.Millisecond))
	assert.False(t, d.Allowed)
	assert.True(t, d.Tripped)
	assert.Equal(t, 60, d.RetryAfterSeconds())

	later := th.Allow(ip, t0.Add(30*time.Second))
	assert.False(t, later.Allowed)
	assert.False(t, later.Tripped)
	assert.Equal(t, 31, later.RetryAfterSeconds())
	assert.True(t, th.Blocked(ip, t0.Add(30*time.Second)))

	d = th.Allow(ip, t0.Add(61*time.Second))
	assert.True(t, d.Allowed)
	assert.False(t, th.Blocked(ip, t0.Add(61*time.Second)))
}

func TestThrottleSpreadRequestsPass(t *testing.T) {
	th := NewThrottle(time.Second, 10, time.Minute)

	for i := 0; i < 50; i++ {
		d := th.Allow("5.6.7.8", t0.Add(time.Duration(i)*200*time.Millisecond))
		require.True(t, d.Allowed, "request %d", i+1)
	}
}

func TestThrottleSweepKeepsBlockedKeys(t *testing.T) {
	th := NewThrottle(time.Second, 1, time.Minute)
	th.Allow("blocked", t0)
	th.Allow("blocked", t0)
	th.Allow("idle", t0)

	assert.Equal(t, 1, th.Sweep(t0.Add(5*time.Second)))
	assert.True(t, th.Blocked("blocked", t0.Add(5*time.Second)))
	assert.Equal(t, 1, th.Sweep(t0.Add(2*time.Minute)))
}
