package suspicion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestRegistryBlocksAfterThreeStrikes(t *testing.T) {
	r := NewRegistry(3, time.Hour)

	r.Mark("10.0.0.1", ReasonThrottled, t0)
	r.Mark("10.0.0.1", ReasonCardTesting, t0.Add(time.Minute))
	assert.False(t, r.IsSuspicious("10.0.0.1", t0.Add(2*time.Minute)))

	rec := r.Mark("10.0.0.1", ReasonPromoAbuse, t0.Add(3*time.Minute))
	assert.True(t, rec.Blocked)
	assert.Equal(t, 3, rec.Count)
	assert.Equal(t, t0, rec.FirstDetection)
	assert.True(t, r.IsSuspicious("10.0.0.1", t0.Add(4*time.Minute)))
	assert.False(t, r.IsSuspicious("10.0.0.2", t0.Add(4*time.Minute)))
}

func TestRegistryRecordExpires(t *testing.T) {
	r := NewRegistry(3, time.Hour)
	for i := 0; i < 3; i++ {
		r.Mark("10.0.0.1", ReasonThrottled, t0)
	}

	assert.True(t, r.IsSuspicious("10.0.0.1", t0.Add(59*time.Minute)))
	assert.False(t, r.IsSuspicious("10.0.0.1", t0.Add(time.Hour)))
	assert.Equal(t, 0, r.Len(), "expired record is deleted on lookup")

	rec := r.Mark("10.0.0.1", ReasonThrottled, t0.Add(2*time.Hour))
	assert.Equal(t, 1, rec.Count, "strikes restart after expiry")
}

func TestRegistryNewStrikeExtendsBlock(t *testing.T) {
	r := NewRegistry(3, time.Hour)
	for i := 0; i < 3; i++ {
		r.Mark("ip", ReasonThrottled, t0)
	}
	r.Mark("ip", ReasonThrottled, t0.Add(50*time.Minute))

	assert.True(t, r.IsSuspicious("ip", t0.Add(90*time.Minute)))
}

func TestRegistryOnBlockedFiresOnce(t *testing.T) {
	r := NewRegistry(3, time.Hour)
	var fired []Record
	r.OnBlocked = func(rec Record) { fired = append(fired, rec) }

	for i := 0; i < 5; i++ {
		r.Mark("ip", ReasonThrottled, t0.Add(time.Duration(i)*time.Second))
	}

	require.Len(t, fired, 1)
	assert.Equal(t, "ip", fired[0].IP)
	assert.Len(t, fired[0].Strikes, 3)
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry(3, time.Hour)
	r.Mark("ip", ReasonThrottled, t0)

	rec, ok := r.Get("ip", t0)
	require.True(t, ok)
	rec.Strikes[0].Reason = "tampered"

	again, _ := r.Get("ip", t0)
	assert.Equal(t, ReasonThrottled, again.Strikes[0].Reason)
}

func TestRegistrySweep(t *testing.T) {
	r := NewRegistry(3, time.Hour)
	r.Mark("old", ReasonThrottled, t0)
	r.Mark("new", ReasonThrottled, t0.Add(30*time.Minute))

	assert.Equal(t, 1, r.Sweep(t0.Add(time.Hour)))
	assert.Equal(t, 1, r.Len())
}
