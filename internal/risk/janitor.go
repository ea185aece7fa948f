package risk

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically drops idle keys from every tracker. Decisions stay
// correct without it because each tracker prunes lazily on access.
type Janitor struct {
	engine   *Engine
	logger   *zap.Logger
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewJanitor creates a janitor sweeping engine every interval.
func NewJanitor(engine *Engine, logger *zap.Logger, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Janitor{
		engine:   engine,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled or Stop is called.
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("Starting risk janitor", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-ctx.Done():
			j.logger.Info("Risk janitor stopped")
			return
		case <-j.done:
			j.logger.Info("Risk janitor shutdown requested")
			return
		}
	}
}

// Stop ends the sweep loop.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.done) })
}

// Sweep runs one pass over all trackers and returns the removed keys per tracker.
func (j *Janitor) Sweep() map[string]int {
	e := j.engine
	now := e.now()

	removed := map[string]int{
		"throttle":      e.throttle.Sweep(now),
		"logins":        e.logins.Sweep(now),
		"registrations": e.registrations.Sweep(now),
		"payments":      e.payments.Sweep(now),
		"suspicion":     e.suspicion.Sweep(now),
		"replay":        e.replay.Sweep(now),
		"card_testing":  e.cards.Sweep(now),
		"promos":        e.promos.Sweep(now),
	}

	total := 0
	for tracker, n := range removed {
		if n > 0 {
			sweptKeysTotal.WithLabelValues(tracker).Add(float64(n))
			total += n
		}
	}
	if total > 0 {
		j.logger.Debug("risk trackers swept", zap.Int("removed", total))
	}
	return removed
}
