// Package session binds sessions to the device that first used them and
// expires idle sessions.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/richxcame/pizzaguard/pkg/fingerprint"
	"github.com/richxcame/pizzaguard/pkg/logger"
	"go.uber.org/zap"
)

// Status is the outcome of a binding check.
type Status string

const (
	StatusBound       Status = "bound"
	StatusVerified    Status = "verified"
	StatusInvalidated Status = "invalidated"
	StatusExpired     Status = "expired"
)

// User-facing reasons.
const (
	ReasonFingerprintMismatch = "Session invalidated due to security concerns. Please log in again."
	ReasonIdle                = "Session expired due to inactivity. Please log in again."
)

// Result is the outcome of Guard.Check.
type Result struct {
	Status      Status `json:"status"`
	Invalidated bool   `json:"invalidated"`
	Reason      string `json:"reason,omitempty"`
}

// Guard binds a session to a device fingerprint on first use and destroys it
// when a later request presents a different one. Legitimate header changes,
// such as a browser update, also invalidate the session.
type Guard struct {
	idleTimeout time.Duration
}

// NewGuard creates a Guard. A zero idleTimeout disables the inactivity check.
func NewGuard(idleTimeout time.Duration) *Guard {
	return &Guard{idleTimeout: idleTimeout}
}

// Check runs the inactivity and fingerprint checks against s.
func (g *Guard) Check(ctx context.Context, s Session, h http.Header, now time.Time) Result {
	if last := s.LastActivity(); g.idleTimeout > 0 && !last.IsZero() && now.Sub(last) > g.idleTimeout {
		s.Destroy()
		logger.SecurityInfo(ctx, "session expired after inactivity",
			zap.Duration("idle", now.Sub(last)),
		)
		return Result{Status: StatusExpired, Invalidated: true, Reason: ReasonIdle}
	}

	current := fingerprint.Device(h)
	stored := s.DeviceFingerprint()

	switch {
	case stored == "":
		s.SetDeviceFingerprint(current)
		s.Touch(now)
		return Result{Status: StatusBound}
	case stored == current:
		s.Touch(now)
		return Result{Status: StatusVerified}
	default:
		s.Destroy()
		logger.Security(ctx, "session fingerprint mismatch",
			zap.String("stored", short(stored)),
			zap.String("current", short(current)),
		)
		return Result{Status: StatusInvalidated, Invalidated: true, Reason: ReasonFingerprintMismatch}
	}
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
