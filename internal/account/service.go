package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/pizzaguard/pkg/config"
	"github.com/richxcame/pizzaguard/pkg/logger"
	"go.uber.org/zap"
)

// Store is the persistence the account service needs.
type Store interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	RecordFailedLogin(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration, now time.Time) (*User, error)
	ResetFailedLogins(ctx context.Context, id uuid.UUID, now time.Time) error
}

// Policy configures lockout and the new-account signal.
type Policy struct {
	MaxAttempts   int
	LockDuration  time.Duration
	NewAccountAge time.Duration
}

// PolicyFromConfig extracts the account policy from the risk configuration.
func PolicyFromConfig(cfg config.RiskConfig) Policy {
	return Policy{
		MaxAttempts:   cfg.LockoutAttempts,
		LockDuration:  cfg.LockoutDuration,
		NewAccountAge: cfg.NewAccountAge,
	}
}

// Service applies the lockout policy to user records.
type Service struct {
	store  Store
	policy Policy
}

// NewService creates a new account service
func NewService(store Store, policy Policy) *Service {
	return &Service{store: store, policy: policy}
}

// LockStatus reports whether the user is currently locked out.
func (s *Service) LockStatus(ctx context.Context, id uuid.UUID, now time.Time) (LockStatus, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return LockStatus{}, err
	}
	return statusOf(u, now), nil
}

// RecordLogin applies the outcome of a password check.
func (s *Service) RecordLogin(ctx context.Context, id uuid.UUID, success bool, now time.Time) (LockStatus, error) {
	if success {
		if err := s.store.ResetFailedLogins(ctx, id, now); err != nil {
			return LockStatus{}, err
		}
		return LockStatus{}, nil
	}

	u, err := s.store.RecordFailedLogin(ctx, id, s.policy.MaxAttempts, s.policy.LockDuration, now)
	if err != nil {
		return LockStatus{}, err
	}

	st := statusOf(u, now)
	if st.Locked {
		logger.Security(ctx, "account locked after failed logins",
			zap.String("user_id", id.String()),
			zap.Timep("lock_until", st.LockUntil),
		)
	}
	return st, nil
}

// IsNewAccount reports whether the account is younger than the configured age.
func (s *Service) IsNewAccount(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	return u.IsNew(now, s.policy.NewAccountAge), nil
}

func statusOf(u *User, now time.Time) LockStatus {
	st := LockStatus{Attempts: u.FailedLoginAttempts}
	if u.IsLocked(now) {
		st.Locked = true
		st.LockUntil = u.LockUntil
	}
	return st
}
