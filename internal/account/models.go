package account

import (
	"time"

	"github.com/google/uuid"
)

// User is the slice of the user record the risk layer reads and writes.
type User struct {
	ID                  uuid.UUID  `json:"id"`
	Email               string     `json:"email"`
	PhoneNumber         string     `json:"phone_number,omitempty"`
	Role                string     `json:"role"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LockUntil           *time.Time `json:"lock_until,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// IsLocked reports whether the account is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockUntil != nil && now.Before(*u.LockUntil)
}

// IsNew reports whether the account is younger than age.
func (u *User) IsNew(now time.Time, age time.Duration) bool {
	return now.Sub(u.CreatedAt) < age
}

// LockStatus is returned by lockout checks.
type LockStatus struct {
	Locked    bool       `json:"locked"`
	LockUntil *time.Time `json:"lock_until,omitempty"`
	Attempts  int        `json:"failed_attempts"`
}
