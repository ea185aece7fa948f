package session

import (
	"time"

	"github.com/google/uuid"
)

// Session is the part of a session store entry the guard needs.
type Session interface {
	DeviceFingerprint() string
	SetDeviceFingerprint(fp string)
	LastActivity() time.Time
	Touch(now time.Time)
	Destroy()
}

// Data is a session persisted in Redis.
type Data struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`

	destroyed bool
}

// New creates an unbound session for userID.
func New(userID string, now time.Time) *Data {
	return &Data{
		ID:         uuid.NewString(),
		UserID:     userID,
		CreatedAt:  now,
		LastSeenAt: now,
	}
}

func (d *Data) DeviceFingerprint() string      { return d.Fingerprint }
func (d *Data) SetDeviceFingerprint(fp string) { d.Fingerprint = fp }
func (d *Data) LastActivity() time.Time        { return d.LastSeenAt }
func (d *Data) Touch(now time.Time)            { d.LastSeenAt = now }
func (d *Data) Destroy()                       { d.destroyed = true }

// Destroyed reports whether Destroy was called.
func (d *Data) Destroyed() bool { return d.destroyed }
