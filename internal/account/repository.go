package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/richxcame/pizzaguard/pkg/common"
	"github.com/richxcame/pizzaguard/pkg/database"
)

// Repository reads and updates users in PostgreSQL.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a new account repository
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, COALESCE(phone_number, ''), role, failed_login_attempts, lock_until, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PhoneNumber,
		&u.Role,
		&u.FailedLoginAttempts,
		&u.LockUntil,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("user not found", err)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// GetUser returns the user with the given id.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return database.RetryableQueryRow(ctx, r.db, query, []interface{}{id}, scanUser)
}

// RecordFailedLogin increments the failure counter and, once it reaches
// maxAttempts, locks the account until now+lockFor and resets the counter.
func (r *Repository) RecordFailedLogin(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration, now time.Time) (*User, error) {
	query := `
		UPDATE users SET
			failed_login_attempts = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN 0
				ELSE failed_login_attempts + 1
			END,
			lock_until = CASE
				WHEN failed_login_attempts + 1 >= $2 THEN $3::timestamptz
				ELSE lock_until
			END,
			updated_at = $4
		WHERE id = $1
		RETURNING ` + userColumns

	args := []interface{}{id, maxAttempts, now.Add(lockFor), now}
	return database.RetryableQueryRow(ctx, r.db, query, args, scanUser)
}

// ResetFailedLogins clears the failure counter and any lock after a successful login.
func (r *Repository) ResetFailedLogins(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, lock_until = NULL, last_login = $2, updated_at = $2
		WHERE id = $1
	`
	if _, err := database.RetryableExec(ctx, r.db, query, id, now); err != nil {
		return fmt.Errorf("reset failed logins: %w", err)
	}
	return nil
}
