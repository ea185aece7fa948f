package fraud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/richxcame/pizzaguard/pkg/database"
)

// ErrAlertNotFound is returned when a review targets an unknown alert.
var ErrAlertNotFound = errors.New("review alert not found")

// AlertStore persists review alerts.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *ReviewAlert) error
}

// Repository stores review alerts in PostgreSQL.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a new fraud repository
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// CreateAlert inserts a review alert.
func (r *Repository) CreateAlert(ctx context.Context, alert *ReviewAlert) error {
	reasons, err := json.Marshal(alert.Reasons)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payment_review_alerts (
			id, user_id, order_id, ip, tier, score, reasons,
			amount, blocked, status, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = database.RetryableExec(ctx, r.db, query,
		alert.ID,
		alert.UserID,
		alert.OrderID,
		alert.IP,
		alert.Tier,
		alert.Score,
		reasons,
		alert.Amount,
		alert.Blocked,
		alert.Status,
		alert.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review alert: %w", err)
	}
	return nil
}

// ListPending returns pending alerts, high tier first.
func (r *Repository) ListPending(ctx context.Context, limit, offset int) ([]*ReviewAlert, error) {
	query := `
		SELECT id, user_id, order_id, ip, tier, score, reasons,
		       amount, blocked, status, detected_at
		FROM payment_review_alerts
		WHERE status = 'pending'
		ORDER BY tier = 'high' DESC, detected_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query review alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*ReviewAlert
	for rows.Next() {
		var a ReviewAlert
		var reasons []byte
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.OrderID,
			&a.IP,
			&a.Tier,
			&a.Score,
			&reasons,
			&a.Amount,
			&a.Blocked,
			&a.Status,
			&a.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review alert: %w", err)
		}
		if err := json.Unmarshal(reasons, &a.Reasons); err != nil {
			a.Reasons = nil
		}
		alerts = append(alerts, &a)
	}

	return alerts, rows.Err()
}

// UpdateStatus records the outcome of a manual review.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status AlertStatus) error {
	query := `
		UPDATE payment_review_alerts
		SET status = $2, reviewed_at = NOW()
		WHERE id = $1
	`

	tag, err := database.RetryableExec(ctx, r.db, query, id, status)
	if err != nil {
		return fmt.Errorf("update review alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("review alert %s: %w", id, ErrAlertNotFound)
	}
	return nil
}
