package database

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/richxcame/pizzaguard/pkg/resilience"
)

// RetryableQueryRow executes a single-row query, retrying transient failures.
func RetryableQueryRow[T any](ctx context.Context, db DBTX, query string, args []interface{}, scanner func(pgx.Row) (T, error)) (T, error) {
	result, err := resilience.RetryWithName(ctx, retryConfig(), func(ctx context.Context) (interface{}, error) {
		return scanner(db.QueryRow(ctx, query, args...))
	}, "database.query_row")
	if err != nil {
		return *new(T), err
	}
	return result.(T), nil
}

// RetryableExec executes a database command, retrying transient failures.
func RetryableExec(ctx context.Context, db DBTX, query string, args ...interface{}) (pgconn.CommandTag, error) {
	result, err := resilience.RetryWithName(ctx, retryConfig(), func(ctx context.Context) (interface{}, error) {
		return db.Exec(ctx, query, args...)
	}, "database.exec")
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	return result.(pgconn.CommandTag), nil
}

func retryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryableChecker = IsRetryable
	return cfg
}

// IsRetryable reports whether a PostgreSQL error is transient.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, pgx.ErrNoRows) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "53000", "53300", "57P01", "57P03":
			return true
		}
		// connection_exception class
		return strings.HasPrefix(pgErr.Code, "08")
	}

	msg := strings.ToLower(err.Error())
	for _, m := range []string{"connection refused", "connection reset", "broken pipe", "unexpected eof"} {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
