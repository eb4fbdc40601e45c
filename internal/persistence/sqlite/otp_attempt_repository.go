package sqlite

import (
	"context"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
)

// OTPAttemptRepository implements the store-backed resend counter so rate
// limits hold across server instances.
type OTPAttemptRepository struct {
	pool *ConnectionPool
}

// NewOTPAttemptRepository creates a new SQLite OTP attempt repository.
func NewOTPAttemptRepository(pool *ConnectionPool) *OTPAttemptRepository {
	return &OTPAttemptRepository{pool: pool}
}

// RecordAttempt stores one code delivery for the user.
func (r *OTPAttemptRepository) RecordAttempt(ctx context.Context, userID string, at time.Time) error {
	if userID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO otp_attempts (user_id, requested_at) VALUES (?, ?)
	`, userID, at.UTC().Format(time.RFC3339))
	return mapError(err)
}

// CountAttemptsSince counts deliveries for the user within the rolling window.
func (r *OTPAttemptRepository) CountAttemptsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM otp_attempts WHERE user_id = ? AND requested_at > ?
	`, userID, since.UTC().Format(time.RFC3339)).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

// DeleteAttemptsBefore prunes counters that fell out of every window.
func (r *OTPAttemptRepository) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) error {
	_, err := r.pool.db.ExecContext(ctx, `
		DELETE FROM otp_attempts WHERE requested_at <= ?
	`, cutoff.UTC().Format(time.RFC3339))
	return mapError(err)
}
