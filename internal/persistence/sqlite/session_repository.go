package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool *ConnectionPool
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, user_id, purpose, code, channel, expires_at, verified, resend_count, refresh_token, refresh_expires_at, created_at, updated_at`

// CreateSession stores a new auth session.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	if session.ID == "" || session.UserID == "" || session.Code == "" {
		return persistence.AuthSession{}, persistence.ErrConstraintViolation
	}
	if session.Purpose != persistence.PurposeLogin && session.Purpose != persistence.PurposePasswordReset {
		return persistence.AuthSession{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		session.ID,
		session.UserID,
		string(session.Purpose),
		session.Code,
		session.Channel,
		session.ExpiresAt.UTC().Format(time.RFC3339),
		boolToInt(session.Verified),
		session.ResendCount,
		nullString(session.RefreshToken),
		nullTime(session.RefreshExpiresAt),
		session.CreatedAt.Format(time.RFC3339),
		session.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return persistence.AuthSession{}, mapError(err)
	}
	return session, nil
}

// GetSession retrieves a session by ID.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.AuthSession, error) {
	if strings.TrimSpace(id) == "" {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM auth_sessions WHERE id = ?`, id)
	return scanSession(row.Scan)
}

// GetSessionByRefreshToken retrieves the session bound to a refresh token.
func (r *SessionRepository) GetSessionByRefreshToken(ctx context.Context, token string) (persistence.AuthSession, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM auth_sessions WHERE refresh_token = ?`, trimmed)
	return scanSession(row.Scan)
}

// UpdateSession updates the mutable fields of an existing session. Identity
// and ownership are immutable.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	if session.ID == "" {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}

	session.UpdatedAt = time.Now().UTC()
	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE auth_sessions
		SET code = ?, channel = ?, expires_at = ?, verified = ?, resend_count = ?,
			refresh_token = ?, refresh_expires_at = ?, updated_at = ?
		WHERE id = ?
	`,
		session.Code,
		session.Channel,
		session.ExpiresAt.UTC().Format(time.RFC3339),
		boolToInt(session.Verified),
		session.ResendCount,
		nullString(session.RefreshToken),
		nullTime(session.RefreshExpiresAt),
		session.UpdatedAt.Format(time.RFC3339),
		session.ID,
	)
	if err != nil {
		return persistence.AuthSession{}, mapError(err)
	}
	if err := requireRowsAffected(result); err != nil {
		return persistence.AuthSession{}, err
	}
	return r.GetSession(ctx, session.ID)
}

// ConsumeCode atomically marks a pending session verified and clears its
// code. The update only lands while the session is still unverified and the
// stored code equals the presented one, so a one-time code can never be
// consumed twice; a lost race yields ErrConflict.
func (r *SessionRepository) ConsumeCode(ctx context.Context, id, code string) (persistence.AuthSession, error) {
	if id == "" || code == "" {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE auth_sessions
		SET verified = 1, code = '', updated_at = ?
		WHERE id = ? AND verified = 0 AND code = ?
	`, time.Now().UTC().Format(time.RFC3339), id, code)
	if err != nil {
		return persistence.AuthSession{}, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.AuthSession{}, fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.AuthSession{}, persistence.ErrConflict
	}
	return r.GetSession(ctx, id)
}

// RotateRefreshToken replaces the session's refresh token only while the
// stored value still equals current (nil meaning no token bound yet). A lost
// race yields ErrConflict and leaves the winner's token in place.
func (r *SessionRepository) RotateRefreshToken(ctx context.Context, id string, current *string, next string, expiresAt time.Time) (persistence.AuthSession, error) {
	if id == "" || next == "" {
		return persistence.AuthSession{}, persistence.ErrConstraintViolation
	}

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE auth_sessions
		SET refresh_token = ?, refresh_expires_at = ?, updated_at = ?
		WHERE id = ? AND refresh_token IS ?
	`,
		next,
		expiresAt.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		id,
		nullString(current),
	)
	if err != nil {
		return persistence.AuthSession{}, mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.AuthSession{}, fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.AuthSession{}, persistence.ErrConflict
	}
	return r.GetSession(ctx, id)
}

// DeleteSession removes a session by ID.
func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(result)
}

// DeleteSessionsForUser removes every session for a user, invalidating all
// outstanding refresh tokens.
func (r *SessionRepository) DeleteSessionsForUser(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	_, err := r.pool.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE user_id = ?`, userID)
	return mapError(err)
}

// DeleteExpiredSessions prunes sessions whose code expired and whose refresh
// token (if any) also expired by the reference instant.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	cutoff := reference.UTC().Format(time.RFC3339)
	_, err := r.pool.db.ExecContext(ctx, `
		DELETE FROM auth_sessions
		WHERE expires_at <= ?
		  AND (refresh_expires_at IS NULL OR refresh_expires_at <= ?)
	`, cutoff, cutoff)
	return mapError(err)
}

func scanSession(scan func(dest ...any) error) (persistence.AuthSession, error) {
	var session persistence.AuthSession
	var purposeStr, expiresAtStr, createdAtStr, updatedAtStr string
	var verified int
	var refreshToken, refreshExpiresAt sql.NullString

	err := scan(
		&session.ID,
		&session.UserID,
		&purposeStr,
		&session.Code,
		&session.Channel,
		&expiresAtStr,
		&verified,
		&session.ResendCount,
		&refreshToken,
		&refreshExpiresAt,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.AuthSession{}, mapError(err)
	}

	session.Purpose = persistence.SessionPurpose(purposeStr)
	session.Verified = verified != 0
	if refreshToken.Valid {
		session.RefreshToken = &refreshToken.String
	}
	if refreshExpiresAt.Valid {
		parsed, err := time.Parse(time.RFC3339, refreshExpiresAt.String)
		if err != nil {
			return persistence.AuthSession{}, fmt.Errorf("sqlite: failed to parse refresh_expires_at: %w", err)
		}
		session.RefreshExpiresAt = &parsed
	}
	if session.ExpiresAt, err = time.Parse(time.RFC3339, expiresAtStr); err != nil {
		return persistence.AuthSession{}, fmt.Errorf("sqlite: failed to parse expires_at: %w", err)
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.AuthSession{}, fmt.Errorf("sqlite: failed to parse created_at: %w", err)
	}
	if session.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.AuthSession{}, fmt.Errorf("sqlite: failed to parse updated_at: %w", err)
	}
	return session, nil
}

func nullString(value *string) sql.NullString {
	if value == nil || *value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullString {
	if value == nil || value.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: value.UTC().Format(time.RFC3339), Valid: true}
}
