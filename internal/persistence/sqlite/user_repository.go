package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite.
type UserRepository struct {
	pool *ConnectionPool
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, national_id, name, password_hash, phone, email, active, plan, created_at, updated_at`

// CreateUser inserts a new account row.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || strings.TrimSpace(user.NationalID) == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID,
		strings.TrimSpace(user.NationalID),
		user.Name,
		user.PasswordHash,
		user.Phone,
		user.Email,
		boolToInt(user.Active),
		user.Plan,
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
	)
	return mapError(err)
}

// UpdateUser updates the mutable fields of an existing account.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE users
		SET name = ?, password_hash = ?, phone = ?, email = ?, active = ?, plan = ?, updated_at = ?
		WHERE id = ?
	`,
		user.Name,
		user.PasswordHash,
		user.Phone,
		user.Email,
		boolToInt(user.Active),
		user.Plan,
		time.Now().UTC().Format(time.RFC3339),
		user.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(result)
}

// GetUser retrieves an account by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByNationalID retrieves an account by its identity key.
func (r *UserRepository) GetUserByNationalID(ctx context.Context, nationalID string) (persistence.User, error) {
	trimmed := strings.TrimSpace(nationalID)
	if trimmed == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE national_id = ?`, trimmed)
	return scanUser(row)
}

func scanUser(row *sql.Row) (persistence.User, error) {
	var user persistence.User
	var active int
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&user.ID,
		&user.NationalID,
		&user.Name,
		&user.PasswordHash,
		&user.Phone,
		&user.Email,
		&active,
		&user.Plan,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.User{}, mapError(err)
	}

	user.Active = active != 0
	if user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.User{}, fmt.Errorf("sqlite: failed to parse created_at: %w", err)
	}
	if user.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.User{}, fmt.Errorf("sqlite: failed to parse updated_at: %w", err)
	}
	return user, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func requireRowsAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
