package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
)

// DependentRepository implements persistence.DependentRepository using SQLite.
type DependentRepository struct {
	pool *ConnectionPool
}

// NewDependentRepository creates a new SQLite dependent repository.
func NewDependentRepository(pool *ConnectionPool) *DependentRepository {
	return &DependentRepository{pool: pool}
}

const dependentColumns = `id, user_id, national_id, relationship, card_number, created_at, updated_at`

// CreateDependent inserts a dependent under an existing user.
func (r *DependentRepository) CreateDependent(ctx context.Context, dependent persistence.Dependent) error {
	if dependent.ID == "" || dependent.UserID == "" || strings.TrimSpace(dependent.NationalID) == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO dependents (`+dependentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		dependent.ID,
		dependent.UserID,
		strings.TrimSpace(dependent.NationalID),
		dependent.Relationship,
		dependent.CardNumber,
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
	)
	return mapError(err)
}

// UpdateDependent updates a dependent's mutable fields. Ownership is
// immutable: the stored user_id is preserved.
func (r *DependentRepository) UpdateDependent(ctx context.Context, dependent persistence.Dependent) error {
	if dependent.ID == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx, `
		UPDATE dependents
		SET national_id = ?, relationship = ?, card_number = ?, updated_at = ?
		WHERE id = ?
	`,
		strings.TrimSpace(dependent.NationalID),
		dependent.Relationship,
		dependent.CardNumber,
		time.Now().UTC().Format(time.RFC3339),
		dependent.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(result)
}

// GetDependent retrieves a dependent by ID.
func (r *DependentRepository) GetDependent(ctx context.Context, id string) (persistence.Dependent, error) {
	if id == "" {
		return persistence.Dependent{}, persistence.ErrNotFound
	}

	var dependent persistence.Dependent
	var createdAtStr, updatedAtStr string
	err := r.pool.db.QueryRowContext(ctx, `SELECT `+dependentColumns+` FROM dependents WHERE id = ?`, id).Scan(
		&dependent.ID,
		&dependent.UserID,
		&dependent.NationalID,
		&dependent.Relationship,
		&dependent.CardNumber,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Dependent{}, mapError(err)
	}

	if dependent.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Dependent{}, fmt.Errorf("sqlite: failed to parse created_at: %w", err)
	}
	if dependent.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Dependent{}, fmt.Errorf("sqlite: failed to parse updated_at: %w", err)
	}
	return dependent, nil
}

// ListDependentsForUser returns a user's dependents ordered by creation time.
func (r *DependentRepository) ListDependentsForUser(ctx context.Context, userID string) ([]persistence.Dependent, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT `+dependentColumns+`
		FROM dependents
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var dependents []persistence.Dependent
	for rows.Next() {
		var dependent persistence.Dependent
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(
			&dependent.ID,
			&dependent.UserID,
			&dependent.NationalID,
			&dependent.Relationship,
			&dependent.CardNumber,
			&createdAtStr,
			&updatedAtStr,
		); err != nil {
			return nil, mapError(err)
		}
		if dependent.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
			return nil, fmt.Errorf("sqlite: failed to parse created_at: %w", err)
		}
		if dependent.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
			return nil, fmt.Errorf("sqlite: failed to parse updated_at: %w", err)
		}
		dependents = append(dependents, dependent)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return dependents, nil
}

// DeleteDependent removes a dependent by ID.
func (r *DependentRepository) DeleteDependent(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM dependents WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireRowsAffected(result)
}
