package sqlite

import (
	"context"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
)

// CatalogRepository implements the read-only unit/specialty/doctor catalog
// over SQLite. Catalog rows are reference data with no write contention.
type CatalogRepository struct {
	pool *ConnectionPool
}

// NewCatalogRepository creates a new SQLite catalog repository.
func NewCatalogRepository(pool *ConnectionPool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListUnits returns all clinical units ordered by name.
func (r *CatalogRepository) ListUnits(ctx context.Context) ([]persistence.Unit, error) {
	rows, err := r.pool.db.QueryContext(ctx, `SELECT id, name, address FROM units ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var units []persistence.Unit
	for rows.Next() {
		var unit persistence.Unit
		if err := rows.Scan(&unit.ID, &unit.Name, &unit.Address); err != nil {
			return nil, mapError(err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return units, nil
}

// ListSpecialties returns all specialties ordered by name.
func (r *CatalogRepository) ListSpecialties(ctx context.Context) ([]persistence.Specialty, error) {
	rows, err := r.pool.db.QueryContext(ctx, `SELECT id, name FROM specialties ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var specialties []persistence.Specialty
	for rows.Next() {
		var specialty persistence.Specialty
		if err := rows.Scan(&specialty.ID, &specialty.Name); err != nil {
			return nil, mapError(err)
		}
		specialties = append(specialties, specialty)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return specialties, nil
}

// ListDoctors returns all doctors ordered by name.
func (r *CatalogRepository) ListDoctors(ctx context.Context) ([]persistence.Doctor, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, unit_id, specialty_id, name, active
		FROM doctors
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var doctors []persistence.Doctor
	for rows.Next() {
		doctor, err := scanDoctor(rows.Scan)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, doctor)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return doctors, nil
}

// GetDoctor retrieves a doctor by ID.
func (r *CatalogRepository) GetDoctor(ctx context.Context, id string) (persistence.Doctor, error) {
	if id == "" {
		return persistence.Doctor{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx, `
		SELECT id, unit_id, specialty_id, name, active
		FROM doctors
		WHERE id = ?
	`, id)
	return scanDoctor(row.Scan)
}

func scanDoctor(scan func(dest ...any) error) (persistence.Doctor, error) {
	var doctor persistence.Doctor
	var active int
	if err := scan(&doctor.ID, &doctor.UnitID, &doctor.SpecialtyID, &doctor.Name, &active); err != nil {
		return persistence.Doctor{}, mapError(err)
	}
	doctor.Active = active != 0
	return doctor, nil
}
