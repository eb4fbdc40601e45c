package sqlite

import (
	"context"
	"database/sql"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/scheduling"
)

// SlotRepository manages the pre-generated availability grid. Booked-state
// mutations happen exclusively inside AppointmentRepository transactions;
// this repository only generates and reads the grid.
type SlotRepository struct {
	pool *ConnectionPool
}

// NewSlotRepository creates a new SQLite slot repository.
func NewSlotRepository(pool *ConnectionPool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

// EnsureSlots inserts the given slot times for a doctor and date, leaving
// already-present rows (and their booked state) untouched.
func (r *SlotRepository) EnsureSlots(ctx context.Context, doctorID string, date scheduling.Date, times []scheduling.TimeOfDay) error {
	if doctorID == "" || date.IsZero() {
		return persistence.ErrConstraintViolation
	}
	if len(times) == 0 {
		return nil
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, t := range times {
			if !t.Valid() {
				return persistence.ErrConstraintViolation
			}
			_, err := tx.Exec(`
				INSERT OR IGNORE INTO slots (doctor_id, date, time, booked)
				VALUES (?, ?, ?, 0)
			`, doctorID, date.String(), t.String())
			if err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// ListFreeSlots returns the unbooked slot times for a doctor on a date,
// ascending.
func (r *SlotRepository) ListFreeSlots(ctx context.Context, doctorID string, date scheduling.Date) ([]scheduling.TimeOfDay, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT time
		FROM slots
		WHERE doctor_id = ? AND date = ? AND booked = 0
		ORDER BY time ASC
	`, doctorID, date.String())
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var times []scheduling.TimeOfDay
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, mapError(err)
		}
		t, err := scheduling.ParseTimeOfDay(value)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return times, nil
}
