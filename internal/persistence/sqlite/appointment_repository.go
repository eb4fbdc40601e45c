package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/scheduling"
)

// AppointmentRepository implements persistence.AppointmentRepository using
// SQLite. Every mutation runs inside one transaction that keeps the
// appointment row and its slot's booked flag in lockstep; a partial unique
// index on SCHEDULED (doctor, date, time) turns any lost race into a
// detectable conflict.
type AppointmentRepository struct {
	pool *ConnectionPool
}

// NewAppointmentRepository creates a new SQLite appointment repository.
func NewAppointmentRepository(pool *ConnectionPool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

const appointmentColumns = `id, user_id, dependent_id, doctor_id, unit_id, specialty_id, date, time, status, notes, created_at, updated_at`

// BookScheduled reserves the target slot and inserts the appointment in
// SCHEDULED state as one atomic unit. A taken or missing slot yields
// ErrConflict with no partial state left behind.
func (r *AppointmentRepository) BookScheduled(ctx context.Context, appointment persistence.Appointment) (persistence.Appointment, error) {
	if appointment.ID == "" || appointment.UserID == "" || appointment.DoctorID == "" {
		return persistence.Appointment{}, persistence.ErrConstraintViolation
	}
	if appointment.Date.IsZero() || !appointment.Time.Valid() {
		return persistence.Appointment{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	appointment.Status = persistence.StatusScheduled
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := reserveSlotTx(tx, appointment.DoctorID, appointment.Date, appointment.Time); err != nil {
			return err
		}
		return insertAppointmentTx(tx, appointment)
	})
	if err != nil {
		return persistence.Appointment{}, err
	}
	return appointment, nil
}

// RescheduleScheduled moves a SCHEDULED appointment to a new slot. The
// destination is reserved before the origin is released, so a taken
// destination rolls back leaving the original booking intact.
func (r *AppointmentRepository) RescheduleScheduled(ctx context.Context, id string, date scheduling.Date, t scheduling.TimeOfDay, notes string) (persistence.Appointment, error) {
	if id == "" {
		return persistence.Appointment{}, persistence.ErrNotFound
	}
	if date.IsZero() || !t.Valid() {
		return persistence.Appointment{}, persistence.ErrConstraintViolation
	}

	var updated persistence.Appointment
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := getAppointmentTx(tx, id)
		if err != nil {
			return err
		}
		if current.Status != persistence.StatusScheduled {
			return persistence.ErrConstraintViolation
		}

		moving := current.Date != date || current.Time != t
		if moving {
			if err := reserveSlotTx(tx, current.DoctorID, date, t); err != nil {
				return err
			}
		}

		updated = current
		updated.Date = date
		updated.Time = t
		updated.Notes = notes
		updated.UpdatedAt = time.Now().UTC()

		result, err := tx.Exec(`
			UPDATE appointments
			SET date = ?, time = ?, notes = ?, updated_at = ?
			WHERE id = ? AND status = 'SCHEDULED'
		`, date.String(), t.String(), notes, updated.UpdatedAt.Format(time.RFC3339), id)
		if err != nil {
			return mapConflict(mapError(err))
		}
		if err := requireRowsAffected(result); err != nil {
			return err
		}

		if moving {
			return releaseSlotTx(tx, current.DoctorID, current.Date, current.Time)
		}
		return nil
	})
	if err != nil {
		return persistence.Appointment{}, err
	}
	return updated, nil
}

// CancelScheduled flips a SCHEDULED appointment to CANCELLED and frees its
// slot atomically.
func (r *AppointmentRepository) CancelScheduled(ctx context.Context, id string) (persistence.Appointment, error) {
	if id == "" {
		return persistence.Appointment{}, persistence.ErrNotFound
	}

	var cancelled persistence.Appointment
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := getAppointmentTx(tx, id)
		if err != nil {
			return err
		}
		if current.Status != persistence.StatusScheduled {
			return persistence.ErrConstraintViolation
		}

		cancelled = current
		cancelled.Status = persistence.StatusCancelled
		cancelled.UpdatedAt = time.Now().UTC()

		result, err := tx.Exec(`
			UPDATE appointments
			SET status = 'CANCELLED', updated_at = ?
			WHERE id = ? AND status = 'SCHEDULED'
		`, cancelled.UpdatedAt.Format(time.RFC3339), id)
		if err != nil {
			return mapError(err)
		}
		if err := requireRowsAffected(result); err != nil {
			return err
		}

		return releaseSlotTx(tx, current.DoctorID, current.Date, current.Time)
	})
	if err != nil {
		return persistence.Appointment{}, err
	}
	return cancelled, nil
}

// GetAppointment retrieves an appointment by ID.
func (r *AppointmentRepository) GetAppointment(ctx context.Context, id string) (persistence.Appointment, error) {
	if id == "" {
		return persistence.Appointment{}, persistence.ErrNotFound
	}
	row := r.pool.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	return scanAppointment(row.Scan)
}

// ListAppointments returns appointments matching the filter, ordered by date
// descending then time descending.
func (r *AppointmentRepository) ListAppointments(ctx context.Context, filter persistence.AppointmentFilter) ([]persistence.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments`

	var conditions []string
	var args []any

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.DependentID != nil {
		conditions = append(conditions, "dependent_id = ?")
		args = append(args, *filter.DependentID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC, time DESC, id ASC"

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var appointments []persistence.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows.Scan)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return appointments, nil
}

// CountFutureScheduledForDependent reports how many SCHEDULED appointments a
// dependent holds on or after the given date.
func (r *AppointmentRepository) CountFutureScheduledForDependent(ctx context.Context, dependentID string, from scheduling.Date) (int, error) {
	if dependentID == "" {
		return 0, nil
	}
	var count int
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE dependent_id = ? AND status = 'SCHEDULED' AND date >= ?
	`, dependentID, from.String()).Scan(&count)
	if err != nil {
		return 0, mapError(err)
	}
	return count, nil
}

// reserveSlotTx performs the atomic check-and-set on the slot row. Zero rows
// affected means the slot is missing or already booked.
func reserveSlotTx(tx *sql.Tx, doctorID string, date scheduling.Date, t scheduling.TimeOfDay) error {
	result, err := tx.Exec(`
		UPDATE slots
		SET booked = 1
		WHERE doctor_id = ? AND date = ? AND time = ? AND booked = 0
	`, doctorID, date.String(), t.String())
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrConflict
	}
	return nil
}

func releaseSlotTx(tx *sql.Tx, doctorID string, date scheduling.Date, t scheduling.TimeOfDay) error {
	_, err := tx.Exec(`
		UPDATE slots
		SET booked = 0
		WHERE doctor_id = ? AND date = ? AND time = ?
	`, doctorID, date.String(), t.String())
	return mapError(err)
}

func insertAppointmentTx(tx *sql.Tx, appointment persistence.Appointment) error {
	var dependentID sql.NullString
	if appointment.DependentID != nil {
		dependentID.String = *appointment.DependentID
		dependentID.Valid = true
	}

	_, err := tx.Exec(`
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		appointment.ID,
		appointment.UserID,
		dependentID,
		appointment.DoctorID,
		appointment.UnitID,
		appointment.SpecialtyID,
		appointment.Date.String(),
		appointment.Time.String(),
		string(appointment.Status),
		appointment.Notes,
		appointment.CreatedAt.Format(time.RFC3339),
		appointment.UpdatedAt.Format(time.RFC3339),
	)
	return mapConflict(mapError(err))
}

func getAppointmentTx(tx *sql.Tx, id string) (persistence.Appointment, error) {
	row := tx.QueryRow(`SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id)
	return scanAppointment(row.Scan)
}

func scanAppointment(scan func(dest ...any) error) (persistence.Appointment, error) {
	var appointment persistence.Appointment
	var dependentID sql.NullString
	var dateStr, timeStr, statusStr, createdAtStr, updatedAtStr string

	err := scan(
		&appointment.ID,
		&appointment.UserID,
		&dependentID,
		&appointment.DoctorID,
		&appointment.UnitID,
		&appointment.SpecialtyID,
		&dateStr,
		&timeStr,
		&statusStr,
		&appointment.Notes,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.Appointment{}, mapError(err)
	}

	if dependentID.Valid {
		appointment.DependentID = &dependentID.String
	}
	appointment.Status = persistence.AppointmentStatus(statusStr)
	if appointment.Date, err = scheduling.ParseDate(dateStr); err != nil {
		return persistence.Appointment{}, fmt.Errorf("sqlite: failed to parse date: %w", err)
	}
	if appointment.Time, err = scheduling.ParseTimeOfDay(timeStr); err != nil {
		return persistence.Appointment{}, fmt.Errorf("sqlite: failed to parse time: %w", err)
	}
	if appointment.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Appointment{}, fmt.Errorf("sqlite: failed to parse created_at: %w", err)
	}
	if appointment.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Appointment{}, fmt.Errorf("sqlite: failed to parse updated_at: %w", err)
	}
	return appointment, nil
}

// mapConflict narrows unique-index violations on the SCHEDULED backstop to
// the conflict sentinel so a lost booking race never surfaces as a generic
// duplicate.
func mapConflict(err error) error {
	if errors.Is(err, persistence.ErrDuplicate) {
		return persistence.ErrConflict
	}
	return err
}
