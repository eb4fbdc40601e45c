package persistence

import (
	"context"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/scheduling"
)

// UserRepository exposes account storage operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByNationalID(ctx context.Context, nationalID string) (User, error)
}

// DependentRepository exposes dependent storage operations.
type DependentRepository interface {
	CreateDependent(ctx context.Context, dependent Dependent) error
	UpdateDependent(ctx context.Context, dependent Dependent) error
	GetDependent(ctx context.Context, id string) (Dependent, error)
	ListDependentsForUser(ctx context.Context, userID string) ([]Dependent, error)
	DeleteDependent(ctx context.Context, id string) error
}

// CatalogRepository exposes the read-only unit/specialty/doctor catalog.
type CatalogRepository interface {
	ListUnits(ctx context.Context) ([]Unit, error)
	ListSpecialties(ctx context.Context) ([]Specialty, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	GetDoctor(ctx context.Context, id string) (Doctor, error)
}

// SlotRepository manages the pre-generated availability grid.
type SlotRepository interface {
	// EnsureSlots inserts the given slot times for a doctor and date,
	// skipping any that already exist. Existing booked state is preserved.
	EnsureSlots(ctx context.Context, doctorID string, date scheduling.Date, times []scheduling.TimeOfDay) error
	ListFreeSlots(ctx context.Context, doctorID string, date scheduling.Date) ([]scheduling.TimeOfDay, error)
}

// AppointmentRepository stores appointments. The mutating operations each run
// as one transaction that keeps the appointment row and its slot's booked
// flag in lockstep; callers never touch slots independently.
type AppointmentRepository interface {
	// BookScheduled reserves the target slot and inserts the appointment in
	// SCHEDULED state atomically. A taken slot or a concurrent SCHEDULED
	// appointment on the same (doctor, date, time) yields ErrConflict.
	BookScheduled(ctx context.Context, appointment Appointment) (Appointment, error)
	// RescheduleScheduled moves a SCHEDULED appointment to a new slot,
	// reserving the destination before releasing the origin. A taken
	// destination yields ErrConflict and leaves the origin untouched.
	RescheduleScheduled(ctx context.Context, id string, date scheduling.Date, t scheduling.TimeOfDay, notes string) (Appointment, error)
	// CancelScheduled flips a SCHEDULED appointment to CANCELLED and frees
	// its slot atomically.
	CancelScheduled(ctx context.Context, id string) (Appointment, error)
	GetAppointment(ctx context.Context, id string) (Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)
	// CountFutureScheduledForDependent reports how many SCHEDULED
	// appointments a dependent holds on or after the given date.
	CountFutureScheduledForDependent(ctx context.Context, dependentID string, from scheduling.Date) (int, error)
}

// SessionRepository stores authentication session state, including the
// refresh-token binding of verified sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session AuthSession) (AuthSession, error)
	GetSession(ctx context.Context, id string) (AuthSession, error)
	GetSessionByRefreshToken(ctx context.Context, token string) (AuthSession, error)
	UpdateSession(ctx context.Context, session AuthSession) (AuthSession, error)
	ConsumeCode(ctx context.Context, id, code string) (AuthSession, error)
	RotateRefreshToken(ctx context.Context, id string, current *string, next string, expiresAt time.Time) (AuthSession, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsForUser(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// OTPAttemptRepository tracks code deliveries per user so resend limits hold
// across server instances.
type OTPAttemptRepository interface {
	RecordAttempt(ctx context.Context, userID string, at time.Time) error
	CountAttemptsSince(ctx context.Context, userID string, since time.Time) (int, error)
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) error
}
