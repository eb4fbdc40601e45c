package application

import (
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/scheduling"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID    string
	SessionID string
}

// User represents a portal account exposed by the application services.
type User struct {
	ID         string
	NationalID string
	Name       string
	Phone      string
	Email      string
	Active     bool
	Plan       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Dependent represents a family member booked under a user's account.
type Dependent struct {
	ID           string
	UserID       string
	NationalID   string
	Relationship string
	CardNumber   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DependentInput captures caller provided dependent fields.
type DependentInput struct {
	NationalID   string
	Relationship string
	CardNumber   string
}

// Unit represents a clinical unit catalog entry.
type Unit struct {
	ID      string
	Name    string
	Address string
}

// Specialty represents a medical specialty catalog entry.
type Specialty struct {
	ID   string
	Name string
}

// Doctor represents a bookable practitioner.
type Doctor struct {
	ID          string
	UnitID      string
	SpecialtyID string
	Name        string
	Active      bool
}

// SessionPurpose discriminates login sessions from password-reset sessions.
// A code issued for one purpose never verifies under the other.
type SessionPurpose string

const (
	// PurposeLogin tags sessions created by a password login attempt.
	PurposeLogin SessionPurpose = "login"
	// PurposePasswordReset tags sessions created by a password reset request.
	PurposePasswordReset SessionPurpose = "password_reset"
)

// AuthSession represents one login or password-reset attempt. A verified
// session holding a refresh token is the refresh-token record itself.
type AuthSession struct {
	ID               string
	UserID           string
	Purpose          SessionPurpose
	Code             string
	Channel          string
	ExpiresAt        time.Time
	Verified         bool
	ResendCount      int
	RefreshToken     *string
	RefreshExpiresAt *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Challenge is the caller-visible projection of a pending auth session: the
// code itself never leaves through this type.
type Challenge struct {
	SessionID string
	Channel   string
	ExpiresAt time.Time
}

// TokenPair carries a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AppointmentStatus enumerates the appointment lifecycle.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

// Appointment represents a booked slot for a user or one of their dependents.
type Appointment struct {
	ID          string
	UserID      string
	DependentID *string
	DoctorID    string
	UnitID      string
	SpecialtyID string
	Date        scheduling.Date
	Time        scheduling.TimeOfDay
	Status      AppointmentStatus
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BookAppointmentParams wraps the data required to book an appointment.
type BookAppointmentParams struct {
	Principal   Principal
	DependentID *string
	DoctorID    string
	UnitID      string
	SpecialtyID string
	Date        scheduling.Date
	Time        scheduling.TimeOfDay
	Notes       string
}

// RescheduleAppointmentParams wraps the data required to move an appointment.
type RescheduleAppointmentParams struct {
	Principal     Principal
	AppointmentID string
	Date          scheduling.Date
	Time          scheduling.TimeOfDay
	Notes         string
}

// UserProfileInput captures caller provided profile fields.
type UserProfileInput struct {
	Name  string
	Phone string
	Email string
	Plan  string
}
