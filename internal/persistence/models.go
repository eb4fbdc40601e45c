package persistence

import (
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/scheduling"
)

// User represents a portal account holder.
type User struct {
	ID           string
	NationalID   string
	Name         string
	PasswordHash string
	Phone        string
	Email        string
	Active       bool
	Plan         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Dependent represents a family member managed under a user's account.
type Dependent struct {
	ID           string
	UserID       string
	NationalID   string
	Relationship string
	CardNumber   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Unit represents a clinical unit patients can book into.
type Unit struct {
	ID      string
	Name    string
	Address string
}

// Specialty represents a medical specialty.
type Specialty struct {
	ID   string
	Name string
}

// Doctor represents a bookable practitioner affiliated with one unit and one
// specialty.
type Doctor struct {
	ID          string
	UnitID      string
	SpecialtyID string
	Name        string
	Active      bool
}

// SessionPurpose discriminates what an auth session may be used for. Codes
// issued for one purpose must never verify under another.
type SessionPurpose string

const (
	// PurposeLogin tags sessions created by a password login attempt.
	PurposeLogin SessionPurpose = "login"
	// PurposePasswordReset tags sessions created by a password reset request.
	PurposePasswordReset SessionPurpose = "password_reset"
)

// AuthSession represents one login or password-reset attempt. Once verified
// and holding a refresh token, the row is the refresh-token record.
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

// AppointmentFilter narrows appointment listings.
type AppointmentFilter struct {
	UserID      string
	DependentID *string
	Statuses    []AppointmentStatus
}
