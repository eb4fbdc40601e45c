package application

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown identity or a wrong
	// password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountInactive is returned when the account has been deactivated.
	ErrAccountInactive = errors.New("application: account inactive")
	// ErrInvalidOrExpiredCode is returned for a wrong, expired, already-used
	// or unknown verification code. The cases are indistinguishable.
	ErrInvalidOrExpiredCode = errors.New("application: invalid or expired code")
	// ErrRateLimited is returned when the resend window is exhausted.
	ErrRateLimited = errors.New("application: rate limited")
	// ErrInvalidOrExpiredToken is returned for an unknown, expired or
	// already-rotated token.
	ErrInvalidOrExpiredToken = errors.New("application: invalid or expired token")
	// ErrSlotUnavailable is returned when the requested slot is taken or not
	// bookable.
	ErrSlotUnavailable = errors.New("application: slot unavailable")
	// ErrCancellationWindowClosed is returned when an appointment is too
	// close to its start to be cancelled or moved.
	ErrCancellationWindowClosed = errors.New("application: cancellation window closed")
	// ErrNotFound is returned when the requested resource does not exist or
	// is not visible to the caller.
	ErrNotFound = errors.New("application: not found")
	// ErrUnauthorized is returned when the acting principal lacks permission
	// for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrUnavailable is returned when the store cannot serve a write; the
	// caller may retry later.
	ErrUnavailable = errors.New("application: temporarily unavailable")
)

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
