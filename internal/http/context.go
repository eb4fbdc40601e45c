package http

import (
	"context"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/application"
)

type contextKey string

const (
	principalContextKey     contextKey = "principal"
	appointmentIDContextKey contextKey = "appointment_id"
	dependentIDContextKey   contextKey = "dependent_id"
	doctorIDContextKey      contextKey = "doctor_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithAppointmentID injects the appointment identifier resolved from the request path.
func ContextWithAppointmentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, appointmentIDContextKey, id)
}

// AppointmentIDFromContext extracts an appointment identifier previously associated with the context.
func AppointmentIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(appointmentIDContextKey).(string)
	return id, ok
}

// ContextWithDependentID injects the dependent identifier resolved from the request path.
func ContextWithDependentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, dependentIDContextKey, id)
}

// DependentIDFromContext extracts a dependent identifier previously associated with the context.
func DependentIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(dependentIDContextKey).(string)
	return id, ok
}

// ContextWithDoctorID injects the doctor identifier resolved from the request path.
func ContextWithDoctorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, doctorIDContextKey, id)
}

// DoctorIDFromContext extracts a doctor identifier previously associated with the context.
func DoctorIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(doctorIDContextKey).(string)
	return id, ok
}
