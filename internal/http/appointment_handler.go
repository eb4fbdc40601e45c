package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/application"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/scheduling"
)

type appointmentService interface {
	Book(ctx context.Context, params application.BookAppointmentParams) (application.Appointment, error)
	Reschedule(ctx context.Context, params application.RescheduleAppointmentParams) (application.Appointment, error)
	Cancel(ctx context.Context, principal application.Principal, appointmentID string) error
	List(ctx context.Context, params application.ListAppointmentsParams) ([]application.Appointment, error)
	ListAvailable(ctx context.Context, doctorID string, date scheduling.Date) ([]scheduling.TimeOfDay, error)
}

// AppointmentHandler serves booking, rescheduling and availability endpoints.
type AppointmentHandler struct {
	service   appointmentService
	responder responder
	logger    *slog.Logger
}

// NewAppointmentHandler wires the appointment endpoints.
func NewAppointmentHandler(service appointmentService, logger *slog.Logger) *AppointmentHandler {
	base := defaultLogger(logger)
	return &AppointmentHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AppointmentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AppointmentHandler", operation, attrs...)
}

type appointmentRequest struct {
	DependentID *string `json:"dependent_id,omitempty"`
	DoctorID    string  `json:"doctor_id"`
	UnitID      string  `json:"unit_id,omitempty"`
	SpecialtyID string  `json:"specialty_id,omitempty"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Notes       string  `json:"notes,omitempty"`
}

type appointmentDTO struct {
	ID          string  `json:"id"`
	DependentID *string `json:"dependent_id,omitempty"`
	DoctorID    string  `json:"doctor_id"`
	UnitID      string  `json:"unit_id"`
	SpecialtyID string  `json:"specialty_id"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Status      string  `json:"status"`
	Notes       string  `json:"notes,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type availabilityResponse struct {
	DoctorID string   `json:"doctor_id"`
	Date     string   `json:"date"`
	Times    []string `json:"times"`
}

func appointmentPayload(appointment application.Appointment) appointmentDTO {
	return appointmentDTO{
		ID:          appointment.ID,
		DependentID: appointment.DependentID,
		DoctorID:    appointment.DoctorID,
		UnitID:      appointment.UnitID,
		SpecialtyID: appointment.SpecialtyID,
		Date:        appointment.Date.String(),
		Time:        appointment.Time.String(),
		Status:      string(appointment.Status),
		Notes:       appointment.Notes,
		CreatedAt:   appointment.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   appointment.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// parseSlotCoordinates converts the wire date and time into domain values,
// collecting field errors instead of failing fast.
func parseSlotCoordinates(dateValue, timeValue string) (scheduling.Date, scheduling.TimeOfDay, *application.ValidationError) {
	vErr := &application.ValidationError{FieldErrors: map[string]string{}}

	date, err := scheduling.ParseDate(strings.TrimSpace(dateValue))
	if err != nil {
		vErr.FieldErrors["date"] = "must be provided as YYYY-MM-DD"
	}
	slot, err := scheduling.ParseTimeOfDay(strings.TrimSpace(timeValue))
	if err != nil {
		vErr.FieldErrors["time"] = "must be provided as HH:MM on the booking grid"
	}
	if len(vErr.FieldErrors) > 0 {
		return scheduling.Date{}, 0, vErr
	}
	return date, slot, nil
}

// Create books an appointment for the authenticated user.
func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_TOKEN", Message: errMissingAccessToken.Error()})
		return
	}

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "user_id", principal.UserID, "doctor_id", req.DoctorID)

	date, slot, vErr := parseSlotCoordinates(req.Date, req.Time)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	appointment, err := h.service.Book(r.Context(), application.BookAppointmentParams{
		Principal:   principal,
		DependentID: req.DependentID,
		DoctorID:    strings.TrimSpace(req.DoctorID),
		UnitID:      strings.TrimSpace(req.UnitID),
		SpecialtyID: strings.TrimSpace(req.SpecialtyID),
		Date:        date,
		Time:        slot,
		Notes:       req.Notes,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "booking rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("appointment_id", appointment.ID).InfoContext(r.Context(), "appointment booked")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, appointmentPayload(appointment))
}

// Update moves an appointment to a new slot.
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_TOKEN", Message: errMissingAccessToken.Error()})
		return
	}

	appointmentID, ok := AppointmentIDFromContext(r.Context())
	if !ok || appointmentID == "" {
		http.NotFound(w, r)
		return
	}

	var req appointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "user_id", principal.UserID, "appointment_id", appointmentID)

	date, slot, vErr := parseSlotCoordinates(req.Date, req.Time)
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	appointment, err := h.service.Reschedule(r.Context(), application.RescheduleAppointmentParams{
		Principal:     principal,
		AppointmentID: appointmentID,
		Date:          date,
		Time:          slot,
		Notes:         req.Notes,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reschedule rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "appointment rescheduled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, appointmentPayload(appointment))
}

// Delete cancels an appointment.
func (h *AppointmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_TOKEN", Message: errMissingAccessToken.Error()})
		return
	}

	appointmentID, ok := AppointmentIDFromContext(r.Context())
	if !ok || appointmentID == "" {
		http.NotFound(w, r)
		return
	}

	logger := h.log(r.Context(), "Delete", "user_id", principal.UserID, "appointment_id", appointmentID)

	if err := h.service.Cancel(r.Context(), principal, appointmentID); err != nil {
		logger.ErrorContext(r.Context(), "cancellation rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "appointment cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// List returns the caller's appointments, optionally narrowed by dependent or
// status query parameters.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_TOKEN", Message: errMissingAccessToken.Error()})
		return
	}

	params := application.ListAppointmentsParams{Principal: principal}
	if dependentID := strings.TrimSpace(r.URL.Query().Get("dependent_id")); dependentID != "" {
		params.DependentID = &dependentID
	}
	for _, status := range r.URL.Query()["status"] {
		if status = strings.TrimSpace(status); status != "" {
			params.Statuses = append(params.Statuses, application.AppointmentStatus(strings.ToUpper(status)))
		}
	}

	appointments, err := h.service.List(r.Context(), params)
	if err != nil {
		h.log(r.Context(), "List", "user_id", principal.UserID).ErrorContext(r.Context(), "listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]appointmentDTO, 0, len(appointments))
	for _, appointment := range appointments {
		payload = append(payload, appointmentPayload(appointment))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

// Availability returns the free slot times for a doctor on a date.
func (h *AppointmentHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	doctorID, ok := DoctorIDFromContext(r.Context())
	if !ok || doctorID == "" {
		http.NotFound(w, r)
		return
	}

	date, err := scheduling.ParseDate(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
		return
	}

	times, err := h.service.ListAvailable(r.Context(), doctorID, date)
	if err != nil {
		h.log(r.Context(), "Availability", "doctor_id", doctorID).ErrorContext(r.Context(), "availability lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := availabilityResponse{DoctorID: doctorID, Date: date.String(), Times: make([]string, 0, len(times))}
	for _, t := range times {
		payload.Times = append(payload.Times, t.String())
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}
