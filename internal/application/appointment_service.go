package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/delivery"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/scheduling"
)

// AppointmentStore captures the persistence interactions for appointments.
// The mutating operations keep the appointment row and its slot in lockstep
// inside one transaction.
type AppointmentStore interface {
	BookScheduled(ctx context.Context, appointment Appointment) (Appointment, error)
	RescheduleScheduled(ctx context.Context, id string, date scheduling.Date, t scheduling.TimeOfDay, notes string) (Appointment, error)
	CancelScheduled(ctx context.Context, id string) (Appointment, error)
	GetAppointment(ctx context.Context, id string) (Appointment, error)
	ListAppointments(ctx context.Context, filter AppointmentStoreFilter) ([]Appointment, error)
	CountFutureScheduledForDependent(ctx context.Context, dependentID string, from scheduling.Date) (int, error)
}

// AppointmentStoreFilter narrows appointment listings.
type AppointmentStoreFilter struct {
	UserID      string
	DependentID *string
	Statuses    []AppointmentStatus
}

// SlotStore manages the pre-generated availability grid.
type SlotStore interface {
	EnsureSlots(ctx context.Context, doctorID string, date scheduling.Date, times []scheduling.TimeOfDay) error
	ListFreeSlots(ctx context.Context, doctorID string, date scheduling.Date) ([]scheduling.TimeOfDay, error)
}

// DoctorCatalog exposes doctor lookup operations.
type DoctorCatalog interface {
	GetDoctor(ctx context.Context, id string) (Doctor, error)
}

// DependentDirectory exposes dependent lookup operations.
type DependentDirectory interface {
	GetDependent(ctx context.Context, id string) (Dependent, error)
}

// ListAppointmentsParams narrows a caller's appointment listing.
type ListAppointmentsParams struct {
	Principal   Principal
	DependentID *string
	Statuses    []AppointmentStatus
}

// AppointmentService orchestrates validation, slot reservation and
// notification for booking operations.
type AppointmentService struct {
	appointments AppointmentStore
	slots        SlotStore
	doctors      DoctorCatalog
	dependents   DependentDirectory
	messenger    delivery.Messenger
	idGenerator  func() string
	now          func() time.Time
	location     *time.Location
	logger       *slog.Logger
}

// NewAppointmentService wires dependencies for appointment operations.
func NewAppointmentService(appointments AppointmentStore, slots SlotStore, doctors DoctorCatalog, dependents DependentDirectory, messenger delivery.Messenger, idGenerator func() string, now func() time.Time, location *time.Location) *AppointmentService {
	return NewAppointmentServiceWithLogger(appointments, slots, doctors, dependents, messenger, idGenerator, now, location, nil)
}

// NewAppointmentServiceWithLogger constructs an AppointmentService with a
// specified logger.
func NewAppointmentServiceWithLogger(appointments AppointmentStore, slots SlotStore, doctors DoctorCatalog, dependents DependentDirectory, messenger delivery.Messenger, idGenerator func() string, now func() time.Time, location *time.Location, logger *slog.Logger) *AppointmentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.Local
	}
	return &AppointmentService{
		appointments: appointments,
		slots:        slots,
		doctors:      doctors,
		dependents:   dependents,
		messenger:    messenger,
		idGenerator:  idGenerator,
		now:          now,
		location:     location,
		logger:       defaultLogger(logger),
	}
}

func (s *AppointmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AppointmentService", operation, attrs...)
}

// Book validates the request and reserves the slot together with the
// appointment insert in one transaction. A taken slot yields
// ErrSlotUnavailable with no partial state.
func (s *AppointmentService) Book(ctx context.Context, params BookAppointmentParams) (appointment Appointment, err error) {
	if s == nil {
		err = fmt.Errorf("AppointmentService is nil")
		return
	}
	if s.appointments == nil || s.doctors == nil {
		err = fmt.Errorf("appointment stores not configured")
		return
	}

	logger := s.loggerWith(ctx, "Book",
		"user_id", params.Principal.UserID,
		"doctor_id", params.DoctorID,
		"date", params.Date.String(),
		"time", params.Time.String(),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "booking failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("appointment_id", appointment.ID).InfoContext(ctx, "appointment booked")
	}()

	if err = s.validateSlotRequest(params.Date, params.Time); err != nil {
		return
	}

	var doctor Doctor
	doctor, err = s.resolveDoctor(ctx, params.DoctorID, params.UnitID, params.SpecialtyID)
	if err != nil {
		return
	}

	if err = s.ensureDependentOwned(ctx, params.Principal, params.DependentID); err != nil {
		return
	}

	if s.slots != nil {
		if err = s.slots.EnsureSlots(ctx, doctor.ID, params.Date, scheduling.DayGrid(scheduling.DefaultWorkingHours)); err != nil {
			err = mapAppointmentStoreError(err)
			return
		}
	}

	now := s.now()
	appointment, err = s.appointments.BookScheduled(ctx, Appointment{
		ID:          s.idGenerator(),
		UserID:      params.Principal.UserID,
		DependentID: params.DependentID,
		DoctorID:    doctor.ID,
		UnitID:      doctor.UnitID,
		SpecialtyID: doctor.SpecialtyID,
		Date:        params.Date,
		Time:        params.Time,
		Status:      StatusScheduled,
		Notes:       strings.TrimSpace(params.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		err = mapAppointmentStoreError(err)
		return
	}

	s.notify(ctx, logger, delivery.TemplateBookingConfirmed, appointment)
	return
}

// Reschedule moves a SCHEDULED appointment to a new slot. The origin is
// released and the destination reserved inside one transaction; a taken
// destination leaves the original appointment untouched.
func (s *AppointmentService) Reschedule(ctx context.Context, params RescheduleAppointmentParams) (appointment Appointment, err error) {
	if s == nil {
		err = fmt.Errorf("AppointmentService is nil")
		return
	}
	if s.appointments == nil {
		err = fmt.Errorf("appointment store not configured")
		return
	}

	logger := s.loggerWith(ctx, "Reschedule",
		"user_id", params.Principal.UserID,
		"appointment_id", params.AppointmentID,
		"date", params.Date.String(),
		"time", params.Time.String(),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "reschedule failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "appointment rescheduled")
	}()

	if err = s.validateSlotRequest(params.Date, params.Time); err != nil {
		return
	}

	var current Appointment
	current, err = s.getOwnedAppointment(ctx, params.Principal, params.AppointmentID)
	if err != nil {
		return
	}
	if current.Status != StatusScheduled {
		err = ErrNotFound
		return
	}

	now := s.now()
	if scheduling.WithinLeadTime(now, current.Date.At(current.Time, s.location), scheduling.CancellationLeadTime) {
		err = ErrCancellationWindowClosed
		return
	}

	if s.slots != nil {
		if err = s.slots.EnsureSlots(ctx, current.DoctorID, params.Date, scheduling.DayGrid(scheduling.DefaultWorkingHours)); err != nil {
			err = mapAppointmentStoreError(err)
			return
		}
	}

	appointment, err = s.appointments.RescheduleScheduled(ctx, current.ID, params.Date, params.Time, strings.TrimSpace(params.Notes))
	if err != nil {
		err = mapAppointmentStoreError(err)
		return
	}

	s.notify(ctx, logger, delivery.TemplateBookingRescheduled, appointment)
	return
}

// Cancel flips a SCHEDULED appointment to CANCELLED and frees its slot.
// Appointments starting in less than the lead-time window cannot be
// cancelled.
func (s *AppointmentService) Cancel(ctx context.Context, principal Principal, appointmentID string) (err error) {
	if s == nil {
		return fmt.Errorf("AppointmentService is nil")
	}
	if s.appointments == nil {
		return fmt.Errorf("appointment store not configured")
	}

	logger := s.loggerWith(ctx, "Cancel",
		"user_id", principal.UserID,
		"appointment_id", appointmentID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "cancellation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "appointment cancelled")
	}()

	current, err := s.getOwnedAppointment(ctx, principal, appointmentID)
	if err != nil {
		return err
	}
	if current.Status != StatusScheduled {
		return ErrNotFound
	}

	if scheduling.WithinLeadTime(s.now(), current.Date.At(current.Time, s.location), scheduling.CancellationLeadTime) {
		return ErrCancellationWindowClosed
	}

	cancelled, err := s.appointments.CancelScheduled(ctx, current.ID)
	if err != nil {
		return mapAppointmentStoreError(err)
	}

	s.notify(ctx, logger, delivery.TemplateBookingCancelled, cancelled)
	return nil
}

// ListAvailable returns the free slot times for a doctor on a date in
// ascending order. Times already in the past are omitted.
func (s *AppointmentService) ListAvailable(ctx context.Context, doctorID string, date scheduling.Date) ([]scheduling.TimeOfDay, error) {
	if s == nil {
		return nil, fmt.Errorf("AppointmentService is nil")
	}
	if s.slots == nil || s.doctors == nil {
		return nil, fmt.Errorf("slot store not configured")
	}

	doctor, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, mapAppointmentStoreError(err)
	}
	if !doctor.Active {
		return []scheduling.TimeOfDay{}, nil
	}

	if err := s.slots.EnsureSlots(ctx, doctor.ID, date, scheduling.DayGrid(scheduling.DefaultWorkingHours)); err != nil {
		return nil, mapAppointmentStoreError(err)
	}

	free, err := s.slots.ListFreeSlots(ctx, doctor.ID, date)
	if err != nil {
		return nil, mapAppointmentStoreError(err)
	}

	now := s.now()
	result := make([]scheduling.TimeOfDay, 0, len(free))
	for _, t := range free {
		if date.At(t, s.location).After(now) {
			result = append(result, t)
		}
	}
	return result, nil
}

// List returns the caller's appointments, most recent first.
func (s *AppointmentService) List(ctx context.Context, params ListAppointmentsParams) ([]Appointment, error) {
	if s == nil {
		return nil, fmt.Errorf("AppointmentService is nil")
	}
	if s.appointments == nil {
		return nil, fmt.Errorf("appointment store not configured")
	}

	if err := s.ensureDependentOwned(ctx, params.Principal, params.DependentID); err != nil {
		return nil, err
	}

	appointments, err := s.appointments.ListAppointments(ctx, AppointmentStoreFilter{
		UserID:      params.Principal.UserID,
		DependentID: params.DependentID,
		Statuses:    params.Statuses,
	})
	if err != nil {
		return nil, mapAppointmentStoreError(err)
	}
	return appointments, nil
}

// EnsureHorizon generates the availability grid for a doctor over the given
// number of days. Existing slots, booked or free, are left untouched.
func (s *AppointmentService) EnsureHorizon(ctx context.Context, doctorID string, from scheduling.Date, days int) error {
	if s == nil {
		return fmt.Errorf("AppointmentService is nil")
	}
	if s.slots == nil {
		return fmt.Errorf("slot store not configured")
	}
	if days <= 0 {
		days = scheduling.DefaultHorizonDays
	}

	grid := scheduling.DayGrid(scheduling.DefaultWorkingHours)
	for offset := 0; offset < days; offset++ {
		if err := s.slots.EnsureSlots(ctx, doctorID, from.AddDays(offset), grid); err != nil {
			return mapAppointmentStoreError(err)
		}
	}
	return nil
}

// validateSlotRequest rejects malformed or past slot coordinates before any
// store round trip.
func (s *AppointmentService) validateSlotRequest(date scheduling.Date, t scheduling.TimeOfDay) error {
	vErr := &ValidationError{}
	if date.IsZero() {
		vErr.add("date", "must be provided as YYYY-MM-DD")
	}
	if !t.Valid() {
		vErr.add("time", "must fall on the booking grid")
	}
	if vErr.HasErrors() {
		return vErr
	}
	if !date.At(t, s.location).After(s.now()) {
		vErr.add("date", "must be in the future")
		return vErr
	}
	return nil
}

// resolveDoctor loads the doctor and checks it is active and, when the caller
// supplied unit or specialty, that they match the doctor's affiliation.
func (s *AppointmentService) resolveDoctor(ctx context.Context, doctorID, unitID, specialtyID string) (Doctor, error) {
	vErr := &ValidationError{}
	if strings.TrimSpace(doctorID) == "" {
		vErr.add("doctor_id", "must not be empty")
		return Doctor{}, vErr
	}

	doctor, err := s.doctors.GetDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(mapAppointmentStoreError(err), ErrNotFound) {
			vErr.add("doctor_id", "unknown doctor")
			return Doctor{}, vErr
		}
		return Doctor{}, mapAppointmentStoreError(err)
	}
	if !doctor.Active {
		vErr.add("doctor_id", "doctor is not accepting bookings")
	}
	if unitID != "" && unitID != doctor.UnitID {
		vErr.add("unit_id", "doctor does not attend at this unit")
	}
	if specialtyID != "" && specialtyID != doctor.SpecialtyID {
		vErr.add("specialty_id", "doctor does not practice this specialty")
	}
	if vErr.HasErrors() {
		return Doctor{}, vErr
	}
	return doctor, nil
}

// ensureDependentOwned verifies the dependent exists and belongs to the
// caller. Dependents of other users are reported as not found.
func (s *AppointmentService) ensureDependentOwned(ctx context.Context, principal Principal, dependentID *string) error {
	if dependentID == nil {
		return nil
	}
	if s.dependents == nil {
		return fmt.Errorf("dependent directory not configured")
	}
	dependent, err := s.dependents.GetDependent(ctx, *dependentID)
	if err != nil {
		return mapAppointmentStoreError(err)
	}
	if dependent.UserID != principal.UserID {
		return ErrNotFound
	}
	return nil
}

// getOwnedAppointment loads an appointment and hides other users'
// appointments behind ErrNotFound.
func (s *AppointmentService) getOwnedAppointment(ctx context.Context, principal Principal, id string) (Appointment, error) {
	appointment, err := s.appointments.GetAppointment(ctx, strings.TrimSpace(id))
	if err != nil {
		return Appointment{}, mapAppointmentStoreError(err)
	}
	if appointment.UserID != principal.UserID {
		return Appointment{}, ErrNotFound
	}
	return appointment, nil
}

// notify sends a best-effort booking notification. Failures are logged and
// never returned.
func (s *AppointmentService) notify(ctx context.Context, logger *slog.Logger, template string, appointment Appointment) {
	if s.messenger == nil {
		return
	}
	msg := delivery.Message{
		Destination: appointment.UserID,
		TemplateID:  template,
		Variables: map[string]string{
			"date": appointment.Date.String(),
			"time": appointment.Time.String(),
		},
	}
	if err := s.messenger.Send(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "notification delivery failed", "error", err, "template_id", template)
	}
}

func mapAppointmentStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConflict) || errors.Is(err, persistence.ErrDuplicate) {
		return ErrSlotUnavailable
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("doctor_id", "unknown doctor")
		return vErr
	}
	if errors.Is(err, persistence.ErrUnavailable) {
		return ErrUnavailable
	}
	return err
}
