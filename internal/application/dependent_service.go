package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/scheduling"
)

// DependentStore captures the persistence interactions for dependents.
type DependentStore interface {
	CreateDependent(ctx context.Context, dependent Dependent) (Dependent, error)
	GetDependent(ctx context.Context, id string) (Dependent, error)
	UpdateDependent(ctx context.Context, dependent Dependent) (Dependent, error)
	DeleteDependent(ctx context.Context, id string) error
	ListDependentsForUser(ctx context.Context, userID string) ([]Dependent, error)
}

// AppointmentCounter reports upcoming bookings held by a dependent.
type AppointmentCounter interface {
	CountFutureScheduledForDependent(ctx context.Context, dependentID string, from scheduling.Date) (int, error)
}

// DependentService manages the family members a user can book for.
type DependentService struct {
	dependents   DependentStore
	appointments AppointmentCounter
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewDependentService wires dependencies for dependent operations.
func NewDependentService(dependents DependentStore, appointments AppointmentCounter, idGenerator func() string, now func() time.Time) *DependentService {
	return NewDependentServiceWithLogger(dependents, appointments, idGenerator, now, nil)
}

// NewDependentServiceWithLogger constructs a DependentService with a
// specified logger.
func NewDependentServiceWithLogger(dependents DependentStore, appointments AppointmentCounter, idGenerator func() string, now func() time.Time, logger *slog.Logger) *DependentService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &DependentService{
		dependents:   dependents,
		appointments: appointments,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *DependentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DependentService", operation, attrs...)
}

// Add registers a dependent under the caller's account.
func (s *DependentService) Add(ctx context.Context, principal Principal, input DependentInput) (dependent Dependent, err error) {
	if s == nil {
		err = fmt.Errorf("DependentService is nil")
		return
	}
	if s.dependents == nil {
		err = fmt.Errorf("dependent store not configured")
		return
	}

	logger := s.loggerWith(ctx, "Add", "user_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "dependent creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("dependent_id", dependent.ID).InfoContext(ctx, "dependent added")
	}()

	if err = validateDependentInput(input); err != nil {
		return
	}

	now := s.now()
	dependent, err = s.dependents.CreateDependent(ctx, Dependent{
		ID:           s.idGenerator(),
		UserID:       principal.UserID,
		NationalID:   strings.TrimSpace(input.NationalID),
		Relationship: strings.TrimSpace(input.Relationship),
		CardNumber:   strings.TrimSpace(input.CardNumber),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		err = mapDependentStoreError(err)
	}
	return
}

// List returns the caller's dependents.
func (s *DependentService) List(ctx context.Context, principal Principal) ([]Dependent, error) {
	if s == nil {
		return nil, fmt.Errorf("DependentService is nil")
	}
	if s.dependents == nil {
		return nil, fmt.Errorf("dependent store not configured")
	}
	dependents, err := s.dependents.ListDependentsForUser(ctx, principal.UserID)
	if err != nil {
		return nil, mapDependentStoreError(err)
	}
	return dependents, nil
}

// Update applies mutable fields to a dependent owned by the caller.
func (s *DependentService) Update(ctx context.Context, principal Principal, id string, input DependentInput) (dependent Dependent, err error) {
	if s == nil {
		err = fmt.Errorf("DependentService is nil")
		return
	}
	if s.dependents == nil {
		err = fmt.Errorf("dependent store not configured")
		return
	}

	logger := s.loggerWith(ctx, "Update", "user_id", principal.UserID, "dependent_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "dependent update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "dependent updated")
	}()

	if err = validateDependentInput(input); err != nil {
		return
	}

	var current Dependent
	current, err = s.getOwnedDependent(ctx, principal, id)
	if err != nil {
		return
	}

	current.NationalID = strings.TrimSpace(input.NationalID)
	current.Relationship = strings.TrimSpace(input.Relationship)
	current.CardNumber = strings.TrimSpace(input.CardNumber)
	current.UpdatedAt = s.now()

	dependent, err = s.dependents.UpdateDependent(ctx, current)
	if err != nil {
		err = mapDependentStoreError(err)
	}
	return
}

// Remove deletes a dependent owned by the caller. Removal is refused while
// the dependent still holds an upcoming booking.
func (s *DependentService) Remove(ctx context.Context, principal Principal, id string) (err error) {
	if s == nil {
		return fmt.Errorf("DependentService is nil")
	}
	if s.dependents == nil {
		return fmt.Errorf("dependent store not configured")
	}

	logger := s.loggerWith(ctx, "Remove", "user_id", principal.UserID, "dependent_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "dependent removal failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "dependent removed")
	}()

	current, err := s.getOwnedDependent(ctx, principal, id)
	if err != nil {
		return err
	}

	if s.appointments != nil {
		today := scheduling.DateOf(s.now())
		count, countErr := s.appointments.CountFutureScheduledForDependent(ctx, current.ID, today)
		if countErr != nil {
			return mapDependentStoreError(countErr)
		}
		if count > 0 {
			vErr := &ValidationError{}
			vErr.add("dependent_id", "has upcoming appointments")
			return vErr
		}
	}

	if err := s.dependents.DeleteDependent(ctx, current.ID); err != nil {
		return mapDependentStoreError(err)
	}
	return nil
}

func (s *DependentService) getOwnedDependent(ctx context.Context, principal Principal, id string) (Dependent, error) {
	dependent, err := s.dependents.GetDependent(ctx, strings.TrimSpace(id))
	if err != nil {
		return Dependent{}, mapDependentStoreError(err)
	}
	if dependent.UserID != principal.UserID {
		return Dependent{}, ErrNotFound
	}
	return dependent, nil
}

func validateDependentInput(input DependentInput) error {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.NationalID) == "" {
		vErr.add("national_id", "must not be empty")
	}
	if strings.TrimSpace(input.Relationship) == "" {
		vErr.add("relationship", "must not be empty")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func mapDependentStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("user_id", "unknown account")
		return vErr
	}
	if errors.Is(err, persistence.ErrUnavailable) {
		return ErrUnavailable
	}
	return err
}
