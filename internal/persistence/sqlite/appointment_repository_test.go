package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/scheduling"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/testfixtures"
)

// bookingTestEnv seeds a patient, a doctor and a full slot grid for one day.
type bookingTestEnv struct {
	pool   *ConnectionPool
	repo   *AppointmentRepository
	user   persistence.User
	doctor testfixtures.DoctorFixture
	date   scheduling.Date
	grid   []scheduling.TimeOfDay
}

func newBookingTestEnv(t *testing.T) bookingTestEnv {
	t.Helper()

	pool := newTestPool(t)
	user := testfixtures.NewUserFixture().Persistence()
	seedUser(t, pool, user)
	doctor := testfixtures.NewDoctorFixture()
	seedDoctor(t, pool, doctor)

	date := testfixtures.ReferenceDate().AddDays(1)
	grid := scheduling.DayGrid(scheduling.DefaultWorkingHours)
	if err := NewSlotRepository(pool).EnsureSlots(context.Background(), doctor.ID, date, grid); err != nil {
		t.Fatalf("failed to seed slots: %v", err)
	}

	return bookingTestEnv{
		pool:   pool,
		repo:   NewAppointmentRepository(pool),
		user:   user,
		doctor: doctor,
		date:   date,
		grid:   grid,
	}
}

func (e bookingTestEnv) appointment(opts ...testfixtures.AppointmentOption) persistence.Appointment {
	base := []testfixtures.AppointmentOption{
		testfixtures.WithAppointmentUserID(e.user.ID),
		testfixtures.WithAppointmentDoctor(e.doctor),
		testfixtures.WithAppointmentSlot(e.date, e.grid[0]),
		testfixtures.WithoutAppointmentDependent(),
	}
	return testfixtures.NewAppointmentFixture(append(base, opts...)...).Persistence()
}

func (e bookingTestEnv) slotBooked(t *testing.T, at scheduling.TimeOfDay) bool {
	t.Helper()

	var booked int
	err := e.pool.DB().QueryRow(`
		SELECT booked FROM slots WHERE doctor_id = ? AND date = ? AND time = ?
	`, e.doctor.ID, e.date.String(), at.String()).Scan(&booked)
	if err != nil {
		t.Fatalf("failed to read slot state: %v", err)
	}
	return booked != 0
}

func TestAppointmentRepository_BookScheduled(t *testing.T) {
	ctx := context.Background()
	env := newBookingTestEnv(t)

	booked, err := env.repo.BookScheduled(ctx, env.appointment(testfixtures.WithAppointmentID("appt-1")))
	if err != nil {
		t.Fatalf("BookScheduled failed: %v", err)
	}
	if booked.Status != persistence.StatusScheduled {
		t.Fatalf("expected SCHEDULED, got %s", booked.Status)
	}
	if !env.slotBooked(t, env.grid[0]) {
		t.Fatal("expected the slot to be marked booked")
	}

	// The same slot cannot be taken twice.
	_, err = env.repo.BookScheduled(ctx, env.appointment(testfixtures.WithAppointmentID("appt-2")))
	if !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict on a taken slot, got %v", err)
	}
	if _, err := env.repo.GetAppointment(ctx, "appt-2"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected no partial appointment row, got %v", err)
	}

	// A slot outside the generated grid does not exist and cannot be booked.
	offGrid := env.appointment(
		testfixtures.WithAppointmentID("appt-3"),
		testfixtures.WithAppointmentSlot(env.date.AddDays(60), env.grid[0]),
	)
	if _, err := env.repo.BookScheduled(ctx, offGrid); !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict on a missing slot, got %v", err)
	}

	fetched, err := env.repo.GetAppointment(ctx, "appt-1")
	if err != nil {
		t.Fatalf("GetAppointment failed: %v", err)
	}
	if fetched.DoctorID != env.doctor.ID || fetched.Date != env.date || fetched.Time != env.grid[0] {
		t.Fatalf("unexpected appointment retrieved: %#v", fetched)
	}
	if fetched.DependentID != nil {
		t.Fatalf("expected no dependent, got %v", *fetched.DependentID)
	}
}

func TestAppointmentRepository_ConcurrentBookingIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	env := newBookingTestEnv(t)

	const attempts = 8
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.repo.BookScheduled(ctx, env.appointment(
				testfixtures.WithAppointmentID(fmt.Sprintf("race-%d", i)),
			))
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, persistence.ErrConflict), errors.Is(err, persistence.ErrUnavailable):
		default:
			t.Fatalf("attempt %d returned unexpected error: %v", i, err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one booking to win, got %d", successes)
	}

	var scheduled int
	err := env.pool.DB().QueryRow(`
		SELECT COUNT(*) FROM appointments
		WHERE doctor_id = ? AND date = ? AND time = ? AND status = 'SCHEDULED'
	`, env.doctor.ID, env.date.String(), env.grid[0].String()).Scan(&scheduled)
	if err != nil {
		t.Fatalf("failed to count scheduled rows: %v", err)
	}
	if scheduled != 1 {
		t.Fatalf("expected one SCHEDULED row for the slot, got %d", scheduled)
	}
	if !env.slotBooked(t, env.grid[0]) {
		t.Fatal("expected the contested slot to end up booked")
	}
}

func TestAppointmentRepository_RescheduleScheduled(t *testing.T) {
	ctx := context.Background()
	env := newBookingTestEnv(t)

	if _, err := env.repo.BookScheduled(ctx, env.appointment(testfixtures.WithAppointmentID("appt-1"))); err != nil {
		t.Fatalf("BookScheduled failed: %v", err)
	}

	moved, err := env.repo.RescheduleScheduled(ctx, "appt-1", env.date, env.grid[2], "later works better")
	if err != nil {
		t.Fatalf("RescheduleScheduled failed: %v", err)
	}
	if moved.Time != env.grid[2] || moved.Notes != "later works better" {
		t.Fatalf("unexpected appointment after reschedule: %#v", moved)
	}
	if env.slotBooked(t, env.grid[0]) {
		t.Fatal("expected the origin slot to be released")
	}
	if !env.slotBooked(t, env.grid[2]) {
		t.Fatal("expected the destination slot to be booked")
	}

	// A taken destination rolls back, leaving the original booking intact.
	if _, err := env.repo.BookScheduled(ctx, env.appointment(
		testfixtures.WithAppointmentID("appt-2"),
		testfixtures.WithAppointmentSlot(env.date, env.grid[4]),
	)); err != nil {
		t.Fatalf("BookScheduled of the blocker failed: %v", err)
	}
	if _, err := env.repo.RescheduleScheduled(ctx, "appt-1", env.date, env.grid[4], ""); !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict on a taken destination, got %v", err)
	}
	if !env.slotBooked(t, env.grid[2]) {
		t.Fatal("expected the original booking to survive the failed move")
	}
	current, err := env.repo.GetAppointment(ctx, "appt-1")
	if err != nil {
		t.Fatalf("GetAppointment failed: %v", err)
	}
	if current.Time != env.grid[2] || current.Notes != "later works better" {
		t.Fatalf("expected the appointment to be unchanged, got %#v", current)
	}

	// Rescheduling onto its own slot only updates the notes.
	same, err := env.repo.RescheduleScheduled(ctx, "appt-1", env.date, env.grid[2], "confirmed")
	if err != nil {
		t.Fatalf("RescheduleScheduled onto the same slot failed: %v", err)
	}
	if same.Notes != "confirmed" || same.Time != env.grid[2] {
		t.Fatalf("unexpected appointment after same-slot reschedule: %#v", same)
	}
	if !env.slotBooked(t, env.grid[2]) {
		t.Fatal("expected the slot to remain booked")
	}
}

func TestAppointmentRepository_CancelScheduled(t *testing.T) {
	ctx := context.Background()
	env := newBookingTestEnv(t)

	if _, err := env.repo.BookScheduled(ctx, env.appointment(testfixtures.WithAppointmentID("appt-1"))); err != nil {
		t.Fatalf("BookScheduled failed: %v", err)
	}

	cancelled, err := env.repo.CancelScheduled(ctx, "appt-1")
	if err != nil {
		t.Fatalf("CancelScheduled failed: %v", err)
	}
	if cancelled.Status != persistence.StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}
	if env.slotBooked(t, env.grid[0]) {
		t.Fatal("expected the slot to be freed")
	}

	// Cancelling twice is a state violation, and the slot stays bookable.
	if _, err := env.repo.CancelScheduled(ctx, "appt-1"); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation on a second cancel, got %v", err)
	}
	if _, err := env.repo.RescheduleScheduled(ctx, "appt-1", env.date, env.grid[1], ""); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation rescheduling a cancelled appointment, got %v", err)
	}

	if _, err := env.repo.BookScheduled(ctx, env.appointment(testfixtures.WithAppointmentID("appt-2"))); err != nil {
		t.Fatalf("expected the freed slot to be bookable again: %v", err)
	}

	if _, err := env.repo.CancelScheduled(ctx, "no-such-appointment"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppointmentRepository_ListAndCount(t *testing.T) {
	ctx := context.Background()
	env := newBookingTestEnv(t)

	dependent := testfixtures.NewDependentFixture(
		testfixtures.WithDependentUserID(env.user.ID),
	).Persistence()
	seedDependent(t, env.pool, dependent)

	nextDay := env.date.AddDays(1)
	if err := NewSlotRepository(env.pool).EnsureSlots(ctx, env.doctor.ID, nextDay, env.grid); err != nil {
		t.Fatalf("failed to seed next day's slots: %v", err)
	}

	first, err := env.repo.BookScheduled(ctx, env.appointment(
		testfixtures.WithAppointmentID("appt-own"),
		testfixtures.WithAppointmentSlot(env.date, env.grid[0]),
	))
	if err != nil {
		t.Fatalf("BookScheduled appt-own failed: %v", err)
	}
	second, err := env.repo.BookScheduled(ctx, env.appointment(
		testfixtures.WithAppointmentID("appt-dep"),
		testfixtures.WithAppointmentDependentID(dependent.ID),
		testfixtures.WithAppointmentSlot(nextDay, env.grid[1]),
	))
	if err != nil {
		t.Fatalf("BookScheduled appt-dep failed: %v", err)
	}
	if _, err := env.repo.CancelScheduled(ctx, first.ID); err != nil {
		t.Fatalf("CancelScheduled failed: %v", err)
	}

	all, err := env.repo.ListAppointments(ctx, persistence.AppointmentFilter{UserID: env.user.ID})
	if err != nil {
		t.Fatalf("ListAppointments failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(all))
	}
	// Most recent slot first.
	if all[0].ID != second.ID || all[1].ID != first.ID {
		t.Fatalf("unexpected ordering: %s before %s", all[0].ID, all[1].ID)
	}

	scheduled, err := env.repo.ListAppointments(ctx, persistence.AppointmentFilter{
		UserID:   env.user.ID,
		Statuses: []persistence.AppointmentStatus{persistence.StatusScheduled},
	})
	if err != nil {
		t.Fatalf("ListAppointments with status filter failed: %v", err)
	}
	if len(scheduled) != 1 || scheduled[0].ID != second.ID {
		t.Fatalf("expected only the scheduled appointment, got %#v", scheduled)
	}

	forDependent, err := env.repo.ListAppointments(ctx, persistence.AppointmentFilter{
		UserID:      env.user.ID,
		DependentID: &dependent.ID,
	})
	if err != nil {
		t.Fatalf("ListAppointments with dependent filter failed: %v", err)
	}
	if len(forDependent) != 1 || forDependent[0].ID != second.ID {
		t.Fatalf("expected only the dependent's appointment, got %#v", forDependent)
	}

	count, err := env.repo.CountFutureScheduledForDependent(ctx, dependent.ID, env.date)
	if err != nil {
		t.Fatalf("CountFutureScheduledForDependent failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 future appointment for the dependent, got %d", count)
	}

	count, err = env.repo.CountFutureScheduledForDependent(ctx, dependent.ID, env.date.AddDays(2))
	if err != nil {
		t.Fatalf("CountFutureScheduledForDependent failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no appointments beyond the horizon, got %d", count)
	}
}
