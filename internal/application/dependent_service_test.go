package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/scheduling"
)

type dependentStoreStub struct {
	dependents map[string]Dependent
}

func newDependentStoreStub(dependents ...Dependent) *dependentStoreStub {
	stub := &dependentStoreStub{dependents: make(map[string]Dependent)}
	for _, d := range dependents {
		stub.dependents[d.ID] = d
	}
	return stub
}

func (s *dependentStoreStub) CreateDependent(_ context.Context, dependent Dependent) (Dependent, error) {
	s.dependents[dependent.ID] = dependent
	return dependent, nil
}

func (s *dependentStoreStub) GetDependent(_ context.Context, id string) (Dependent, error) {
	dependent, ok := s.dependents[id]
	if !ok {
		return Dependent{}, persistence.ErrNotFound
	}
	return dependent, nil
}

func (s *dependentStoreStub) UpdateDependent(_ context.Context, dependent Dependent) (Dependent, error) {
	if _, ok := s.dependents[dependent.ID]; !ok {
		return Dependent{}, persistence.ErrNotFound
	}
	s.dependents[dependent.ID] = dependent
	return dependent, nil
}

func (s *dependentStoreStub) DeleteDependent(_ context.Context, id string) error {
	if _, ok := s.dependents[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.dependents, id)
	return nil
}

func (s *dependentStoreStub) ListDependentsForUser(_ context.Context, userID string) ([]Dependent, error) {
	result := make([]Dependent, 0)
	for _, dependent := range s.dependents {
		if dependent.UserID == userID {
			result = append(result, dependent)
		}
	}
	return result, nil
}

type appointmentCounterStub struct {
	count int
}

func (s *appointmentCounterStub) CountFutureScheduledForDependent(_ context.Context, _ string, _ scheduling.Date) (int, error) {
	return s.count, nil
}

func testDependentService(dependents *dependentStoreStub, counter *appointmentCounterStub, now time.Time) *DependentService {
	return NewDependentService(dependents, counter, sequenceIDs("dependent"), func() time.Time { return now })
}

func ownedDependent() Dependent {
	return Dependent{ID: "dependent-1", UserID: "user-1", NationalID: "98765432100", Relationship: "child"}
}

func TestDependentService_Add(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("registers a dependent under the caller", func(t *testing.T) {
		t.Parallel()

		dependents := newDependentStoreStub()
		service := testDependentService(dependents, &appointmentCounterStub{}, now)

		dependent, err := service.Add(context.Background(), Principal{UserID: "user-1"}, DependentInput{
			NationalID:   "98765432100",
			Relationship: "child",
		})
		if err != nil {
			t.Fatalf("Add returned error: %v", err)
		}
		if dependent.UserID != "user-1" {
			t.Fatalf("owner = %q, want user-1", dependent.UserID)
		}
	})

	t.Run("rejects incomplete input", func(t *testing.T) {
		t.Parallel()

		service := testDependentService(newDependentStoreStub(), &appointmentCounterStub{}, now)

		_, err := service.Add(context.Background(), Principal{UserID: "user-1"}, DependentInput{})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
	})
}

func TestDependentService_Update(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("updates an owned dependent", func(t *testing.T) {
		t.Parallel()

		dependents := newDependentStoreStub(ownedDependent())
		service := testDependentService(dependents, &appointmentCounterStub{}, now)

		updated, err := service.Update(context.Background(), Principal{UserID: "user-1"}, "dependent-1", DependentInput{
			NationalID:   "98765432100",
			Relationship: "spouse",
		})
		if err != nil {
			t.Fatalf("Update returned error: %v", err)
		}
		if updated.Relationship != "spouse" {
			t.Fatalf("relationship = %q, want spouse", updated.Relationship)
		}
		if updated.UserID != "user-1" {
			t.Fatal("ownership must not change")
		}
	})

	t.Run("other users' dependents stay hidden", func(t *testing.T) {
		t.Parallel()

		dependents := newDependentStoreStub(ownedDependent())
		service := testDependentService(dependents, &appointmentCounterStub{}, now)

		_, err := service.Update(context.Background(), Principal{UserID: "user-2"}, "dependent-1", DependentInput{
			NationalID:   "98765432100",
			Relationship: "child",
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestDependentService_Remove(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("removes a dependent without upcoming bookings", func(t *testing.T) {
		t.Parallel()

		dependents := newDependentStoreStub(ownedDependent())
		service := testDependentService(dependents, &appointmentCounterStub{}, now)

		if err := service.Remove(context.Background(), Principal{UserID: "user-1"}, "dependent-1"); err != nil {
			t.Fatalf("Remove returned error: %v", err)
		}
		if len(dependents.dependents) != 0 {
			t.Fatal("dependent should be deleted")
		}
	})

	t.Run("refuses removal while bookings are upcoming", func(t *testing.T) {
		t.Parallel()

		dependents := newDependentStoreStub(ownedDependent())
		service := testDependentService(dependents, &appointmentCounterStub{count: 1}, now)

		err := service.Remove(context.Background(), Principal{UserID: "user-1"}, "dependent-1")
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("error = %v, want ValidationError", err)
		}
		if len(dependents.dependents) != 1 {
			t.Fatal("dependent must not be deleted")
		}
	})
}

func TestDependentService_List(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	other := ownedDependent()
	other.ID = "dependent-2"
	other.UserID = "user-2"
	dependents := newDependentStoreStub(ownedDependent(), other)
	service := testDependentService(dependents, &appointmentCounterStub{}, now)

	listed, err := service.List(context.Background(), Principal{UserID: "user-1"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "dependent-1" {
		t.Fatalf("listed = %+v, want only the caller's dependent", listed)
	}
}
