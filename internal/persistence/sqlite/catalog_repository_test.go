package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/testfixtures"
)

func TestCatalogRepository(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewCatalogRepository(pool)

	cardiologist := testfixtures.NewDoctorFixture(
		testfixtures.WithDoctorID("doc-cardio"),
		testfixtures.WithDoctorName("Ana Souza"),
	)
	dermatologist := testfixtures.NewDoctorFixture(
		testfixtures.WithDoctorID("doc-derma"),
		testfixtures.WithDoctorName("Bruno Lima"),
		testfixtures.WithDoctorActive(false),
	)
	seedDoctor(t, pool, cardiologist)
	seedDoctor(t, pool, dermatologist)

	units, err := repo.ListUnits(ctx)
	if err != nil {
		t.Fatalf("ListUnits failed: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if units[0].Name > units[1].Name {
		t.Fatalf("expected units ordered by name: %#v", units)
	}

	specialties, err := repo.ListSpecialties(ctx)
	if err != nil {
		t.Fatalf("ListSpecialties failed: %v", err)
	}
	if len(specialties) != 2 {
		t.Fatalf("expected 2 specialties, got %d", len(specialties))
	}

	doctors, err := repo.ListDoctors(ctx)
	if err != nil {
		t.Fatalf("ListDoctors failed: %v", err)
	}
	if len(doctors) != 2 {
		t.Fatalf("expected 2 doctors, got %d", len(doctors))
	}
	if doctors[0].Name != "Ana Souza" || doctors[1].Name != "Bruno Lima" {
		t.Fatalf("expected doctors ordered by name: %#v", doctors)
	}

	fetched, err := repo.GetDoctor(ctx, dermatologist.ID)
	if err != nil {
		t.Fatalf("GetDoctor failed: %v", err)
	}
	if fetched.Active {
		t.Fatal("expected the dermatologist to be inactive")
	}
	if fetched.UnitID != dermatologist.UnitID || fetched.SpecialtyID != dermatologist.SpecialtyID {
		t.Fatalf("unexpected affiliations: %#v", fetched)
	}

	if _, err := repo.GetDoctor(ctx, "no-such-doctor"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetDoctor(ctx, ""); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty id, got %v", err)
	}
}
