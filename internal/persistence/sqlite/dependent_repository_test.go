package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/testfixtures"
)

func TestDependentRepository(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewDependentRepository(pool)

	owner := testfixtures.NewUserFixture(testfixtures.WithUserID("holder-1")).Persistence()
	seedUser(t, pool, owner)

	dependent := testfixtures.NewDependentFixture(
		testfixtures.WithDependentID("dep-1"),
		testfixtures.WithDependentUserID(owner.ID),
		testfixtures.WithDependentRelationship("spouse"),
		testfixtures.WithDependentCardNumber("CARD-001"),
	).Persistence()

	if err := repo.CreateDependent(ctx, dependent); err != nil {
		t.Fatalf("CreateDependent failed: %v", err)
	}

	fetched, err := repo.GetDependent(ctx, dependent.ID)
	if err != nil {
		t.Fatalf("GetDependent failed: %v", err)
	}
	if fetched.UserID != owner.ID || fetched.Relationship != "spouse" || fetched.CardNumber != "CARD-001" {
		t.Fatalf("unexpected dependent retrieved: %#v", fetched)
	}

	fetched.Relationship = "child"
	fetched.CardNumber = "CARD-002"
	if err := repo.UpdateDependent(ctx, fetched); err != nil {
		t.Fatalf("UpdateDependent failed: %v", err)
	}

	second := testfixtures.NewDependentFixture(
		testfixtures.WithDependentID("dep-2"),
		testfixtures.WithDependentUserID(owner.ID),
	).Persistence()
	if err := repo.CreateDependent(ctx, second); err != nil {
		t.Fatalf("CreateDependent second failed: %v", err)
	}

	listed, err := repo.ListDependentsForUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListDependentsForUser failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 dependents, got %d", len(listed))
	}
	if listed[0].Relationship != "child" || listed[0].CardNumber != "CARD-002" {
		t.Fatalf("unexpected dependent after update: %#v", listed[0])
	}

	if err := repo.DeleteDependent(ctx, dependent.ID); err != nil {
		t.Fatalf("DeleteDependent failed: %v", err)
	}
	if err := repo.DeleteDependent(ctx, dependent.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	listed, err = repo.ListDependentsForUser(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListDependentsForUser failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != second.ID {
		t.Fatalf("expected only the second dependent, got %#v", listed)
	}
}

func TestDependentRepository_Validation(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewDependentRepository(pool)

	orphan := testfixtures.NewDependentFixture(
		testfixtures.WithDependentUserID("no-such-user"),
	).Persistence()
	if err := repo.CreateDependent(ctx, orphan); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation for unknown owner, got %v", err)
	}

	blank := testfixtures.NewDependentFixture(
		testfixtures.WithDependentNationalID("   "),
	).Persistence()
	if err := repo.CreateDependent(ctx, blank); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for blank national id, got %v", err)
	}

	if _, err := repo.GetDependent(ctx, "no-such-dependent"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown dependent, got %v", err)
	}

	missing := testfixtures.NewDependentFixture(testfixtures.WithDependentID("ghost")).Persistence()
	if err := repo.UpdateDependent(ctx, missing); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing dependent, got %v", err)
	}
}
