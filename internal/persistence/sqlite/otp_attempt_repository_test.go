package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/testfixtures"
)

func TestOTPAttemptRepository(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewOTPAttemptRepository(pool)

	reference := testfixtures.ReferenceTime()

	if err := repo.RecordAttempt(ctx, "", reference); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for empty user, got %v", err)
	}

	// Three deliveries for one user across an hour, one for another.
	for _, offset := range []time.Duration{0, 20 * time.Minute, 40 * time.Minute} {
		if err := repo.RecordAttempt(ctx, "user-1", reference.Add(offset)); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}
	if err := repo.RecordAttempt(ctx, "user-2", reference); err != nil {
		t.Fatalf("RecordAttempt for user-2 failed: %v", err)
	}

	count, err := repo.CountAttemptsSince(ctx, "user-1", reference.Add(-time.Minute))
	if err != nil {
		t.Fatalf("CountAttemptsSince failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 attempts in the window, got %d", count)
	}

	// The window boundary is exclusive.
	count, err = repo.CountAttemptsSince(ctx, "user-1", reference.Add(20*time.Minute))
	if err != nil {
		t.Fatalf("CountAttemptsSince failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 attempt after the boundary, got %d", count)
	}

	count, err = repo.CountAttemptsSince(ctx, "user-3", reference.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountAttemptsSince for unknown user failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no attempts for an unknown user, got %d", count)
	}

	if err := repo.DeleteAttemptsBefore(ctx, reference.Add(20*time.Minute)); err != nil {
		t.Fatalf("DeleteAttemptsBefore failed: %v", err)
	}
	count, err = repo.CountAttemptsSince(ctx, "user-1", reference.Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountAttemptsSince after pruning failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 attempt to survive pruning, got %d", count)
	}
}
