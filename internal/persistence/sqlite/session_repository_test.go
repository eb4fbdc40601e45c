package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/testfixtures"
)

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewSessionRepository(pool)

	user := testfixtures.NewUserFixture(testfixtures.WithUserID("login-user")).Persistence()
	seedUser(t, pool, user)

	session := testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("sess-1"),
		testfixtures.WithSessionUserID(user.ID),
		testfixtures.WithSessionCode("654321"),
	).Persistence()

	created, err := repo.CreateSession(ctx, session)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be set")
	}

	fetched, err := repo.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if fetched.Code != "654321" || fetched.Purpose != persistence.PurposeLogin || fetched.Verified {
		t.Fatalf("unexpected session retrieved: %#v", fetched)
	}
	if fetched.RefreshToken != nil {
		t.Fatalf("expected no refresh token yet, got %v", *fetched.RefreshToken)
	}

	// Verification clears the code and binds the first refresh token.
	token := "refresh-one"
	refreshExpiry := testfixtures.ReferenceTime().Add(30 * 24 * time.Hour)
	fetched.Verified = true
	fetched.Code = ""
	fetched.RefreshToken = &token
	fetched.RefreshExpiresAt = &refreshExpiry

	updated, err := repo.UpdateSession(ctx, fetched)
	if err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	if !updated.Verified || updated.Code != "" {
		t.Fatalf("unexpected session after verification: %#v", updated)
	}
	if updated.RefreshToken == nil || *updated.RefreshToken != token {
		t.Fatalf("expected refresh token %q, got %v", token, updated.RefreshToken)
	}
	if updated.RefreshExpiresAt == nil || !updated.RefreshExpiresAt.Equal(refreshExpiry) {
		t.Fatalf("unexpected refresh expiry: %v", updated.RefreshExpiresAt)
	}

	byToken, err := repo.GetSessionByRefreshToken(ctx, token)
	if err != nil {
		t.Fatalf("GetSessionByRefreshToken failed: %v", err)
	}
	if byToken.ID != session.ID {
		t.Fatalf("expected session %s, got %s", session.ID, byToken.ID)
	}

	// Rotation: the replaced token must stop resolving immediately.
	rotated := "refresh-two"
	byToken.RefreshToken = &rotated
	if _, err := repo.UpdateSession(ctx, byToken); err != nil {
		t.Fatalf("UpdateSession rotation failed: %v", err)
	}
	if _, err := repo.GetSessionByRefreshToken(ctx, token); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected the old token to be invalid, got %v", err)
	}
	if _, err := repo.GetSessionByRefreshToken(ctx, rotated); err != nil {
		t.Fatalf("expected the rotated token to resolve: %v", err)
	}

	if err := repo.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if err := repo.DeleteSession(ctx, session.ID); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSessionRepository_ConsumeCode(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewSessionRepository(pool)

	user := testfixtures.NewUserFixture(testfixtures.WithUserID("consume-user")).Persistence()
	seedUser(t, pool, user)

	session := testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("sess-consume"),
		testfixtures.WithSessionUserID(user.ID),
		testfixtures.WithSessionCode("654321"),
	).Persistence()
	if _, err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := repo.ConsumeCode(ctx, session.ID, "000000"); !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict for a wrong code, got %v", err)
	}

	consumed, err := repo.ConsumeCode(ctx, session.ID, "654321")
	if err != nil {
		t.Fatalf("ConsumeCode failed: %v", err)
	}
	if !consumed.Verified || consumed.Code != "" {
		t.Fatalf("unexpected session after consume: %#v", consumed)
	}

	if _, err := repo.ConsumeCode(ctx, session.ID, "654321"); !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict on replay, got %v", err)
	}
	if _, err := repo.ConsumeCode(ctx, "no-such-session", "654321"); !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict for an unknown session, got %v", err)
	}
}

func TestSessionRepository_ConcurrentConsumeIsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewSessionRepository(pool)

	user := testfixtures.NewUserFixture(testfixtures.WithUserID("race-user")).Persistence()
	seedUser(t, pool, user)

	session := testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("sess-race"),
		testfixtures.WithSessionUserID(user.ID),
		testfixtures.WithSessionCode("654321"),
	).Persistence()
	if _, err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ConsumeCode(ctx, session.ID, "654321")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, persistence.ErrConflict), errors.Is(err, persistence.ErrUnavailable):
		default:
			t.Fatalf("unexpected consume error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("consumes succeeded %d times, want exactly 1", successes)
	}

	final, err := repo.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !final.Verified || final.Code != "" {
		t.Fatalf("unexpected final session state: %#v", final)
	}
}

func TestSessionRepository_RotateRefreshToken(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewSessionRepository(pool)

	user := testfixtures.NewUserFixture(testfixtures.WithUserID("rotate-user")).Persistence()
	seedUser(t, pool, user)

	session := testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("sess-rotate"),
		testfixtures.WithSessionUserID(user.ID),
	).Persistence()
	if _, err := repo.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	expiry := testfixtures.ReferenceTime().Add(30 * 24 * time.Hour)

	// The first bind requires the row to still hold no token.
	bound, err := repo.RotateRefreshToken(ctx, session.ID, nil, "refresh-one", expiry)
	if err != nil {
		t.Fatalf("first RotateRefreshToken failed: %v", err)
	}
	if bound.RefreshToken == nil || *bound.RefreshToken != "refresh-one" {
		t.Fatalf("expected refresh-one to be bound, got %v", bound.RefreshToken)
	}
	if _, err := repo.RotateRefreshToken(ctx, session.ID, nil, "refresh-dup", expiry); !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict for a second unconditional bind, got %v", err)
	}

	first := "refresh-one"
	if _, err := repo.RotateRefreshToken(ctx, session.ID, &first, "refresh-two", expiry); err != nil {
		t.Fatalf("rotation failed: %v", err)
	}
	if _, err := repo.RotateRefreshToken(ctx, session.ID, &first, "refresh-stale", expiry); !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict for a stale rotation, got %v", err)
	}

	if _, err := repo.GetSessionByRefreshToken(ctx, "refresh-one"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected the replaced token to stop resolving, got %v", err)
	}
	current, err := repo.GetSessionByRefreshToken(ctx, "refresh-two")
	if err != nil {
		t.Fatalf("expected the winning token to resolve: %v", err)
	}
	if current.ID != session.ID {
		t.Fatalf("expected session %s, got %s", session.ID, current.ID)
	}

	if _, err := repo.RotateRefreshToken(ctx, session.ID, nil, "", expiry); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for an empty token, got %v", err)
	}
}

func TestSessionRepository_CreateValidation(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewSessionRepository(pool)

	user := testfixtures.NewUserFixture().Persistence()
	seedUser(t, pool, user)

	missingCode := testfixtures.NewSessionFixture(
		testfixtures.WithSessionUserID(user.ID),
		testfixtures.WithSessionCode(""),
	).Persistence()
	if _, err := repo.CreateSession(ctx, missingCode); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for missing code, got %v", err)
	}

	badPurpose := testfixtures.NewSessionFixture(
		testfixtures.WithSessionUserID(user.ID),
		testfixtures.WithSessionPurpose("mfa"),
	).Persistence()
	if _, err := repo.CreateSession(ctx, badPurpose); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation for unknown purpose, got %v", err)
	}

	orphan := testfixtures.NewSessionFixture(
		testfixtures.WithSessionUserID("no-such-user"),
	).Persistence()
	if _, err := repo.CreateSession(ctx, orphan); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation for unknown user, got %v", err)
	}

	if _, err := repo.GetSessionByRefreshToken(ctx, "   "); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank token, got %v", err)
	}
}

func TestSessionRepository_DeleteSessionsForUser(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewSessionRepository(pool)

	user := testfixtures.NewUserFixture(testfixtures.WithUserID("logout-user")).Persistence()
	other := testfixtures.NewUserFixture(testfixtures.WithUserID("other-user")).Persistence()
	seedUser(t, pool, user)
	seedUser(t, pool, other)

	for _, id := range []string{"sess-a", "sess-b"} {
		fixture := testfixtures.NewSessionFixture(
			testfixtures.WithSessionID(id),
			testfixtures.WithSessionUserID(user.ID),
		).Persistence()
		if _, err := repo.CreateSession(ctx, fixture); err != nil {
			t.Fatalf("CreateSession %s failed: %v", id, err)
		}
	}
	foreign := testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("sess-c"),
		testfixtures.WithSessionUserID(other.ID),
	).Persistence()
	if _, err := repo.CreateSession(ctx, foreign); err != nil {
		t.Fatalf("CreateSession sess-c failed: %v", err)
	}

	// Empty user is a no-op, not an error.
	if err := repo.DeleteSessionsForUser(ctx, ""); err != nil {
		t.Fatalf("DeleteSessionsForUser with empty user failed: %v", err)
	}

	if err := repo.DeleteSessionsForUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteSessionsForUser failed: %v", err)
	}
	if _, err := repo.GetSession(ctx, "sess-a"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected sess-a to be gone, got %v", err)
	}
	if _, err := repo.GetSession(ctx, "sess-c"); err != nil {
		t.Fatalf("expected the other user's session to survive: %v", err)
	}
}

func TestSessionRepository_DeleteExpiredSessions(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	repo := NewSessionRepository(pool)

	user := testfixtures.NewUserFixture(testfixtures.WithUserID("cleanup-user")).Persistence()
	seedUser(t, pool, user)

	reference := testfixtures.ReferenceTime()

	stale := testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("sess-stale"),
		testfixtures.WithSessionUserID(user.ID),
		testfixtures.WithSessionExpiresAt(reference.Add(-time.Hour)),
	).Persistence()
	refreshed := testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("sess-refreshed"),
		testfixtures.WithSessionUserID(user.ID),
		testfixtures.WithSessionExpiresAt(reference.Add(-time.Hour)),
		testfixtures.WithSessionRefreshToken("live-refresh", 30*24*time.Hour),
	).Persistence()
	pending := testfixtures.NewSessionFixture(
		testfixtures.WithSessionID("sess-pending"),
		testfixtures.WithSessionUserID(user.ID),
		testfixtures.WithSessionExpiresAt(reference.Add(time.Hour)),
	).Persistence()

	for _, fixture := range []persistence.AuthSession{stale, refreshed, pending} {
		if _, err := repo.CreateSession(ctx, fixture); err != nil {
			t.Fatalf("CreateSession %s failed: %v", fixture.ID, err)
		}
	}

	if err := repo.DeleteExpiredSessions(ctx, reference); err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}

	if _, err := repo.GetSession(ctx, "sess-stale"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected the stale session to be pruned, got %v", err)
	}
	if _, err := repo.GetSession(ctx, "sess-refreshed"); err != nil {
		t.Fatalf("expected the session with a live refresh token to survive: %v", err)
	}
	if _, err := repo.GetSession(ctx, "sess-pending"); err != nil {
		t.Fatalf("expected the unexpired session to survive: %v", err)
	}
}
