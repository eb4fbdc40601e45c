package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
)

func TestLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		value string
		want  slog.Level
	}{
		{value: "debug", want: slog.LevelDebug},
		{value: "info", want: slog.LevelInfo},
		{value: "warn", want: slog.LevelWarn},
		{value: "error", want: slog.LevelError},
		{value: "", want: slog.LevelInfo},
		{value: "nonsense", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		if got := logLevel(tc.value); got != tc.want {
			t.Errorf("logLevel(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestRandomHex(t *testing.T) {
	t.Parallel()

	first := randomHex(32)
	second := randomHex(32)
	if len(first) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(first))
	}
	if first == second {
		t.Fatal("expected successive tokens to differ")
	}
	if got := randomHex(0); len(got) != 32 {
		t.Fatalf("expected the zero size to fall back to 16 bytes, got %d characters", len(got))
	}
}

func TestSessionConversionRoundTrip(t *testing.T) {
	t.Parallel()

	token := "refresh-token"
	expiry := time.Date(2026, time.October, 1, 12, 0, 0, 0, time.UTC)
	model := persistence.AuthSession{
		ID:               "session-1",
		UserID:           "user-1",
		Purpose:          persistence.PurposeLogin,
		Channel:          "sms",
		ExpiresAt:        time.Date(2026, time.September, 1, 12, 5, 0, 0, time.UTC),
		Verified:         true,
		ResendCount:      2,
		RefreshToken:     &token,
		RefreshExpiresAt: &expiry,
	}

	roundTripped := toPersistenceSession(toApplicationSession(model))

	if roundTripped.ID != model.ID || roundTripped.UserID != model.UserID || roundTripped.Purpose != model.Purpose {
		t.Fatalf("identity fields lost in conversion: %+v", roundTripped)
	}
	if roundTripped.RefreshToken == nil || *roundTripped.RefreshToken != token {
		t.Fatalf("refresh token lost in conversion: %v", roundTripped.RefreshToken)
	}
	if roundTripped.RefreshToken == model.RefreshToken {
		t.Fatal("expected the refresh token pointer to be cloned, not shared")
	}
	if roundTripped.RefreshExpiresAt == nil || !roundTripped.RefreshExpiresAt.Equal(expiry) {
		t.Fatalf("refresh expiry lost in conversion: %v", roundTripped.RefreshExpiresAt)
	}
}

func TestAppointmentConversionKeepsDependent(t *testing.T) {
	t.Parallel()

	dependentID := "dependent-1"
	model := persistence.Appointment{
		ID:          "appointment-1",
		UserID:      "user-1",
		DependentID: &dependentID,
		DoctorID:    "doctor-1",
		Status:      persistence.StatusScheduled,
	}

	converted := toApplicationAppointment(model)
	if converted.DependentID == nil || *converted.DependentID != dependentID {
		t.Fatalf("dependent id lost in conversion: %v", converted.DependentID)
	}
	if converted.DependentID == model.DependentID {
		t.Fatal("expected the dependent pointer to be cloned, not shared")
	}
}
