package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/application"
)

func TestRequireToken(t *testing.T) {
	t.Parallel()

	logger := discardLogger()

	t.Run("missing header is rejected before the validator runs", func(t *testing.T) {
		t.Parallel()
		called := false
		handler := RequireToken(stubAccessValidator{principal: testPrincipal()}, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/profile", nil))

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		if called {
			t.Fatal("next handler should not run without a token")
		}
	})

	t.Run("invalid token maps to 401", func(t *testing.T) {
		t.Parallel()
		handler := RequireToken(stubAccessValidator{err: application.ErrInvalidOrExpiredToken}, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler should not run with an invalid token")
		}))

		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		req.Header.Set("Authorization", "Bearer expired")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", recorder.Code)
		}
		if payload := decodeError(t, recorder); payload.ErrorCode != "AUTH_INVALID_TOKEN" {
			t.Fatalf("unexpected error code %q", payload.ErrorCode)
		}
	})

	t.Run("valid token attaches the principal", func(t *testing.T) {
		t.Parallel()
		var seen application.Principal
		handler := RequireToken(stubAccessValidator{principal: testPrincipal()}, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen, _ = PrincipalFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/profile", nil)
		req.Header.Set("Authorization", "Bearer valid")
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if seen != testPrincipal() {
			t.Fatalf("expected principal %+v, got %+v", testPrincipal(), seen)
		}
	})
}

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		header string
		want   string
	}{
		{name: "well formed", header: "Bearer abc123", want: "abc123"},
		{name: "padded", header: "  Bearer   abc123  ", want: "abc123"},
		{name: "missing", header: "", want: ""},
		{name: "wrong scheme", header: "Basic abc123", want: ""},
		{name: "scheme only", header: "Bearer ", want: ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if got := extractBearerToken(req); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("attaches a per-request logger", func(t *testing.T) {
		t.Parallel()
		var hadLogger bool
		handler := RequestLogger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hadLogger = LoggerFromContext(r.Context()) != nil
		}))

		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/units", nil))

		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		if !hadLogger {
			t.Fatal("expected a logger on the request context")
		}
	})
}
