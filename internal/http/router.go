package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
)

// RouterConfig collects the handlers and middleware the router dispatches to.
type RouterConfig struct {
	Auth         *AuthHandler
	Profile      *ProfileHandler
	Dependents   *DependentHandler
	Appointments *AppointmentHandler
	Catalog      *CatalogHandler

	// Authenticate wraps every protected route. When nil those routes are
	// served without a principal and handlers reject the request themselves.
	Authenticate func(http.Handler) http.Handler

	// Middleware wraps the whole router, outermost first.
	Middleware []func(http.Handler) http.Handler

	Logger *slog.Logger
}

// NewRouter builds the portal's HTTP routing table.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protect := func(handler http.Handler) http.Handler {
		if cfg.Authenticate == nil {
			return handler
		}
		return cfg.Authenticate(handler)
	}

	if cfg.Auth != nil {
		mux.Handle("/auth/login", byMethod(map[string]http.Handler{
			http.MethodPost: http.HandlerFunc(cfg.Auth.Login),
		}))
		mux.Handle("/auth/verify", byMethod(map[string]http.Handler{
			http.MethodPost: http.HandlerFunc(cfg.Auth.Verify),
		}))
		mux.Handle("/auth/resend", byMethod(map[string]http.Handler{
			http.MethodPost: http.HandlerFunc(cfg.Auth.Resend),
		}))
		mux.Handle("/auth/refresh", byMethod(map[string]http.Handler{
			http.MethodPost: http.HandlerFunc(cfg.Auth.Refresh),
		}))
		mux.Handle("/auth/logout", byMethod(map[string]http.Handler{
			http.MethodPost: http.HandlerFunc(cfg.Auth.Logout),
		}))
		mux.Handle("/auth/password-reset", byMethod(map[string]http.Handler{
			http.MethodPost: http.HandlerFunc(cfg.Auth.PasswordReset),
		}))
		mux.Handle("/auth/password-reset/complete", byMethod(map[string]http.Handler{
			http.MethodPost: http.HandlerFunc(cfg.Auth.PasswordResetComplete),
		}))
		mux.Handle("/auth/password", byMethod(map[string]http.Handler{
			http.MethodPost: protect(http.HandlerFunc(cfg.Auth.ChangePassword)),
		}))
	}

	if cfg.Profile != nil {
		mux.Handle("/register", byMethod(map[string]http.Handler{
			http.MethodPost: http.HandlerFunc(cfg.Profile.Register),
		}))
		mux.Handle("/profile", byMethod(map[string]http.Handler{
			http.MethodGet:    protect(http.HandlerFunc(cfg.Profile.Get)),
			http.MethodPut:    protect(http.HandlerFunc(cfg.Profile.Update)),
			http.MethodDelete: protect(http.HandlerFunc(cfg.Profile.Delete)),
		}))
	}

	if cfg.Dependents != nil {
		mux.Handle("/dependents", byMethod(map[string]http.Handler{
			http.MethodGet:  protect(http.HandlerFunc(cfg.Dependents.List)),
			http.MethodPost: protect(http.HandlerFunc(cfg.Dependents.Create)),
		}))
		mux.Handle("/dependents/", withPathID("/dependents/", ContextWithDependentID, byMethod(map[string]http.Handler{
			http.MethodPut:    protect(http.HandlerFunc(cfg.Dependents.Update)),
			http.MethodDelete: protect(http.HandlerFunc(cfg.Dependents.Delete)),
		})))
	}

	if cfg.Appointments != nil {
		mux.Handle("/appointments", byMethod(map[string]http.Handler{
			http.MethodGet:  protect(http.HandlerFunc(cfg.Appointments.List)),
			http.MethodPost: protect(http.HandlerFunc(cfg.Appointments.Create)),
		}))
		mux.Handle("/appointments/", withPathID("/appointments/", ContextWithAppointmentID, byMethod(map[string]http.Handler{
			http.MethodPut:    protect(http.HandlerFunc(cfg.Appointments.Update)),
			http.MethodDelete: protect(http.HandlerFunc(cfg.Appointments.Delete)),
		})))
	}

	if cfg.Catalog != nil {
		mux.Handle("/units", byMethod(map[string]http.Handler{
			http.MethodGet: protect(http.HandlerFunc(cfg.Catalog.Units)),
		}))
		mux.Handle("/specialties", byMethod(map[string]http.Handler{
			http.MethodGet: protect(http.HandlerFunc(cfg.Catalog.Specialties)),
		}))
		mux.Handle("/doctors", byMethod(map[string]http.Handler{
			http.MethodGet: protect(http.HandlerFunc(cfg.Catalog.Doctors)),
		}))
	}

	if cfg.Appointments != nil {
		mux.Handle("/doctors/", availabilityRoute(protect(http.HandlerFunc(cfg.Appointments.Availability))))
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}

// byMethod dispatches by HTTP method and answers 405 with an Allow header
// for anything else.
func byMethod(handlers map[string]http.Handler) http.Handler {
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := handlers[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

// withPathID strips the route prefix, rejects nested paths, and stores the
// remaining segment on the context for the handler.
func withPathID(prefix string, attach func(ctx context.Context, id string) context.Context, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, prefix)
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(attach(r.Context(), id)))
	})
}

// availabilityRoute matches GET /doctors/{id}/availability.
func availabilityRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/doctors/")
		doctorID, tail, found := strings.Cut(rest, "/")
		if !found || doctorID == "" || tail != "availability" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithDoctorID(r.Context(), doctorID)))
	})
}
