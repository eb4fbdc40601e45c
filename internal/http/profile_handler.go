package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/application"
)

type userService interface {
	Register(ctx context.Context, params application.RegisterUserParams) (application.User, error)
	GetProfile(ctx context.Context, principal application.Principal) (application.User, error)
	UpdateProfile(ctx context.Context, principal application.Principal, input application.UserProfileInput) (application.User, error)
	Deactivate(ctx context.Context, principal application.Principal) error
}

// ProfileHandler serves registration and profile endpoints.
type ProfileHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

// NewProfileHandler wires the profile endpoints.
func NewProfileHandler(service userService, logger *slog.Logger) *ProfileHandler {
	base := defaultLogger(logger)
	return &ProfileHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ProfileHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ProfileHandler", operation, attrs...)
}

type registerRequest struct {
	NationalID string `json:"national_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Plan       string `json:"plan,omitempty"`
	Password   string `json:"password"`
}

type profileRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
	Plan  string `json:"plan,omitempty"`
}

type userDTO struct {
	ID         string `json:"id"`
	NationalID string `json:"national_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Plan       string `json:"plan,omitempty"`
	Active     bool   `json:"active"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func userPayload(user application.User) userDTO {
	return userDTO{
		ID:         user.ID,
		NationalID: user.NationalID,
		Name:       user.Name,
		Phone:      user.Phone,
		Email:      user.Email,
		Plan:       user.Plan,
		Active:     user.Active,
		CreatedAt:  user.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:  user.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Register opens a new account.
func (h *ProfileHandler) Register(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Register")

	user, err := h.service.Register(r.Context(), application.RegisterUserParams{
		NationalID: req.NationalID,
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Plan:       req.Plan,
		Password:   req.Password,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "registration rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", user.ID).InfoContext(r.Context(), "account registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userPayload(user))
}

// Get returns the authenticated user's profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_TOKEN", Message: errMissingAccessToken.Error()})
		return
	}

	user, err := h.service.GetProfile(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Get", "user_id", principal.UserID).ErrorContext(r.Context(), "profile lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, userPayload(user))
}

// Update applies mutable profile fields.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_TOKEN", Message: errMissingAccessToken.Error()})
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "user_id", principal.UserID)

	user, err := h.service.UpdateProfile(r.Context(), principal, application.UserProfileInput{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
		Plan:  req.Plan,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "profile update rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "profile updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userPayload(user))
}

// Delete deactivates the authenticated user's account.
func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_TOKEN", Message: errMissingAccessToken.Error()})
		return
	}

	logger := h.log(r.Context(), "Delete", "user_id", principal.UserID)

	if err := h.service.Deactivate(r.Context(), principal); err != nil {
		logger.ErrorContext(r.Context(), "deactivation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "account deactivated")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
