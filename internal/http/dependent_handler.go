package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/application"
)

type dependentService interface {
	Add(ctx context.Context, principal application.Principal, input application.DependentInput) (application.Dependent, error)
	List(ctx context.Context, principal application.Principal) ([]application.Dependent, error)
	Update(ctx context.Context, principal application.Principal, id string, input application.DependentInput) (application.Dependent, error)
	Remove(ctx context.Context, principal application.Principal, id string) error
}

// DependentHandler serves the dependent management endpoints.
type DependentHandler struct {
	service   dependentService
	responder responder
	logger    *slog.Logger
}

// NewDependentHandler wires the dependent endpoints.
func NewDependentHandler(service dependentService, logger *slog.Logger) *DependentHandler {
	base := defaultLogger(logger)
	return &DependentHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *DependentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "DependentHandler", operation, attrs...)
}

type dependentRequest struct {
	NationalID   string `json:"national_id"`
	Relationship string `json:"relationship"`
	CardNumber   string `json:"card_number,omitempty"`
}

type dependentDTO struct {
	ID           string `json:"id"`
	NationalID   string `json:"national_id"`
	Relationship string `json:"relationship"`
	CardNumber   string `json:"card_number,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func dependentPayload(dependent application.Dependent) dependentDTO {
	return dependentDTO{
		ID:           dependent.ID,
		NationalID:   dependent.NationalID,
		Relationship: dependent.Relationship,
		CardNumber:   dependent.CardNumber,
		CreatedAt:    dependent.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    dependent.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Create registers a dependent under the authenticated user.
func (h *DependentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_TOKEN", Message: errMissingAccessToken.Error()})
		return
	}

	var req dependentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "user_id", principal.UserID)

	dependent, err := h.service.Add(r.Context(), principal, application.DependentInput{
		NationalID:   req.NationalID,
		Relationship: req.Relationship,
		CardNumber:   req.CardNumber,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "dependent creation rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("dependent_id", dependent.ID).InfoContext(r.Context(), "dependent added")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, dependentPayload(dependent))
}

// List returns the authenticated user's dependents.
func (h *DependentHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_TOKEN", Message: errMissingAccessToken.Error()})
		return
	}

	dependents, err := h.service.List(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "List", "user_id", principal.UserID).ErrorContext(r.Context(), "listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]dependentDTO, 0, len(dependents))
	for _, dependent := range dependents {
		payload = append(payload, dependentPayload(dependent))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

// Update applies mutable fields to a dependent.
func (h *DependentHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_TOKEN", Message: errMissingAccessToken.Error()})
		return
	}

	dependentID, ok := DependentIDFromContext(r.Context())
	if !ok || dependentID == "" {
		http.NotFound(w, r)
		return
	}

	var req dependentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "user_id", principal.UserID, "dependent_id", dependentID)

	dependent, err := h.service.Update(r.Context(), principal, dependentID, application.DependentInput{
		NationalID:   req.NationalID,
		Relationship: req.Relationship,
		CardNumber:   req.CardNumber,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "dependent update rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "dependent updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dependentPayload(dependent))
}

// Delete removes a dependent.
func (h *DependentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_INVALID_TOKEN", Message: errMissingAccessToken.Error()})
		return
	}

	dependentID, ok := DependentIDFromContext(r.Context())
	if !ok || dependentID == "" {
		http.NotFound(w, r)
		return
	}

	logger := h.log(r.Context(), "Delete", "user_id", principal.UserID, "dependent_id", dependentID)

	if err := h.service.Remove(r.Context(), principal, dependentID); err != nil {
		logger.ErrorContext(r.Context(), "dependent removal rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "dependent removed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
