package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/application"
)

type catalogService interface {
	ListUnits(ctx context.Context) ([]application.Unit, error)
	ListSpecialties(ctx context.Context) ([]application.Specialty, error)
	ListDoctors(ctx context.Context) ([]application.Doctor, error)
}

// CatalogHandler serves the read-only booking catalog.
type CatalogHandler struct {
	service   catalogService
	responder responder
	logger    *slog.Logger
}

// NewCatalogHandler wires the catalog endpoints.
func NewCatalogHandler(service catalogService, logger *slog.Logger) *CatalogHandler {
	base := defaultLogger(logger)
	return &CatalogHandler{service: service, responder: newResponder(base), logger: base}
}

type unitDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type specialtyDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type doctorDTO struct {
	ID          string `json:"id"`
	UnitID      string `json:"unit_id"`
	SpecialtyID string `json:"specialty_id"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
}

// Units lists every clinical unit.
func (h *CatalogHandler) Units(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	units, err := h.service.ListUnits(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]unitDTO, 0, len(units))
	for _, unit := range units {
		payload = append(payload, unitDTO{ID: unit.ID, Name: unit.Name, Address: unit.Address})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

// Specialties lists every specialty.
func (h *CatalogHandler) Specialties(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	specialties, err := h.service.ListSpecialties(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]specialtyDTO, 0, len(specialties))
	for _, specialty := range specialties {
		payload = append(payload, specialtyDTO{ID: specialty.ID, Name: specialty.Name})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}

// Doctors lists every doctor.
func (h *CatalogHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	doctors, err := h.service.ListDoctors(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	payload := make([]doctorDTO, 0, len(doctors))
	for _, doctor := range doctors {
		payload = append(payload, doctorDTO{
			ID:          doctor.ID,
			UnitID:      doctor.UnitID,
			SpecialtyID: doctor.SpecialtyID,
			Name:        doctor.Name,
			Active:      doctor.Active,
		})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, payload)
}
