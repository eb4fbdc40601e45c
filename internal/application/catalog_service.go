package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
)

// CatalogStore exposes the read-only unit/specialty/doctor catalog.
type CatalogStore interface {
	ListUnits(ctx context.Context) ([]Unit, error)
	ListSpecialties(ctx context.Context) ([]Specialty, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	GetDoctor(ctx context.Context, id string) (Doctor, error)
}

// CatalogService serves the booking catalog.
type CatalogService struct {
	catalog CatalogStore
	logger  *slog.Logger
}

// NewCatalogService wires dependencies for catalog reads.
func NewCatalogService(catalog CatalogStore) *CatalogService {
	return NewCatalogServiceWithLogger(catalog, nil)
}

// NewCatalogServiceWithLogger constructs a CatalogService with a specified logger.
func NewCatalogServiceWithLogger(catalog CatalogStore, logger *slog.Logger) *CatalogService {
	return &CatalogService{catalog: catalog, logger: defaultLogger(logger)}
}

// ListUnits returns every clinical unit.
func (s *CatalogService) ListUnits(ctx context.Context) ([]Unit, error) {
	if s == nil || s.catalog == nil {
		return nil, fmt.Errorf("catalog store not configured")
	}
	units, err := s.catalog.ListUnits(ctx)
	if err != nil {
		return nil, mapCatalogStoreError(err)
	}
	return units, nil
}

// ListSpecialties returns every specialty.
func (s *CatalogService) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	if s == nil || s.catalog == nil {
		return nil, fmt.Errorf("catalog store not configured")
	}
	specialties, err := s.catalog.ListSpecialties(ctx)
	if err != nil {
		return nil, mapCatalogStoreError(err)
	}
	return specialties, nil
}

// ListDoctors returns every doctor, active or not.
func (s *CatalogService) ListDoctors(ctx context.Context) ([]Doctor, error) {
	if s == nil || s.catalog == nil {
		return nil, fmt.Errorf("catalog store not configured")
	}
	doctors, err := s.catalog.ListDoctors(ctx)
	if err != nil {
		return nil, mapCatalogStoreError(err)
	}
	return doctors, nil
}

// GetDoctor returns one doctor by id.
func (s *CatalogService) GetDoctor(ctx context.Context, id string) (Doctor, error) {
	if s == nil || s.catalog == nil {
		return Doctor{}, fmt.Errorf("catalog store not configured")
	}
	doctor, err := s.catalog.GetDoctor(ctx, id)
	if err != nil {
		return Doctor{}, mapCatalogStoreError(err)
	}
	return doctor, nil
}

func mapCatalogStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrUnavailable) {
		return ErrUnavailable
	}
	return err
}
