package units

import (
	"context"
	"fmt"

	"github.com/aravali-saas/aravali/internal/platform/httpx"
)

// Service handles unit master-data logic.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, societyID int64, filters ListFilters) ([]Unit, int, error) {
	return s.repo.List(ctx, societyID, filters)
}

// ListActive returns the billable units of a society. The bill generator
// consumes this as its unit source.
func (s *Service) ListActive(ctx context.Context, societyID int64) ([]Unit, error) {
	return s.repo.ListActive(ctx, societyID)
}

func (s *Service) Get(ctx context.Context, societyID, id int64) (Unit, error) {
	if id <= 0 {
		return Unit{}, fmt.Errorf("%w: invalid unit id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, societyID, id)
}

func (s *Service) Create(ctx context.Context, unit Unit) (Unit, error) {
	if err := s.validate(unit); err != nil {
		return Unit{}, err
	}
	unit.Active = true
	return s.repo.Create(ctx, unit)
}

func (s *Service) Update(ctx context.Context, societyID, id int64, unit Unit) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid unit id", httpx.ErrValidation)
	}
	if err := s.validate(unit); err != nil {
		return err
	}
	return s.repo.Update(ctx, societyID, id, unit)
}

// Deactivate retires a unit from billing. Units are never hard-deleted since
// historical bills reference them.
func (s *Service) Deactivate(ctx context.Context, societyID, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid unit id", httpx.ErrValidation)
	}
	return s.repo.Deactivate(ctx, societyID, id)
}
