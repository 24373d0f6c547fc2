package units

import (
	"fmt"
	"strings"

	"github.com/aravali-saas/aravali/internal/platform/httpx"
)

func (s *Service) validate(u Unit) error {
	if strings.TrimSpace(u.Number) == "" {
		return fmt.Errorf("%w: unit number is required", httpx.ErrValidation)
	}
	if u.AreaSqft <= 0 {
		return fmt.Errorf("%w: unit area must be positive", httpx.ErrValidation)
	}
	switch u.Occupancy {
	case OccupancyVacant, OccupancyOwnerOccupied, OccupancyRented:
	default:
		return fmt.Errorf("%w: unknown occupancy status %q", httpx.ErrValidation, u.Occupancy)
	}
	return nil
}
