package units

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aravali-saas/aravali/internal/platform/httpx"
)

type memoryUnitRepo struct {
	units  map[int64]*Unit
	nextID int64
}

func newMemoryUnitRepo() *memoryUnitRepo {
	return &memoryUnitRepo{units: map[int64]*Unit{}}
}

func (m *memoryUnitRepo) List(ctx context.Context, societyID int64, filters ListFilters) ([]Unit, int, error) {
	var out []Unit
	for _, u := range m.units {
		if u.SocietyID != societyID {
			continue
		}
		if filters.Occupancy != "" && u.Occupancy != filters.Occupancy {
			continue
		}
		if filters.Active != nil && u.Active != *filters.Active {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *memoryUnitRepo) ListActive(ctx context.Context, societyID int64) ([]Unit, error) {
	var out []Unit
	for _, u := range m.units {
		if u.SocietyID == societyID && u.Active {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memoryUnitRepo) Get(ctx context.Context, societyID, id int64) (Unit, error) {
	u, ok := m.units[id]
	if !ok || u.SocietyID != societyID {
		return Unit{}, ErrNotFound
	}
	return *u, nil
}

func (m *memoryUnitRepo) Create(ctx context.Context, unit Unit) (Unit, error) {
	m.nextID++
	unit.ID = m.nextID
	stored := unit
	m.units[unit.ID] = &stored
	return unit, nil
}

func (m *memoryUnitRepo) Update(ctx context.Context, societyID, id int64, unit Unit) error {
	u, ok := m.units[id]
	if !ok || u.SocietyID != societyID {
		return ErrNotFound
	}
	unit.ID = id
	unit.SocietyID = societyID
	unit.Active = u.Active
	*u = unit
	return nil
}

func (m *memoryUnitRepo) Deactivate(ctx context.Context, societyID, id int64) error {
	u, ok := m.units[id]
	if !ok || u.SocietyID != societyID {
		return ErrNotFound
	}
	u.Active = false
	return nil
}

func TestCreateUnitValidates(t *testing.T) {
	svc := NewService(newMemoryUnitRepo())

	_, err := svc.Create(context.Background(), Unit{SocietyID: 1, Number: " ", AreaSqft: 500, Occupancy: OccupancyVacant})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), Unit{SocietyID: 1, Number: "A-101", AreaSqft: 0, Occupancy: OccupancyVacant})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), Unit{SocietyID: 1, Number: "A-101", AreaSqft: 500, Occupancy: "squatting"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	unit, err := svc.Create(context.Background(), Unit{SocietyID: 1, Number: "A-101", AreaSqft: 500, Occupancy: OccupancyOwnerOccupied})
	require.NoError(t, err)
	require.NotZero(t, unit.ID)
	require.True(t, unit.Active, "new units start active")
}

func TestDeactivateRemovesUnitFromBillingSource(t *testing.T) {
	repo := newMemoryUnitRepo()
	svc := NewService(repo)

	unit, err := svc.Create(context.Background(), Unit{SocietyID: 1, Number: "A-101", AreaSqft: 500, Occupancy: OccupancyRented})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), 1, unit.ID))

	active, err := svc.ListActive(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, active)

	// Still retrievable for history.
	got, err := svc.Get(context.Background(), 1, unit.ID)
	require.NoError(t, err)
	require.False(t, got.Active)
}

func TestUnitsAreScopedBySociety(t *testing.T) {
	repo := newMemoryUnitRepo()
	svc := NewService(repo)

	unit, err := svc.Create(context.Background(), Unit{SocietyID: 1, Number: "A-101", AreaSqft: 500, Occupancy: OccupancyVacant})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 2, unit.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, svc.Deactivate(context.Background(), 2, unit.ID), ErrNotFound)
}

func TestUpdateUnit(t *testing.T) {
	repo := newMemoryUnitRepo()
	svc := NewService(repo)

	unit, err := svc.Create(context.Background(), Unit{SocietyID: 1, Number: "A-101", AreaSqft: 500, Occupancy: OccupancyVacant})
	require.NoError(t, err)

	err = svc.Update(context.Background(), 1, unit.ID, Unit{Number: "A-101", AreaSqft: 650, Occupancy: OccupancyRented})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), 1, unit.ID)
	require.NoError(t, err)
	require.Equal(t, 650.0, got.AreaSqft)
	require.Equal(t, OccupancyRented, got.Occupancy)
}
