package units

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the unit does not exist in the caller's society.
var ErrNotFound = errors.New("units: not found")

// Repository defines data access for units.
type Repository interface {
	List(ctx context.Context, societyID int64, filters ListFilters) ([]Unit, int, error)
	ListActive(ctx context.Context, societyID int64) ([]Unit, error)
	Get(ctx context.Context, societyID, id int64) (Unit, error)
	Create(ctx context.Context, unit Unit) (Unit, error)
	Update(ctx context.Context, societyID, id int64, unit Unit) error
	Deactivate(ctx context.Context, societyID, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const unitColumns = `id, society_id, number, area_sqft, occupancy_status, owner_id, occupant_id, active, created_at, updated_at`

func (r *repository) List(ctx context.Context, societyID int64, filters ListFilters) ([]Unit, int, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE society_id = $1`
	countQuery := `SELECT COUNT(*) FROM units WHERE society_id = $1`
	args := []any{societyID}
	countArgs := []any{societyID}
	argCount := 1

	if filters.Search != "" {
		argCount++
		query += ` AND number ILIKE $` + strconv.Itoa(argCount)
		countQuery += ` AND number ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filters.Search+"%")
		countArgs = append(countArgs, "%"+filters.Search+"%")
	}
	if filters.Occupancy != "" {
		argCount++
		query += ` AND occupancy_status = $` + strconv.Itoa(argCount)
		countQuery += ` AND occupancy_status = $` + strconv.Itoa(argCount)
		args = append(args, string(filters.Occupancy))
		countArgs = append(countArgs, string(filters.Occupancy))
	}
	if filters.Active != nil {
		argCount++
		query += ` AND active = $` + strconv.Itoa(argCount)
		countQuery += ` AND active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.Active)
		countArgs = append(countArgs, *filters.Active)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY number`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	units, err := scanUnits(rows)
	if err != nil {
		return nil, 0, err
	}
	return units, total, nil
}

func (r *repository) ListActive(ctx context.Context, societyID int64) ([]Unit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+unitColumns+` FROM units WHERE society_id = $1 AND active`, societyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUnits(rows)
}

func (r *repository) Get(ctx context.Context, societyID, id int64) (Unit, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+unitColumns+` FROM units WHERE society_id = $1 AND id = $2`, societyID, id)
	u, err := scanUnit(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, ErrNotFound
	}
	return u, err
}

func (r *repository) Create(ctx context.Context, unit Unit) (Unit, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO units (society_id, number, area_sqft, occupancy_status, owner_id, occupant_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id`,
		unit.SocietyID, unit.Number, unit.AreaSqft, string(unit.Occupancy),
		int8OrNull(unit.OwnerID), int8OrNull(unit.OccupantID), unit.Active, now,
	).Scan(&unit.ID)
	if err != nil {
		return Unit{}, err
	}
	unit.CreatedAt = now
	unit.UpdatedAt = now
	return unit, nil
}

func (r *repository) Update(ctx context.Context, societyID, id int64, unit Unit) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE units
		SET number = $3, area_sqft = $4, occupancy_status = $5, owner_id = $6, occupant_id = $7, active = $8, updated_at = $9
		WHERE society_id = $1 AND id = $2`,
		societyID, id, unit.Number, unit.AreaSqft, string(unit.Occupancy),
		int8OrNull(unit.OwnerID), int8OrNull(unit.OccupantID), unit.Active, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, societyID, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE units SET active = FALSE, updated_at = $3 WHERE society_id = $1 AND id = $2`,
		societyID, id, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUnits(rows pgx.Rows) ([]Unit, error) {
	var units []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func scanUnit(row pgx.Row) (Unit, error) {
	var u Unit
	var owner, occupant pgtype.Int8
	var status string
	if err := row.Scan(&u.ID, &u.SocietyID, &u.Number, &u.AreaSqft, &status,
		&owner, &occupant, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return Unit{}, err
	}
	u.Occupancy = OccupancyStatus(status)
	if owner.Valid {
		u.OwnerID = &owner.Int64
	}
	if occupant.Valid {
		u.OccupantID = &occupant.Int64
	}
	return u, nil
}

func int8OrNull(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}
