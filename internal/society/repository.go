package society

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the society does not exist or is inactive.
var ErrNotFound = errors.New("society: not found")

// Repository defines data access for the society registry.
type Repository interface {
	GetActive(ctx context.Context, id int64) (Society, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetActive(ctx context.Context, id int64) (Society, error) {
	var s Society
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, code, api_token_hash, active, created_at, updated_at
		FROM societies WHERE id = $1 AND active`, id,
	).Scan(&s.ID, &s.Name, &s.Code, &s.APITokenHash, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Society{}, ErrNotFound
	}
	if err != nil {
		return Society{}, err
	}
	return s, nil
}
