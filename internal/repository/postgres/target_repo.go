package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ben458-1/URL-Server-Monitor/internal/domain/target"
)

var _ target.Repo = (*TargetRepo)(nil)

// TargetRepo is the scheduler's read-only view over the targets table. The
// admin CRUD layer owns writes to it.
type TargetRepo struct {
	db *DB
}

func NewTargetRepo(db *DB) *TargetRepo { return &TargetRepo{db: db} }

const (
	qListEnabled = `
SELECT id, name, url, check_interval_sec, enabled, created_at, updated_at
FROM targets
WHERE enabled
ORDER BY id;
`

	qTargetByID = `
SELECT id, name, url, check_interval_sec, enabled, created_at, updated_at
FROM targets
WHERE id = $1;
`
)

func scanTarget(row pgx.Row, t *target.Target) error {
	var intervalSec int
	if err := row.Scan(
		&t.ID,
		&t.Name,
		&t.URL,
		&intervalSec,
		&t.Enabled,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan target: %w", err)
	}
	t.Interval = time.Duration(intervalSec) * time.Second
	return nil
}

func (r *TargetRepo) ListEnabled(ctx context.Context) ([]*target.Target, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qListEnabled)
	if err != nil {
		return nil, fmt.Errorf("query enabled targets: %w", err)
	}
	defer rows.Close()

	var out []*target.Target
	for rows.Next() {
		var t target.Target
		if err := scanTarget(rows, &t); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *TargetRepo) GetByID(ctx context.Context, id int64) (*target.Target, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t target.Target
	if err := scanTarget(r.db.Pool.QueryRow(ctx, qTargetByID, id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}
