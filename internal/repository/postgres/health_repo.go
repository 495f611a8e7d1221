package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ben458-1/URL-Server-Monitor/internal/domain/health"
)

var _ health.Store = (*HealthRepo)(nil)

// HealthRepo is the durable result log. Appends are pure inserts, so
// concurrent writers from completing probes need no coordination beyond the
// pool. Retention sweeps happen outside this repo; reads never assume
// gap-free history.
type HealthRepo struct {
	db *DB
}

func NewHealthRepo(db *DB) *HealthRepo { return &HealthRepo{db: db} }

const (
	qCheckInsert = `
INSERT INTO health_checks (target_id, checked_at, status, response_time_ms, status_code, error_message)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id;
`

	qChecksRecent = `
SELECT id, target_id, checked_at, status, response_time_ms, status_code, error_message
FROM health_checks
WHERE target_id = $1 AND checked_at >= $2
ORDER BY checked_at DESC;
`

	qCheckLatest = `
SELECT id, target_id, checked_at, status, response_time_ms, status_code, error_message
FROM health_checks
WHERE target_id = $1
ORDER BY checked_at DESC
LIMIT 1;
`

	qChecksLatestAll = `
SELECT DISTINCT ON (target_id)
       id, target_id, checked_at, status, response_time_ms, status_code, error_message
FROM health_checks
ORDER BY target_id, checked_at DESC;
`

	qCheckCounts = `
SELECT status, COUNT(*)
FROM (
    SELECT DISTINCT ON (target_id) status
    FROM health_checks
    ORDER BY target_id, checked_at DESC
) latest
GROUP BY status;
`
)

func scanCheck(row pgx.Row, c *health.Check) error {
	var (
		errMsg *string
		status string
	)
	if err := row.Scan(
		&c.ID,
		&c.TargetID,
		&c.CheckedAt,
		&status,
		&c.ResponseTime,
		&c.StatusCode,
		&errMsg,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return health.ErrNoResults
		}
		return fmt.Errorf("scan check: %w", err)
	}
	c.Status = health.Status(status)
	if errMsg != nil {
		c.ErrorMessage = *errMsg
	}
	return nil
}

func (r *HealthRepo) Append(ctx context.Context, c *health.Check) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var errMsg *string
	if c.ErrorMessage != "" {
		errMsg = &c.ErrorMessage
	}
	return r.db.Pool.QueryRow(ctx, qCheckInsert,
		c.TargetID, c.CheckedAt, string(c.Status), c.ResponseTime, c.StatusCode, errMsg,
	).Scan(&c.ID)
}

func (r *HealthRepo) Recent(ctx context.Context, targetID int64, lookback time.Duration) ([]*health.Check, error) {
	cutoff := time.Now().UTC().Add(-lookback)

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qChecksRecent, targetID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query recent checks: %w", err)
	}
	defer rows.Close()

	out := make([]*health.Check, 0, 64)
	for rows.Next() {
		var c health.Check
		if err := scanCheck(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *HealthRepo) Latest(ctx context.Context, targetID int64) (*health.Check, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c health.Check
	if err := scanCheck(r.db.Pool.QueryRow(ctx, qCheckLatest, targetID), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *HealthRepo) LatestAll(ctx context.Context) ([]*health.Check, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qChecksLatestAll)
	if err != nil {
		return nil, fmt.Errorf("query latest checks: %w", err)
	}
	defer rows.Close()

	var out []*health.Check
	for rows.Next() {
		var c health.Check
		if err := scanCheck(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *HealthRepo) Counts(ctx context.Context) (online, offline int, err error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qCheckCounts)
	if err != nil {
		return 0, 0, fmt.Errorf("query status counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return 0, 0, fmt.Errorf("scan count: %w", err)
		}
		if health.Status(status) == health.StatusOnline {
			online = n
		} else {
			offline += n
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("rows: %w", err)
	}
	return online, offline, nil
}
