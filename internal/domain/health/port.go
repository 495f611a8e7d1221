package health

import (
	"context"
	"errors"
	"time"
)

var ErrNoResults = errors.New("no results")

// Store is the append-only result log. Appends arrive concurrently from
// completing probes; reads must tolerate gaps left by the retention sweep.
type Store interface {
	Append(ctx context.Context, c *Check) error

	// Recent returns checks with checked_at >= now-lookback, newest first.
	// Empty slice, not an error, when nothing falls in the window.
	Recent(ctx context.Context, targetID int64, lookback time.Duration) ([]*Check, error)

	// Latest returns the newest check for the target, or ErrNoResults.
	Latest(ctx context.Context, targetID int64) (*Check, error)

	// LatestAll returns the newest check per target.
	LatestAll(ctx context.Context) ([]*Check, error)

	// Counts tallies online/offline over the latest check of every target.
	Counts(ctx context.Context) (online, offline int, err error)
}
