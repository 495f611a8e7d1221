package target

import "context"

type Repo interface {
	// ListEnabled returns the current enabled set. Called once per tick;
	// toggling a target takes effect on the next cycle.
	ListEnabled(ctx context.Context) ([]*Target, error)
	GetByID(ctx context.Context, id int64) (*Target, error)
}
