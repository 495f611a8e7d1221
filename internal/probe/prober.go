package probe

import (
	"context"

	"github.com/ben458-1/URL-Server-Monitor/internal/domain/health"
	"github.com/ben458-1/URL-Server-Monitor/internal/domain/target"
)

// Prober performs one outbound check against a target. It always returns a
// Check and never an error: every failure mode is classified into an offline
// result with a readable detail string.
type Prober interface {
	Probe(ctx context.Context, t *target.Target) *health.Check
}

// Func adapts a plain function to the Prober interface.
type Func func(ctx context.Context, t *target.Target) *health.Check

func (f Func) Probe(ctx context.Context, t *target.Target) *health.Check {
	return f(ctx, t)
}
