package status

import (
	"context"
	"errors"
	"time"

	"github.com/ben458-1/URL-Server-Monitor/internal/domain/health"
)

// ErrUnknown marks a target with no recorded checks yet, e.g. a brand-new
// target before its first tick.
var ErrUnknown = errors.New("status unknown")

// Aggregator is the stateless read path over the result store: it turns a
// window of stored checks into a current status and an uptime ratio.
type Aggregator struct {
	store health.Store
}

func New(store health.Store) *Aggregator {
	return &Aggregator{store: store}
}

func (a *Aggregator) Current(ctx context.Context, targetID int64) (*health.Check, error) {
	c, err := a.store.Latest(ctx, targetID)
	if errors.Is(err, health.ErrNoResults) {
		return nil, ErrUnknown
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *Aggregator) CurrentAll(ctx context.Context) ([]*health.Check, error) {
	return a.store.LatestAll(ctx)
}

func (a *Aggregator) History(ctx context.Context, targetID int64, window time.Duration) ([]*health.Check, error) {
	return a.store.Recent(ctx, targetID, window)
}

// Uptime is online/total over a lookback window. NoData is set instead of a
// ratio when the window is empty; 0/0 must never surface as 0% or 100%.
type Uptime struct {
	TargetID int64   `json:"target_id"`
	Online   int     `json:"online"`
	Total    int     `json:"total"`
	Ratio    float64 `json:"uptime"`
	NoData   bool    `json:"no_data,omitempty"`
}

func (a *Aggregator) Uptime(ctx context.Context, targetID int64, window time.Duration) (*Uptime, error) {
	checks, err := a.store.Recent(ctx, targetID, window)
	if err != nil {
		return nil, err
	}
	u := &Uptime{TargetID: targetID, Total: len(checks)}
	if u.Total == 0 {
		u.NoData = true
		return u, nil
	}
	for _, c := range checks {
		if c.Status == health.StatusOnline {
			u.Online++
		}
	}
	u.Ratio = float64(u.Online) / float64(u.Total)
	return u, nil
}

type Overview struct {
	Targets int `json:"total_targets"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
}

func (a *Aggregator) Overview(ctx context.Context) (*Overview, error) {
	online, offline, err := a.store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &Overview{Targets: online + offline, Online: online, Offline: offline}, nil
}
