// Package memory holds mutex-guarded in-memory implementations of the target
// and result ports, used in tests and store-free runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ben458-1/URL-Server-Monitor/internal/domain/health"
	"github.com/ben458-1/URL-Server-Monitor/internal/domain/target"
)

type Store struct {
	mu      sync.RWMutex
	targets map[int64]*target.Target
	checks  map[int64][]*health.Check // per target, insertion order
	nextID  int64
}

var (
	_ target.Repo  = (*Store)(nil)
	_ health.Store = (*Store)(nil)
)

func New() *Store {
	return &Store{
		targets: make(map[int64]*target.Target),
		checks:  make(map[int64][]*health.Check),
	}
}

func (m *Store) PutTarget(t *target.Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == 0 {
		m.nextID++
		t.ID = m.nextID
	}
	m.targets[t.ID] = t
}

func (m *Store) ListEnabled(ctx context.Context) ([]*target.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*target.Target, 0, len(m.targets))
	for _, t := range m.targets {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Store) GetByID(ctx context.Context, id int64) (*target.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, health.ErrNoResults
	}
	return t, nil
}

func (m *Store) Append(ctx context.Context, c *health.Check) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	m.checks[c.TargetID] = append(m.checks[c.TargetID], c)
	return nil
}

func (m *Store) Recent(ctx context.Context, targetID int64, lookback time.Duration) ([]*health.Check, error) {
	cutoff := time.Now().UTC().Add(-lookback)
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.checks[targetID]
	out := make([]*health.Check, 0, len(list))
	// newest first
	for i := len(list) - 1; i >= 0; i-- {
		if !list[i].CheckedAt.Before(cutoff) {
			out = append(out, list[i])
		}
	}
	return out, nil
}

func (m *Store) Latest(ctx context.Context, targetID int64) (*health.Check, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.checks[targetID]
	if len(list) == 0 {
		return nil, health.ErrNoResults
	}
	return list[len(list)-1], nil
}

func (m *Store) LatestAll(ctx context.Context) ([]*health.Check, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*health.Check, 0, len(m.checks))
	for _, list := range m.checks {
		if len(list) > 0 {
			out = append(out, list[len(list)-1])
		}
	}
	return out, nil
}

func (m *Store) Counts(ctx context.Context) (online, offline int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, list := range m.checks {
		if len(list) == 0 {
			continue
		}
		if list[len(list)-1].Status == health.StatusOnline {
			online++
		} else {
			offline++
		}
	}
	return online, offline, nil
}
