package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ben458-1/URL-Server-Monitor/internal/broadcast"
	"github.com/ben458-1/URL-Server-Monitor/internal/domain/health"
	"github.com/ben458-1/URL-Server-Monitor/internal/domain/target"
	"github.com/ben458-1/URL-Server-Monitor/internal/probe"
	"github.com/ben458-1/URL-Server-Monitor/internal/repository/memory"
)

var testCfg = Config{Tick: time.Minute, Timeout: 5 * time.Second}

func onlineCheck(id int64, ms int64, code int) *health.Check {
	return &health.Check{
		TargetID:     id,
		Status:       health.StatusOnline,
		ResponseTime: &ms,
		StatusCode:   &code,
		CheckedAt:    time.Now().UTC(),
	}
}

func offlineCheck(id int64, detail string) *health.Check {
	return &health.Check{
		TargetID:     id,
		Status:       health.StatusOffline,
		ErrorMessage: detail,
		CheckedAt:    time.Now().UTC(),
	}
}

type failingTargets struct{ err error }

func (f failingTargets) ListEnabled(context.Context) ([]*target.Target, error) { return nil, f.err }
func (f failingTargets) GetByID(context.Context, int64) (*target.Target, error) {
	return nil, f.err
}

type failingStore struct{ health.Store }

func (failingStore) Append(context.Context, *health.Check) error {
	return errors.New("store down")
}

type eventRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (e *eventRecorder) PublishStatusChange(_ context.Context, id int64, oldS, newS health.Status, _ time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, string(oldS)+"->"+string(newS))
	return nil
}

func (e *eventRecorder) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func TestRunner_PersistsThenPublishes(t *testing.T) {
	mem := memory.New()
	mem.PutTarget(&target.Target{ID: 1, URL: "http://a.local", Enabled: true})
	hub := broadcast.NewHub(zaptest.NewLogger(t), 16)
	sub := hub.Subscribe()

	prober := probe.Func(func(_ context.Context, tg *target.Target) *health.Check {
		return onlineCheck(tg.ID, 120, 200)
	})
	r := New(zaptest.NewLogger(t), mem, mem, prober, hub, nil, testCfg)

	r.tick(context.Background())

	select {
	case ev := <-sub.C():
		require.Equal(t, broadcast.EventHealthUpdate, ev.Type)
		data := ev.Data.(broadcast.HealthUpdate)
		require.Equal(t, int64(1), data.TargetID)
		require.Equal(t, "online", data.Status)
		require.Equal(t, int64(120), *data.ResponseTime)
		require.Equal(t, 200, *data.StatusCode)

		// Persist-before-publish: the pushed result is already queryable.
		latest, err := mem.Latest(context.Background(), 1)
		require.NoError(t, err)
		require.Equal(t, health.StatusOnline, latest.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
	}
}

func TestRunner_DisabledTargetsNotProbed(t *testing.T) {
	mem := memory.New()
	mem.PutTarget(&target.Target{ID: 1, URL: "http://a.local", Enabled: true})
	mem.PutTarget(&target.Target{ID: 2, URL: "http://b.local", Enabled: false})
	hub := broadcast.NewHub(zaptest.NewLogger(t), 16)

	var mu sync.Mutex
	probed := map[int64]int{}
	prober := probe.Func(func(_ context.Context, tg *target.Target) *health.Check {
		mu.Lock()
		probed[tg.ID]++
		mu.Unlock()
		return onlineCheck(tg.ID, 10, 200)
	})
	r := New(zaptest.NewLogger(t), mem, mem, prober, hub, nil, testCfg)

	r.tick(context.Background())
	r.wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, probed[1])
	require.Zero(t, probed[2])
}

func TestRunner_OverlapSkippedAndCounted(t *testing.T) {
	mem := memory.New()
	mem.PutTarget(&target.Target{ID: 5, URL: "http://slow.local", Enabled: true})
	hub := broadcast.NewHub(zaptest.NewLogger(t), 16)
	sub := hub.Subscribe()

	release := make(chan struct{})
	prober := probe.Func(func(_ context.Context, tg *target.Target) *health.Check {
		<-release
		return offlineCheck(tg.ID, "timeout")
	})
	r := New(zaptest.NewLogger(t), mem, mem, prober, hub, nil, testCfg)

	ctx := context.Background()
	r.tick(ctx) // dispatches the slow probe
	r.tick(ctx) // previous probe still in flight: must skip, not overlap

	require.Equal(t, int64(1), r.Skips())

	// The in-flight probe, once it completes, still persists and publishes.
	close(release)
	r.wg.Wait()

	select {
	case ev := <-sub.C():
		require.Equal(t, "offline", ev.Data.(broadcast.HealthUpdate).Status)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight probe result never published")
	}
	recent, err := mem.Recent(ctx, 5, time.Minute)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	// The target is probe-able again on the next tick.
	r.tick(ctx)
	r.wg.Wait()
	require.Equal(t, int64(1), r.Skips())
}

func TestRunner_StoreFailureStillPublishes(t *testing.T) {
	mem := memory.New()
	mem.PutTarget(&target.Target{ID: 3, URL: "http://c.local", Enabled: true})
	hub := broadcast.NewHub(zaptest.NewLogger(t), 16)
	sub := hub.Subscribe()

	prober := probe.Func(func(_ context.Context, tg *target.Target) *health.Check {
		return onlineCheck(tg.ID, 15, 204)
	})
	r := New(zaptest.NewLogger(t), mem, failingStore{mem}, prober, hub, nil, testCfg)

	r.tick(context.Background())
	r.wg.Wait()

	select {
	case ev := <-sub.C():
		require.Equal(t, "online", ev.Data.(broadcast.HealthUpdate).Status)
	case <-time.After(2 * time.Second):
		t.Fatal("result not published despite store failure")
	}
}

func TestRunner_TargetFetchFailureSkipsTick(t *testing.T) {
	hub := broadcast.NewHub(zaptest.NewLogger(t), 16)
	var dispatched atomic.Int64
	prober := probe.Func(func(_ context.Context, tg *target.Target) *health.Check {
		dispatched.Add(1)
		return onlineCheck(tg.ID, 1, 200)
	})
	r := New(zaptest.NewLogger(t), failingTargets{errors.New("db gone")}, memory.New(), prober, hub, nil, testCfg)

	// Must not panic and must not dispatch; retried on the next tick.
	r.tick(context.Background())
	r.wg.Wait()
	require.Zero(t, dispatched.Load())
}

func TestRunner_TimestampsNonDecreasingPerTarget(t *testing.T) {
	mem := memory.New()
	mem.PutTarget(&target.Target{ID: 9, URL: "http://d.local", Enabled: true})
	hub := broadcast.NewHub(zaptest.NewLogger(t), 64)

	prober := probe.Func(func(_ context.Context, tg *target.Target) *health.Check {
		return onlineCheck(tg.ID, 1, 200)
	})
	r := New(zaptest.NewLogger(t), mem, mem, prober, hub, nil, testCfg)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		r.tick(ctx)
		r.wg.Wait()
	}

	recent, err := mem.Recent(ctx, 9, time.Hour)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	for i := 1; i < len(recent); i++ {
		// newest first
		require.False(t, recent[i-1].CheckedAt.Before(recent[i].CheckedAt))
	}
}

func TestRunner_StatusChangeEvents(t *testing.T) {
	mem := memory.New()
	mem.PutTarget(&target.Target{ID: 4, URL: "http://e.local", Enabled: true})
	hub := broadcast.NewHub(zaptest.NewLogger(t), 16)
	rec := &eventRecorder{}

	var mu sync.Mutex
	next := health.StatusOnline
	prober := probe.Func(func(_ context.Context, tg *target.Target) *health.Check {
		mu.Lock()
		defer mu.Unlock()
		if next == health.StatusOnline {
			return onlineCheck(tg.ID, 10, 200)
		}
		return offlineCheck(tg.ID, "connection refused")
	})
	r := New(zaptest.NewLogger(t), mem, mem, prober, hub, rec, testCfg)

	ctx := context.Background()
	r.tick(ctx)
	r.wg.Wait()
	require.Empty(t, rec.snapshot(), "first observation is a baseline, not a transition")

	r.tick(ctx)
	r.wg.Wait()
	require.Empty(t, rec.snapshot(), "unchanged status must not emit")

	mu.Lock()
	next = health.StatusOffline
	mu.Unlock()
	r.tick(ctx)
	r.wg.Wait()
	require.Equal(t, []string{"online->offline"}, rec.snapshot())
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	mem := memory.New()
	hub := broadcast.NewHub(zaptest.NewLogger(t), 16)
	prober := probe.Func(func(_ context.Context, tg *target.Target) *health.Check {
		return onlineCheck(tg.ID, 1, 200)
	})
	r := New(zaptest.NewLogger(t), mem, mem, prober, hub, nil, Config{Tick: 10 * time.Millisecond, Timeout: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
