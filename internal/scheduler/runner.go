package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ben458-1/URL-Server-Monitor/internal/broadcast"
	"github.com/ben458-1/URL-Server-Monitor/internal/domain/health"
	"github.com/ben458-1/URL-Server-Monitor/internal/domain/target"
	"github.com/ben458-1/URL-Server-Monitor/internal/probe"
)

type Config struct {
	Tick    time.Duration `mapstructure:"tick"`
	Timeout time.Duration `mapstructure:"probe_timeout"`
}

// Events receives online/offline transitions for out-of-process alerting.
// Optional; publishing is best-effort and never affects persistence or the
// live feed.
type Events interface {
	PublishStatusChange(ctx context.Context, targetID int64, oldStatus, newStatus health.Status, at time.Time) error
}

var (
	mTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_ticks_total", Help: "Tick cycles started",
	})
	mTickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_tick_errors_total", Help: "Ticks skipped because the target set could not be fetched",
	})
	mProbes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_probes_total", Help: "Probes dispatched",
	})
	mSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_overlap_skips_total", Help: "Dispatches skipped because the previous probe was still in flight",
	})
	mOnline = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_results_online_total", Help: "Online results",
	})
	mOffline = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_results_offline_total", Help: "Offline results",
	})
	mStoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_store_errors_total", Help: "Result appends that failed",
	})
	mEventErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_event_errors_total", Help: "Status-change publishes that failed",
	})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "scheduler_tick_duration_seconds", Help: "Tick dispatch duration",
		Buckets: prometheus.DefBuckets,
	})
)

// Runner drives the periodic health-check cycle: one wall-clock tick fetches
// the enabled target set fresh and fans out one probe goroutine per target.
// Dispatch never waits for probes to finish; per-target overlap is prevented
// by the in-flight set, and every skipped dispatch is counted.
type Runner struct {
	log     *zap.Logger
	targets target.Repo
	store   health.Store
	prober  probe.Prober
	hub     *broadcast.Hub
	events  Events
	cfg     Config

	mu       sync.Mutex
	inflight map[int64]struct{}
	last     map[int64]health.Status

	skips atomic.Int64
	wg    sync.WaitGroup
}

func New(log *zap.Logger, targets target.Repo, store health.Store, prober probe.Prober, hub *broadcast.Hub, events Events, cfg Config) *Runner {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Minute
	}
	if cfg.Timeout <= 0 || cfg.Timeout >= cfg.Tick {
		cfg.Timeout = cfg.Tick / 6
	}
	return &Runner{
		log:      log,
		targets:  targets,
		store:    store,
		prober:   prober,
		hub:      hub,
		events:   events,
		cfg:      cfg,
		inflight: make(map[int64]struct{}),
		last:     make(map[int64]health.Status),
	}
}

// Skips reports how many dispatches were suppressed by the no-overlap rule.
func (r *Runner) Skips() int64 { return r.skips.Load() }

// Run ticks until ctx is canceled, starting with an immediate pass. Ticks are
// wall-clock aligned: a slow cycle never delays the schedule, it only risks
// per-target overlap, which tick handles by skipping.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	mTicks.Inc()

	tr := otel.Tracer("scheduler")
	ctx, span := tr.Start(ctx, "scheduler.tick")
	defer span.End()

	targets, err := r.targets.ListEnabled(ctx)
	if err != nil {
		// The whole tick is skipped and retried on the next scheduled
		// tick, not immediately, so a store outage is not amplified.
		mTickErrors.Inc()
		span.RecordError(err)
		r.log.Warn("fetch enabled targets", zap.Error(err))
		return
	}
	span.SetAttributes(attribute.Int("targets", len(targets)))

	dispatched, skipped := 0, 0
	for _, t := range targets {
		if !r.begin(t.ID) {
			skipped++
			r.skips.Add(1)
			mSkips.Inc()
			r.log.Warn("previous probe still in flight, skipping",
				zap.Int64("target_id", t.ID), zap.String("url", t.URL))
			continue
		}
		dispatched++
		mProbes.Inc()
		r.wg.Add(1)
		go r.runProbe(ctx, t)
	}

	span.SetAttributes(attribute.Int("dispatched", dispatched), attribute.Int("skipped", skipped))
	mTickDur.Observe(time.Since(start).Seconds())
	r.log.Debug("tick dispatched",
		zap.Int("targets", len(targets)),
		zap.Int("dispatched", dispatched),
		zap.Int("skipped", skipped),
	)
}

func (r *Runner) begin(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[id]; busy {
		return false
	}
	r.inflight[id] = struct{}{}
	return true
}

func (r *Runner) end(id int64) {
	r.mu.Lock()
	delete(r.inflight, id)
	r.mu.Unlock()
}

func (r *Runner) runProbe(ctx context.Context, t *target.Target) {
	defer r.wg.Done()
	defer r.end(t.ID)

	pctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	res := r.prober.Probe(pctx, t)
	cancel()

	if res.Status == health.StatusOnline {
		mOnline.Inc()
	} else {
		mOffline.Inc()
	}

	// Persist before publish: a subscriber reacting to the push must be able
	// to query history and find the just-pushed result.
	if err := r.store.Append(ctx, res); err != nil {
		// Freshness over durability for the live channel: the result is
		// dropped for persistence but still published.
		mStoreErrors.Inc()
		r.log.Warn("append check result",
			zap.Int64("target_id", t.ID), zap.Error(err))
	}
	r.hub.Publish(broadcast.NewHealthUpdate(res))
	r.notifyChange(ctx, t, res)
}

func (r *Runner) notifyChange(ctx context.Context, t *target.Target, res *health.Check) {
	r.mu.Lock()
	prev, seen := r.last[t.ID]
	r.last[t.ID] = res.Status
	r.mu.Unlock()

	// First observation after startup is a baseline, not a transition.
	if !seen || prev == res.Status || r.events == nil {
		return
	}
	if err := r.events.PublishStatusChange(ctx, t.ID, prev, res.Status, res.CheckedAt); err != nil {
		mEventErrors.Inc()
		r.log.Warn("publish status change",
			zap.Int64("target_id", t.ID), zap.Error(err))
	}
}
