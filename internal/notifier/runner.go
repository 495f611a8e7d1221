package notifier

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/ben458-1/URL-Server-Monitor/internal/obs"
	kafkax "github.com/ben458-1/URL-Server-Monitor/internal/repository/kafka"
)

var (
	mEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_events_total", Help: "Status-change events consumed",
	})
	mSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_emails_sent_total", Help: "Alert emails sent",
	})
	mErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifier_errors_total", Help: "Events that failed to produce an alert",
	})
)

type Runner struct {
	log  *zap.Logger
	cons *kafkax.Consumer
	h    *Handler
}

func NewRunner(log *zap.Logger, cons *kafkax.Consumer, h *Handler) *Runner {
	return &Runner{log: log, cons: cons, h: h}
}

func (r *Runner) Run(ctx context.Context) error {
	handler := kafkax.JSONHandler(func(ctx context.Context, _ []byte, ev *kafkax.StatusChange) error {
		mEvents.Inc()
		if err := r.h.HandleStatusChange(ctx, ev); err != nil {
			mErrors.Inc()
			obs.WithTrace(ctx, r.log).Warn("handle status change",
				zap.Int64("target_id", ev.TargetID), zap.Error(err))
			// swallow: a bad event must not wedge the partition
			return nil
		}
		mSent.Inc()
		return nil
	})

	if err := r.cons.Consume(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}
