package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ben458-1/URL-Server-Monitor/internal/domain/health"
	"github.com/ben458-1/URL-Server-Monitor/internal/obs/retry"
	"github.com/ben458-1/URL-Server-Monitor/internal/scheduler"
)

// StatusChange is the wire shape of one online/offline transition, consumed
// by the out-of-process notifier.
type StatusChange struct {
	TargetID  int64         `json:"target_id"`
	OldStatus health.Status `json:"old_status"`
	NewStatus health.Status `json:"new_status"`
	At        time.Time     `json:"at"`
}

type StatusEvents struct {
	p      *Producer
	policy retry.Policy
}

var _ scheduler.Events = (*StatusEvents)(nil)

func NewStatusEvents(p *Producer, log *zap.Logger) *StatusEvents {
	return &StatusEvents{p: p, policy: retry.DefaultKafkaPolicy(log)}
}

func (e *StatusEvents) PublishStatusChange(ctx context.Context, targetID int64, oldStatus, newStatus health.Status, at time.Time) error {
	ev := StatusChange{TargetID: targetID, OldStatus: oldStatus, NewStatus: newStatus, At: at.UTC()}
	return retry.Do(ctx, func() error {
		return e.p.PublishJSON(ctx, KeyFromInt64(targetID), ev)
	}, e.policy)
}
