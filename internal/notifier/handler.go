package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/ben458-1/URL-Server-Monitor/internal/domain/target"
	kafkax "github.com/ben458-1/URL-Server-Monitor/internal/repository/kafka"
)

// Handler turns one status-change event into alert emails. Recipients come
// from config; per-target routing stays with the admin layer.
type Handler struct {
	Targets    target.Repo
	Out        EmailSender
	Recipients []string
}

func (h *Handler) HandleStatusChange(ctx context.Context, ev *kafkax.StatusChange) error {
	t, err := h.Targets.GetByID(ctx, ev.TargetID)
	if err != nil {
		return fmt.Errorf("get target: %w", err)
	}

	subject := fmt.Sprintf("%s is %s", displayName(t), ev.NewStatus)
	body := fmt.Sprintf(
		"%s (%s) changed status: %s -> %s at %s.",
		displayName(t), t.URL, ev.OldStatus, ev.NewStatus, ev.At.UTC().Format(time.RFC3339),
	)

	for _, to := range h.Recipients {
		if err := h.Out.Send(ctx, to, subject, body); err != nil {
			return fmt.Errorf("send email to %s: %w", to, err)
		}
	}
	return nil
}

func displayName(t *target.Target) string {
	if t.Name != "" {
		return t.Name
	}
	return t.URL
}
