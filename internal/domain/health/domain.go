package health

import "time"

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusUnknown Status = "unknown"
)

// Check is one immutable probe result. Created exactly once per probe
// attempt, never mutated; deleted only by the external retention sweep.
type Check struct {
	ID           int64     `json:"id"`
	TargetID     int64     `json:"target_id"`
	Status       Status    `json:"status"`
	ResponseTime *int64    `json:"response_time"` // ms; nil when no response arrived
	StatusCode   *int      `json:"status_code"`   // nil unless an HTTP exchange completed
	ErrorMessage string    `json:"error_message,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}
