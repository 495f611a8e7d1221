package target

import "time"

// Target is one monitored URL. The record is owned by the admin CRUD layer;
// the scheduler only reads the enabled set, refreshed on every tick.
type Target struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	URL       string        `json:"url"`
	Interval  time.Duration `json:"interval"`
	Enabled   bool          `json:"enabled"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
