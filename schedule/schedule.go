// Package schedule defines the scheduled trigger queue row, cron
// evaluation, and the materializer that keeps cron queues populated ahead
// of time.
package schedule

import (
	"encoding/json"
	"time"

	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/internal/entity"
)

// ScheduledEvent is one row in the hdb_scheduled_events queue. Rows are
// created by the materializer (cron triggers) or by the API (ad-hoc).
type ScheduledEvent struct {
	entity.Entity

	// ID is the unique TypeID for this scheduled event.
	ID id.ID `json:"id"`

	// Name is the scheduled trigger this event belongs to.
	Name string `json:"name"`

	// ScheduledTime is when the event becomes due, in UTC.
	ScheduledTime time.Time `json:"scheduled_time"`

	// AdditionalPayload overrides the trigger's default payload when
	// non-nil.
	AdditionalPayload json.RawMessage `json:"additional_payload,omitempty"`

	// Tries is the number of delivery attempts recorded so far.
	Tries int `json:"tries"`

	// Locked means the row is leased by exactly one worker.
	Locked bool `json:"locked"`

	// Terminal states: at most one is ever true, and once set it sticks.
	Delivered bool `json:"delivered"`
	Error     bool `json:"error"`
	Dead      bool `json:"dead"`
	Cancelled bool `json:"cancelled"`

	// NextRetryAt gates re-lease after a failed attempt.
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}

// Terminal reports whether the row has reached a terminal state and must
// never be re-leased.
func (s *ScheduledEvent) Terminal() bool {
	return s.Delivered || s.Error || s.Dead || s.Cancelled
}

// Stats is one row of the hdb_scheduled_events_stats view: how many
// upcoming (non-terminal, not yet delivered) events exist per trigger and
// the latest scheduled time among them.
type Stats struct {
	Name                string `json:"name"`
	UpcomingEventsCount int    `json:"upcoming_events_count"`

	// MaxScheduledTime is the zero time when the trigger has no rows yet.
	MaxScheduledTime time.Time `json:"max_scheduled_time"`
}

// ListOpts configures filtering and pagination for scheduled event listing.
type ListOpts struct {
	Offset int
	Limit  int
	Name   string
}
