// Package event defines the event trigger queue row and its store contract.
package event

import (
	"encoding/json"
	"time"

	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/internal/entity"
)

// Event is one row-change event in the event_log queue. Rows are produced
// by database triggers; the engine only leases and transitions them.
type Event struct {
	entity.Entity

	// ID is the unique TypeID for this event.
	ID id.ID `json:"id"`

	// SchemaName and TableName identify the source table.
	SchemaName string `json:"schema_name"`
	TableName  string `json:"table_name"`

	// TriggerName resolves to an event trigger in the registry.
	TriggerName string `json:"trigger_name"`

	// Payload is the row-change delta.
	Payload json.RawMessage `json:"payload"`

	// Tries is the number of delivery attempts recorded so far.
	Tries int `json:"tries"`

	// Locked means the row is leased by exactly one worker.
	Locked bool `json:"locked"`

	// Delivered and Error are the terminal states for this queue.
	Delivered bool `json:"delivered"`
	Error     bool `json:"error"`

	// Archived rows belong to removed triggers and are never leased.
	Archived bool `json:"archived"`

	// NextRetryAt gates re-lease after a failed attempt. Only set on
	// non-terminal rows; setting it releases the lock.
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}

// Terminal reports whether the row has reached a terminal state and must
// never be re-leased.
func (e *Event) Terminal() bool {
	return e.Delivered || e.Error
}

// ListOpts configures filtering and pagination for event listing.
type ListOpts struct {
	Offset      int
	Limit       int
	TriggerName string
}
