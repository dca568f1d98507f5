package schedule

import (
	"context"
	"time"

	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/invocation"
	"github.com/xraph/trigger/registry"
)

// Store defines the persistence contract for the scheduled trigger queue
// and its configuration source.
//
// The same atomicity rules as event.Store apply: leases use skip-locking
// row claims, and every invocation-writing transition runs in one
// REPEATABLE READ transaction that also increments tries.
type Store interface {
	// InsertScheduledEvent persists one ad-hoc event.
	InsertScheduledEvent(ctx context.Context, sev *ScheduledEvent) error

	// InsertScheduledEvents bulk-inserts materialized events with
	// ON CONFLICT DO NOTHING semantics on (name, scheduled_time), so
	// materializer re-runs are idempotent. Returns the number actually
	// inserted.
	InsertScheduledEvents(ctx context.Context, sevs []*ScheduledEvent) (int64, error)

	// LeaseScheduledEvents atomically claims up to limit due, unlocked,
	// non-terminal rows, flipping locked=true. A row is due when
	// next_retry_at is set and <= now, or when it is unset and
	// scheduled_time <= now.
	LeaseScheduledEvents(ctx context.Context, limit int) ([]*ScheduledEvent, error)

	// MarkScheduledDelivered records the invocation and sets delivered=true,
	// locked=false, next_retry_at=NULL.
	MarkScheduledDelivered(ctx context.Context, sevID id.ID, inv *invocation.Invocation) error

	// MarkScheduledError records the invocation and sets error=true,
	// locked=false, next_retry_at=NULL.
	MarkScheduledError(ctx context.Context, sevID id.ID, inv *invocation.Invocation) error

	// MarkScheduledDead sets dead=true, locked=false. No invocation row is
	// written and tries is not incremented: no delivery was attempted.
	MarkScheduledDead(ctx context.Context, sevID id.ID) error

	// MarkScheduledCancelled sets cancelled=true. Reached through the API,
	// never by workers.
	MarkScheduledCancelled(ctx context.Context, sevID id.ID) error

	// SetScheduledRetry records the invocation, sets next_retry_at=retryAt
	// and releases the lock.
	SetScheduledRetry(ctx context.Context, sevID id.ID, retryAt time.Time, inv *invocation.Invocation) error

	// UnlockAllScheduledEvents resets leaked leases after an ungraceful
	// exit. Returns the number of rows swept.
	UnlockAllScheduledEvents(ctx context.Context) (int64, error)

	// ScheduledStats reads the stats view: one row per trigger that has
	// queue rows, with its non-terminal count and max scheduled time.
	ScheduledStats(ctx context.Context) ([]Stats, error)

	// GetScheduledEvent returns a queue row by ID.
	GetScheduledEvent(ctx context.Context, sevID id.ID) (*ScheduledEvent, error)

	// ListScheduledEvents returns queue rows, newest first.
	ListScheduledEvents(ctx context.Context, opts ListOpts) ([]*ScheduledEvent, error)

	// ListScheduledInvocations returns the invocation log for a row,
	// oldest first.
	ListScheduledInvocations(ctx context.Context, sevID id.ID) ([]*invocation.Invocation, error)

	// UpsertScheduledTrigger persists a scheduled trigger configuration.
	UpsertScheduledTrigger(ctx context.Context, spec *registry.ScheduledTriggerSpec) error

	// DeleteScheduledTrigger removes a trigger configuration. Its queue
	// rows remain and go stale against the registry.
	DeleteScheduledTrigger(ctx context.Context, name string) error

	// ListScheduledTriggers returns all persisted trigger configurations,
	// the input to snapshot construction.
	ListScheduledTriggers(ctx context.Context) ([]*registry.ScheduledTriggerSpec, error)
}
