package event

import (
	"context"
	"time"

	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/invocation"
)

// Store defines the persistence contract for the event trigger queue.
//
// Lease atomicity: LeaseEvents must flip locked inside a single transaction
// using row-level locking that skips already-locked rows, so multiple engine
// instances sharing a database never double-deliver.
//
// Transition atomicity: the Mark*/SetRetry methods write the invocation row
// and the state transition in one REPEATABLE READ transaction, incrementing
// tries with the invocation write.
type Store interface {
	// InsertEvent persists a new queue row. In production rows come from
	// database triggers; this exists for tooling and tests.
	InsertEvent(ctx context.Context, evt *Event) error

	// LeaseEvents atomically claims up to limit due, unlocked, non-terminal
	// rows ordered approximately by created_at, flipping locked=true.
	LeaseEvents(ctx context.Context, limit int) ([]*Event, error)

	// MarkEventDelivered records the invocation and sets delivered=true,
	// locked=false, next_retry_at=NULL.
	MarkEventDelivered(ctx context.Context, evtID id.ID, inv *invocation.Invocation) error

	// MarkEventError records the invocation and sets error=true,
	// locked=false. next_retry_at is left untouched for this queue.
	MarkEventError(ctx context.Context, evtID id.ID, inv *invocation.Invocation) error

	// SetEventRetry records the invocation, sets next_retry_at=retryAt and
	// releases the lock. The row becomes eligible again once retryAt is due.
	SetEventRetry(ctx context.Context, evtID id.ID, retryAt time.Time, inv *invocation.Invocation) error

	// UnlockAllEvents resets locked=true rows to locked=false, recovering
	// leases leaked by an ungraceful exit. Returns the number of rows swept.
	UnlockAllEvents(ctx context.Context) (int64, error)

	// GetEvent returns a queue row by ID.
	GetEvent(ctx context.Context, evtID id.ID) (*Event, error)

	// ListEvents returns queue rows, newest first.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)

	// ListEventInvocations returns the invocation log for a row, oldest
	// first.
	ListEventInvocations(ctx context.Context, evtID id.ID) ([]*invocation.Invocation, error)
}
