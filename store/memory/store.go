// Package memory provides an in-memory Store implementation for unit testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/trigger"
	"github.com/xraph/trigger/event"
	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/invocation"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/schedule"
	triggerstore "github.com/xraph/trigger/store"
)

// compile-time interface check.
var _ triggerstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store for testing. Leases
// honor the same claim semantics as the SQL drivers: a leased row is never
// handed out twice, terminal rows never again.
type Store struct {
	mu sync.RWMutex

	events         map[string]*event.Event                   // keyed by ID string
	scheduled      map[string]*schedule.ScheduledEvent       // keyed by ID string
	scheduledByKey map[string]string                         // name+scheduled_time -> ID, mirrors UNIQUE(name, scheduled_time)
	eventInvs      map[string][]*invocation.Invocation       // keyed by event ID string
	scheduledInvs  map[string][]*invocation.Invocation       // keyed by scheduled event ID string
	triggerConfigs map[string]*registry.ScheduledTriggerSpec // keyed by name

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		events:         make(map[string]*event.Event),
		scheduled:      make(map[string]*schedule.ScheduledEvent),
		scheduledByKey: make(map[string]string),
		eventInvs:      make(map[string][]*invocation.Invocation),
		scheduledInvs:  make(map[string][]*invocation.Invocation),
		triggerConfigs: make(map[string]*registry.ScheduledTriggerSpec),
	}
}

func scheduledKey(name string, at time.Time) string {
	return name + "\x00" + at.UTC().Format(time.RFC3339Nano)
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the in-memory store.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return trigger.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// event.Store
// ──────────────────────────────────────────────────

func (s *Store) InsertEvent(_ context.Context, evt *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *evt
	s.events[evt.ID.String()] = &cp
	return nil
}

func (s *Store) LeaseEvents(_ context.Context, limit int) ([]*event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var due []*event.Event
	for _, evt := range s.events {
		if evt.Locked || evt.Terminal() || evt.Archived {
			continue
		}
		if evt.NextRetryAt != nil && evt.NextRetryAt.After(now) {
			continue
		}
		due = append(due, evt)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*event.Event, 0, len(due))
	for _, evt := range due {
		evt.Locked = true
		cp := *evt
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) MarkEventDelivered(ctx context.Context, evtID id.ID, inv *invocation.Invocation) error {
	return s.transitionEvent(ctx, evtID, inv, func(evt *event.Event) {
		evt.Delivered = true
		evt.Locked = false
		evt.NextRetryAt = nil
	})
}

func (s *Store) MarkEventError(ctx context.Context, evtID id.ID, inv *invocation.Invocation) error {
	// next_retry_at is deliberately left untouched for this queue.
	return s.transitionEvent(ctx, evtID, inv, func(evt *event.Event) {
		evt.Error = true
		evt.Locked = false
	})
}

func (s *Store) SetEventRetry(ctx context.Context, evtID id.ID, retryAt time.Time, inv *invocation.Invocation) error {
	at := retryAt.UTC()
	return s.transitionEvent(ctx, evtID, inv, func(evt *event.Event) {
		evt.NextRetryAt = &at
		evt.Locked = false
	})
}

func (s *Store) transitionEvent(_ context.Context, evtID id.ID, inv *invocation.Invocation, apply func(*event.Event)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return trigger.ErrEventNotFound
	}
	if evt.Terminal() {
		return trigger.ErrEventTerminal
	}

	apply(evt)
	evt.Tries++
	evt.UpdatedAt = time.Now().UTC()

	cp := *inv
	key := evtID.String()
	s.eventInvs[key] = append(s.eventInvs[key], &cp)
	return nil
}

func (s *Store) UnlockAllEvents(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, evt := range s.events {
		if evt.Locked {
			evt.Locked = false
			n++
		}
	}
	return n, nil
}

func (s *Store) GetEvent(_ context.Context, evtID id.ID) (*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evt, ok := s.events[evtID.String()]
	if !ok {
		return nil, trigger.ErrEventNotFound
	}
	cp := *evt
	return &cp, nil
}

func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*event.Event
	for _, evt := range s.events {
		if opts.TriggerName != "" && evt.TriggerName != opts.TriggerName {
			continue
		}
		cp := *evt
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, opts.Offset, opts.Limit), nil
}

func (s *Store) ListEventInvocations(_ context.Context, evtID id.ID) ([]*invocation.Invocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invs := s.eventInvs[evtID.String()]
	out := make([]*invocation.Invocation, len(invs))
	for i, inv := range invs {
		cp := *inv
		out[i] = &cp
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// schedule.Store
// ──────────────────────────────────────────────────

func (s *Store) InsertScheduledEvent(_ context.Context, sev *schedule.ScheduledEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sev
	s.scheduled[sev.ID.String()] = &cp
	s.scheduledByKey[scheduledKey(sev.Name, sev.ScheduledTime)] = sev.ID.String()
	return nil
}

func (s *Store) InsertScheduledEvents(_ context.Context, sevs []*schedule.ScheduledEvent) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted int64
	for _, sev := range sevs {
		key := scheduledKey(sev.Name, sev.ScheduledTime)
		if _, exists := s.scheduledByKey[key]; exists {
			continue
		}
		cp := *sev
		s.scheduled[sev.ID.String()] = &cp
		s.scheduledByKey[key] = sev.ID.String()
		inserted++
	}
	return inserted, nil
}

func (s *Store) LeaseScheduledEvents(_ context.Context, limit int) ([]*schedule.ScheduledEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var due []*schedule.ScheduledEvent
	for _, sev := range s.scheduled {
		if sev.Locked || sev.Terminal() {
			continue
		}
		switch {
		case sev.NextRetryAt != nil:
			if sev.NextRetryAt.After(now) {
				continue
			}
		case sev.ScheduledTime.After(now):
			continue
		}
		due = append(due, sev)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledTime.Before(due[j].ScheduledTime)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*schedule.ScheduledEvent, 0, len(due))
	for _, sev := range due {
		sev.Locked = true
		cp := *sev
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) MarkScheduledDelivered(ctx context.Context, sevID id.ID, inv *invocation.Invocation) error {
	return s.transitionScheduled(ctx, sevID, inv, func(sev *schedule.ScheduledEvent) {
		sev.Delivered = true
		sev.Locked = false
		sev.NextRetryAt = nil
	})
}

func (s *Store) MarkScheduledError(ctx context.Context, sevID id.ID, inv *invocation.Invocation) error {
	return s.transitionScheduled(ctx, sevID, inv, func(sev *schedule.ScheduledEvent) {
		sev.Error = true
		sev.Locked = false
		sev.NextRetryAt = nil
	})
}

func (s *Store) SetScheduledRetry(ctx context.Context, sevID id.ID, retryAt time.Time, inv *invocation.Invocation) error {
	at := retryAt.UTC()
	return s.transitionScheduled(ctx, sevID, inv, func(sev *schedule.ScheduledEvent) {
		sev.NextRetryAt = &at
		sev.Locked = false
	})
}

func (s *Store) transitionScheduled(_ context.Context, sevID id.ID, inv *invocation.Invocation, apply func(*schedule.ScheduledEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sev, ok := s.scheduled[sevID.String()]
	if !ok {
		return trigger.ErrScheduledEventNotFound
	}
	if sev.Terminal() {
		return trigger.ErrEventTerminal
	}

	apply(sev)
	sev.Tries++
	sev.UpdatedAt = time.Now().UTC()

	cp := *inv
	key := sevID.String()
	s.scheduledInvs[key] = append(s.scheduledInvs[key], &cp)
	return nil
}

func (s *Store) MarkScheduledDead(_ context.Context, sevID id.ID) error {
	return s.flagScheduled(sevID, func(sev *schedule.ScheduledEvent) {
		sev.Dead = true
	})
}

func (s *Store) MarkScheduledCancelled(_ context.Context, sevID id.ID) error {
	return s.flagScheduled(sevID, func(sev *schedule.ScheduledEvent) {
		sev.Cancelled = true
	})
}

// flagScheduled applies a terminal flag without recording an invocation or
// touching tries.
func (s *Store) flagScheduled(sevID id.ID, apply func(*schedule.ScheduledEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sev, ok := s.scheduled[sevID.String()]
	if !ok {
		return trigger.ErrScheduledEventNotFound
	}
	if sev.Terminal() {
		return trigger.ErrEventTerminal
	}

	apply(sev)
	sev.Locked = false
	sev.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) UnlockAllScheduledEvents(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, sev := range s.scheduled {
		if sev.Locked {
			sev.Locked = false
			n++
		}
	}
	return n, nil
}

func (s *Store) ScheduledStats(_ context.Context) ([]schedule.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := make(map[string]*schedule.Stats)
	for _, sev := range s.scheduled {
		st, ok := byName[sev.Name]
		if !ok {
			st = &schedule.Stats{Name: sev.Name}
			byName[sev.Name] = st
		}
		if !sev.Terminal() {
			st.UpcomingEventsCount++
		}
		if sev.ScheduledTime.After(st.MaxScheduledTime) {
			st.MaxScheduledTime = sev.ScheduledTime
		}
	}

	out := make([]schedule.Stats, 0, len(byName))
	for _, st := range byName {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetScheduledEvent(_ context.Context, sevID id.ID) (*schedule.ScheduledEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sev, ok := s.scheduled[sevID.String()]
	if !ok {
		return nil, trigger.ErrScheduledEventNotFound
	}
	cp := *sev
	return &cp, nil
}

func (s *Store) ListScheduledEvents(_ context.Context, opts schedule.ListOpts) ([]*schedule.ScheduledEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*schedule.ScheduledEvent
	for _, sev := range s.scheduled {
		if opts.Name != "" && sev.Name != opts.Name {
			continue
		}
		cp := *sev
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledTime.After(out[j].ScheduledTime)
	})
	return paginate(out, opts.Offset, opts.Limit), nil
}

func (s *Store) ListScheduledInvocations(_ context.Context, sevID id.ID) ([]*invocation.Invocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invs := s.scheduledInvs[sevID.String()]
	out := make([]*invocation.Invocation, len(invs))
	for i, inv := range invs {
		cp := *inv
		out[i] = &cp
	}
	return out, nil
}

func (s *Store) UpsertScheduledTrigger(_ context.Context, spec *registry.ScheduledTriggerSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *spec
	s.triggerConfigs[spec.Name] = &cp
	return nil
}

func (s *Store) DeleteScheduledTrigger(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.triggerConfigs[name]; !ok {
		return trigger.ErrTriggerNotFound
	}
	delete(s.triggerConfigs, name)
	return nil
}

func (s *Store) ListScheduledTriggers(_ context.Context) ([]*registry.ScheduledTriggerSpec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*registry.ScheduledTriggerSpec, 0, len(s.triggerConfigs))
	for _, spec := range s.triggerConfigs {
		cp := *spec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
