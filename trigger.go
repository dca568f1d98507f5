package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/trigger/delivery"
	"github.com/xraph/trigger/engine"
	"github.com/xraph/trigger/event"
	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/internal/entity"
	"github.com/xraph/trigger/ratelimit"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/schedule"
	"github.com/xraph/trigger/store"
)

// wireServices initializes the internal services after options have been applied.
func (t *Trigger) wireServices() {
	t.validator = registry.NewValidator()
	t.sender = delivery.NewSender(t.logger)
	t.pool = ratelimit.NewPool(t.config.HTTPPoolSize)

	provider := t.provider
	if provider == nil {
		provider = t.buildSnapshot
	}
	if t.kvStore != nil {
		t.kvCache = registry.NewKVCache(t.kvStore, provider, t.config.SnapshotCacheTTL, t.logger)
		provider = t.kvCache.Provider()
	}
	t.registry = registry.New(provider, t.logger)

	t.engine = engine.New(t.store, t.registry, t.sender, t.pool, engine.Config{
		BatchSize:         t.config.BatchSize,
		FetchInterval:     t.config.FetchInterval,
		ScheduledInterval: t.config.ScheduledInterval,
		Horizon:           t.config.Horizon,
		Metrics:           t.metrics,
		Tracer:            t.tracer,
	}, t.logger)
}

// buildSnapshot is the default SnapshotProvider: code-declared specs merged
// with the scheduled triggers persisted in the store. A code-declared spec
// shadows a stored trigger of the same name.
func (t *Trigger) buildSnapshot(ctx context.Context) (*registry.Snapshot, error) {
	events := make([]*registry.EventTrigger, 0, len(t.eventSpecs))
	for _, spec := range t.eventSpecs {
		et, err := spec.Resolve()
		if err != nil {
			return nil, err
		}
		events = append(events, et)
	}

	stored, err := t.store.ListScheduledTriggers(ctx)
	if err != nil {
		return nil, fmt.Errorf("trigger: list scheduled triggers: %w", err)
	}

	declared := make(map[string]bool, len(t.scheduledSpecs))
	scheduled := make([]*registry.ScheduledTrigger, 0, len(t.scheduledSpecs)+len(stored))
	for _, spec := range t.scheduledSpecs {
		st, resolveErr := spec.Resolve()
		if resolveErr != nil {
			return nil, resolveErr
		}
		declared[st.Name] = true
		scheduled = append(scheduled, st)
	}
	for _, spec := range stored {
		if declared[spec.Name] {
			continue
		}
		st, resolveErr := spec.Resolve()
		if resolveErr != nil {
			return nil, resolveErr
		}
		scheduled = append(scheduled, st)
	}

	return registry.NewSnapshot(events, scheduled), nil
}

// Start recovers stale leases and begins the delivery loops.
func (t *Trigger) Start(ctx context.Context) error {
	if t.kvCache != nil {
		t.kvCache.Watch(ctx)
	}
	return t.engine.Start(ctx)
}

// Stop gracefully shuts down the delivery loops, waiting for in-flight
// attempts to finish and record their transitions.
func (t *Trigger) Stop(ctx context.Context) {
	t.engine.Stop(ctx)
}

// CaptureEvent persists a row-change event for delivery. In production
// deployments rows usually arrive through database capture; this is the
// programmatic path.
//
// The critical path:
//  1. Look up the event trigger in the current snapshot (reject unknown).
//  2. Assign ID, set entity timestamps.
//  3. Persist the queue row; the event loop picks it up within one cycle.
func (t *Trigger) CaptureEvent(ctx context.Context, evt *event.Event) error {
	snap, err := t.registry.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("trigger: snapshot: %w", err)
	}
	if _, ok := snap.EventTrigger(evt.TriggerName); !ok {
		return fmt.Errorf("%w: %s", ErrTriggerNotFound, evt.TriggerName)
	}

	evt.Entity = entity.New()
	evt.ID = id.NewEventID()

	if err := t.store.InsertEvent(ctx, evt); err != nil {
		return fmt.Errorf("trigger: persist event: %w", err)
	}

	t.logger.DebugContext(ctx, "event captured",
		"category", "event_trigger_log",
		"event_id", evt.ID,
		"trigger", evt.TriggerName,
	)
	return nil
}

// SubmitScheduledEvent inserts a one-off scheduled event for an existing
// scheduled trigger. payload, when non-nil, overrides the trigger's default
// payload and is validated against the trigger's payload schema if one is
// configured.
func (t *Trigger) SubmitScheduledEvent(ctx context.Context, name string, scheduledTime time.Time, payload json.RawMessage) (*schedule.ScheduledEvent, error) {
	snap, err := t.registry.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("trigger: snapshot: %w", err)
	}
	trig, ok := snap.ScheduledTrigger(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTriggerNotFound, name)
	}

	if len(payload) > 0 && len(trig.PayloadSchema) > 0 {
		if validateErr := t.validator.ValidateRaw(trig.PayloadSchema, payload); validateErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrPayloadValidationFailed, validateErr.Error())
		}
	}

	sev := &schedule.ScheduledEvent{
		Entity:            entity.New(),
		ID:                id.NewScheduledEventID(),
		Name:              name,
		ScheduledTime:     scheduledTime.UTC(),
		AdditionalPayload: payload,
	}
	if err := t.store.InsertScheduledEvent(ctx, sev); err != nil {
		return nil, fmt.Errorf("trigger: persist scheduled event: %w", err)
	}

	t.logger.DebugContext(ctx, "scheduled event submitted",
		"category", "scheduled_trigger_log",
		"event_id", sev.ID,
		"trigger", name,
		"scheduled_time", sev.ScheduledTime,
	)
	return sev, nil
}

// CancelScheduledEvent cancels a pending scheduled event. Events that have
// already reached a terminal state return ErrEventTerminal.
func (t *Trigger) CancelScheduledEvent(ctx context.Context, sevID id.ID) error {
	return t.store.MarkScheduledCancelled(ctx, sevID)
}

// UpsertScheduledTrigger validates and persists a scheduled trigger
// configuration, then invalidates the shared snapshot cache so all replicas
// pick it up.
func (t *Trigger) UpsertScheduledTrigger(ctx context.Context, spec registry.ScheduledTriggerSpec) error {
	if _, err := spec.Resolve(); err != nil {
		return err
	}
	if spec.Schedule.Kind == registry.ScheduleCron {
		if _, err := schedule.ParseCron(spec.Schedule.Cron); err != nil {
			return fmt.Errorf("%w: trigger %q: %s", ErrInvalidCron, spec.Name, err.Error())
		}
	}

	if err := t.store.UpsertScheduledTrigger(ctx, &spec); err != nil {
		return fmt.Errorf("trigger: persist scheduled trigger: %w", err)
	}
	return t.invalidateSnapshot(ctx)
}

// DeleteScheduledTrigger removes a scheduled trigger configuration. Queue
// rows already materialized for it are untouched; without configuration they
// are skipped by the scheduled loop.
func (t *Trigger) DeleteScheduledTrigger(ctx context.Context, name string) error {
	if err := t.store.DeleteScheduledTrigger(ctx, name); err != nil {
		return err
	}
	return t.invalidateSnapshot(ctx)
}

func (t *Trigger) invalidateSnapshot(ctx context.Context) error {
	if t.kvCache == nil {
		return nil
	}
	if err := t.kvCache.Invalidate(ctx); err != nil {
		t.logger.WarnContext(ctx, "snapshot cache invalidation failed",
			"category", "scheduled_trigger_log", "error", err)
	}
	return nil
}

// Store returns the underlying store.
func (t *Trigger) Store() store.Store {
	return t.store
}

// Registry returns the engine-facing configuration registry.
func (t *Trigger) Registry() *registry.Registry {
	return t.registry
}

// Config returns the effective configuration.
func (t *Trigger) Config() Config {
	return t.config
}
