// Package registry holds the read-only trigger configuration the engine
// delivers against.
//
// The engine never mutates trigger configuration. It receives a
// SnapshotProvider callback and re-queries it once per processing cycle, so
// configuration updates become visible without restarting workers.
package registry

import (
	"context"
	"encoding/json"
	"log/slog"
)

// RetryConf is the per-trigger retry policy.
type RetryConf struct {
	// NumRetries is the number of retries after the first attempt.
	NumRetries int `json:"num_retries"`

	// IntervalSeconds is the delay between retries when the webhook does
	// not supply a Retry-After header.
	IntervalSeconds int `json:"interval_seconds"`

	// TimeoutSeconds is the per-attempt HTTP timeout.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// Header is a resolved HTTP header sent with every delivery for a trigger.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ScheduleKind distinguishes cron-materialized triggers from ad-hoc ones.
type ScheduleKind string

const (
	// ScheduleCron marks a trigger whose events are materialized ahead of
	// time from a cron expression.
	ScheduleCron ScheduleKind = "cron"

	// ScheduleAdHoc marks a trigger whose events are inserted on demand
	// through the API.
	ScheduleAdHoc ScheduleKind = "adhoc"
)

// Schedule describes when a scheduled trigger fires.
type Schedule struct {
	Kind ScheduleKind `json:"kind"`

	// Cron is the five/six-field cron expression, interpreted in UTC.
	// Empty for ad-hoc triggers.
	Cron string `json:"cron,omitempty"`
}

// EventTrigger is the configuration for a row-change trigger. Webhook and
// header values are already resolved (env indirection applied).
type EventTrigger struct {
	Name    string    `json:"name"`
	Webhook string    `json:"webhook"`
	Headers []Header  `json:"headers,omitempty"`
	Retry   RetryConf `json:"retry_conf"`

	// SigningSecret, when set, enables HMAC-SHA256 signing of delivery
	// bodies.
	SigningSecret string `json:"-"`
}

// ScheduledTrigger is the configuration for a time-based trigger.
type ScheduledTrigger struct {
	Name     string    `json:"name"`
	Webhook  string    `json:"webhook"`
	Headers  []Header  `json:"headers,omitempty"`
	Retry    RetryConf `json:"retry_conf"`
	Schedule Schedule  `json:"schedule"`

	// Payload is the default delivery payload, used when a scheduled event
	// row carries no override.
	Payload json.RawMessage `json:"payload,omitempty"`

	// ToleranceSeconds is the maximum lateness past scheduled_time before
	// an event is declared dead without a delivery attempt.
	ToleranceSeconds int `json:"tolerance_seconds"`

	// PayloadSchema optionally validates ad-hoc payload overrides submitted
	// through the API.
	PayloadSchema json.RawMessage `json:"payload_schema,omitempty"`

	SigningSecret string `json:"-"`
}

// Snapshot is an immutable view of all configured triggers, keyed by name.
type Snapshot struct {
	eventTriggers     map[string]*EventTrigger
	scheduledTriggers map[string]*ScheduledTrigger
}

// NewSnapshot builds a snapshot from resolved trigger configurations.
func NewSnapshot(events []*EventTrigger, scheduled []*ScheduledTrigger) *Snapshot {
	s := &Snapshot{
		eventTriggers:     make(map[string]*EventTrigger, len(events)),
		scheduledTriggers: make(map[string]*ScheduledTrigger, len(scheduled)),
	}
	for _, et := range events {
		s.eventTriggers[et.Name] = et
	}
	for _, st := range scheduled {
		s.scheduledTriggers[st.Name] = st
	}
	return s
}

// EventTrigger returns the configuration for a row-change trigger.
func (s *Snapshot) EventTrigger(name string) (*EventTrigger, bool) {
	et, ok := s.eventTriggers[name]
	return et, ok
}

// ScheduledTrigger returns the configuration for a time-based trigger.
func (s *Snapshot) ScheduledTrigger(name string) (*ScheduledTrigger, bool) {
	st, ok := s.scheduledTriggers[name]
	return st, ok
}

// CronTriggers returns all triggers with a cron schedule, for the
// materializer.
func (s *Snapshot) CronTriggers() []*ScheduledTrigger {
	out := make([]*ScheduledTrigger, 0, len(s.scheduledTriggers))
	for _, st := range s.scheduledTriggers {
		if st.Schedule.Kind == ScheduleCron {
			out = append(out, st)
		}
	}
	return out
}

// EventTriggerCount returns the number of configured event triggers.
func (s *Snapshot) EventTriggerCount() int { return len(s.eventTriggers) }

// ScheduledTriggerCount returns the number of configured scheduled triggers.
func (s *Snapshot) ScheduledTriggerCount() int { return len(s.scheduledTriggers) }

// SnapshotProvider returns the current trigger configuration. The engine
// calls it at the start of every processing cycle.
type SnapshotProvider func(ctx context.Context) (*Snapshot, error)

// StaticProvider wraps a fixed snapshot in a SnapshotProvider. Useful for
// tests and for deployments with config baked at startup.
func StaticProvider(snap *Snapshot) SnapshotProvider {
	return func(context.Context) (*Snapshot, error) {
		return snap, nil
	}
}

// Registry is the engine-facing view over a SnapshotProvider.
type Registry struct {
	provider SnapshotProvider
	logger   *slog.Logger
}

// New creates a Registry over the given provider.
func New(provider SnapshotProvider, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{provider: provider, logger: logger}
}

// Snapshot fetches the current configuration snapshot.
func (r *Registry) Snapshot(ctx context.Context) (*Snapshot, error) {
	return r.provider(ctx)
}
