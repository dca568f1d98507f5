package trigger_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xraph/trigger"
	"github.com/xraph/trigger/event"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/store/memory"
)

func newTrigger(t *testing.T, opts ...trigger.Option) *trigger.Trigger {
	t.Helper()
	opts = append([]trigger.Option{trigger.WithStore(memory.New())}, opts...)
	tr, err := trigger.New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestNewRequiresStore(t *testing.T) {
	_, err := trigger.New()
	if !errors.Is(err, trigger.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(trigger.EnvHTTPPoolSize, "25")
	t.Setenv(trigger.EnvFetchIntervalMS, "250")

	cfg := trigger.ConfigFromEnv()
	if cfg.HTTPPoolSize != 25 {
		t.Errorf("HTTPPoolSize = %d, want 25", cfg.HTTPPoolSize)
	}
	if cfg.FetchInterval != 250*time.Millisecond {
		t.Errorf("FetchInterval = %v, want 250ms", cfg.FetchInterval)
	}
}

func TestConfigFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv(trigger.EnvHTTPPoolSize, "not-a-number")
	t.Setenv(trigger.EnvFetchIntervalMS, "-5")

	cfg := trigger.ConfigFromEnv()
	def := trigger.DefaultConfig()
	if cfg.HTTPPoolSize != def.HTTPPoolSize {
		t.Errorf("HTTPPoolSize = %d, want default %d", cfg.HTTPPoolSize, def.HTTPPoolSize)
	}
	if cfg.FetchInterval != def.FetchInterval {
		t.Errorf("FetchInterval = %v, want default %v", cfg.FetchInterval, def.FetchInterval)
	}
}

func TestCaptureEvent(t *testing.T) {
	tr := newTrigger(t, trigger.WithEventTriggers(registry.EventTriggerSpec{
		Name:    "users_insert",
		Webhook: "https://example.com/hook",
	}))

	ctx := context.Background()
	evt := &event.Event{
		SchemaName:  "public",
		TableName:   "users",
		TriggerName: "users_insert",
		Payload:     json.RawMessage(`{"op":"INSERT"}`),
	}
	if err := tr.CaptureEvent(ctx, evt); err != nil {
		t.Fatal(err)
	}
	if evt.ID.IsNil() {
		t.Fatal("CaptureEvent must assign an ID")
	}

	got, err := tr.Store().GetEvent(ctx, evt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TriggerName != "users_insert" || got.Tries != 0 || got.Locked {
		t.Fatalf("unexpected persisted event: %+v", got)
	}
}

func TestCaptureEventUnknownTrigger(t *testing.T) {
	tr := newTrigger(t)

	err := tr.CaptureEvent(context.Background(), &event.Event{
		TriggerName: "no_such_trigger",
	})
	if !errors.Is(err, trigger.ErrTriggerNotFound) {
		t.Fatalf("expected ErrTriggerNotFound, got %v", err)
	}
}

func TestSubmitScheduledEvent(t *testing.T) {
	tr := newTrigger(t, trigger.WithScheduledTriggers(registry.ScheduledTriggerSpec{
		Name:     "oneoff",
		Webhook:  "https://example.com/hook",
		Schedule: registry.Schedule{Kind: registry.ScheduleAdHoc},
	}))

	ctx := context.Background()
	at := time.Now().Add(time.Hour)
	sev, err := tr.SubmitScheduledEvent(ctx, "oneoff", at, json.RawMessage(`{"k":"v"}`))
	if err != nil {
		t.Fatal(err)
	}
	if sev.ID.IsNil() {
		t.Fatal("SubmitScheduledEvent must assign an ID")
	}
	if !sev.ScheduledTime.Equal(at.UTC()) {
		t.Errorf("scheduled time = %v, want %v", sev.ScheduledTime, at.UTC())
	}

	got, err := tr.Store().GetScheduledEvent(ctx, sev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.AdditionalPayload) != `{"k":"v"}` {
		t.Errorf("payload = %s", got.AdditionalPayload)
	}
}

func TestSubmitScheduledEventUnknownTrigger(t *testing.T) {
	tr := newTrigger(t)

	_, err := tr.SubmitScheduledEvent(context.Background(), "nope", time.Now(), nil)
	if !errors.Is(err, trigger.ErrTriggerNotFound) {
		t.Fatalf("expected ErrTriggerNotFound, got %v", err)
	}
}

func TestSubmitScheduledEventValidatesPayload(t *testing.T) {
	schema := json.RawMessage(`{
		"type": "object",
		"required": ["count"],
		"properties": {"count": {"type": "integer"}}
	}`)
	tr := newTrigger(t, trigger.WithScheduledTriggers(registry.ScheduledTriggerSpec{
		Name:          "validated",
		Webhook:       "https://example.com/hook",
		Schedule:      registry.Schedule{Kind: registry.ScheduleAdHoc},
		PayloadSchema: schema,
	}))

	ctx := context.Background()

	_, err := tr.SubmitScheduledEvent(ctx, "validated", time.Now(), json.RawMessage(`{"count":"three"}`))
	if !errors.Is(err, trigger.ErrPayloadValidationFailed) {
		t.Fatalf("expected ErrPayloadValidationFailed, got %v", err)
	}

	if _, err := tr.SubmitScheduledEvent(ctx, "validated", time.Now(), json.RawMessage(`{"count":3}`)); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	// A nil override skips validation entirely.
	if _, err := tr.SubmitScheduledEvent(ctx, "validated", time.Now(), nil); err != nil {
		t.Fatalf("nil payload rejected: %v", err)
	}
}

func TestCancelScheduledEvent(t *testing.T) {
	tr := newTrigger(t, trigger.WithScheduledTriggers(registry.ScheduledTriggerSpec{
		Name:     "oneoff",
		Webhook:  "https://example.com/hook",
		Schedule: registry.Schedule{Kind: registry.ScheduleAdHoc},
	}))

	ctx := context.Background()
	sev, err := tr.SubmitScheduledEvent(ctx, "oneoff", time.Now().Add(time.Hour), nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := tr.CancelScheduledEvent(ctx, sev.ID); err != nil {
		t.Fatal(err)
	}

	got, err := tr.Store().GetScheduledEvent(ctx, sev.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Cancelled {
		t.Fatal("event not cancelled")
	}

	// Cancelling twice hits the terminal guard.
	if err := tr.CancelScheduledEvent(ctx, sev.ID); !errors.Is(err, trigger.ErrEventTerminal) {
		t.Fatalf("expected ErrEventTerminal, got %v", err)
	}
}

func TestUpsertScheduledTrigger(t *testing.T) {
	tr := newTrigger(t)
	ctx := context.Background()

	err := tr.UpsertScheduledTrigger(ctx, registry.ScheduledTriggerSpec{
		Name:     "nightly",
		Webhook:  "https://example.com/hook",
		Schedule: registry.Schedule{Kind: registry.ScheduleCron, Cron: "0 0 * * *"},
	})
	if err != nil {
		t.Fatal(err)
	}

	// The stored trigger is visible through the registry.
	snap, err := tr.Registry().Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.ScheduledTrigger("nightly"); !ok {
		t.Fatal("upserted trigger missing from snapshot")
	}

	// And submittable.
	if _, err := tr.SubmitScheduledEvent(ctx, "nightly", time.Now().Add(time.Hour), nil); err != nil {
		t.Fatal(err)
	}
}

func TestUpsertScheduledTriggerInvalidCron(t *testing.T) {
	tr := newTrigger(t)

	err := tr.UpsertScheduledTrigger(context.Background(), registry.ScheduledTriggerSpec{
		Name:     "broken",
		Webhook:  "https://example.com/hook",
		Schedule: registry.Schedule{Kind: registry.ScheduleCron, Cron: "not a cron"},
	})
	if !errors.Is(err, trigger.ErrInvalidCron) {
		t.Fatalf("expected ErrInvalidCron, got %v", err)
	}
}

func TestDeleteScheduledTrigger(t *testing.T) {
	tr := newTrigger(t)
	ctx := context.Background()

	spec := registry.ScheduledTriggerSpec{
		Name:     "nightly",
		Webhook:  "https://example.com/hook",
		Schedule: registry.Schedule{Kind: registry.ScheduleCron, Cron: "0 0 * * *"},
	}
	if err := tr.UpsertScheduledTrigger(ctx, spec); err != nil {
		t.Fatal(err)
	}
	if err := tr.DeleteScheduledTrigger(ctx, "nightly"); err != nil {
		t.Fatal(err)
	}

	snap, err := tr.Registry().Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := snap.ScheduledTrigger("nightly"); ok {
		t.Fatal("deleted trigger still in snapshot")
	}

	if err := tr.DeleteScheduledTrigger(ctx, "nightly"); !errors.Is(err, trigger.ErrTriggerNotFound) {
		t.Fatalf("expected ErrTriggerNotFound, got %v", err)
	}
}

func TestCodeDeclaredTriggerShadowsStored(t *testing.T) {
	tr := newTrigger(t, trigger.WithScheduledTriggers(registry.ScheduledTriggerSpec{
		Name:     "nightly",
		Webhook:  "https://code.example.com/hook",
		Schedule: registry.Schedule{Kind: registry.ScheduleCron, Cron: "0 0 * * *"},
	}))
	ctx := context.Background()

	err := tr.UpsertScheduledTrigger(ctx, registry.ScheduledTriggerSpec{
		Name:     "nightly",
		Webhook:  "https://db.example.com/hook",
		Schedule: registry.Schedule{Kind: registry.ScheduleCron, Cron: "0 0 * * *"},
	})
	if err != nil {
		t.Fatal(err)
	}

	snap, err := tr.Registry().Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	trig, ok := snap.ScheduledTrigger("nightly")
	if !ok {
		t.Fatal("trigger missing from snapshot")
	}
	if trig.Webhook != "https://code.example.com/hook" {
		t.Errorf("webhook = %q, code-declared spec should win", trig.Webhook)
	}
}

func TestOptionOverrides(t *testing.T) {
	tr := newTrigger(t,
		trigger.WithHTTPPoolSize(7),
		trigger.WithBatchSize(42),
		trigger.WithFetchInterval(3*time.Second),
	)

	cfg := tr.Config()
	if cfg.HTTPPoolSize != 7 || cfg.BatchSize != 42 || cfg.FetchInterval != 3*time.Second {
		t.Fatalf("options not applied: %+v", cfg)
	}
}
