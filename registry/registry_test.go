package registry_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/xraph/trigger/registry"
)

func testSnapshot(t *testing.T) *registry.Snapshot {
	t.Helper()

	et, err := registry.EventTriggerSpec{
		Name:    "users_insert",
		Webhook: "https://example.com/users",
	}.Resolve()
	if err != nil {
		t.Fatal(err)
	}

	cron, err := registry.ScheduledTriggerSpec{
		Name:     "nightly",
		Webhook:  "https://example.com/nightly",
		Schedule: registry.Schedule{Kind: registry.ScheduleCron, Cron: "0 0 * * *"},
	}.Resolve()
	if err != nil {
		t.Fatal(err)
	}

	adhoc, err := registry.ScheduledTriggerSpec{
		Name:     "oneoff",
		Webhook:  "https://example.com/oneoff",
		Schedule: registry.Schedule{Kind: registry.ScheduleAdHoc},
	}.Resolve()
	if err != nil {
		t.Fatal(err)
	}

	return registry.NewSnapshot(
		[]*registry.EventTrigger{et},
		[]*registry.ScheduledTrigger{cron, adhoc},
	)
}

func TestSnapshotLookups(t *testing.T) {
	snap := testSnapshot(t)

	if _, ok := snap.EventTrigger("users_insert"); !ok {
		t.Error("event trigger lookup failed")
	}
	if _, ok := snap.EventTrigger("nightly"); ok {
		t.Error("scheduled trigger must not be visible as event trigger")
	}
	if _, ok := snap.ScheduledTrigger("nightly"); !ok {
		t.Error("scheduled trigger lookup failed")
	}
	if _, ok := snap.ScheduledTrigger("missing"); ok {
		t.Error("unknown name must not resolve")
	}

	if got := snap.EventTriggerCount(); got != 1 {
		t.Errorf("EventTriggerCount = %d, want 1", got)
	}
	if got := snap.ScheduledTriggerCount(); got != 2 {
		t.Errorf("ScheduledTriggerCount = %d, want 2", got)
	}
}

func TestSnapshotCronTriggers(t *testing.T) {
	snap := testSnapshot(t)

	crons := snap.CronTriggers()
	if len(crons) != 1 {
		t.Fatalf("expected 1 cron trigger, got %d", len(crons))
	}
	if crons[0].Name != "nightly" {
		t.Errorf("cron trigger = %q, want nightly", crons[0].Name)
	}
}

func TestRegistrySnapshotPropagatesProviderError(t *testing.T) {
	boom := errors.New("provider down")
	reg := registry.New(func(context.Context) (*registry.Snapshot, error) {
		return nil, boom
	}, nil)

	_, err := reg.Snapshot(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestValidatorValidateRaw(t *testing.T) {
	v := registry.NewValidator()
	schema := json.RawMessage(`{
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"},
			"count": {"type": "integer", "minimum": 0}
		}
	}`)

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"name":"x","count":3}`, false},
		{"missing required", `{"count":3}`, true},
		{"wrong type", `{"name":"x","count":"three"}`, true},
		{"negative count", `{"name":"x","count":-1}`, true},
		{"not even JSON", `{`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRaw(schema, json.RawMessage(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRaw(%s) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			}
		})
	}
}

func TestValidatorEmptySchemaSkips(t *testing.T) {
	v := registry.NewValidator()
	if err := v.ValidateRaw(nil, json.RawMessage(`anything, even broken`)); err != nil {
		t.Fatalf("empty schema must skip validation, got %v", err)
	}
}

func TestValidatorCachesCompiledSchemas(t *testing.T) {
	v := registry.NewValidator()
	schema := json.RawMessage(`{"type":"object"}`)

	// Same schema validated twice exercises the cache path.
	for range 2 {
		if err := v.ValidateRaw(schema, json.RawMessage(`{}`)); err != nil {
			t.Fatal(err)
		}
	}
}
