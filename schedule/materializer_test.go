package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/schedule"
	"github.com/xraph/trigger/store/memory"
)

func cronSnapshot(t *testing.T, names ...string) *registry.Snapshot {
	t.Helper()
	triggers := make([]*registry.ScheduledTrigger, 0, len(names))
	for _, name := range names {
		st, err := registry.ScheduledTriggerSpec{
			Name:     name,
			Webhook:  "https://example.com/hook",
			Schedule: registry.Schedule{Kind: registry.ScheduleCron, Cron: "0 * * * *"},
		}.Resolve()
		if err != nil {
			t.Fatal(err)
		}
		triggers = append(triggers, st)
	}
	return registry.NewSnapshot(nil, triggers)
}

func TestMaterializerTopsUpToHorizon(t *testing.T) {
	store := memory.New()
	m := schedule.NewMaterializer(store, 10, nil)
	snap := cronSnapshot(t, "hourly")

	if err := m.Run(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	sevs, err := store.ListScheduledEvents(context.Background(), schedule.ListOpts{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(sevs) != 10 {
		t.Fatalf("expected 10 materialized events, got %d", len(sevs))
	}

	// All in the future, all for the right trigger.
	now := time.Now().UTC()
	for _, sev := range sevs {
		if sev.Name != "hourly" {
			t.Errorf("unexpected trigger name %q", sev.Name)
		}
		if !sev.ScheduledTime.After(now.Add(-time.Hour)) {
			t.Errorf("scheduled time %v too far in the past", sev.ScheduledTime)
		}
	}
}

func TestMaterializerIdempotent(t *testing.T) {
	store := memory.New()
	m := schedule.NewMaterializer(store, 5, nil)
	snap := cronSnapshot(t, "hourly")

	for range 3 {
		if err := m.Run(context.Background(), snap); err != nil {
			t.Fatal(err)
		}
	}

	sevs, err := store.ListScheduledEvents(context.Background(), schedule.ListOpts{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(sevs) != 5 {
		t.Fatalf("repeated passes should converge on 5 rows, got %d", len(sevs))
	}
}

func TestMaterializerMultipleTriggers(t *testing.T) {
	store := memory.New()
	m := schedule.NewMaterializer(store, 3, nil)
	snap := cronSnapshot(t, "alpha", "beta")

	if err := m.Run(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"alpha", "beta"} {
		sevs, err := store.ListScheduledEvents(context.Background(), schedule.ListOpts{Limit: 100, Name: name})
		if err != nil {
			t.Fatal(err)
		}
		if len(sevs) != 3 {
			t.Errorf("trigger %s: expected 3 rows, got %d", name, len(sevs))
		}
	}
}

// insertCountingStore records how often the materializer attempts a bulk
// insert.
type insertCountingStore struct {
	*memory.Store
	inserts int
}

func (s *insertCountingStore) InsertScheduledEvents(ctx context.Context, sevs []*schedule.ScheduledEvent) (int64, error) {
	s.inserts++
	return s.Store.InsertScheduledEvents(ctx, sevs)
}

func TestMaterializerSkipsTriggersAtHorizon(t *testing.T) {
	store := &insertCountingStore{Store: memory.New()}
	m := schedule.NewMaterializer(store, 5, nil)
	snap := cronSnapshot(t, "hourly")

	if err := m.Run(context.Background(), snap); err != nil {
		t.Fatal(err)
	}
	if store.inserts != 1 {
		t.Fatalf("first pass inserts = %d, want 1", store.inserts)
	}

	// The trigger is now at the horizon. Subsequent passes must not
	// regenerate and conflict-discard rows for it.
	for range 3 {
		if err := m.Run(context.Background(), snap); err != nil {
			t.Fatal(err)
		}
	}
	if store.inserts != 1 {
		t.Errorf("inserts after topped-up passes = %d, want 1", store.inserts)
	}
}

func TestMaterializerSkipsAdHocTriggers(t *testing.T) {
	store := memory.New()
	m := schedule.NewMaterializer(store, 5, nil)

	adhoc, err := registry.ScheduledTriggerSpec{
		Name:     "oneoff",
		Webhook:  "https://example.com/hook",
		Schedule: registry.Schedule{Kind: registry.ScheduleAdHoc},
	}.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	snap := registry.NewSnapshot(nil, []*registry.ScheduledTrigger{adhoc})

	if err := m.Run(context.Background(), snap); err != nil {
		t.Fatal(err)
	}

	sevs, err := store.ListScheduledEvents(context.Background(), schedule.ListOpts{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(sevs) != 0 {
		t.Fatalf("ad-hoc triggers must not be materialized, got %d rows", len(sevs))
	}
}
