package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/trigger"
	"github.com/xraph/trigger/api"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/store/memory"
)

func setupAPI(t *testing.T) *httptest.Server {
	t.Helper()

	tr, err := trigger.New(
		trigger.WithStore(memory.New()),
		trigger.WithEventTriggers(registry.EventTriggerSpec{
			Name:    "users_insert",
			Webhook: "https://example.com/users",
		}),
		trigger.WithScheduledTriggers(registry.ScheduledTriggerSpec{
			Name:     "oneoff",
			Webhook:  "https://example.com/oneoff",
			Schedule: registry.Schedule{Kind: registry.ScheduleAdHoc},
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(api.NewHandler(tr, nil))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestCreateAndGetEvent(t *testing.T) {
	srv := setupAPI(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/events", map[string]any{
		"schema_name":  "public",
		"table_name":   "users",
		"trigger_name": "users_insert",
		"payload":      map[string]any{"op": "INSERT"},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("create status = %d, want 202", resp.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &created)
	if created.ID == "" {
		t.Fatal("response missing event id")
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/events/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	var got struct {
		ID          string `json:"id"`
		TriggerName string `json:"trigger_name"`
	}
	decodeBody(t, resp, &got)
	if got.ID != created.ID || got.TriggerName != "users_insert" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestCreateEventUnknownTrigger(t *testing.T) {
	srv := setupAPI(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/events", map[string]any{
		"trigger_name": "no_such_trigger",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateEventMissingTriggerName(t *testing.T) {
	srv := setupAPI(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/events", map[string]any{
		"table_name": "users",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListEventsFiltersByTrigger(t *testing.T) {
	srv := setupAPI(t)

	for range 3 {
		resp := doJSON(t, http.MethodPost, srv.URL+"/events", map[string]any{
			"trigger_name": "users_insert",
		})
		resp.Body.Close()
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/events?trigger=users_insert&limit=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var events []json.RawMessage
	decodeBody(t, resp, &events)
	if len(events) != 2 {
		t.Fatalf("expected 2 events (limit), got %d", len(events))
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/events?trigger=other", nil)
	var none []json.RawMessage
	decodeBody(t, resp, &none)
	if len(none) != 0 {
		t.Fatalf("expected no events for unknown trigger, got %d", len(none))
	}
}

func TestScheduledEventLifecycle(t *testing.T) {
	srv := setupAPI(t)

	at := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	resp := doJSON(t, http.MethodPost, srv.URL+"/scheduled-events", map[string]any{
		"name":           "oneoff",
		"scheduled_time": at,
		"payload":        map[string]any{"k": "v"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &created)

	resp = doJSON(t, http.MethodGet, srv.URL+"/scheduled-events/"+created.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	// Cancel, then cancel again: the second hits the terminal guard.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/scheduled-events/"+created.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel status = %d, want 204", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/scheduled-events/"+created.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double cancel status = %d, want 409", resp.StatusCode)
	}
}

func TestCreateScheduledEventValidation(t *testing.T) {
	srv := setupAPI(t)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"unknown trigger", map[string]any{"name": "nope", "scheduled_time": time.Now().Format(time.RFC3339)}, http.StatusNotFound},
		{"missing name", map[string]any{"scheduled_time": time.Now().Format(time.RFC3339)}, http.StatusBadRequest},
		{"bad timestamp", map[string]any{"name": "oneoff", "scheduled_time": "tomorrow-ish"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+"/scheduled-events", tt.body)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestScheduledTriggerCRUD(t *testing.T) {
	srv := setupAPI(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/scheduled-triggers", map[string]any{
		"name":    "nightly",
		"webhook": "https://example.com/nightly",
		"schedule": map[string]any{
			"kind": "cron",
			"cron": "0 0 * * *",
		},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/scheduled-triggers", nil)
	var triggers []struct {
		Name string `json:"name"`
	}
	decodeBody(t, resp, &triggers)
	found := false
	for _, trig := range triggers {
		if trig.Name == "nightly" {
			found = true
		}
	}
	if !found {
		t.Fatal("upserted trigger missing from list")
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/scheduled-triggers/nightly", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/scheduled-triggers/nightly", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", resp.StatusCode)
	}
}

func TestUpsertScheduledTriggerInvalidCron(t *testing.T) {
	srv := setupAPI(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/scheduled-triggers", map[string]any{
		"name":    "broken",
		"webhook": "https://example.com/hook",
		"schedule": map[string]any{
			"kind": "cron",
			"cron": "not a cron",
		},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetStats(t *testing.T) {
	srv := setupAPI(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var stats struct {
		EventTriggers     int `json:"event_triggers"`
		ScheduledTriggers int `json:"scheduled_triggers"`
	}
	decodeBody(t, resp, &stats)
	if stats.EventTriggers != 1 || stats.ScheduledTriggers != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestInvalidEventIDRejected(t *testing.T) {
	srv := setupAPI(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/events/not-a-typeid", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
