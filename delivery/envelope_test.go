package delivery_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/xraph/trigger/delivery"
	"github.com/xraph/trigger/event"
	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/internal/entity"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/schedule"
)

func TestEventEnvelope(t *testing.T) {
	evt := &event.Event{
		Entity:      entity.New(),
		ID:          id.NewEventID(),
		SchemaName:  "public",
		TableName:   "users",
		TriggerName: "users_insert",
		Payload:     json.RawMessage(`{"op":"INSERT","new":{"id":1}}`),
		Tries:       2,
	}
	trig := &registry.EventTrigger{
		Name:  "users_insert",
		Retry: registry.RetryConf{NumRetries: 5},
	}

	body, err := delivery.NewEventEnvelope(evt, trig).Marshal()
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		ID    string `json:"id"`
		Table struct {
			Schema string `json:"schema"`
			Name   string `json:"name"`
		} `json:"table"`
		Trigger struct {
			Name string `json:"name"`
		} `json:"trigger"`
		Event        json.RawMessage `json:"event"`
		DeliveryInfo struct {
			CurrentRetry int `json:"current_retry"`
			MaxRetries   int `json:"max_retries"`
		} `json:"delivery_info"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded.ID != evt.ID.String() {
		t.Errorf("id = %q, want %q", decoded.ID, evt.ID)
	}
	if decoded.Table.Schema != "public" || decoded.Table.Name != "users" {
		t.Errorf("table = %+v", decoded.Table)
	}
	if decoded.Trigger.Name != "users_insert" {
		t.Errorf("trigger = %q", decoded.Trigger.Name)
	}
	if decoded.DeliveryInfo.CurrentRetry != 2 || decoded.DeliveryInfo.MaxRetries != 5 {
		t.Errorf("delivery_info = %+v", decoded.DeliveryInfo)
	}
	if _, err := time.Parse(time.RFC3339, decoded.CreatedAt); err != nil {
		t.Errorf("created_at %q is not RFC3339: %v", decoded.CreatedAt, err)
	}
}

func TestScheduledEnvelopePayloadCoalescing(t *testing.T) {
	trig := &registry.ScheduledTrigger{
		Name:    "nightly",
		Webhook: "https://example.com/hook",
		Payload: json.RawMessage(`{"source":"default"}`),
	}

	tests := []struct {
		name     string
		override json.RawMessage
		trigDef  json.RawMessage
		want     string
	}{
		{"override wins", json.RawMessage(`{"source":"override"}`), trig.Payload, `{"source":"override"}`},
		{"falls back to trigger default", nil, trig.Payload, `{"source":"default"}`},
		{"both absent gives JSON null", nil, nil, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := *trig
			tr.Payload = tt.trigDef
			sev := &schedule.ScheduledEvent{
				Entity:            entity.New(),
				ID:                id.NewScheduledEventID(),
				Name:              "nightly",
				ScheduledTime:     time.Now().UTC(),
				AdditionalPayload: tt.override,
			}

			body, err := delivery.NewScheduledEnvelope(sev, &tr).Marshal()
			if err != nil {
				t.Fatal(err)
			}

			var decoded struct {
				Payload json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(body, &decoded); err != nil {
				t.Fatal(err)
			}
			if string(decoded.Payload) != tt.want {
				t.Errorf("payload = %s, want %s", decoded.Payload, tt.want)
			}
		})
	}
}
