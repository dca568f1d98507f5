package delivery

import (
	"encoding/json"
	"time"

	"github.com/xraph/trigger/event"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/schedule"
)

// The envelopes below are the wire contract webhooks receive. Field names
// and shapes are stable; hand-written structs keep them explicit.

type tableInfo struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

type triggerInfo struct {
	Name string `json:"name"`
}

type deliveryInfo struct {
	CurrentRetry int `json:"current_retry"`
	MaxRetries   int `json:"max_retries"`
}

// EventEnvelope is the request body for event trigger deliveries.
type EventEnvelope struct {
	ID           string          `json:"id"`
	Table        tableInfo       `json:"table"`
	Trigger      triggerInfo     `json:"trigger"`
	Event        json.RawMessage `json:"event"`
	DeliveryInfo deliveryInfo    `json:"delivery_info"`
	CreatedAt    string          `json:"created_at"`
}

// NewEventEnvelope composes the delivery body for a leased event row.
func NewEventEnvelope(evt *event.Event, trig *registry.EventTrigger) EventEnvelope {
	return EventEnvelope{
		ID:      evt.ID.String(),
		Table:   tableInfo{Schema: evt.SchemaName, Name: evt.TableName},
		Trigger: triggerInfo{Name: trig.Name},
		Event:   evt.Payload,
		DeliveryInfo: deliveryInfo{
			CurrentRetry: evt.Tries,
			MaxRetries:   trig.Retry.NumRetries,
		},
		CreatedAt: evt.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Marshal serializes the envelope.
func (e EventEnvelope) Marshal() (json.RawMessage, error) {
	return json.Marshal(e)
}

// ScheduledEnvelope is the request body for scheduled trigger deliveries.
type ScheduledEnvelope struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	ScheduledTime time.Time          `json:"scheduled_time"`
	Tries         int                `json:"tries"`
	Webhook       string             `json:"webhook"`
	Payload       json.RawMessage    `json:"payload"`
	RetryConf     registry.RetryConf `json:"retry_conf"`
}

// NewScheduledEnvelope composes the delivery body for a leased scheduled
// event row. Payload is the row's override when non-null, else the
// trigger's default, null-coalesced to JSON null.
func NewScheduledEnvelope(sev *schedule.ScheduledEvent, trig *registry.ScheduledTrigger) ScheduledEnvelope {
	payload := sev.AdditionalPayload
	if payload == nil {
		payload = trig.Payload
	}
	if payload == nil {
		payload = json.RawMessage("null")
	}

	return ScheduledEnvelope{
		ID:            sev.ID.String(),
		Name:          sev.Name,
		ScheduledTime: sev.ScheduledTime.UTC(),
		Tries:         sev.Tries,
		Webhook:       trig.Webhook,
		Payload:       payload,
		RetryConf:     trig.Retry,
	}
}

// Marshal serializes the envelope.
func (e ScheduledEnvelope) Marshal() (json.RawMessage, error) {
	return json.Marshal(e)
}
