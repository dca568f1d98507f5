package api

import (
	"encoding/json"

	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/schedule"
)

// ---------------------------------------------------------------------------
// Event queue requests
// ---------------------------------------------------------------------------

// CreateEventForgeRequest binds the body for POST /events.
type CreateEventForgeRequest struct {
	SchemaName  string          `description:"Source schema name"     json:"schema_name"`
	TableName   string          `description:"Source table name"      json:"table_name"`
	TriggerName string          `description:"Event trigger name"     json:"trigger_name"`
	Payload     json.RawMessage `description:"Row-change payload"     json:"payload"`
}

// ListEventsForgeRequest binds query parameters for GET /events.
type ListEventsForgeRequest struct {
	Trigger string `description:"Filter by trigger name"  query:"trigger"`
	Offset  int    `description:"Pagination offset"       query:"offset"`
	Limit   int    `description:"Page size (default 50)"  query:"limit"`
}

// GetEventForgeRequest binds the path for GET /events/:eventId.
type GetEventForgeRequest struct {
	EventID string `description:"Event identifier" path:"eventId"`
}

// EventInvocationsForgeRequest binds the path for GET /events/:eventId/invocations.
type EventInvocationsForgeRequest struct {
	EventID string `description:"Event identifier" path:"eventId"`
}

// ---------------------------------------------------------------------------
// Scheduled event queue requests
// ---------------------------------------------------------------------------

// CreateScheduledEventForgeRequest binds the body for POST /scheduled-events.
type CreateScheduledEventForgeRequest struct {
	Name          string          `description:"Scheduled trigger name"            json:"name"`
	ScheduledTime string          `description:"Delivery time (RFC3339)"           json:"scheduled_time"`
	Payload       json.RawMessage `description:"Payload override for this event"   json:"payload,omitempty"`
}

// ListScheduledEventsForgeRequest binds query parameters for GET /scheduled-events.
type ListScheduledEventsForgeRequest struct {
	Trigger string `description:"Filter by trigger name"  query:"trigger"`
	Offset  int    `description:"Pagination offset"       query:"offset"`
	Limit   int    `description:"Page size (default 50)"  query:"limit"`
}

// GetScheduledEventForgeRequest binds the path for GET /scheduled-events/:eventId.
type GetScheduledEventForgeRequest struct {
	EventID string `description:"Scheduled event identifier" path:"eventId"`
}

// CancelScheduledEventForgeRequest binds the path for DELETE /scheduled-events/:eventId.
type CancelScheduledEventForgeRequest struct {
	EventID string `description:"Scheduled event identifier" path:"eventId"`
}

// ScheduledInvocationsForgeRequest binds the path for GET /scheduled-events/:eventId/invocations.
type ScheduledInvocationsForgeRequest struct {
	EventID string `description:"Scheduled event identifier" path:"eventId"`
}

// ---------------------------------------------------------------------------
// Scheduled trigger requests
// ---------------------------------------------------------------------------

// UpsertScheduledTriggerForgeRequest binds the body for PUT /scheduled-triggers.
type UpsertScheduledTriggerForgeRequest struct {
	Name             string                `description:"Trigger name (unique)"                    json:"name"`
	Webhook          string                `description:"Webhook URL or env:NAME indirection"      json:"webhook"`
	Headers          []registry.HeaderSpec `description:"Delivery headers"                         json:"headers,omitempty"`
	Retry            registry.RetryConf    `description:"Retry policy"                             json:"retry_conf"`
	Schedule         registry.Schedule     `description:"Cron or ad-hoc schedule"                  json:"schedule"`
	Payload          json.RawMessage       `description:"Default delivery payload"                 json:"payload,omitempty"`
	ToleranceSeconds int                   `description:"Max lateness before events are dead"      json:"tolerance_seconds,omitempty"`
	PayloadSchema    json.RawMessage       `description:"JSON Schema for ad-hoc payload overrides" json:"payload_schema,omitempty"`
}

// ListScheduledTriggersForgeRequest is empty; GET /scheduled-triggers has no parameters.
type ListScheduledTriggersForgeRequest struct{}

// DeleteScheduledTriggerForgeRequest binds the path for DELETE /scheduled-triggers/:name.
type DeleteScheduledTriggerForgeRequest struct {
	Name string `description:"Trigger name" path:"name"`
}

// ---------------------------------------------------------------------------
// Stats requests
// ---------------------------------------------------------------------------

// StatsForgeRequest is empty; GET /stats has no parameters.
type StatsForgeRequest struct{}

// StatsForgeResponse is the response for GET /stats.
type StatsForgeResponse struct {
	EventTriggers     int              `json:"event_triggers"`
	ScheduledTriggers int              `json:"scheduled_triggers"`
	Scheduled         []schedule.Stats `json:"scheduled"`
}
