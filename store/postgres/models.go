package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/trigger/event"
	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/internal/entity"
	"github.com/xraph/trigger/invocation"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/schedule"
)

// --- Event queue models ---

type eventModel struct {
	grove.BaseModel `grove:"table:event_log"`

	ID          string          `grove:"id,pk"`
	SchemaName  string          `grove:"schema_name"`
	TableName   string          `grove:"table_name"`
	TriggerName string          `grove:"trigger_name"`
	Payload     json.RawMessage `grove:"payload,type:jsonb"`
	Tries       int             `grove:"tries"`
	Locked      bool            `grove:"locked"`
	Delivered   bool            `grove:"delivered"`
	Error       bool            `grove:"error"`
	Archived    bool            `grove:"archived"`
	NextRetryAt *time.Time      `grove:"next_retry_at"`
	CreatedAt   time.Time       `grove:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:          evt.ID.String(),
		SchemaName:  evt.SchemaName,
		TableName:   evt.TableName,
		TriggerName: evt.TriggerName,
		Payload:     evt.Payload,
		Tries:       evt.Tries,
		Locked:      evt.Locked,
		Delivered:   evt.Delivered,
		Error:       evt.Error,
		Archived:    evt.Archived,
		NextRetryAt: evt.NextRetryAt,
		CreatedAt:   evt.CreatedAt,
		UpdatedAt:   evt.UpdatedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	evtID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse event ID %q: %w", m.ID, err)
	}
	return &event.Event{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          evtID,
		SchemaName:  m.SchemaName,
		TableName:   m.TableName,
		TriggerName: m.TriggerName,
		Payload:     m.Payload,
		Tries:       m.Tries,
		Locked:      m.Locked,
		Delivered:   m.Delivered,
		Error:       m.Error,
		Archived:    m.Archived,
		NextRetryAt: m.NextRetryAt,
	}, nil
}

// --- Scheduled queue models ---

type scheduledEventModel struct {
	grove.BaseModel `grove:"table:hdb_scheduled_events"`

	ID                string          `grove:"id,pk"`
	Name              string          `grove:"name"`
	ScheduledTime     time.Time       `grove:"scheduled_time"`
	AdditionalPayload json.RawMessage `grove:"additional_payload,type:jsonb"`
	Tries             int             `grove:"tries"`
	Locked            bool            `grove:"locked"`
	Delivered         bool            `grove:"delivered"`
	Error             bool            `grove:"error"`
	Dead              bool            `grove:"dead"`
	Cancelled         bool            `grove:"cancelled"`
	NextRetryAt       *time.Time      `grove:"next_retry_at"`
	CreatedAt         time.Time       `grove:"created_at"`
	UpdatedAt         time.Time       `grove:"updated_at"`
}

func toScheduledEventModel(sev *schedule.ScheduledEvent) *scheduledEventModel {
	return &scheduledEventModel{
		ID:                sev.ID.String(),
		Name:              sev.Name,
		ScheduledTime:     sev.ScheduledTime,
		AdditionalPayload: sev.AdditionalPayload,
		Tries:             sev.Tries,
		Locked:            sev.Locked,
		Delivered:         sev.Delivered,
		Error:             sev.Error,
		Dead:              sev.Dead,
		Cancelled:         sev.Cancelled,
		NextRetryAt:       sev.NextRetryAt,
		CreatedAt:         sev.CreatedAt,
		UpdatedAt:         sev.UpdatedAt,
	}
}

func fromScheduledEventModel(m *scheduledEventModel) (*schedule.ScheduledEvent, error) {
	sevID, err := id.ParseScheduledEventID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse scheduled event ID %q: %w", m.ID, err)
	}
	return &schedule.ScheduledEvent{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                sevID,
		Name:              m.Name,
		ScheduledTime:     m.ScheduledTime,
		AdditionalPayload: m.AdditionalPayload,
		Tries:             m.Tries,
		Locked:            m.Locked,
		Delivered:         m.Delivered,
		Error:             m.Error,
		Dead:              m.Dead,
		Cancelled:         m.Cancelled,
		NextRetryAt:       m.NextRetryAt,
	}, nil
}

// --- Invocation log models ---
//
// The two queues keep separate invocation tables with identical shapes, so
// listing one queue's history never scans the other's.

type eventInvocationModel struct {
	grove.BaseModel `grove:"table:event_invocation_logs"`

	ID        string          `grove:"id,pk"`
	EventID   string          `grove:"event_id"`
	Status    int             `grove:"status"`
	Request   json.RawMessage `grove:"request,type:jsonb"`
	Response  json.RawMessage `grove:"response,type:jsonb"`
	CreatedAt time.Time       `grove:"created_at"`
}

type scheduledInvocationModel struct {
	grove.BaseModel `grove:"table:hdb_scheduled_event_invocation_logs"`

	ID        string          `grove:"id,pk"`
	EventID   string          `grove:"event_id"`
	Status    int             `grove:"status"`
	Request   json.RawMessage `grove:"request,type:jsonb"`
	Response  json.RawMessage `grove:"response,type:jsonb"`
	CreatedAt time.Time       `grove:"created_at"`
}

func fromEventInvocationModel(m *eventInvocationModel) (*invocation.Invocation, error) {
	return invocationFromColumns(m.ID, m.EventID, m.Status, m.Request, m.Response, m.CreatedAt)
}

func fromScheduledInvocationModel(m *scheduledInvocationModel) (*invocation.Invocation, error) {
	return invocationFromColumns(m.ID, m.EventID, m.Status, m.Request, m.Response, m.CreatedAt)
}

func invocationFromColumns(rawID, rawEventID string, status int, req, resp json.RawMessage, createdAt time.Time) (*invocation.Invocation, error) {
	invID, err := id.ParseInvocationID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse invocation ID %q: %w", rawID, err)
	}
	evtID, err := id.ParseAny(rawEventID)
	if err != nil {
		return nil, fmt.Errorf("parse invocation event ID %q: %w", rawEventID, err)
	}
	return &invocation.Invocation{
		ID:        invID,
		EventID:   evtID,
		Status:    status,
		Request:   req,
		Response:  resp,
		CreatedAt: createdAt,
	}, nil
}

// --- Scheduled trigger config models ---

type scheduledTriggerModel struct {
	grove.BaseModel `grove:"table:hdb_scheduled_trigger"`

	Name             string          `grove:"name,pk"`
	Webhook          string          `grove:"webhook"`
	Headers          json.RawMessage `grove:"headers,type:jsonb"`
	RetryConf        json.RawMessage `grove:"retry_conf,type:jsonb"`
	Schedule         json.RawMessage `grove:"schedule,type:jsonb"`
	Payload          json.RawMessage `grove:"payload,type:jsonb"`
	ToleranceSeconds int             `grove:"tolerance_seconds"`
	PayloadSchema    json.RawMessage `grove:"payload_schema,type:jsonb"`
	SigningSecret    string          `grove:"signing_secret"`
	CreatedAt        time.Time       `grove:"created_at"`
	UpdatedAt        time.Time       `grove:"updated_at"`
}

func toScheduledTriggerModel(spec *registry.ScheduledTriggerSpec) (*scheduledTriggerModel, error) {
	headers, err := json.Marshal(spec.Headers)
	if err != nil {
		return nil, fmt.Errorf("marshal headers for trigger %q: %w", spec.Name, err)
	}
	retry, err := json.Marshal(spec.Retry)
	if err != nil {
		return nil, fmt.Errorf("marshal retry conf for trigger %q: %w", spec.Name, err)
	}
	sched, err := json.Marshal(spec.Schedule)
	if err != nil {
		return nil, fmt.Errorf("marshal schedule for trigger %q: %w", spec.Name, err)
	}
	now := time.Now().UTC()
	return &scheduledTriggerModel{
		Name:             spec.Name,
		Webhook:          spec.Webhook,
		Headers:          headers,
		RetryConf:        retry,
		Schedule:         sched,
		Payload:          spec.Payload,
		ToleranceSeconds: spec.ToleranceSeconds,
		PayloadSchema:    spec.PayloadSchema,
		SigningSecret:    spec.SigningSecret,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func fromScheduledTriggerModel(m *scheduledTriggerModel) (*registry.ScheduledTriggerSpec, error) {
	spec := &registry.ScheduledTriggerSpec{
		Name:             m.Name,
		Webhook:          m.Webhook,
		Payload:          m.Payload,
		ToleranceSeconds: m.ToleranceSeconds,
		PayloadSchema:    m.PayloadSchema,
		SigningSecret:    m.SigningSecret,
	}
	if len(m.Headers) > 0 {
		if err := json.Unmarshal(m.Headers, &spec.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers for trigger %q: %w", m.Name, err)
		}
	}
	if len(m.RetryConf) > 0 {
		if err := json.Unmarshal(m.RetryConf, &spec.Retry); err != nil {
			return nil, fmt.Errorf("unmarshal retry conf for trigger %q: %w", m.Name, err)
		}
	}
	if len(m.Schedule) > 0 {
		if err := json.Unmarshal(m.Schedule, &spec.Schedule); err != nil {
			return nil, fmt.Errorf("unmarshal schedule for trigger %q: %w", m.Name, err)
		}
	}
	return spec, nil
}

// --- Stats view model ---

type scheduledStatsModel struct {
	grove.BaseModel `grove:"table:hdb_scheduled_events_stats"`

	Name                string     `grove:"name"`
	UpcomingEventsCount int        `grove:"upcoming_events_count"`
	MaxScheduledTime    *time.Time `grove:"max_scheduled_time"`
}

func fromScheduledStatsModel(m *scheduledStatsModel) schedule.Stats {
	st := schedule.Stats{
		Name:                m.Name,
		UpcomingEventsCount: m.UpcomingEventsCount,
	}
	if m.MaxScheduledTime != nil {
		st.MaxScheduledTime = *m.MaxScheduledTime
	}
	return st
}
