package sqlite

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

// SQLite has no native JSON column type; JSON payloads are stored as TEXT.

func jsonText(raw json.RawMessage) string {
	return string(raw)
}

func jsonRaw(s string) json.RawMessage {
	if s == "" {
		return nil
	}
	return json.RawMessage(s)
}

// --- Event queue models ---

type eventModel struct {
	grove.BaseModel `grove:"table:event_log"`

	ID          string     `grove:"id,pk"`
	SchemaName  string     `grove:"schema_name"`
	TableName   string     `grove:"table_name"`
	TriggerName string     `grove:"trigger_name"`
	Payload     string     `grove:"payload"`
	Tries       int        `grove:"tries"`
	Locked      bool       `grove:"locked"`
	Delivered   bool       `grove:"delivered"`
	Error       bool       `grove:"error"`
	Archived    bool       `grove:"archived"`
	NextRetryAt *time.Time `grove:"next_retry_at"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
}

func toEventModel(evt *event.Event) *eventModel {
	return &eventModel{
		ID:          evt.ID.String(),
		SchemaName:  evt.SchemaName,
		TableName:   evt.TableName,
		TriggerName: evt.TriggerName,
		Payload:     jsonText(evt.Payload),
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
		Payload:     jsonRaw(m.Payload),
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

	ID                string     `grove:"id,pk"`
	Name              string     `grove:"name"`
	ScheduledTime     time.Time  `grove:"scheduled_time"`
	AdditionalPayload string     `grove:"additional_payload"`
	Tries             int        `grove:"tries"`
	Locked            bool       `grove:"locked"`
	Delivered         bool       `grove:"delivered"`
	Error             bool       `grove:"error"`
	Dead              bool       `grove:"dead"`
	Cancelled         bool       `grove:"cancelled"`
	NextRetryAt       *time.Time `grove:"next_retry_at"`
	CreatedAt         time.Time  `grove:"created_at"`
	UpdatedAt         time.Time  `grove:"updated_at"`
}

func toScheduledEventModel(sev *schedule.ScheduledEvent) *scheduledEventModel {
	return &scheduledEventModel{
		ID:                sev.ID.String(),
		Name:              sev.Name,
		ScheduledTime:     sev.ScheduledTime,
		AdditionalPayload: jsonText(sev.AdditionalPayload),
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
		AdditionalPayload: jsonRaw(m.AdditionalPayload),
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

type eventInvocationModel struct {
	grove.BaseModel `grove:"table:event_invocation_logs"`

	ID        string    `grove:"id,pk"`
	EventID   string    `grove:"event_id"`
	Status    int       `grove:"status"`
	Request   string    `grove:"request"`
	Response  string    `grove:"response"`
	CreatedAt time.Time `grove:"created_at"`
}

type scheduledInvocationModel struct {
	grove.BaseModel `grove:"table:hdb_scheduled_event_invocation_logs"`

	ID        string    `grove:"id,pk"`
	EventID   string    `grove:"event_id"`
	Status    int       `grove:"status"`
	Request   string    `grove:"request"`
	Response  string    `grove:"response"`
	CreatedAt time.Time `grove:"created_at"`
}

func toEventInvocationModel(inv *invocation.Invocation) *eventInvocationModel {
	return &eventInvocationModel{
		ID:        inv.ID.String(),
		EventID:   inv.EventID.String(),
		Status:    inv.Status,
		Request:   jsonText(inv.Request),
		Response:  jsonText(inv.Response),
		CreatedAt: inv.CreatedAt,
	}
}

func toScheduledInvocationModel(inv *invocation.Invocation) *scheduledInvocationModel {
	return &scheduledInvocationModel{
		ID:        inv.ID.String(),
		EventID:   inv.EventID.String(),
		Status:    inv.Status,
		Request:   jsonText(inv.Request),
		Response:  jsonText(inv.Response),
		CreatedAt: inv.CreatedAt,
	}
}

func fromEventInvocationModel(m *eventInvocationModel) (*invocation.Invocation, error) {
	return invocationFromColumns(m.ID, m.EventID, m.Status, m.Request, m.Response, m.CreatedAt)
}

func fromScheduledInvocationModel(m *scheduledInvocationModel) (*invocation.Invocation, error) {
	return invocationFromColumns(m.ID, m.EventID, m.Status, m.Request, m.Response, m.CreatedAt)
}

func invocationFromColumns(rawID, rawEventID string, status int, req, resp string, createdAt time.Time) (*invocation.Invocation, error) {
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
		Request:   jsonRaw(req),
		Response:  jsonRaw(resp),
		CreatedAt: createdAt,
	}, nil
}

// --- Scheduled trigger config models ---

type scheduledTriggerModel struct {
	grove.BaseModel `grove:"table:hdb_scheduled_trigger"`

	Name             string    `grove:"name,pk"`
	Webhook          string    `grove:"webhook"`
	Headers          string    `grove:"headers"`
	RetryConf        string    `grove:"retry_conf"`
	Schedule         string    `grove:"schedule"`
	Payload          string    `grove:"payload"`
	ToleranceSeconds int       `grove:"tolerance_seconds"`
	PayloadSchema    string    `grove:"payload_schema"`
	SigningSecret    string    `grove:"signing_secret"`
	CreatedAt        time.Time `grove:"created_at"`
	UpdatedAt        time.Time `grove:"updated_at"`
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
		Headers:          string(headers),
		RetryConf:        string(retry),
		Schedule:         string(sched),
		Payload:          jsonText(spec.Payload),
		ToleranceSeconds: spec.ToleranceSeconds,
		PayloadSchema:    jsonText(spec.PayloadSchema),
		SigningSecret:    spec.SigningSecret,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func fromScheduledTriggerModel(m *scheduledTriggerModel) (*registry.ScheduledTriggerSpec, error) {
	spec := &registry.ScheduledTriggerSpec{
		Name:             m.Name,
		Webhook:          m.Webhook,
		Payload:          jsonRaw(m.Payload),
		ToleranceSeconds: m.ToleranceSeconds,
		PayloadSchema:    jsonRaw(m.PayloadSchema),
		SigningSecret:    m.SigningSecret,
	}
	if m.Headers != "" {
		if err := json.Unmarshal([]byte(m.Headers), &spec.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers for trigger %q: %w", m.Name, err)
		}
	}
	if m.RetryConf != "" {
		if err := json.Unmarshal([]byte(m.RetryConf), &spec.Retry); err != nil {
			return nil, fmt.Errorf("unmarshal retry conf for trigger %q: %w", m.Name, err)
		}
	}
	if m.Schedule != "" {
		if err := json.Unmarshal([]byte(m.Schedule), &spec.Schedule); err != nil {
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
