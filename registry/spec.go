package registry

import (
	"encoding/json"
	"fmt"
)

// Default retry policy applied when a trigger omits one.
var DefaultRetryConf = RetryConf{
	NumRetries:      0,
	IntervalSeconds: 10,
	TimeoutSeconds:  60,
}

// DefaultToleranceSeconds is the default lateness tolerance for scheduled
// triggers (6 hours).
const DefaultToleranceSeconds = 6 * 60 * 60

// EventTriggerSpec is the unresolved configuration for a row-change
// trigger, as supplied by the host application's metadata. Webhook and
// header values may use "env:NAME" indirection.
type EventTriggerSpec struct {
	Name          string       `json:"name"`
	Webhook       string       `json:"webhook"`
	Headers       []HeaderSpec `json:"headers,omitempty"`
	Retry         RetryConf    `json:"retry_conf"`
	SigningSecret string       `json:"-"`
}

// Resolve applies env indirection and defaults, producing the cached
// resolved form the engine delivers against.
func (s EventTriggerSpec) Resolve() (*EventTrigger, error) {
	webhook, err := ResolveWebhook(s.Webhook)
	if err != nil {
		return nil, fmt.Errorf("trigger %q: %w", s.Name, err)
	}
	headers, err := ResolveHeaders(s.Headers)
	if err != nil {
		return nil, fmt.Errorf("trigger %q: %w", s.Name, err)
	}
	return &EventTrigger{
		Name:          s.Name,
		Webhook:       webhook,
		Headers:       headers,
		Retry:         withRetryDefaults(s.Retry),
		SigningSecret: s.SigningSecret,
	}, nil
}

// ScheduledTriggerSpec is the unresolved configuration for a time-based
// trigger, as persisted in the hdb_scheduled_trigger table.
type ScheduledTriggerSpec struct {
	Name             string          `json:"name"`
	Webhook          string          `json:"webhook"`
	Headers          []HeaderSpec    `json:"headers,omitempty"`
	Retry            RetryConf       `json:"retry_conf"`
	Schedule         Schedule        `json:"schedule"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	ToleranceSeconds int             `json:"tolerance_seconds,omitempty"`
	PayloadSchema    json.RawMessage `json:"payload_schema,omitempty"`
	SigningSecret    string          `json:"-"`
}

// Resolve applies env indirection and defaults.
func (s ScheduledTriggerSpec) Resolve() (*ScheduledTrigger, error) {
	webhook, err := ResolveWebhook(s.Webhook)
	if err != nil {
		return nil, fmt.Errorf("trigger %q: %w", s.Name, err)
	}
	headers, err := ResolveHeaders(s.Headers)
	if err != nil {
		return nil, fmt.Errorf("trigger %q: %w", s.Name, err)
	}

	tolerance := s.ToleranceSeconds
	if tolerance <= 0 {
		tolerance = DefaultToleranceSeconds
	}

	return &ScheduledTrigger{
		Name:             s.Name,
		Webhook:          webhook,
		Headers:          headers,
		Retry:            withRetryDefaults(s.Retry),
		Schedule:         s.Schedule,
		Payload:          s.Payload,
		ToleranceSeconds: tolerance,
		PayloadSchema:    s.PayloadSchema,
		SigningSecret:    s.SigningSecret,
	}, nil
}

func withRetryDefaults(rc RetryConf) RetryConf {
	if rc.IntervalSeconds <= 0 {
		rc.IntervalSeconds = DefaultRetryConf.IntervalSeconds
	}
	if rc.TimeoutSeconds <= 0 {
		rc.TimeoutSeconds = DefaultRetryConf.TimeoutSeconds
	}
	if rc.NumRetries < 0 {
		rc.NumRetries = 0
	}
	return rc
}
