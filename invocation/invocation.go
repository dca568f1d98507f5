// Package invocation defines the delivery attempt record and its wire
// envelopes.
//
// Every delivery attempt, successful or not, produces exactly one
// invocation row holding the serialized request and response. The row is
// written in the same transaction as the queue state transition, and that
// write is the single place the event's tries counter is incremented.
package invocation

import (
	"encoding/json"
	"time"

	"github.com/xraph/trigger/id"
)

// Version is the invocation wire format version literal.
const Version = "2"

// Invocation is one recorded delivery attempt.
type Invocation struct {
	// ID is the unique TypeID for this invocation row.
	ID id.ID `json:"id"`

	// EventID references the queue row this attempt belongs to.
	EventID id.ID `json:"event_id"`

	// Status is the stored HTTP status. Values >= 1000 denote synthesized
	// client errors; real HTTP codes never collide with them.
	Status int `json:"status"`

	// Request is the serialized request envelope (payload, headers,
	// version).
	Request json.RawMessage `json:"request"`

	// Response is the serialized response envelope (webhook_response or
	// client_error).
	Response json.RawMessage `json:"response"`

	// CreatedAt is when the attempt was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// HeaderField is a single header in the invocation wire format.
type HeaderField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Request is the serialized request half of an invocation.
type Request struct {
	Payload json.RawMessage `json:"payload"`
	Headers []HeaderField   `json:"headers"`
	Version string          `json:"version"`
}

// NewRequest builds a request envelope with the current wire version.
func NewRequest(payload json.RawMessage, headers []HeaderField) Request {
	return Request{
		Payload: payload,
		Headers: headers,
		Version: Version,
	}
}

// Response is the serialized response half of an invocation. Data is one of
// webhookResponseData or clientErrorData depending on Type.
type Response struct {
	Type    string          `json:"type"`
	Version string          `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Response type discriminators.
const (
	TypeWebhookResponse = "webhook_response"
	TypeClientError     = "client_error"
)

type webhookResponseData struct {
	Body    string        `json:"body"`
	Headers []HeaderField `json:"headers"`
	Status  int           `json:"status"`
}

type clientErrorData struct {
	Message string `json:"message"`
}

// WebhookResponse builds the response envelope for an HTTP response the
// webhook actually returned.
func WebhookResponse(status int, body string, headers []HeaderField) Response {
	data, _ := json.Marshal(webhookResponseData{
		Body:    body,
		Headers: headers,
		Status:  status,
	})
	return Response{Type: TypeWebhookResponse, Version: Version, Data: data}
}

// ClientError builds the response envelope for a failure on our side of the
// wire (transport error, body read failure, framework error).
func ClientError(message string) Response {
	data, _ := json.Marshal(clientErrorData{Message: message})
	return Response{Type: TypeClientError, Version: Version, Data: data}
}

// Marshal serializes a request or response envelope for storage.
func Marshal(v any) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
