// Package delivery implements the shared HTTP delivery pipeline: request
// composition, dispatch, outcome classification, and retry decisions.
package delivery

import (
	"github.com/xraph/trigger/invocation"
)

// Synthesized client-error statuses stored in invocation logs. Any status
// >= 1000 denotes a failure on our side of the wire; real HTTP codes never
// collide with these.
const (
	// StatusTransportError covers DNS, connect, TLS and timeout failures.
	StatusTransportError = 1000

	// StatusParseError covers failures reading the response body.
	StatusParseError = 1001

	// StatusOtherError covers any other framework-level failure, such as
	// request construction.
	StatusOtherError = 500
)

// OutcomeKind classifies the result of one delivery attempt.
type OutcomeKind int

const (
	// OutcomeResponse means the webhook returned an HTTP response.
	OutcomeResponse OutcomeKind = iota

	// OutcomeTransportError means the request never produced a response.
	OutcomeTransportError

	// OutcomeParseError means the response arrived but its body could not
	// be read.
	OutcomeParseError

	// OutcomeOtherError means the attempt failed before dispatch.
	OutcomeOtherError
)

// Outcome is the explicit result of a single delivery attempt.
type Outcome struct {
	Kind OutcomeKind

	// Status is the value stored in the invocation log: the real HTTP
	// status for OutcomeResponse, a synthesized >= 1000 status otherwise.
	Status int

	// Body and Headers hold the webhook response for OutcomeResponse.
	Body    string
	Headers []invocation.HeaderField

	// Message holds the client error detail for the non-response kinds.
	Message string

	// RetryAfter is the parsed Retry-After header in seconds, when the
	// response carried a positive integer value. Nil otherwise.
	RetryAfter *int

	// LatencyMs is the attempt duration.
	LatencyMs int
}

// Success reports whether the attempt counts as delivered: an HTTP
// response with 100 <= status < 400.
func (o Outcome) Success() bool {
	return o.Kind == OutcomeResponse && o.Status >= 100 && o.Status < 400
}

// Response builds the invocation response envelope for this outcome.
func (o Outcome) Response() invocation.Response {
	if o.Kind == OutcomeResponse {
		return invocation.WebhookResponse(o.Status, o.Body, o.Headers)
	}
	return invocation.ClientError(o.Message)
}
