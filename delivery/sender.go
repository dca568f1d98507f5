package delivery

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/xraph/trigger/invocation"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/signature"
)

const (
	userAgent       = "trigger/1.0"
	maxResponseBody = 64 * 1024 // cap on response body stored in invocation logs
)

// Request describes one composed delivery: where to send, what to send,
// and under which policy.
type Request struct {
	// Webhook is the resolved delivery URL.
	Webhook string

	// Headers are the trigger-configured headers. They win over the
	// defaults on name collision.
	Headers []registry.Header

	// Body is the JSON envelope.
	Body []byte

	// Timeout is the per-attempt limit. Zero means the 60s default.
	Timeout time.Duration

	// SigningSecret, when set, adds HMAC signature headers.
	SigningSecret string
}

// DefaultTimeout is the per-attempt HTTP timeout when a trigger does not
// configure one.
const DefaultTimeout = 60 * time.Second

// Sender performs HTTP webhook delivery and classifies results.
type Sender struct {
	client *http.Client
	logger *slog.Logger
}

// NewSender creates a sender. Timeouts are applied per attempt from the
// trigger's retry policy, not on the shared client.
func NewSender(logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		client: &http.Client{},
		logger: logger.With("category", "http_log"),
	}
}

// Send performs one delivery attempt and returns its classified outcome.
// It never returns an error: every failure mode is an Outcome variant.
func (s *Sender) Send(ctx context.Context, r Request) Outcome {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Webhook, bytes.NewReader(r.Body))
	if err != nil {
		return Outcome{
			Kind:    OutcomeOtherError,
			Status:  StatusOtherError,
			Message: "create request: " + err.Error(),
		}
	}

	// Default headers first; configured headers win on collision.
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for _, h := range r.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	if r.SigningSecret != "" {
		ts := time.Now().Unix()
		req.Header.Set("X-Trigger-Signature", signature.Sign(r.Body, r.SigningSecret, ts))
		req.Header.Set("X-Trigger-Timestamp", strconv.FormatInt(ts, 10))
	}

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G704: URL is a user-configured webhook destination; SSRF is by design.
	latency := time.Since(start).Milliseconds()

	if err != nil {
		s.logger.DebugContext(ctx, "webhook transport failure",
			"url", r.Webhook, "error", err, "latency_ms", latency)
		return Outcome{
			Kind:      OutcomeTransportError,
			Status:    StatusTransportError,
			Message:   err.Error(),
			LatencyMs: int(latency),
		}
	}
	defer resp.Body.Close()

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Outcome{
			Kind:       OutcomeParseError,
			Status:     StatusParseError,
			Message:    "read response: " + readErr.Error(),
			RetryAfter: retryAfter,
			LatencyMs:  int(latency),
		}
	}

	s.logger.DebugContext(ctx, "webhook response",
		"url", r.Webhook, "status", resp.StatusCode, "latency_ms", latency)

	return Outcome{
		Kind:       OutcomeResponse,
		Status:     resp.StatusCode,
		Body:       string(body),
		Headers:    headerFields(resp.Header),
		RetryAfter: retryAfter,
		LatencyMs:  int(latency),
	}
}

// RequestHeaders returns the full header set a delivery will carry, in
// invocation wire form. Used for the invocation log's request envelope.
func RequestHeaders(headers []registry.Header) []invocation.HeaderField {
	out := []invocation.HeaderField{
		{Name: "Content-Type", Value: "application/json"},
		{Name: "User-Agent", Value: userAgent},
	}
	for _, h := range headers {
		replaced := false
		for i := range out {
			if out[i].Name == h.Name {
				out[i].Value = h.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, invocation.HeaderField{Name: h.Name, Value: h.Value})
		}
	}
	return out
}

// parseRetryAfter accepts a positive integer number of seconds. Negative,
// zero, or unparseable values (including HTTP-date forms) are ignored.
func parseRetryAfter(v string) *int {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// headerFields flattens response headers into the invocation wire form,
// sorted by name for deterministic logs.
func headerFields(h http.Header) []invocation.HeaderField {
	out := make([]invocation.HeaderField, 0, len(h))
	for name, values := range h {
		for _, v := range values {
			out = append(out, invocation.HeaderField{Name: name, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Value < out[j].Value
	})
	return out
}
