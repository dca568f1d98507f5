package delivery

import (
	"time"

	"github.com/xraph/trigger/registry"
)

// Decision is the outcome of evaluating a delivery attempt.
type Decision int

const (
	// Delivered means the attempt succeeded (100 <= status < 400).
	Delivered Decision = iota

	// Retry means the row should be rescheduled via next_retry_at.
	Retry

	// Errored means retries are exhausted and the row is terminal.
	Errored
)

// Decide determines what to do with a row after an attempt.
//
// Decision matrix:
//   - 100–399 → Delivered
//   - failure with a positive Retry-After header → Retry, even when tries
//     are exhausted (the webhook asked us back)
//   - failure with tries remaining (tries < num_retries) → Retry
//   - otherwise → Errored
//
// tries is the attempt count recorded before this attempt, so a trigger
// with num_retries=N makes at most N+1 attempts.
func Decide(o Outcome, tries int, rc registry.RetryConf) Decision {
	if o.Success() {
		return Delivered
	}
	if o.RetryAfter != nil {
		return Retry
	}
	if tries < rc.NumRetries {
		return Retry
	}
	return Errored
}

// NextRetryAt computes when a retried row becomes eligible again: the
// Retry-After seconds when the webhook supplied them, else the configured
// interval.
func NextRetryAt(now time.Time, o Outcome, rc registry.RetryConf) time.Time {
	if o.RetryAfter != nil {
		return now.Add(time.Duration(*o.RetryAfter) * time.Second)
	}
	return now.Add(time.Duration(rc.IntervalSeconds) * time.Second)
}
