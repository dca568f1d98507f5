package delivery_test

import (
	"testing"
	"time"

	"github.com/xraph/trigger/delivery"
	"github.com/xraph/trigger/registry"
)

func intPtr(n int) *int { return &n }

func TestDecide(t *testing.T) {
	rc := registry.RetryConf{NumRetries: 2, IntervalSeconds: 10, TimeoutSeconds: 60}

	tests := []struct {
		name    string
		outcome delivery.Outcome
		tries   int
		want    delivery.Decision
	}{
		{
			name:    "200 OK → Delivered",
			outcome: delivery.Outcome{Kind: delivery.OutcomeResponse, Status: 200},
			tries:   0,
			want:    delivery.Delivered,
		},
		{
			name:    "100 Continue → Delivered",
			outcome: delivery.Outcome{Kind: delivery.OutcomeResponse, Status: 100},
			tries:   0,
			want:    delivery.Delivered,
		},
		{
			name:    "302 Found → Delivered",
			outcome: delivery.Outcome{Kind: delivery.OutcomeResponse, Status: 302},
			tries:   0,
			want:    delivery.Delivered,
		},
		{
			name:    "400 Bad Request → Retry (tries remain)",
			outcome: delivery.Outcome{Kind: delivery.OutcomeResponse, Status: 400},
			tries:   0,
			want:    delivery.Retry,
		},
		{
			name:    "500 on last allowed try → Retry",
			outcome: delivery.Outcome{Kind: delivery.OutcomeResponse, Status: 500},
			tries:   1,
			want:    delivery.Retry,
		},
		{
			name:    "500 with tries exhausted → Errored",
			outcome: delivery.Outcome{Kind: delivery.OutcomeResponse, Status: 500},
			tries:   2,
			want:    delivery.Errored,
		},
		{
			name:    "transport error with tries remaining → Retry",
			outcome: delivery.Outcome{Kind: delivery.OutcomeTransportError, Status: delivery.StatusTransportError},
			tries:   0,
			want:    delivery.Retry,
		},
		{
			name:    "transport error exhausted → Errored",
			outcome: delivery.Outcome{Kind: delivery.OutcomeTransportError, Status: delivery.StatusTransportError},
			tries:   2,
			want:    delivery.Errored,
		},
		{
			name:    "Retry-After overrides exhaustion",
			outcome: delivery.Outcome{Kind: delivery.OutcomeResponse, Status: 429, RetryAfter: intPtr(30)},
			tries:   5,
			want:    delivery.Retry,
		},
		{
			name:    "success ignores Retry-After",
			outcome: delivery.Outcome{Kind: delivery.OutcomeResponse, Status: 200, RetryAfter: intPtr(30)},
			tries:   0,
			want:    delivery.Delivered,
		},
		{
			name:    "parse error with tries remaining → Retry",
			outcome: delivery.Outcome{Kind: delivery.OutcomeParseError, Status: delivery.StatusParseError},
			tries:   1,
			want:    delivery.Retry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := delivery.Decide(tt.outcome, tt.tries, rc)
			if got != tt.want {
				t.Errorf("Decide() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecideZeroRetries(t *testing.T) {
	// num_retries=0 means exactly one attempt.
	rc := registry.RetryConf{NumRetries: 0, IntervalSeconds: 10, TimeoutSeconds: 60}
	o := delivery.Outcome{Kind: delivery.OutcomeResponse, Status: 503}

	if got := delivery.Decide(o, 0, rc); got != delivery.Errored {
		t.Errorf("expected Errored on first failure with num_retries=0, got %d", got)
	}
}

func TestDecideAttemptBudget(t *testing.T) {
	// num_retries=2 allows three attempts total: tries 0 and 1 retry, try 2
	// errors out.
	rc := registry.RetryConf{NumRetries: 2, IntervalSeconds: 10, TimeoutSeconds: 60}
	o := delivery.Outcome{Kind: delivery.OutcomeResponse, Status: 500}

	for tries := 0; tries < 2; tries++ {
		if got := delivery.Decide(o, tries, rc); got != delivery.Retry {
			t.Errorf("tries=%d: expected Retry, got %d", tries, got)
		}
	}
	if got := delivery.Decide(o, 2, rc); got != delivery.Errored {
		t.Errorf("tries=2: expected Errored, got %d", got)
	}
}

func TestNextRetryAt(t *testing.T) {
	rc := registry.RetryConf{NumRetries: 3, IntervalSeconds: 45, TimeoutSeconds: 60}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// No Retry-After: configured interval.
	o := delivery.Outcome{Kind: delivery.OutcomeResponse, Status: 500}
	got := delivery.NextRetryAt(now, o, rc)
	if want := now.Add(45 * time.Second); !got.Equal(want) {
		t.Errorf("NextRetryAt() = %v, want %v", got, want)
	}

	// Retry-After wins over the interval.
	o.RetryAfter = intPtr(120)
	got = delivery.NextRetryAt(now, o, rc)
	if want := now.Add(120 * time.Second); !got.Equal(want) {
		t.Errorf("NextRetryAt() with Retry-After = %v, want %v", got, want)
	}
}
