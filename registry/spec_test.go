package registry_test

import (
	"strings"
	"testing"

	"github.com/xraph/trigger/registry"
)

func TestEventTriggerSpecResolveDefaults(t *testing.T) {
	et, err := registry.EventTriggerSpec{
		Name:    "users_insert",
		Webhook: "https://example.com/hook",
	}.Resolve()
	if err != nil {
		t.Fatal(err)
	}

	if et.Retry.NumRetries != 0 {
		t.Errorf("NumRetries = %d, want 0", et.Retry.NumRetries)
	}
	if et.Retry.IntervalSeconds != 10 {
		t.Errorf("IntervalSeconds = %d, want 10", et.Retry.IntervalSeconds)
	}
	if et.Retry.TimeoutSeconds != 60 {
		t.Errorf("TimeoutSeconds = %d, want 60", et.Retry.TimeoutSeconds)
	}
}

func TestScheduledTriggerSpecResolveTolerance(t *testing.T) {
	st, err := registry.ScheduledTriggerSpec{
		Name:     "nightly",
		Webhook:  "https://example.com/hook",
		Schedule: registry.Schedule{Kind: registry.ScheduleCron, Cron: "0 0 * * *"},
	}.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if st.ToleranceSeconds != registry.DefaultToleranceSeconds {
		t.Errorf("ToleranceSeconds = %d, want default %d", st.ToleranceSeconds, registry.DefaultToleranceSeconds)
	}

	st, err = registry.ScheduledTriggerSpec{
		Name:             "tight",
		Webhook:          "https://example.com/hook",
		Schedule:         registry.Schedule{Kind: registry.ScheduleAdHoc},
		ToleranceSeconds: 30,
	}.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if st.ToleranceSeconds != 30 {
		t.Errorf("ToleranceSeconds = %d, want 30", st.ToleranceSeconds)
	}
}

func TestResolveWebhookEnvIndirection(t *testing.T) {
	t.Setenv("HOOK_URL", "https://env.example.com/hook")

	got, err := registry.ResolveWebhook("env:HOOK_URL")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://env.example.com/hook" {
		t.Errorf("webhook = %q", got)
	}

	// Literal URLs pass through untouched.
	got, err = registry.ResolveWebhook("https://plain.example.com/hook")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://plain.example.com/hook" {
		t.Errorf("webhook = %q", got)
	}
}

func TestResolveWebhookMissingEnv(t *testing.T) {
	_, err := registry.ResolveWebhook("env:TRIGGER_TEST_UNSET_VAR")
	if err == nil {
		t.Fatal("expected error for unset environment variable")
	}
	if !strings.Contains(err.Error(), "TRIGGER_TEST_UNSET_VAR") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestResolveHeaders(t *testing.T) {
	t.Setenv("API_TOKEN", "secret-token")

	headers, err := registry.ResolveHeaders([]registry.HeaderSpec{
		{Name: "X-Static", Value: "static-value"},
		{Name: "Authorization", ValueFromEnv: "API_TOKEN"},
		{Name: "X-Indirect", Value: "env:API_TOKEN"},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []registry.Header{
		{Name: "X-Static", Value: "static-value"},
		{Name: "Authorization", Value: "secret-token"},
		{Name: "X-Indirect", Value: "secret-token"},
	}
	if len(headers) != len(want) {
		t.Fatalf("got %d headers, want %d", len(headers), len(want))
	}
	for i := range want {
		if headers[i] != want[i] {
			t.Errorf("headers[%d] = %+v, want %+v", i, headers[i], want[i])
		}
	}
}

func TestResolveHeadersMissingEnv(t *testing.T) {
	_, err := registry.ResolveHeaders([]registry.HeaderSpec{
		{Name: "Authorization", ValueFromEnv: "TRIGGER_TEST_UNSET_VAR"},
	})
	if err == nil {
		t.Fatal("expected error for unset environment variable")
	}
}

func TestRetryConfClampsNegativeRetries(t *testing.T) {
	et, err := registry.EventTriggerSpec{
		Name:    "t",
		Webhook: "https://example.com/hook",
		Retry:   registry.RetryConf{NumRetries: -3, IntervalSeconds: 5, TimeoutSeconds: 20},
	}.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if et.Retry.NumRetries != 0 {
		t.Errorf("NumRetries = %d, want 0", et.Retry.NumRetries)
	}
	if et.Retry.IntervalSeconds != 5 || et.Retry.TimeoutSeconds != 20 {
		t.Errorf("explicit values must survive: %+v", et.Retry)
	}
}
