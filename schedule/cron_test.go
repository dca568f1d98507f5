package schedule_test

import (
	"testing"
	"time"

	"github.com/xraph/trigger/schedule"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr bool
	}{
		{"five-field", "*/5 * * * *", false},
		{"six-field with seconds", "30 */5 * * * *", false},
		{"daily at midnight", "0 0 * * *", false},
		{"empty", "", true},
		{"garbage", "not a cron", true},
		{"too many fields", "* * * * * * *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schedule.ParseCron(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCron(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestCronNextStrictlyAfter(t *testing.T) {
	c, err := schedule.ParseCron("0 * * * *") // top of every hour
	if err != nil {
		t.Fatal(err)
	}

	// From exactly on a firing time, Next must return the following one.
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next := c.Next(at)
	if want := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", at, next, want)
	}

	// From mid-hour, Next rounds up.
	at = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	next = c.Next(at)
	if want := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", at, next, want)
	}
}

func TestCronMatches(t *testing.T) {
	c, err := schedule.ParseCron("*/15 * * * *")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC), true},
		{time.Date(2026, 3, 1, 12, 15, 0, 500_000_000, time.UTC), true}, // sub-second truncated
		{time.Date(2026, 3, 1, 12, 16, 0, 0, time.UTC), false},
		{time.Date(2026, 3, 1, 12, 15, 30, 0, time.UTC), false},
	}

	for _, tt := range tests {
		if got := c.Matches(tt.at); got != tt.want {
			t.Errorf("Matches(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestGenerateScheduleTimes(t *testing.T) {
	c, err := schedule.ParseCron("0 * * * *")
	if err != nil {
		t.Fatal(err)
	}

	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	times := schedule.GenerateScheduleTimes(c, from, 5)

	if len(times) != 5 {
		t.Fatalf("expected 5 times, got %d", len(times))
	}

	// Strictly after from, strictly increasing, one hour apart.
	prev := from
	for i, tm := range times {
		if !tm.After(prev) {
			t.Errorf("times[%d] = %v not strictly after %v", i, tm, prev)
		}
		if want := from.Add(time.Duration(i+1) * time.Hour); !tm.Equal(want) {
			t.Errorf("times[%d] = %v, want %v", i, tm, want)
		}
		prev = tm
	}
}

func TestGenerateScheduleTimesZeroCount(t *testing.T) {
	c, err := schedule.ParseCron("0 0 * * *")
	if err != nil {
		t.Fatal(err)
	}
	if times := schedule.GenerateScheduleTimes(c, time.Now().UTC(), 0); len(times) != 0 {
		t.Errorf("expected no times, got %d", len(times))
	}
}
