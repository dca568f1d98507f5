package schedule

import (
	"fmt"
	"time"

	cron "github.com/robfig/cron/v3"
)

// cronParser accepts standard five-field expressions plus an optional
// leading seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Cron is a parsed cron expression, evaluated in UTC.
type Cron struct {
	expr  string
	sched cron.Schedule
}

// ParseCron parses a five/six-field cron expression.
func ParseCron(expr string) (*Cron, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: parse cron %q: %w", expr, err)
	}
	return &Cron{expr: expr, sched: sched}, nil
}

// String returns the original expression.
func (c *Cron) String() string { return c.expr }

// Next returns the first firing time strictly after t, in UTC.
// Successive calls through the returned values are strictly monotonically
// increasing.
func (c *Cron) Next(t time.Time) time.Time {
	return c.sched.Next(t.UTC())
}

// Matches reports whether t (truncated to seconds) is a firing time of the
// expression.
func (c *Cron) Matches(t time.Time) bool {
	t = t.UTC().Truncate(time.Second)
	return c.Next(t.Add(-time.Second)).Equal(t)
}

// GenerateScheduleTimes returns the next n firing times strictly after
// from: t0 = Next(from), t1 = Next(t0), and so on.
func GenerateScheduleTimes(c *Cron, from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	t := from
	for range n {
		t = c.Next(t)
		if t.IsZero() {
			// The expression has no further activations.
			break
		}
		out = append(out, t)
	}
	return out
}
