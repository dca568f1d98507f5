package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/internal/entity"
	"github.com/xraph/trigger/registry"
)

// DefaultHorizon is how many upcoming events each cron trigger is kept
// topped up to.
const DefaultHorizon = 100

// Materializer keeps the scheduled queue populated ahead of time for cron
// triggers. Ad-hoc triggers are never materialized; their events arrive
// through the API.
type Materializer struct {
	store   Store
	horizon int
	logger  *slog.Logger
}

// NewMaterializer creates a materializer with the given horizon. A horizon
// of 0 means DefaultHorizon.
func NewMaterializer(store Store, horizon int, logger *slog.Logger) *Materializer {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{store: store, horizon: horizon, logger: logger}
}

// Run performs one materialization pass against the given registry
// snapshot. For every cron trigger whose upcoming event count has dropped
// below the horizon, it inserts the next `horizon` firing times strictly
// after the trigger's current max scheduled time (or now when the trigger
// has no rows). Inserts are idempotent, so concurrent or repeated passes
// converge on the same set of rows.
func (m *Materializer) Run(ctx context.Context, snap *registry.Snapshot) error {
	stats, err := m.store.ScheduledStats(ctx)
	if err != nil {
		return err
	}

	byName := make(map[string]Stats, len(stats))
	for _, st := range stats {
		byName[st.Name] = st
	}

	now := time.Now().UTC()
	for _, trig := range snap.CronTriggers() {
		// Absent from the view means the trigger has no rows at all; the
		// zero-valued Stats starts it from now.
		st := byName[trig.Name]
		if st.UpcomingEventsCount >= m.horizon {
			continue
		}

		if err := m.materializeTrigger(ctx, trig, st, now); err != nil {
			m.logger.ErrorContext(ctx, "materialize trigger failed",
				"category", "scheduled_trigger_log",
				"trigger", trig.Name, "error", err)
			// Keep going; other triggers should not starve.
		}
	}
	return nil
}

func (m *Materializer) materializeTrigger(ctx context.Context, trig *registry.ScheduledTrigger, st Stats, now time.Time) error {
	c, err := ParseCron(trig.Schedule.Cron)
	if err != nil {
		return err
	}

	from := st.MaxScheduledTime
	if from.IsZero() {
		from = now
	}

	times := GenerateScheduleTimes(c, from, m.horizon)
	if len(times) == 0 {
		return nil
	}

	rows := make([]*ScheduledEvent, 0, len(times))
	for _, t := range times {
		rows = append(rows, &ScheduledEvent{
			Entity:        entity.New(),
			ID:            id.NewScheduledEventID(),
			Name:          trig.Name,
			ScheduledTime: t,
		})
	}

	inserted, err := m.store.InsertScheduledEvents(ctx, rows)
	if err != nil {
		return err
	}

	m.logger.DebugContext(ctx, "materialized scheduled events",
		"category", "scheduled_trigger_log",
		"trigger", trig.Name,
		"generated", len(rows),
		"inserted", inserted,
		"from", from,
	)
	return nil
}
