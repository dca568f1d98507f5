// Package postgres implements the trigger store on PostgreSQL via Grove ORM.
//
// Leases use FOR UPDATE SKIP LOCKED so multiple engine instances sharing a
// database never double-claim a row. Invocation-writing transitions run as a
// single writable-CTE statement, which makes the invocation insert, the tries
// increment and the state flip atomic without an explicit transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	trigger "github.com/xraph/trigger"
	"github.com/xraph/trigger/event"
	"github.com/xraph/trigger/id"
	"github.com/xraph/trigger/invocation"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/schedule"
	triggerstore "github.com/xraph/trigger/store"
)

// compile-time interface check
var _ triggerstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables, indexes and views using the grove
// orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("trigger/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("trigger/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Event Store ====================

func (s *Store) InsertEvent(ctx context.Context, evt *event.Event) error {
	m := toEventModel(evt)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) LeaseEvents(ctx context.Context, limit int) ([]*event.Event, error) {
	var models []eventModel
	err := s.pg.NewRaw(`
		UPDATE event_log
		SET locked = TRUE, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM event_log
			WHERE locked = FALSE
			  AND delivered = FALSE AND error = FALSE AND archived = FALSE
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, limit).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

func (s *Store) MarkEventDelivered(ctx context.Context, evtID id.ID, inv *invocation.Invocation) error {
	return s.transitionEvent(ctx, evtID, inv,
		"delivered = TRUE, locked = FALSE, next_retry_at = NULL")
}

func (s *Store) MarkEventError(ctx context.Context, evtID id.ID, inv *invocation.Invocation) error {
	// next_retry_at is deliberately left untouched for this queue.
	return s.transitionEvent(ctx, evtID, inv,
		"error = TRUE, locked = FALSE")
}

func (s *Store) SetEventRetry(ctx context.Context, evtID id.ID, retryAt time.Time, inv *invocation.Invocation) error {
	return s.transitionEvent(ctx, evtID, inv,
		"next_retry_at = $6, locked = FALSE", retryAt)
}

// transitionEvent records the invocation and applies the state change in one
// writable-CTE statement. The target CTE keeps the invocation insert from
// firing when the row is missing or already terminal.
func (s *Store) transitionEvent(ctx context.Context, evtID id.ID, inv *invocation.Invocation, set string, extra ...any) error {
	args := []any{inv.ID.String(), evtID.String(), inv.Status, inv.Request, inv.Response}
	args = append(args, extra...)

	var models []eventModel
	err := s.pg.NewRaw(fmt.Sprintf(`
		WITH target AS (
			SELECT id FROM event_log
			WHERE id = $2 AND delivered = FALSE AND error = FALSE
			FOR UPDATE
		),
		inv AS (
			INSERT INTO event_invocation_logs (id, event_id, status, request, response, created_at)
			SELECT $1, $2, $3, $4, $5, NOW() FROM target
		)
		UPDATE event_log e
		SET %s, tries = e.tries + 1, updated_at = NOW()
		FROM target t
		WHERE e.id = t.id
		RETURNING e.*
	`, set), args...).Scan(ctx, &models)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return s.eventTransitionFailure(ctx, evtID)
	}
	return nil
}

// eventTransitionFailure distinguishes a missing row from a terminal one.
func (s *Store) eventTransitionFailure(ctx context.Context, evtID id.ID) error {
	if _, err := s.GetEvent(ctx, evtID); err != nil {
		return err
	}
	return trigger.ErrEventTerminal
}

func (s *Store) UnlockAllEvents(ctx context.Context) (int64, error) {
	res, err := s.pg.NewUpdate((*eventModel)(nil)).
		Set("locked = FALSE").
		Set("updated_at = NOW()").
		Where("locked = TRUE").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	m := new(eventModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", evtID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, trigger.ErrEventNotFound
		}
		return nil, err
	}
	return fromEventModel(m)
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.pg.NewSelect(&models)

	if opts.TriggerName != "" {
		q = q.Where("trigger_name = $1", opts.TriggerName)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		evt, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = evt
	}
	return result, nil
}

func (s *Store) ListEventInvocations(ctx context.Context, evtID id.ID) ([]*invocation.Invocation, error) {
	var models []eventInvocationModel
	if err := s.pg.NewSelect(&models).
		Where("event_id = $1", evtID.String()).
		OrderExpr("created_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*invocation.Invocation, len(models))
	for i := range models {
		inv, err := fromEventInvocationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

// ==================== Schedule Store ====================

func (s *Store) InsertScheduledEvent(ctx context.Context, sev *schedule.ScheduledEvent) error {
	m := toScheduledEventModel(sev)
	_, err := s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) InsertScheduledEvents(ctx context.Context, sevs []*schedule.ScheduledEvent) (int64, error) {
	if len(sevs) == 0 {
		return 0, nil
	}
	models := make([]scheduledEventModel, len(sevs))
	for i, sev := range sevs {
		models[i] = *toScheduledEventModel(sev)
	}
	res, err := s.pg.NewInsert(&models).
		OnConflict("(name, scheduled_time) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) LeaseScheduledEvents(ctx context.Context, limit int) ([]*schedule.ScheduledEvent, error) {
	var models []scheduledEventModel
	err := s.pg.NewRaw(`
		UPDATE hdb_scheduled_events
		SET locked = TRUE, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM hdb_scheduled_events
			WHERE locked = FALSE
			  AND delivered = FALSE AND error = FALSE
			  AND dead = FALSE AND cancelled = FALSE
			  AND ((next_retry_at IS NOT NULL AND next_retry_at <= NOW())
				OR (next_retry_at IS NULL AND scheduled_time <= NOW()))
			ORDER BY scheduled_time ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, limit).Scan(ctx, &models)
	if err != nil {
		return nil, err
	}

	result := make([]*schedule.ScheduledEvent, len(models))
	for i := range models {
		sev, err := fromScheduledEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sev
	}
	return result, nil
}

func (s *Store) MarkScheduledDelivered(ctx context.Context, sevID id.ID, inv *invocation.Invocation) error {
	return s.transitionScheduled(ctx, sevID, inv,
		"delivered = TRUE, locked = FALSE, next_retry_at = NULL")
}

func (s *Store) MarkScheduledError(ctx context.Context, sevID id.ID, inv *invocation.Invocation) error {
	return s.transitionScheduled(ctx, sevID, inv,
		"error = TRUE, locked = FALSE, next_retry_at = NULL")
}

func (s *Store) SetScheduledRetry(ctx context.Context, sevID id.ID, retryAt time.Time, inv *invocation.Invocation) error {
	return s.transitionScheduled(ctx, sevID, inv,
		"next_retry_at = $6, locked = FALSE", retryAt)
}

func (s *Store) transitionScheduled(ctx context.Context, sevID id.ID, inv *invocation.Invocation, set string, extra ...any) error {
	args := []any{inv.ID.String(), sevID.String(), inv.Status, inv.Request, inv.Response}
	args = append(args, extra...)

	var models []scheduledEventModel
	err := s.pg.NewRaw(fmt.Sprintf(`
		WITH target AS (
			SELECT id FROM hdb_scheduled_events
			WHERE id = $2 AND delivered = FALSE AND error = FALSE
			  AND dead = FALSE AND cancelled = FALSE
			FOR UPDATE
		),
		inv AS (
			INSERT INTO hdb_scheduled_event_invocation_logs (id, event_id, status, request, response, created_at)
			SELECT $1, $2, $3, $4, $5, NOW() FROM target
		)
		UPDATE hdb_scheduled_events e
		SET %s, tries = e.tries + 1, updated_at = NOW()
		FROM target t
		WHERE e.id = t.id
		RETURNING e.*
	`, set), args...).Scan(ctx, &models)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return s.scheduledTransitionFailure(ctx, sevID)
	}
	return nil
}

func (s *Store) scheduledTransitionFailure(ctx context.Context, sevID id.ID) error {
	if _, err := s.GetScheduledEvent(ctx, sevID); err != nil {
		return err
	}
	return trigger.ErrEventTerminal
}

func (s *Store) MarkScheduledDead(ctx context.Context, sevID id.ID) error {
	// No invocation row: no delivery was attempted, so tries stays put.
	return s.flagScheduled(ctx, sevID, "dead = TRUE")
}

func (s *Store) MarkScheduledCancelled(ctx context.Context, sevID id.ID) error {
	return s.flagScheduled(ctx, sevID, "cancelled = TRUE")
}

func (s *Store) flagScheduled(ctx context.Context, sevID id.ID, flag string) error {
	res, err := s.pg.NewUpdate((*scheduledEventModel)(nil)).
		Set(flag).
		Set("locked = FALSE").
		Set("updated_at = NOW()").
		Where("id = $1", sevID.String()).
		Where("delivered = FALSE").
		Where("error = FALSE").
		Where("dead = FALSE").
		Where("cancelled = FALSE").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.scheduledTransitionFailure(ctx, sevID)
	}
	return nil
}

func (s *Store) UnlockAllScheduledEvents(ctx context.Context) (int64, error) {
	res, err := s.pg.NewUpdate((*scheduledEventModel)(nil)).
		Set("locked = FALSE").
		Set("updated_at = NOW()").
		Where("locked = TRUE").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ScheduledStats(ctx context.Context) ([]schedule.Stats, error) {
	var models []scheduledStatsModel
	if err := s.pg.NewSelect(&models).Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]schedule.Stats, len(models))
	for i := range models {
		result[i] = fromScheduledStatsModel(&models[i])
	}
	return result, nil
}

func (s *Store) GetScheduledEvent(ctx context.Context, sevID id.ID) (*schedule.ScheduledEvent, error) {
	m := new(scheduledEventModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", sevID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, trigger.ErrScheduledEventNotFound
		}
		return nil, err
	}
	return fromScheduledEventModel(m)
}

func (s *Store) ListScheduledEvents(ctx context.Context, opts schedule.ListOpts) ([]*schedule.ScheduledEvent, error) {
	var models []scheduledEventModel
	q := s.pg.NewSelect(&models)

	if opts.Name != "" {
		q = q.Where("name = $1", opts.Name)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("scheduled_time DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*schedule.ScheduledEvent, len(models))
	for i := range models {
		sev, err := fromScheduledEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sev
	}
	return result, nil
}

func (s *Store) ListScheduledInvocations(ctx context.Context, sevID id.ID) ([]*invocation.Invocation, error) {
	var models []scheduledInvocationModel
	if err := s.pg.NewSelect(&models).
		Where("event_id = $1", sevID.String()).
		OrderExpr("created_at ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*invocation.Invocation, len(models))
	for i := range models {
		inv, err := fromScheduledInvocationModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

// ==================== Scheduled trigger config ====================

func (s *Store) UpsertScheduledTrigger(ctx context.Context, spec *registry.ScheduledTriggerSpec) error {
	m, err := toScheduledTriggerModel(spec)
	if err != nil {
		return err
	}
	_, err = s.pg.NewInsert(m).
		OnConflict("(name) DO UPDATE").
		Set("webhook = EXCLUDED.webhook").
		Set("headers = EXCLUDED.headers").
		Set("retry_conf = EXCLUDED.retry_conf").
		Set("schedule = EXCLUDED.schedule").
		Set("payload = EXCLUDED.payload").
		Set("tolerance_seconds = EXCLUDED.tolerance_seconds").
		Set("payload_schema = EXCLUDED.payload_schema").
		Set("signing_secret = EXCLUDED.signing_secret").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) DeleteScheduledTrigger(ctx context.Context, name string) error {
	res, err := s.pg.NewDelete((*scheduledTriggerModel)(nil)).
		Where("name = $1", name).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return trigger.ErrTriggerNotFound
	}
	return nil
}

func (s *Store) ListScheduledTriggers(ctx context.Context) ([]*registry.ScheduledTriggerSpec, error) {
	var models []scheduledTriggerModel
	if err := s.pg.NewSelect(&models).
		OrderExpr("name ASC").
		Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*registry.ScheduledTriggerSpec, len(models))
	for i := range models {
		spec, err := fromScheduledTriggerModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = spec
	}
	return result, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
