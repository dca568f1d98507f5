// Package sqlite implements the trigger store on SQLite via Grove ORM.
//
// SQLite serializes writers (WAL mode), so leases need no FOR UPDATE SKIP
// LOCKED: a guarded UPDATE ... RETURNING claims rows atomically. Transitions
// run the guarded state flip and the invocation insert inside one
// transaction, so a failure between the two statements leaves neither.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
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

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables, indexes and views using the grove
// orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("trigger/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("trigger/sqlite: migration failed: %w", err)
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) LeaseEvents(ctx context.Context, limit int) ([]*event.Event, error) {
	var models []eventModel
	err := s.sdb.NewRaw(`
		UPDATE event_log
		SET locked = 1, updated_at = datetime('now')
		WHERE id IN (
			SELECT id FROM event_log
			WHERE locked = 0
			  AND delivered = 0 AND error = 0 AND archived = 0
			  AND (next_retry_at IS NULL OR next_retry_at <= datetime('now'))
			ORDER BY created_at ASC
			LIMIT ?
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
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.NewUpdate((*eventModel)(nil)).
		Set("delivered = 1").
		Set("locked = 0").
		Set("next_retry_at = NULL").
		Set("tries = tries + 1").
		Set("updated_at = datetime('now')").
		Where("id = ?", evtID.String()).
		Where("delivered = 0").
		Where("error = 0").
		Exec(ctx)
	if err != nil {
		return err
	}
	if err := s.insertEventInvocation(ctx, tx, evtID, inv, res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) MarkEventError(ctx context.Context, evtID id.ID, inv *invocation.Invocation) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// next_retry_at is deliberately left untouched for this queue.
	res, err := tx.NewUpdate((*eventModel)(nil)).
		Set("error = 1").
		Set("locked = 0").
		Set("tries = tries + 1").
		Set("updated_at = datetime('now')").
		Where("id = ?", evtID.String()).
		Where("delivered = 0").
		Where("error = 0").
		Exec(ctx)
	if err != nil {
		return err
	}
	if err := s.insertEventInvocation(ctx, tx, evtID, inv, res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) SetEventRetry(ctx context.Context, evtID id.ID, retryAt time.Time, inv *invocation.Invocation) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.NewUpdate((*eventModel)(nil)).
		Set("next_retry_at = ?", retryAt).
		Set("locked = 0").
		Set("tries = tries + 1").
		Set("updated_at = datetime('now')").
		Where("id = ?", evtID.String()).
		Where("delivered = 0").
		Where("error = 0").
		Exec(ctx)
	if err != nil {
		return err
	}
	if err := s.insertEventInvocation(ctx, tx, evtID, inv, res); err != nil {
		return err
	}
	return tx.Commit()
}

// rowsAffected is the slice of the exec result the transition helpers need.
type rowsAffected interface {
	RowsAffected() (int64, error)
}

// insertEventInvocation records the invocation in the same transaction once
// the guarded state flip has claimed the row, or reports why it did not.
func (s *Store) insertEventInvocation(ctx context.Context, tx *sqlitedriver.SqliteTx, evtID id.ID, inv *invocation.Invocation, res rowsAffected) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.eventTransitionFailure(ctx, evtID)
	}
	_, err = tx.NewInsert(toEventInvocationModel(inv)).Exec(ctx)
	return err
}

// eventTransitionFailure distinguishes a missing row from a terminal one.
func (s *Store) eventTransitionFailure(ctx context.Context, evtID id.ID) error {
	if _, err := s.GetEvent(ctx, evtID); err != nil {
		return err
	}
	return trigger.ErrEventTerminal
}

func (s *Store) UnlockAllEvents(ctx context.Context) (int64, error) {
	res, err := s.sdb.NewUpdate((*eventModel)(nil)).
		Set("locked = 0").
		Set("updated_at = datetime('now')").
		Where("locked = 1").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) GetEvent(ctx context.Context, evtID id.ID) (*event.Event, error) {
	m := new(eventModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", evtID.String()).
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
	q := s.sdb.NewSelect(&models)

	if opts.TriggerName != "" {
		q = q.Where("trigger_name = ?", opts.TriggerName)
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
	if err := s.sdb.NewSelect(&models).
		Where("event_id = ?", evtID.String()).
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
	_, err := s.sdb.NewInsert(m).Exec(ctx)
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
	res, err := s.sdb.NewInsert(&models).
		OnConflict("(name, scheduled_time) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) LeaseScheduledEvents(ctx context.Context, limit int) ([]*schedule.ScheduledEvent, error) {
	var models []scheduledEventModel
	err := s.sdb.NewRaw(`
		UPDATE hdb_scheduled_events
		SET locked = 1, updated_at = datetime('now')
		WHERE id IN (
			SELECT id FROM hdb_scheduled_events
			WHERE locked = 0
			  AND delivered = 0 AND error = 0 AND dead = 0 AND cancelled = 0
			  AND ((next_retry_at IS NOT NULL AND next_retry_at <= datetime('now'))
				OR (next_retry_at IS NULL AND scheduled_time <= datetime('now')))
			ORDER BY scheduled_time ASC
			LIMIT ?
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
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.NewUpdate((*scheduledEventModel)(nil)).
		Set("delivered = 1").
		Set("locked = 0").
		Set("next_retry_at = NULL").
		Set("tries = tries + 1").
		Set("updated_at = datetime('now')").
		Where("id = ?", sevID.String()).
		Where("delivered = 0").
		Where("error = 0").
		Where("dead = 0").
		Where("cancelled = 0").
		Exec(ctx)
	if err != nil {
		return err
	}
	if err := s.insertScheduledInvocation(ctx, tx, sevID, inv, res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) MarkScheduledError(ctx context.Context, sevID id.ID, inv *invocation.Invocation) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.NewUpdate((*scheduledEventModel)(nil)).
		Set("error = 1").
		Set("locked = 0").
		Set("next_retry_at = NULL").
		Set("tries = tries + 1").
		Set("updated_at = datetime('now')").
		Where("id = ?", sevID.String()).
		Where("delivered = 0").
		Where("error = 0").
		Where("dead = 0").
		Where("cancelled = 0").
		Exec(ctx)
	if err != nil {
		return err
	}
	if err := s.insertScheduledInvocation(ctx, tx, sevID, inv, res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) SetScheduledRetry(ctx context.Context, sevID id.ID, retryAt time.Time, inv *invocation.Invocation) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.NewUpdate((*scheduledEventModel)(nil)).
		Set("next_retry_at = ?", retryAt).
		Set("locked = 0").
		Set("tries = tries + 1").
		Set("updated_at = datetime('now')").
		Where("id = ?", sevID.String()).
		Where("delivered = 0").
		Where("error = 0").
		Where("dead = 0").
		Where("cancelled = 0").
		Exec(ctx)
	if err != nil {
		return err
	}
	if err := s.insertScheduledInvocation(ctx, tx, sevID, inv, res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) insertScheduledInvocation(ctx context.Context, tx *sqlitedriver.SqliteTx, sevID id.ID, inv *invocation.Invocation, res rowsAffected) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return s.scheduledTransitionFailure(ctx, sevID)
	}
	_, err = tx.NewInsert(toScheduledInvocationModel(inv)).Exec(ctx)
	return err
}

func (s *Store) scheduledTransitionFailure(ctx context.Context, sevID id.ID) error {
	if _, err := s.GetScheduledEvent(ctx, sevID); err != nil {
		return err
	}
	return trigger.ErrEventTerminal
}

func (s *Store) MarkScheduledDead(ctx context.Context, sevID id.ID) error {
	// No invocation row: no delivery was attempted, so tries stays put.
	return s.flagScheduled(ctx, sevID, "dead = 1")
}

func (s *Store) MarkScheduledCancelled(ctx context.Context, sevID id.ID) error {
	return s.flagScheduled(ctx, sevID, "cancelled = 1")
}

func (s *Store) flagScheduled(ctx context.Context, sevID id.ID, flag string) error {
	res, err := s.sdb.NewUpdate((*scheduledEventModel)(nil)).
		Set(flag).
		Set("locked = 0").
		Set("updated_at = datetime('now')").
		Where("id = ?", sevID.String()).
		Where("delivered = 0").
		Where("error = 0").
		Where("dead = 0").
		Where("cancelled = 0").
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
	res, err := s.sdb.NewUpdate((*scheduledEventModel)(nil)).
		Set("locked = 0").
		Set("updated_at = datetime('now')").
		Where("locked = 1").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) ScheduledStats(ctx context.Context) ([]schedule.Stats, error) {
	var models []scheduledStatsModel
	if err := s.sdb.NewSelect(&models).Scan(ctx); err != nil {
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
	err := s.sdb.NewSelect(m).
		Where("id = ?", sevID.String()).
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
	q := s.sdb.NewSelect(&models)

	if opts.Name != "" {
		q = q.Where("name = ?", opts.Name)
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
	if err := s.sdb.NewSelect(&models).
		Where("event_id = ?", sevID.String()).
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
	_, err = s.sdb.NewInsert(m).
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
	res, err := s.sdb.NewDelete((*scheduledTriggerModel)(nil)).
		Where("name = ?", name).
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
	if err := s.sdb.NewSelect(&models).
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
