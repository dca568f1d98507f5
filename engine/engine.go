// Package engine runs the delivery workers: the event trigger loop, the
// scheduled trigger loop, and the cron materializer, all sharing one HTTP
// permit pool.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/trigger/delivery"
	"github.com/xraph/trigger/event"
	"github.com/xraph/trigger/observability"
	"github.com/xraph/trigger/ratelimit"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/schedule"
)

// Store is the persistence surface the engine needs.
type Store interface {
	event.Store
	schedule.Store
}

// Defaults for Config fields left zero.
const (
	DefaultBatchSize         = 100
	DefaultFetchInterval     = time.Second
	DefaultScheduledInterval = 60 * time.Second

	// fullBatchWarnThreshold is how many consecutive full lease batches
	// trigger the backlog warning.
	fullBatchWarnThreshold = 3
)

// Config holds engine tuning knobs.
type Config struct {
	// BatchSize is the lease batch size for both queues.
	BatchSize int

	// FetchInterval is how long the event loop idles after a non-full
	// batch.
	FetchInterval time.Duration

	// ScheduledInterval is the scheduled loop's cycle period.
	ScheduledInterval time.Duration

	// Horizon is how many upcoming events the materializer keeps per cron
	// trigger.
	Horizon int

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FetchInterval <= 0 {
		c.FetchInterval = DefaultFetchInterval
	}
	if c.ScheduledInterval <= 0 {
		c.ScheduledInterval = DefaultScheduledInterval
	}
	return c
}

// Engine supervises the two worker loops. One Engine instance per process;
// multiple processes may share a database, the leases keep them disjoint.
type Engine struct {
	store        Store
	registry     *registry.Registry
	sender       *delivery.Sender
	pool         *ratelimit.Pool
	materializer *schedule.Materializer
	config       Config
	logger       *slog.Logger

	poolWarned atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine. The pool caps concurrent outbound HTTP calls
// across both loops.
func New(store Store, reg *registry.Registry, sender *delivery.Sender, pool *ratelimit.Pool, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		store:        store,
		registry:     reg,
		sender:       sender,
		pool:         pool,
		materializer: schedule.NewMaterializer(store, cfg.Horizon, logger),
		config:       cfg,
		logger:       logger,
	}
}

// Start sweeps leases leaked by a previous ungraceful exit, then launches
// both worker loops.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.sweepLocks(ctx); err != nil {
		return err
	}

	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.eventLoop(ctx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.scheduledLoop(ctx)
	}()

	return nil
}

// Stop cancels both loops and waits for in-flight deliveries to finish.
// In-flight attempts run to completion; their transitions are recorded.
func (e *Engine) Stop(_ context.Context) {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

// sweepLocks resets rows left locked by an ungraceful exit. Runs before the
// loops start, so a crashed instance's leases become leasable again.
func (e *Engine) sweepLocks(ctx context.Context) error {
	swept, err := e.store.UnlockAllEvents(ctx)
	if err != nil {
		return err
	}
	if swept > 0 {
		e.logger.InfoContext(ctx, "recovered stale event leases",
			"category", "event_trigger_log", "count", swept)
	}

	sweptScheduled, err := e.store.UnlockAllScheduledEvents(ctx)
	if err != nil {
		return err
	}
	if sweptScheduled > 0 {
		e.logger.InfoContext(ctx, "recovered stale scheduled event leases",
			"category", "scheduled_trigger_log", "count", sweptScheduled)
	}

	if e.config.Metrics != nil {
		e.config.Metrics.LocksSweptTotal.Add(float64(swept + sweptScheduled))
	}
	return nil
}

// acquirePermit takes an HTTP permit, logging once per saturation episode
// when the pool runs dry.
func (e *Engine) acquirePermit(ctx context.Context) error {
	if e.pool.TryAcquire() {
		if e.poolWarned.CompareAndSwap(true, false) {
			e.logger.InfoContext(ctx, "http pool no longer saturated",
				"category", "http_log", "capacity", e.pool.Capacity())
		}
		if e.config.Metrics != nil {
			e.config.Metrics.HTTPPermitsInUse.Inc()
		}
		return nil
	}

	if e.poolWarned.CompareAndSwap(false, true) {
		e.logger.WarnContext(ctx, "http pool saturated, deliveries will block",
			"category", "http_log", "capacity", e.pool.Capacity())
		if e.config.Metrics != nil {
			e.config.Metrics.SaturationWarnsTotal.Inc()
		}
	}

	if err := e.pool.Acquire(ctx); err != nil {
		return err
	}
	if e.config.Metrics != nil {
		e.config.Metrics.HTTPPermitsInUse.Inc()
	}
	return nil
}

func (e *Engine) releasePermit() {
	e.pool.Release()
	if e.config.Metrics != nil {
		e.config.Metrics.HTTPPermitsInUse.Dec()
	}
}

// sleep waits for d or context cancellation. Returns false when the context
// ended.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
