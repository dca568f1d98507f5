package trigger

import (
	"log/slog"
	"time"

	"github.com/xraph/grove/kv"

	"github.com/xraph/trigger/delivery"
	"github.com/xraph/trigger/engine"
	"github.com/xraph/trigger/observability"
	"github.com/xraph/trigger/ratelimit"
	"github.com/xraph/trigger/registry"
	"github.com/xraph/trigger/store"
)

// Trigger is the root webhook trigger engine.
type Trigger struct {
	config    Config
	store     store.Store
	registry  *registry.Registry
	validator *registry.Validator
	sender    *delivery.Sender
	pool      *ratelimit.Pool
	engine    *engine.Engine
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	logger    *slog.Logger

	eventSpecs     []registry.EventTriggerSpec
	scheduledSpecs []registry.ScheduledTriggerSpec
	provider       registry.SnapshotProvider
	kvStore        *kv.Store
	kvCache        *registry.KVCache
}

// Option configures a Trigger instance.
type Option func(*Trigger) error

// New creates a new Trigger with the given options.
func New(opts ...Option) (*Trigger, error) {
	t := &Trigger{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	if t.store == nil {
		return nil, ErrNoStore
	}
	t.wireServices()
	return t, nil
}

// WithStore sets the persistence backend for the Trigger instance.
func WithStore(s store.Store) Option {
	return func(t *Trigger) error {
		t.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the Trigger instance.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trigger) error {
		t.logger = logger
		return nil
	}
}

// WithConfig replaces the entire configuration. Use ConfigFromEnv to pick up
// the EVENTS_* environment overrides.
func WithConfig(cfg Config) Option {
	return func(t *Trigger) error {
		t.config = cfg
		return nil
	}
}

// WithHTTPPoolSize caps concurrent outbound webhook calls.
func WithHTTPPoolSize(n int) Option {
	return func(t *Trigger) error {
		t.config.HTTPPoolSize = n
		return nil
	}
}

// WithFetchInterval sets how long the event loop idles after a non-full
// lease batch.
func WithFetchInterval(d time.Duration) Option {
	return func(t *Trigger) error {
		t.config.FetchInterval = d
		return nil
	}
}

// WithScheduledInterval sets the scheduled loop's cycle period.
func WithScheduledInterval(d time.Duration) Option {
	return func(t *Trigger) error {
		t.config.ScheduledInterval = d
		return nil
	}
}

// WithBatchSize sets the lease batch size for both queues.
func WithBatchSize(n int) Option {
	return func(t *Trigger) error {
		t.config.BatchSize = n
		return nil
	}
}

// WithHorizon sets how many upcoming events the materializer keeps per cron
// trigger.
func WithHorizon(n int) Option {
	return func(t *Trigger) error {
		t.config.Horizon = n
		return nil
	}
}

// WithEventTriggers declares row-change triggers. Specs are resolved (env
// indirection, retry defaults) on every snapshot build.
func WithEventTriggers(specs ...registry.EventTriggerSpec) Option {
	return func(t *Trigger) error {
		t.eventSpecs = append(t.eventSpecs, specs...)
		return nil
	}
}

// WithScheduledTriggers declares scheduled triggers in code. They are merged
// with the triggers persisted in the store; on a name collision the
// code-declared spec wins.
func WithScheduledTriggers(specs ...registry.ScheduledTriggerSpec) Option {
	return func(t *Trigger) error {
		t.scheduledSpecs = append(t.scheduledSpecs, specs...)
		return nil
	}
}

// WithSnapshotProvider replaces the default configuration source entirely.
// The provider is queried once per processing cycle.
func WithSnapshotProvider(p registry.SnapshotProvider) Option {
	return func(t *Trigger) error {
		t.provider = p
		return nil
	}
}

// WithSnapshotCache layers a Grove KV (Redis) cache over the configuration
// source so engine replicas share snapshot reads. Staleness is bounded by
// Config.SnapshotCacheTTL.
func WithSnapshotCache(kvStore *kv.Store) Option {
	return func(t *Trigger) error {
		t.kvStore = kvStore
		return nil
	}
}

// WithMetrics enables delivery metrics collection.
func WithMetrics(m *observability.Metrics) Option {
	return func(t *Trigger) error {
		t.metrics = m
		return nil
	}
}

// WithTracer enables per-delivery tracing spans.
func WithTracer(tr *observability.Tracer) Option {
	return func(t *Trigger) error {
		t.tracer = tr
		return nil
	}
}
