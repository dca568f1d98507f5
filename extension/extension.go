package extension

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/trigger"
	"github.com/xraph/trigger/api"
)

// Extension is the Forge extension for the trigger engine.
type Extension struct {
	config  Config
	opts    []trigger.Option
	trigger *trigger.Trigger
	logger  *slog.Logger
}

// New creates a new trigger Forge extension.
func New(opts ...ExtOption) *Extension {
	e := &Extension{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init builds the Trigger instance from the accumulated options and runs
// database migrations unless disabled. Must be called before Start.
func (ext *Extension) Init(ctx context.Context) error {
	topts := append(ext.config.ToTriggerOptions(), ext.opts...)
	topts = append(topts, trigger.WithLogger(ext.logger))

	t, err := trigger.New(topts...)
	if err != nil {
		return err
	}

	if !ext.config.DisableMigrations {
		if migrateErr := t.Store().Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("%w: %s", trigger.ErrMigrationFailed, migrateErr.Error())
		}
	}

	ext.trigger = t
	return nil
}

// Start begins the delivery loops.
func (ext *Extension) Start(ctx context.Context) error {
	return ext.trigger.Start(ctx)
}

// Stop gracefully shuts down the delivery loops.
func (ext *Extension) Stop(ctx context.Context) {
	ext.trigger.Stop(ctx)
}

// Health reports store connectivity.
func (ext *Extension) Health(ctx context.Context) error {
	return ext.trigger.Store().Ping(ctx)
}

// Trigger returns the underlying engine instance.
func (ext *Extension) Trigger() *trigger.Trigger {
	return ext.trigger
}

// Handler creates the admin API handler. This can be used standalone without
// Forge integration.
func (ext *Extension) Handler() http.Handler {
	return api.NewHandler(ext.trigger, ext.logger)
}

// RegisterRoutes mounts the admin API into the given Forge router with
// OpenAPI metadata. No-op when routes are disabled.
func (ext *Extension) RegisterRoutes(router forge.Router, log forge.Logger) {
	if ext.config.DisableRoutes {
		return
	}
	api.NewForgeAPI(ext.trigger, log).RegisterRoutes(router)
}

// BasePath returns the configured URL prefix.
func (ext *Extension) BasePath() string { return ext.config.BasePath }
