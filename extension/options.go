package extension

import (
	"github.com/xraph/grove/kv"

	"github.com/xraph/trigger"
	"github.com/xraph/trigger/store"
)

// ExtOption configures the trigger Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend via a trigger option.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.opts = append(e.opts, trigger.WithStore(s))
	}
}

// WithPrefix sets the URL prefix for all trigger admin routes.
func WithPrefix(prefix string) ExtOption {
	return func(e *Extension) {
		e.config.BasePath = prefix
	}
}

// WithConfig sets the extension configuration directly.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithTriggerOption appends a raw trigger.Option to the extension.
func WithTriggerOption(opt trigger.Option) ExtOption {
	return func(e *Extension) {
		e.opts = append(e.opts, opt)
	}
}

// WithSnapshotCache layers a Grove KV snapshot cache over the trigger
// configuration source.
func WithSnapshotCache(kvStore *kv.Store) ExtOption {
	return func(e *Extension) {
		e.opts = append(e.opts, trigger.WithSnapshotCache(kvStore))
	}
}

// WithDisableRoutes disables automatic route registration.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrations disables automatic database migration on Init.
func WithDisableMigrations() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrations = true
	}
}
