package extension

import (
	"github.com/xraph/trigger"
)

// Config holds configuration for the trigger Forge extension.
// Fields can be set programmatically via ExtOption functions or loaded from
// YAML configuration files (under "extensions.trigger" or "trigger" keys).
type Config struct {
	// Config embeds the core trigger configuration.
	trigger.Config `json:",inline" yaml:",inline" mapstructure:",squash"`

	// BasePath is the URL prefix for all trigger admin routes (default: "/triggers").
	BasePath string `json:"base_path" yaml:"base_path" mapstructure:"base_path"`

	// DisableRoutes disables automatic route registration with the Forge router.
	DisableRoutes bool `json:"disable_routes" yaml:"disable_routes" mapstructure:"disable_routes"`

	// DisableMigrations disables automatic database migration on Init.
	DisableMigrations bool `json:"disable_migrations" yaml:"disable_migrations" mapstructure:"disable_migrations"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Config:   trigger.DefaultConfig(),
		BasePath: "/triggers",
	}
}

// ToTriggerOptions converts the embedded Config into trigger.Option values.
func (c Config) ToTriggerOptions() []trigger.Option {
	var opts []trigger.Option

	if c.HTTPPoolSize > 0 {
		opts = append(opts, trigger.WithHTTPPoolSize(c.HTTPPoolSize))
	}
	if c.FetchInterval > 0 {
		opts = append(opts, trigger.WithFetchInterval(c.FetchInterval))
	}
	if c.ScheduledInterval > 0 {
		opts = append(opts, trigger.WithScheduledInterval(c.ScheduledInterval))
	}
	if c.BatchSize > 0 {
		opts = append(opts, trigger.WithBatchSize(c.BatchSize))
	}
	if c.Horizon > 0 {
		opts = append(opts, trigger.WithHorizon(c.Horizon))
	}

	return opts
}
