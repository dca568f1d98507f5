package trigger

import "errors"

// Sentinel errors returned by trigger operations.
var (
	// ErrNoStore is returned when an Engine is created without a store.
	ErrNoStore = errors.New("trigger: store is required")

	// ErrEventNotFound is returned when an event queue row cannot be found.
	ErrEventNotFound = errors.New("trigger: event not found")

	// ErrScheduledEventNotFound is returned when a scheduled event cannot be found.
	ErrScheduledEventNotFound = errors.New("trigger: scheduled event not found")

	// ErrTriggerNotFound is returned when a trigger name does not resolve in
	// the registry snapshot.
	ErrTriggerNotFound = errors.New("trigger: trigger not found")

	// ErrEventTerminal is returned when a transition targets a row that has
	// already reached a terminal state.
	ErrEventTerminal = errors.New("trigger: event already in terminal state")

	// ErrPayloadValidationFailed is returned when an ad-hoc payload fails
	// the trigger's JSON Schema validation.
	ErrPayloadValidationFailed = errors.New("trigger: payload validation failed")

	// ErrInvalidCron is returned when a cron expression does not parse.
	ErrInvalidCron = errors.New("trigger: invalid cron expression")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("trigger: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("trigger: migration failed")
)
