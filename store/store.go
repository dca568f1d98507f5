// Package store defines the composite Store interface for all trigger persistence.
//
// Each queue defines its own store interface, and the aggregate Store composes
// them; drivers (postgres, sqlite, memory) implement the whole thing.
package store

import (
	"context"

	"github.com/xraph/trigger/event"
	"github.com/xraph/trigger/schedule"
)

// Store is the aggregate persistence interface.
type Store interface {
	event.Store
	schedule.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
