// Package store defines the port for cashbook persistence backends.
package store

import (
	"context"

	"cashense/internal/core"
)

// DefaultRecentLimit is the card count for the dashboard recent grid.
const DefaultRecentLimit = 4

// UpdateFields carries the optional mutations for an update. Nil fields
// are left untouched.
type UpdateFields struct {
	Name        *string
	Description *string
	Category    *string
	IconColor   *string
}

// Store is the single source of truth for the cashbook collection.
// Implementations own the in-memory state and its persistence; callers
// receive copies, never live references.
type Store interface {
	// Create validates the name, assigns a fresh ID and timestamps,
	// appends the cashbook and persists the whole collection.
	Create(ctx context.Context, name, description, category string) (*core.Cashbook, error)

	// Get returns one cashbook, or core.ErrNotFound.
	Get(ctx context.Context, id string) (*core.Cashbook, error)

	// GetAll returns every cashbook, most-recently-modified first.
	// Ties break by creation date, then ID, so the order is stable.
	GetAll(ctx context.Context) ([]*core.Cashbook, error)

	// GetRecent returns the first limit cashbooks from GetAll.
	// A non-positive limit fails with core.ErrInvalidLimit.
	GetRecent(ctx context.Context, limit int) ([]*core.Cashbook, error)

	// Update applies the non-nil fields, validates a changed name,
	// advances LastModified and persists. core.ErrNotFound when unknown.
	Update(ctx context.Context, id string, fields UpdateFields) (*core.Cashbook, error)

	// Delete removes the cashbook and persists. Irreversible.
	Delete(ctx context.Context, id string) error

	// Stats returns the aggregate snapshot for one cashbook.
	Stats(ctx context.Context, id string) (core.CashbookStats, error)

	// Metadata recomputes collection-level aggregates from the live
	// collection. Never served from a stale cache.
	Metadata(ctx context.Context) (core.CashbookMetadata, error)

	// Backup writes a snapshot of the collection and returns its
	// location. Backends without durable snapshots may no-op.
	Backup(ctx context.Context) (string, error)

	// Close releases any resources held by the store.
	Close() error
}
