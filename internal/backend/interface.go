// Package backend selects and constructs the cashbook store named by
// the configuration.
package backend

import (
	"context"

	"cashense/internal/store"
)

// CleanupFunc releases backend resources on shutdown.
type CleanupFunc func() error

// BackendResult carries the constructed store, an optional cleanup
// function and any non-fatal warning raised while opening the backend
// (a recovered JSON file reports corruption this way).
type BackendResult struct {
	Store   store.Store
	Cleanup CleanupFunc
	Warning error
}

// Factory creates stores based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds what backend construction needs.
type Config struct {
	Type BackendType

	// JSON file backend
	DataDir string

	// SQLite backend
	SQLiteDBPath string
}

// BackendType names the persistence implementation.
type BackendType string

const (
	JSONFileBackend BackendType = "jsonfile"
	SQLiteBackend   BackendType = "sqlite"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer.
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is known.
func (bt BackendType) IsValid() bool {
	switch bt {
	case JSONFileBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
