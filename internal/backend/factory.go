package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cashense/internal/core"
	"cashense/internal/store/jsonfile"
	"cashense/internal/store/memory"
	"cashense/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory.
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend.
func (f *DefaultFactory) CreateBackend(_ context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case JSONFileBackend:
		return f.createJSONFileBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createJSONFileBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = jsonfile.DefaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default data directory: %w", err)
		}
	}

	st, err := jsonfile.Open(dataDir)
	if err != nil && !errors.Is(err, core.ErrCorruptData) {
		return nil, fmt.Errorf("open jsonfile store: %w", err)
	}

	// A corruption error still yields a usable store: the bad file was
	// quarantined and the newest backup restored (or an empty
	// collection started). Surface it as a warning, not a failure.
	if err != nil {
		f.logger.Warn("Cashbook file was corrupted and has been recovered",
			"data_dir", dataDir,
			"error", err)
	}

	f.logger.Info("Initialized jsonfile backend", "data_dir", dataDir)

	return &BackendResult{
		Store:   st,
		Cleanup: st.Close,
		Warning: err,
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	if config.SQLiteDBPath == "" {
		return nil, fmt.Errorf("sqlite backend requires a database path")
	}

	st, err := sqlite.Open(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	f.logger.Info("Initialized sqlite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   st,
		Cleanup: st.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")
	return &BackendResult{Store: memory.New()}, nil
}
