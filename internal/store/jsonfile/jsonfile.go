// Package jsonfile implements the canonical cashbook store: the whole
// collection lives in a single JSON document keyed by cashbook ID,
// written atomically to the user's data directory.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"cashense/internal/core"
	"cashense/internal/store"
)

const (
	cashbooksFile   = "cashbooks.json"
	backupsDirName  = "backups"
	backupKeep      = 7
	timestampLayout = "20060102_150405"
)

// Store persists the cashbook collection to <dataDir>/cashbooks.json.
// Mutations hold a mutex for their full duration: every operation runs
// to completion before the next begins, and the file is only ever
// replaced atomically (temp file + rename).
type Store struct {
	mu         sync.Mutex
	dataDir    string
	file       string
	backupsDir string
	books      map[string]*core.Cashbook
}

// Open loads the collection from dataDir, creating the directory when
// missing. A missing file yields an empty store. A malformed file is
// quarantined and the newest backup restored when possible; in that
// case Open still returns a usable store together with an error
// wrapping core.ErrCorruptData, so callers can surface the warning
// instead of silently losing data.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &Store{
		dataDir:    dataDir,
		file:       filepath.Join(dataDir, cashbooksFile),
		backupsDir: filepath.Join(dataDir, backupsDirName),
		books:      make(map[string]*core.Cashbook),
	}

	loadErr := s.load()
	if loadErr != nil && !errors.Is(loadErr, core.ErrCorruptData) {
		return nil, loadErr
	}
	return s, loadErr
}

// DefaultDataDir returns <home>/.cashense, the per-user data location.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".cashense"), nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.file)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cashbooks file: %w", err)
	}

	books, err := decodeCollection(data)
	if err == nil {
		s.books = books
		return nil
	}

	// Corrupted primary file: quarantine it, then try the newest backup.
	quarantine := filepath.Join(s.dataDir,
		fmt.Sprintf("cashbooks_corrupted_%s.json", time.Now().Format(timestampLayout)))
	if renameErr := os.Rename(s.file, quarantine); renameErr != nil {
		slog.Error("Failed to quarantine corrupted cashbooks file",
			"error", renameErr, "file", s.file)
	} else {
		slog.Warn("Quarantined corrupted cashbooks file",
			"file", s.file, "quarantine", quarantine, "cause", err)
	}

	if restored, restoreErr := s.restoreNewestBackup(); restoreErr == nil {
		s.books = restored
		if persistErr := s.persist(); persistErr != nil {
			slog.Error("Failed to persist restored collection", "error", persistErr)
		}
		slog.Warn("Restored cashbooks from backup", "count", len(restored))
		return fmt.Errorf("%w: restored %d cashbooks from backup: %v",
			core.ErrCorruptData, len(restored), err)
	}

	s.books = make(map[string]*core.Cashbook)
	return fmt.Errorf("%w: no usable backup, starting empty: %v", core.ErrCorruptData, err)
}

func decodeCollection(data []byte) (map[string]*core.Cashbook, error) {
	var raw map[string]*core.Cashbook
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal collection: %w", err)
	}
	books := make(map[string]*core.Cashbook, len(raw))
	for id, cb := range raw {
		if cb == nil {
			return nil, fmt.Errorf("nil record for id %s", id)
		}
		if cb.ID == "" {
			cb.ID = id
		}
		if cb.ID != id {
			return nil, fmt.Errorf("record id %s does not match key %s", cb.ID, id)
		}
		if err := cb.Validate(); err != nil {
			return nil, fmt.Errorf("record %s schema-invalid: %w", id, err)
		}
		books[id] = cb
	}
	return books, nil
}

func (s *Store) restoreNewestBackup() (map[string]*core.Cashbook, error) {
	names, err := s.backupNames()
	if err != nil || len(names) == 0 {
		return nil, fmt.Errorf("no backups available")
	}
	// Newest first; timestamped names sort lexically.
	for i := len(names) - 1; i >= 0; i-- {
		data, err := os.ReadFile(filepath.Join(s.backupsDir, names[i]))
		if err != nil {
			continue
		}
		books, err := decodeCollection(data)
		if err != nil {
			slog.Warn("Skipping unreadable backup", "backup", names[i], "error", err)
			continue
		}
		return books, nil
	}
	return nil, fmt.Errorf("all backups unreadable")
}

// persist writes the whole collection atomically. Callers hold s.mu.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.books, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}

	tmp, err := os.CreateTemp(s.dataDir, "cashbooks-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.file); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace cashbooks file: %w", err)
	}
	return nil
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, name, description, category string) (*core.Cashbook, error) {
	cb, err := core.NewCashbook(name, description, category)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A fresh cashbook is by definition the most recent one, even when
	// the clock ticks coarser than the create rate.
	for _, existing := range s.books {
		if !cb.LastModified.After(existing.LastModified) {
			bumped := existing.LastModified.Add(time.Nanosecond)
			cb.CreatedDate, cb.LastModified = bumped, bumped
		}
	}

	s.books[cb.ID] = cb
	if err := s.persist(); err != nil {
		delete(s.books, cb.ID)
		return nil, fmt.Errorf("persist after create: %w", err)
	}

	slog.InfoContext(ctx, "Cashbook created",
		"id", cb.ID, "name", cb.Name, "category", cb.Category)
	return cb.Clone(), nil
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, id string) (*core.Cashbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.books[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cb.Clone(), nil
}

// GetAll implements store.Store.
func (s *Store) GetAll(_ context.Context) ([]*core.Cashbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(), nil
}

// GetRecent implements store.Store.
func (s *Store) GetRecent(ctx context.Context, limit int) ([]*core.Cashbook, error) {
	if limit <= 0 {
		return nil, core.ErrInvalidLimit
	}
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Update implements store.Store.
func (s *Store) Update(ctx context.Context, id string, fields store.UpdateFields) (*core.Cashbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.books[id]
	if !ok {
		return nil, core.ErrNotFound
	}

	updated := cb.Clone()
	applyFields(updated, fields)

	// LastModified moves strictly forward even within one clock tick.
	now := time.Now()
	if !now.After(updated.LastModified) {
		now = updated.LastModified.Add(time.Nanosecond)
	}
	updated.LastModified = now

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	s.books[id] = updated
	if err := s.persist(); err != nil {
		s.books[id] = cb
		return nil, fmt.Errorf("persist after update: %w", err)
	}

	slog.InfoContext(ctx, "Cashbook updated", "id", id, "name", updated.Name)
	return updated.Clone(), nil
}

func applyFields(cb *core.Cashbook, fields store.UpdateFields) {
	if fields.Name != nil {
		cb.Name = strings.TrimSpace(*fields.Name)
	}
	if fields.Description != nil {
		cb.Description = *fields.Description
	}
	if fields.Category != nil {
		cb.Category = *fields.Category
	}
	if fields.IconColor != nil {
		cb.IconColor = *fields.IconColor
	}
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.books[id]
	if !ok {
		return core.ErrNotFound
	}

	delete(s.books, id)
	if err := s.persist(); err != nil {
		s.books[id] = cb
		return fmt.Errorf("persist after delete: %w", err)
	}

	slog.InfoContext(ctx, "Cashbook deleted", "id", id, "name", cb.Name)
	return nil
}

// Stats implements store.Store.
func (s *Store) Stats(_ context.Context, id string) (core.CashbookStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.books[id]
	if !ok {
		return core.CashbookStats{}, core.ErrNotFound
	}
	return cb.Stats(), nil
}

// Metadata implements store.Store. Aggregates are recomputed from the
// live collection on every call.
func (s *Store) Metadata(_ context.Context) (core.CashbookMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	md := core.CashbookMetadata{TotalCashbooks: len(s.books)}
	seen := map[string]struct{}{}
	for _, cb := range s.books {
		if cb.Category == "" {
			continue
		}
		if _, ok := seen[cb.Category]; ok {
			continue
		}
		seen[cb.Category] = struct{}{}
		md.Categories = append(md.Categories, cb.Category)
	}
	sort.Strings(md.Categories)

	if names, err := s.backupNames(); err == nil && len(names) > 0 {
		if ts, err := backupTime(names[len(names)-1]); err == nil {
			md.LastBackup = ts
		}
	}
	return md, nil
}

// Backup implements store.Store: it snapshots the current collection
// into the backups directory and prunes to the 7 newest files.
func (s *Store) Backup(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.backupsDir, 0o755); err != nil {
		return "", fmt.Errorf("create backups directory: %w", err)
	}

	data, err := json.MarshalIndent(s.books, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal collection: %w", err)
	}

	name := fmt.Sprintf("cashbooks_backup_%s.json", time.Now().Format(timestampLayout))
	path := filepath.Join(s.backupsDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	if err := s.pruneBackups(); err != nil {
		slog.WarnContext(ctx, "Backup rotation failed", "error", err)
	}

	slog.InfoContext(ctx, "Backup written", "path", path, "cashbooks", len(s.books))
	return path, nil
}

// backupNames returns backup file names sorted oldest first.
func (s *Store) backupNames() ([]string, error) {
	entries, err := os.ReadDir(s.backupsDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, "cashbooks_backup_") && strings.HasSuffix(n, ".json") {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) pruneBackups() error {
	names, err := s.backupNames()
	if err != nil {
		return err
	}
	for len(names) > backupKeep {
		if err := os.Remove(filepath.Join(s.backupsDir, names[0])); err != nil {
			return fmt.Errorf("remove old backup %s: %w", names[0], err)
		}
		names = names[1:]
	}
	return nil
}

func backupTime(name string) (time.Time, error) {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "cashbooks_backup_"), ".json")
	return time.ParseInLocation(timestampLayout, trimmed, time.Local)
}

func (s *Store) sortedLocked() []*core.Cashbook {
	out := make([]*core.Cashbook, 0, len(s.books))
	for _, cb := range s.books {
		out = append(out, cb.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastModified.Equal(out[j].LastModified) {
			return out[i].LastModified.After(out[j].LastModified)
		}
		if !out[i].CreatedDate.Equal(out[j].CreatedDate) {
			return out[i].CreatedDate.After(out[j].CreatedDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Close implements store.Store. The file handle is never held open
// between writes, so there is nothing to release.
func (s *Store) Close() error {
	return nil
}
