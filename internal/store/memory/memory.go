// Package memory implements an in-memory cashbook store for tests and
// dev runs. Nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cashense/internal/core"
	"cashense/internal/store"
)

// Store keeps the collection in a map guarded by a mutex. Semantics
// match the jsonfile backend minus durability.
type Store struct {
	mu    sync.Mutex
	books map[string]*core.Cashbook
}

func New() *Store {
	return &Store{books: make(map[string]*core.Cashbook)}
}

// Seed pre-populates the store, mainly for tests.
func (s *Store) Seed(books ...*core.Cashbook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cb := range books {
		s.books[cb.ID] = cb.Clone()
	}
}

func (s *Store) Create(_ context.Context, name, description, category string) (*core.Cashbook, error) {
	cb, err := core.NewCashbook(name, description, category)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.books {
		if !cb.LastModified.After(existing.LastModified) {
			bumped := existing.LastModified.Add(time.Nanosecond)
			cb.CreatedDate, cb.LastModified = bumped, bumped
		}
	}

	s.books[cb.ID] = cb
	return cb.Clone(), nil
}

func (s *Store) Get(_ context.Context, id string) (*core.Cashbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.books[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cb.Clone(), nil
}

func (s *Store) GetAll(_ context.Context) ([]*core.Cashbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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
	return out, nil
}

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

func (s *Store) Update(_ context.Context, id string, fields store.UpdateFields) (*core.Cashbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.books[id]
	if !ok {
		return nil, core.ErrNotFound
	}

	updated := cb.Clone()
	if fields.Name != nil {
		updated.Name = strings.TrimSpace(*fields.Name)
	}
	if fields.Description != nil {
		updated.Description = *fields.Description
	}
	if fields.Category != nil {
		updated.Category = *fields.Category
	}
	if fields.IconColor != nil {
		updated.IconColor = *fields.IconColor
	}

	now := time.Now()
	if !now.After(updated.LastModified) {
		now = updated.LastModified.Add(time.Nanosecond)
	}
	updated.LastModified = now

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	s.books[id] = updated
	return updated.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.books, id)
	return nil
}

func (s *Store) Stats(_ context.Context, id string) (core.CashbookStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.books[id]
	if !ok {
		return core.CashbookStats{}, core.ErrNotFound
	}
	return cb.Stats(), nil
}

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
	return md, nil
}

// Backup is a no-op: there is nothing durable to snapshot.
func (s *Store) Backup(context.Context) (string, error) {
	return "", nil
}

func (s *Store) Close() error {
	return nil
}
