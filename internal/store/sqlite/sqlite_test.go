package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cashense/internal/core"
	"cashense/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cashense.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateGetDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cb, err := s.Create(ctx, "Travel", "summer", "trip")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, cb.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Travel" || got.Category != "trip" || got.EntryCount != 0 {
		t.Fatalf("mismatch: %+v", got)
	}
	if !got.CreatedDate.Equal(cb.CreatedDate) {
		t.Fatalf("created date did not round trip")
	}

	if err := s.Delete(ctx, cb.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, cb.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, cb.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestOrderingAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, "A", "", "")
	b, _ := s.Create(ctx, "B", "", "")

	desc := "touched"
	if _, err := s.Update(ctx, a.ID, store.UpdateFields{Description: &desc}); err != nil {
		t.Fatalf("update: %v", err)
	}

	recent, err := s.GetRecent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != a.ID {
		t.Fatalf("expected touched record first, got %+v", recent)
	}

	all, _ := s.GetAll(ctx)
	if len(all) != 2 || all[1].ID != b.ID {
		t.Fatalf("unexpected order: %+v", all)
	}

	if _, err := s.GetRecent(ctx, 0); !errors.Is(err, core.ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestUpdateValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cb, _ := s.Create(ctx, "A", "", "")
	empty := ""
	if _, err := s.Update(ctx, cb.ID, store.UpdateFields{Name: &empty}); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	name := "B"
	if _, err := s.Update(ctx, "missing", store.UpdateFields{Name: &name}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertAndRemoveMirror(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cb, err := core.NewCashbook("Mirrored", "", "sync")
	if err != nil {
		t.Fatalf("new cashbook: %v", err)
	}
	cb.EntryCount = 2
	cb.TotalAmount = core.Money{Cents: 990}

	if err := s.Upsert(ctx, cb); err != nil {
		t.Fatalf("upsert insert: %v", err)
	}
	cb.Name = "Mirrored v2"
	cb.LastModified = cb.LastModified.Add(1)
	if err := s.Upsert(ctx, cb); err != nil {
		t.Fatalf("upsert update: %v", err)
	}

	got, _ := s.Get(ctx, cb.ID)
	if got.Name != "Mirrored v2" || got.EntryCount != 2 || got.TotalAmount.Cents != 990 {
		t.Fatalf("mirror mismatch: %+v", got)
	}

	if err := s.Remove(ctx, cb.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Removing an id that never reached the archive is fine.
	if err := s.Remove(ctx, "ghost"); err != nil {
		t.Fatalf("remove ghost: %v", err)
	}
}

func TestMetadata(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.Create(ctx, "A", "", "z")
	s.Create(ctx, "B", "", "a")
	s.Create(ctx, "C", "", "")

	md, err := s.Metadata(ctx)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if md.TotalCashbooks != 3 {
		t.Fatalf("expected 3 cashbooks, got %d", md.TotalCashbooks)
	}
	if len(md.Categories) != 2 || md.Categories[0] != "a" || md.Categories[1] != "z" {
		t.Fatalf("expected sorted categories, got %v", md.Categories)
	}
}
