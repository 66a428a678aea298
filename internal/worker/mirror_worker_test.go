package worker

import (
	"context"
	"errors"
	"testing"

	"cashense/internal/amqp"
	"cashense/internal/core"
	"cashense/internal/store/memory"
)

type fakeArchive struct {
	books   map[string]*core.Cashbook
	failing bool
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{books: make(map[string]*core.Cashbook)}
}

func (a *fakeArchive) Upsert(_ context.Context, cb *core.Cashbook) error {
	if a.failing {
		return errors.New("archive unavailable")
	}
	a.books[cb.ID] = cb.Clone()
	return nil
}

func (a *fakeArchive) Remove(_ context.Context, id string) error {
	if a.failing {
		return errors.New("archive unavailable")
	}
	delete(a.books, id)
	return nil
}

func TestHandleChangeMirrorsCurrentState(t *testing.T) {
	primary := memory.New()
	archive := newFakeArchive()
	w := NewMirrorWorker(primary, archive)
	ctx := context.Background()

	cb, err := primary.Create(ctx, "Travel", "", "trip")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := w.HandleChange(ctx, amqp.NewCashbookChangeMessage(cb.ID, amqp.OpCreated)); err != nil {
		t.Fatalf("handle created: %v", err)
	}
	mirrored, ok := archive.books[cb.ID]
	if !ok || mirrored.Name != "Travel" {
		t.Fatalf("expected mirrored record, got %+v", mirrored)
	}

	if err := w.HandleChange(ctx, amqp.NewCashbookChangeMessage(cb.ID, amqp.OpDeleted)); err != nil {
		t.Fatalf("handle deleted: %v", err)
	}
	if _, ok := archive.books[cb.ID]; ok {
		t.Fatalf("expected record removed from archive")
	}
}

func TestHandleChangeSkipsVanishedCashbook(t *testing.T) {
	archive := newFakeArchive()
	w := NewMirrorWorker(memory.New(), archive)

	msg := amqp.NewCashbookChangeMessage("gone", amqp.OpUpdated)
	if err := w.HandleChange(context.Background(), msg); err != nil {
		t.Fatalf("expected vanished record to be skipped, got %v", err)
	}
	if len(archive.books) != 0 {
		t.Fatalf("nothing should have been mirrored")
	}
}

func TestHandleChangeSurfacesArchiveErrors(t *testing.T) {
	primary := memory.New()
	archive := newFakeArchive()
	archive.failing = true
	w := NewMirrorWorker(primary, archive)
	ctx := context.Background()

	cb, _ := primary.Create(ctx, "Travel", "", "")
	if err := w.HandleChange(ctx, amqp.NewCashbookChangeMessage(cb.ID, amqp.OpCreated)); err == nil {
		t.Fatalf("expected archive error to propagate for requeue")
	}
}
