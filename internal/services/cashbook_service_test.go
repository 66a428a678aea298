package services

import (
	"context"
	"errors"
	"testing"

	"cashense/internal/amqp"
	"cashense/internal/store"
	"cashense/internal/store/memory"
)

type recordingPublisher struct {
	changes []string
	fail    bool
}

func (p *recordingPublisher) PublishCashbookChange(_ context.Context, id string, op amqp.ChangeOp) error {
	if p.fail {
		return errors.New("broker unreachable")
	}
	p.changes = append(p.changes, string(op)+":"+id)
	return nil
}

func TestMutationsPublishChanges(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewCashbookService(memory.New(), pub)
	ctx := context.Background()

	cb, err := svc.Create(ctx, "Travel", "", "trip")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "Travel 2026"
	if _, err := svc.Update(ctx, cb.ID, store.UpdateFields{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.Delete(ctx, cb.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{"created:" + cb.ID, "updated:" + cb.ID, "deleted:" + cb.ID}
	if len(pub.changes) != len(want) {
		t.Fatalf("expected %d changes, got %v", len(want), pub.changes)
	}
	for i := range want {
		if pub.changes[i] != want[i] {
			t.Fatalf("change %d: expected %q, got %q", i, want[i], pub.changes[i])
		}
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	svc := NewCashbookService(memory.New(), &recordingPublisher{fail: true})
	ctx := context.Background()

	cb, err := svc.Create(ctx, "Groceries", "", "")
	if err != nil {
		t.Fatalf("create should survive a dead broker: %v", err)
	}
	if _, err := svc.Get(ctx, cb.ID); err != nil {
		t.Fatalf("record should exist locally: %v", err)
	}
}

func TestNilPublisherIsOptional(t *testing.T) {
	svc := NewCashbookService(memory.New(), nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "Offline", "", ""); err != nil {
		t.Fatalf("create without broker: %v", err)
	}
}

func TestFailedMutationPublishesNothing(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewCashbookService(memory.New(), pub)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "   ", "", ""); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := svc.Delete(ctx, "missing"); err == nil {
		t.Fatalf("expected not found")
	}
	if len(pub.changes) != 0 {
		t.Fatalf("expected no published changes, got %v", pub.changes)
	}
}

func TestGetRecentDefaultsLimit(t *testing.T) {
	svc := NewCashbookService(memory.New(), nil)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		if _, err := svc.Create(ctx, name, "", ""); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	recent, err := svc.GetRecent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != store.DefaultRecentLimit {
		t.Fatalf("expected default of %d, got %d", store.DefaultRecentLimit, len(recent))
	}
	if recent[0].Name != "F" {
		t.Fatalf("expected newest first, got %s", recent[0].Name)
	}
}
