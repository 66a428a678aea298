// Package worker replays the cashbook change feed into the sqlite
// archive so a queryable mirror survives even if the JSON file is lost.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cashense/internal/amqp"
	"cashense/internal/core"
	"cashense/internal/store"
)

// Archive is the mirror target. The sqlite store satisfies it.
type Archive interface {
	Upsert(ctx context.Context, cb *core.Cashbook) error
	Remove(ctx context.Context, id string) error
}

// MirrorWorker fetches the current record from the primary store on
// every change message, so out-of-order deliveries cannot overwrite
// newer state with stale payloads.
type MirrorWorker struct {
	primary store.Store
	archive Archive
}

func NewMirrorWorker(primary store.Store, archive Archive) *MirrorWorker {
	return &MirrorWorker{primary: primary, archive: archive}
}

// HandleChange processes one change-feed message. Returning an error
// makes the consumer nack with requeue.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.CashbookChangeMessage) error {
	slog.InfoContext(ctx, "Processing cashbook change",
		"id", msg.ID,
		"op", msg.Op)

	if msg.Op == amqp.OpDeleted {
		if err := w.archive.Remove(ctx, msg.ID); err != nil {
			return fmt.Errorf("remove cashbook from archive: %w", err)
		}
		return nil
	}

	cb, err := w.primary.Get(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted between publish and delivery. The delete message is
		// behind this one and will clean up the archive.
		slog.WarnContext(ctx, "Cashbook vanished before mirroring, skipping",
			"id", msg.ID,
			"op", msg.Op)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get cashbook from primary store: %w", err)
	}

	if err := w.archive.Upsert(ctx, cb); err != nil {
		return fmt.Errorf("upsert cashbook into archive: %w", err)
	}

	slog.InfoContext(ctx, "Mirrored cashbook into archive",
		"id", cb.ID,
		"name", cb.Name)
	return nil
}
