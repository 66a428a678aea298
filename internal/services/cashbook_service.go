// Package services orchestrates the cashbook store and the optional
// change feed.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"cashense/internal/amqp"
	"cashense/internal/core"
	"cashense/internal/store"
)

// ChangePublisher is the slice of the AMQP client the service needs.
type ChangePublisher interface {
	PublishCashbookChange(ctx context.Context, id string, op amqp.ChangeOp) error
}

// CashbookService applies mutations local-first: the store write must
// succeed, the change-feed publish may fail without failing the call.
type CashbookService struct {
	store     store.Store
	publisher ChangePublisher
}

// NewCashbookService wires a store with an optional publisher (nil
// disables the change feed).
func NewCashbookService(st store.Store, publisher ChangePublisher) *CashbookService {
	return &CashbookService{store: st, publisher: publisher}
}

func (s *CashbookService) Create(ctx context.Context, name, description, category string) (*core.Cashbook, error) {
	cb, err := s.store.Create(ctx, name, description, category)
	if err != nil {
		return nil, fmt.Errorf("create cashbook: %w", err)
	}
	s.publish(ctx, cb.ID, amqp.OpCreated)
	return cb, nil
}

func (s *CashbookService) Get(ctx context.Context, id string) (*core.Cashbook, error) {
	return s.store.Get(ctx, id)
}

func (s *CashbookService) GetAll(ctx context.Context) ([]*core.Cashbook, error) {
	return s.store.GetAll(ctx)
}

// GetRecent returns the most recently modified cashbooks. A zero limit
// falls back to the dashboard default of 4; negative limits are
// rejected by the store.
func (s *CashbookService) GetRecent(ctx context.Context, limit int) ([]*core.Cashbook, error) {
	if limit == 0 {
		limit = store.DefaultRecentLimit
	}
	return s.store.GetRecent(ctx, limit)
}

func (s *CashbookService) Update(ctx context.Context, id string, fields store.UpdateFields) (*core.Cashbook, error) {
	cb, err := s.store.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, id, amqp.OpUpdated)
	return cb, nil
}

func (s *CashbookService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, id, amqp.OpDeleted)
	return nil
}

func (s *CashbookService) Stats(ctx context.Context, id string) (core.CashbookStats, error) {
	return s.store.Stats(ctx, id)
}

func (s *CashbookService) Metadata(ctx context.Context) (core.CashbookMetadata, error) {
	return s.store.Metadata(ctx)
}

func (s *CashbookService) Backup(ctx context.Context) (string, error) {
	return s.store.Backup(ctx)
}

// publish never fails the caller: the record is already safe locally.
func (s *CashbookService) publish(ctx context.Context, id string, op amqp.ChangeOp) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCashbookChange(ctx, id, op); err != nil {
		slog.ErrorContext(ctx, "Failed to publish cashbook change",
			"id", id, "op", op, "error", err)
	}
}

// Close releases the underlying store.
func (s *CashbookService) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}
