// Package sqlite implements a durable cashbook store on SQLite. It
// doubles as the archive the mirror worker writes into, so reporting
// queries keep working even when the JSON store is the primary.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cashense/internal/core"
	"cashense/internal/store"

	_ "modernc.org/sqlite"
)

// Fixed-width fraction: RFC3339Nano drops trailing zeros, which breaks
// lexical ordering of the stored text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store holds the database pool. All timestamps are stored as
// fixed-width RFC 3339 text so lexical and chronological order agree.
type Store struct {
	db *sql.DB
}

// Open creates the database file when missing, runs migrations and
// returns a ready store.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

const allColumns = `id, name, description, category, created_date, last_modified,
	entry_count, total_amount_cents, icon_color`

func scanCashbook(row interface{ Scan(...any) error }) (*core.Cashbook, error) {
	var (
		cb       core.Cashbook
		created  string
		modified string
		cents    int64
	)
	err := row.Scan(&cb.ID, &cb.Name, &cb.Description, &cb.Category,
		&created, &modified, &cb.EntryCount, &cents, &cb.IconColor)
	if err != nil {
		return nil, err
	}
	if cb.CreatedDate, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("parse created_date %q: %w", created, err)
	}
	if cb.LastModified, err = time.Parse(timeLayout, modified); err != nil {
		return nil, fmt.Errorf("parse last_modified %q: %w", modified, err)
	}
	cb.TotalAmount = core.Money{Cents: cents}
	return &cb, nil
}

func (s *Store) insert(ctx context.Context, cb *core.Cashbook) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cashbooks (`+allColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cb.ID, cb.Name, cb.Description, cb.Category,
		cb.CreatedDate.Format(timeLayout), cb.LastModified.Format(timeLayout),
		cb.EntryCount, cb.TotalAmount.Cents, cb.IconColor)
	return err
}

// Create implements store.Store.
func (s *Store) Create(ctx context.Context, name, description, category string) (*core.Cashbook, error) {
	cb, err := core.NewCashbook(name, description, category)
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, cb); err != nil {
		return nil, fmt.Errorf("insert cashbook: %w", err)
	}
	slog.InfoContext(ctx, "Cashbook created", "id", cb.ID, "name", cb.Name)
	return cb, nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, id string) (*core.Cashbook, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+allColumns+` FROM cashbooks WHERE id = ?`, id)
	cb, err := scanCashbook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cashbook: %w", err)
	}
	return cb, nil
}

// GetAll implements store.Store.
func (s *Store) GetAll(ctx context.Context) ([]*core.Cashbook, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+allColumns+` FROM cashbooks
		ORDER BY last_modified DESC, created_date DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list cashbooks: %w", err)
	}
	defer rows.Close()

	var out []*core.Cashbook
	for rows.Next() {
		cb, err := scanCashbook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cashbook: %w", err)
		}
		out = append(out, cb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cashbooks: %w", err)
	}
	return out, nil
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
	cb, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

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

	now := time.Now()
	if !now.After(cb.LastModified) {
		now = cb.LastModified.Add(time.Nanosecond)
	}
	cb.LastModified = now

	if err := cb.Validate(); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE cashbooks
		SET name = ?, description = ?, category = ?, last_modified = ?, icon_color = ?
		WHERE id = ?`,
		cb.Name, cb.Description, cb.Category,
		cb.LastModified.Format(timeLayout), cb.IconColor, id)
	if err != nil {
		return nil, fmt.Errorf("update cashbook: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, core.ErrNotFound
	}
	return cb, nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cashbooks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete cashbook: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	slog.InfoContext(ctx, "Cashbook deleted", "id", id)
	return nil
}

// Stats implements store.Store.
func (s *Store) Stats(ctx context.Context, id string) (core.CashbookStats, error) {
	var (
		count int
		cents int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT entry_count, total_amount_cents FROM cashbooks WHERE id = ?`, id).
		Scan(&count, &cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CashbookStats{}, core.ErrNotFound
	}
	if err != nil {
		return core.CashbookStats{}, fmt.Errorf("get stats: %w", err)
	}
	return core.CashbookStats{EntryCount: count, TotalAmount: core.Money{Cents: cents}}, nil
}

// Metadata implements store.Store.
func (s *Store) Metadata(ctx context.Context) (core.CashbookMetadata, error) {
	var md core.CashbookMetadata
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cashbooks`).
		Scan(&md.TotalCashbooks); err != nil {
		return md, fmt.Errorf("count cashbooks: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category FROM cashbooks
		WHERE category <> '' ORDER BY category`)
	if err != nil {
		return md, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return md, fmt.Errorf("scan category: %w", err)
		}
		md.Categories = append(md.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return md, fmt.Errorf("iterate categories: %w", err)
	}
	return md, nil
}

// Backup is a no-op: the database file is already a durable copy and
// snapshot rotation belongs to the JSON store.
func (s *Store) Backup(context.Context) (string, error) {
	return "", nil
}

// Upsert writes a cashbook verbatim, used by the mirror worker to
// replay change-feed events into the archive.
func (s *Store) Upsert(ctx context.Context, cb *core.Cashbook) error {
	if err := cb.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cashbooks (`+allColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			created_date = excluded.created_date,
			last_modified = excluded.last_modified,
			entry_count = excluded.entry_count,
			total_amount_cents = excluded.total_amount_cents,
			icon_color = excluded.icon_color`,
		cb.ID, cb.Name, cb.Description, cb.Category,
		cb.CreatedDate.Format(timeLayout), cb.LastModified.Format(timeLayout),
		cb.EntryCount, cb.TotalAmount.Cents, cb.IconColor)
	if err != nil {
		return fmt.Errorf("upsert cashbook: %w", err)
	}
	return nil
}

// Remove deletes a mirrored cashbook. Unlike Delete it tolerates
// records that never reached the archive.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cashbooks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove mirrored cashbook: %w", err)
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
