package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultIconColor is assigned to cashbooks created without an explicit color.
const DefaultIconColor = "#3B82F6"

// MaxNameLength is the upper bound for a cashbook display name.
const MaxNameLength = 100

type (
	// Money is an amount in integer cents to avoid floating point drift.
	Money struct {
		Cents int64
	}

	// Cashbook is the unit of organization: a named container for a
	// user's expense entries. Entries themselves live outside this model;
	// only their aggregates (EntryCount, TotalAmount) are tracked here.
	Cashbook struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Description  string    `json:"description"`
		Category     string    `json:"category"`
		CreatedDate  time.Time `json:"created_date"`
		LastModified time.Time `json:"last_modified"`
		EntryCount   int       `json:"entry_count"`
		TotalAmount  Money     `json:"total_amount_cents"`
		IconColor    string    `json:"icon_color"`
	}

	// CashbookStats is the per-cashbook aggregate snapshot.
	CashbookStats struct {
		EntryCount  int
		TotalAmount Money
	}

	// CashbookMetadata is derived from the live collection on demand.
	// It is never persisted as a source of truth.
	CashbookMetadata struct {
		TotalCashbooks int
		Categories     []string
		LastBackup     time.Time
	}
)

var (
	ErrEmptyName          = errors.New("cashbook name cannot be empty")
	ErrNameTooLong        = errors.New("cashbook name cannot exceed 100 characters")
	ErrNegativeEntryCount = errors.New("entry count cannot be negative")
	ErrInvalidLimit       = errors.New("limit must be positive")
	ErrNotFound           = errors.New("cashbook not found")
	ErrCorruptData        = errors.New("cashbook data corrupted")
)

// NewCashbookID generates a fresh opaque cashbook identifier.
func NewCashbookID() string {
	return uuid.NewString()
}

// NewCashbook builds a validated cashbook with a fresh ID and both
// timestamps set to now. EntryCount and TotalAmount start at zero.
func NewCashbook(name, description, category string) (*Cashbook, error) {
	now := time.Now()
	cb := &Cashbook{
		ID:           NewCashbookID(),
		Name:         strings.TrimSpace(name),
		Description:  description,
		Category:     category,
		CreatedDate:  now,
		LastModified: now,
		IconColor:    DefaultIconColor,
	}
	if err := cb.Validate(); err != nil {
		return nil, err
	}
	return cb, nil
}

// Validate checks the cashbook invariants. Name is validated in its
// trimmed form; callers are expected to store the trimmed name.
func (cb *Cashbook) Validate() error {
	name := strings.TrimSpace(cb.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > MaxNameLength {
		return ErrNameTooLong
	}
	if cb.EntryCount < 0 {
		return ErrNegativeEntryCount
	}
	if cb.LastModified.Before(cb.CreatedDate) {
		return errors.New("last modified cannot precede creation date")
	}
	return nil
}

// Clone returns a copy so callers never share mutable state with the
// store's in-memory collection.
func (cb *Cashbook) Clone() *Cashbook {
	cp := *cb
	return &cp
}

// Stats returns the aggregate snapshot for this cashbook.
func (cb *Cashbook) Stats() CashbookStats {
	return CashbookStats{
		EntryCount:  cb.EntryCount,
		TotalAmount: cb.TotalAmount,
	}
}

// Euros returns the amount as a float64 for display purposes only.
// Calculations must stay in cents.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}

// MarshalJSON encodes the amount as a bare integer number of cents.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Cents)
}

// UnmarshalJSON decodes a bare integer number of cents.
func (m *Money) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &m.Cents)
}
