// Package store provides the shared checkpoint statistics store and its
// SQLite and Badger implementations.
//
// Every counter update is a single atomic read-modify-write of one
// (category, name) row. A failed update leaves the previous row intact.
package store

import (
	"context"
	"errors"

	"github.com/rcliao/checkpoint-tracker/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ObserveParams identifies one checkpoint observation for the catalog.
type ObserveParams struct {
	Category    string
	Name        string
	DecisionLed bool
}

// CoverageParams holds one coverage event folded into a score record.
type CoverageParams struct {
	Category      string
	Name          string
	Position      int // 1-indexed rank within the session's coverage order
	LedToDecision bool
}

// PatternParams filters the pattern log.
type PatternParams struct {
	Category string
	Limit    int
}

// CategoryStats holds per-category counts.
type CategoryStats struct {
	Category    string `json:"category" db:"category"`
	Checkpoints int    `json:"checkpoints" db:"checkpoints"`
	Scored      int    `json:"scored" db:"scored"`
	Sessions    int    `json:"sessions" db:"sessions"`
}

// Store defines the shared statistics storage interface.
type Store interface {
	// CatalogEntries returns every catalog entry for a category, sorted by name.
	CatalogEntries(ctx context.Context, category string) ([]model.CatalogEntry, error)

	// Scores returns every score record for a category, sorted by name.
	Scores(ctx context.Context, category string) ([]model.ScoreRecord, error)

	// RecordSessionMeta writes the immutable reporting row for a session.
	RecordSessionMeta(ctx context.Context, meta model.SessionMeta) error

	// ObserveCheckpoint increments usage (and decision count when decision-led)
	// for an existing entry, or inserts it with usage 1. Reports whether the
	// entry was created.
	ObserveCheckpoint(ctx context.Context, p ObserveParams) (bool, error)

	// AppendPattern appends a write-once pattern record.
	AppendPattern(ctx context.Context, rec model.PatternRecord) error

	// ApplyCoverage folds one coverage event into the score record and
	// returns the updated record.
	ApplyCoverage(ctx context.Context, p CoverageParams) (*model.ScoreRecord, error)

	// Categories returns counts for every known category.
	Categories(ctx context.Context) ([]CategoryStats, error)

	// Patterns returns pattern records, newest first.
	Patterns(ctx context.Context, p PatternParams) ([]model.PatternRecord, error)

	// Close closes the store.
	Close() error
}
