// Package catalog loads a category's shared checkpoint statistics and turns
// them into the ranked snapshot a session starts from.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rcliao/checkpoint-tracker/internal/model"
	"github.com/rcliao/checkpoint-tracker/internal/scoring"
)

// Reader is the read side of the shared store.
type Reader interface {
	CatalogEntries(ctx context.Context, category string) ([]model.CatalogEntry, error)
	Scores(ctx context.Context, category string) ([]model.ScoreRecord, error)
}

// Snapshot is a read-only view of a category taken at session start.
type Snapshot struct {
	Category        string                   `json:"category"`
	Checkpoints     []model.RankedCheckpoint `json:"ranked_checkpoints"`
	RecommendedPath []string                 `json:"recommended_path,omitempty"`
	HighValue       []string                 `json:"high_value_checkpoints,omitempty"`
}

// Names returns the checkpoint names in ranked order.
func (s *Snapshot) Names() []string {
	out := make([]string, 0, len(s.Checkpoints))
	for _, c := range s.Checkpoints {
		out = append(out, c.Name)
	}
	return out
}

// Loader builds snapshots from a Reader.
type Loader struct {
	reader Reader
	norm   scoring.UsageNormalization
	logger *slog.Logger
}

// NewLoader creates a Loader. A nil logger uses slog.Default().
func NewLoader(r Reader, norm scoring.UsageNormalization, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if norm == "" {
		norm = scoring.NormalizeMaxUsage
	}
	return &Loader{reader: r, norm: norm, logger: logger}
}

// Load reads the category's catalog entries and score records in parallel
// and ranks them. Identical stored data always yields the same ordering.
func (l *Loader) Load(ctx context.Context, category string) (*Snapshot, error) {
	var (
		entries []model.CatalogEntry
		scores  []model.ScoreRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = l.reader.CatalogEntries(gctx, category)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		scores, err = l.reader.Scores(gctx, category)
		if err != nil {
			return fmt.Errorf("load scores: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Category:        category,
		Checkpoints:     scoring.Rank(entries, scores, l.norm),
		RecommendedPath: scoring.RecommendedPath(scores),
		HighValue:       scoring.HighValue(scores),
	}
	l.logger.Debug("catalog loaded",
		"category", category,
		"checkpoints", len(snap.Checkpoints),
		"scored", len(scores))
	return snap, nil
}
