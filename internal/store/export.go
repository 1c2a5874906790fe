package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rcliao/checkpoint-tracker/internal/model"
)

type patternRow struct {
	ID                 string  `db:"id"`
	Category           string  `db:"category"`
	CoverageSequence   string  `db:"coverage_sequence"`
	DecisionSequence   string  `db:"decision_sequence"`
	CheckpointsCovered int     `db:"checkpoints_covered"`
	CheckpointsTotal   int     `db:"checkpoints_total"`
	TotalQAs           int     `db:"total_qas"`
	TotalDecisions     int     `db:"total_decisions"`
	DurationSeconds    float64 `db:"duration_seconds"`
	CreatedAt          string  `db:"created_at"`
}

func (r patternRow) record() (model.PatternRecord, error) {
	rec := model.PatternRecord{
		ID:                 r.ID,
		Category:           r.Category,
		CheckpointsCovered: r.CheckpointsCovered,
		CheckpointsTotal:   r.CheckpointsTotal,
		TotalQAs:           r.TotalQAs,
		TotalDecisions:     r.TotalDecisions,
		DurationSeconds:    r.DurationSeconds,
		CreatedAt:          parseTime(r.CreatedAt),
	}
	if r.CoverageSequence != "" {
		if err := json.Unmarshal([]byte(r.CoverageSequence), &rec.CoverageSequence); err != nil {
			return rec, fmt.Errorf("decode coverage sequence: %w", err)
		}
	}
	if r.DecisionSequence != "" {
		if err := json.Unmarshal([]byte(r.DecisionSequence), &rec.DecisionSequence); err != nil {
			return rec, fmt.Errorf("decode decision sequence: %w", err)
		}
	}
	return rec, nil
}

// Patterns returns pattern records, newest first, optionally filtered by category.
func (s *SQLiteStore) Patterns(ctx context.Context, p PatternParams) ([]model.PatternRecord, error) {
	var where []string
	args := []interface{}{}

	if p.Category != "" {
		where = append(where, "category = ?")
		args = append(args, p.Category)
	}

	query := `SELECT id, category, coverage_sequence, decision_sequence, checkpoints_covered,
	                 checkpoints_total, total_qas, total_decisions, duration_seconds, created_at
	          FROM interview_patterns`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if p.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, p.Limit)
	}

	var rows []patternRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select patterns: %w", err)
	}
	out := make([]model.PatternRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
