package store

import (
	"context"
	"fmt"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath      string          `json:"db_path"`
	DBSizeBytes int64           `json:"db_size_bytes"`
	Checkpoints int             `json:"checkpoints"`
	Scored      int             `json:"scored"`
	Sessions    int             `json:"sessions"`
	Patterns    int             `json:"patterns"`
	Categories  []CategoryStats `json:"categories"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.GetContext(ctx, &st.Checkpoints, `SELECT COUNT(*) FROM checkpoint_catalog`)
	s.db.GetContext(ctx, &st.Scored, `SELECT COUNT(*) FROM checkpoint_scores`)
	s.db.GetContext(ctx, &st.Sessions, `SELECT COUNT(*) FROM session_meta`)
	s.db.GetContext(ctx, &st.Patterns, `SELECT COUNT(*) FROM interview_patterns`)

	cats, err := s.Categories(ctx)
	if err != nil {
		return st, err
	}
	st.Categories = cats
	return st, nil
}

// Categories returns counts for every category seen in the catalog or
// session log, ordered by session count.
func (s *SQLiteStore) Categories(ctx context.Context) ([]CategoryStats, error) {
	var cats []CategoryStats
	err := s.db.SelectContext(ctx, &cats, `
		SELECT c.category AS category,
		       (SELECT COUNT(*) FROM checkpoint_catalog WHERE category = c.category) AS checkpoints,
		       (SELECT COUNT(*) FROM checkpoint_scores WHERE category = c.category) AS scored,
		       (SELECT COUNT(*) FROM session_meta WHERE category = c.category) AS sessions
		FROM (
			SELECT category FROM checkpoint_catalog
			UNION SELECT category FROM session_meta
		) c
		ORDER BY sessions DESC, category`)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	return cats, nil
}
