package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/rcliao/checkpoint-tracker/internal/model"
	"github.com/rcliao/checkpoint-tracker/internal/scoring"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
// Write transactions take the database lock up front (BEGIN IMMEDIATE) so
// concurrent read-modify-write updates serialize instead of losing counts.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	dsn := dbPath +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_txlock=immediate"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoint_catalog (
		category       TEXT NOT NULL,
		name           TEXT NOT NULL,
		usage_count    INTEGER NOT NULL DEFAULT 0,
		decision_count INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL,
		updated_at     TEXT NOT NULL,
		PRIMARY KEY (category, name)
	);

	CREATE TABLE IF NOT EXISTS checkpoint_scores (
		category              TEXT NOT NULL,
		name                  TEXT NOT NULL,
		times_covered         INTEGER NOT NULL DEFAULT 0,
		times_led_to_decision INTEGER NOT NULL DEFAULT 0,
		decision_rate         REAL NOT NULL DEFAULT 0,
		avg_position          REAL NOT NULL DEFAULT 0,
		position_samples      INTEGER NOT NULL DEFAULT 0,
		updated_at            TEXT NOT NULL,
		PRIMARY KEY (category, name)
	);

	CREATE TABLE IF NOT EXISTS session_meta (
		id                  TEXT PRIMARY KEY,
		category            TEXT NOT NULL,
		covered_checkpoints TEXT,
		checkpoints_covered INTEGER NOT NULL DEFAULT 0,
		checkpoints_total   INTEGER NOT NULL DEFAULT 0,
		total_qas           INTEGER NOT NULL DEFAULT 0,
		total_decisions     INTEGER NOT NULL DEFAULT 0,
		duration_seconds    REAL NOT NULL DEFAULT 0,
		created_at          TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_meta_category ON session_meta(category);

	CREATE TABLE IF NOT EXISTS interview_patterns (
		id                  TEXT PRIMARY KEY,
		category            TEXT NOT NULL,
		coverage_sequence   TEXT,
		decision_sequence   TEXT,
		checkpoints_covered INTEGER NOT NULL DEFAULT 0,
		checkpoints_total   INTEGER NOT NULL DEFAULT 0,
		total_qas           INTEGER NOT NULL DEFAULT 0,
		total_decisions     INTEGER NOT NULL DEFAULT 0,
		duration_seconds    REAL NOT NULL DEFAULT 0,
		created_at          TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_patterns_category ON interview_patterns(category, created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

type catalogRow struct {
	Category      string `db:"category"`
	Name          string `db:"name"`
	UsageCount    int    `db:"usage_count"`
	DecisionCount int    `db:"decision_count"`
	CreatedAt     string `db:"created_at"`
	UpdatedAt     string `db:"updated_at"`
}

func (r catalogRow) entry() model.CatalogEntry {
	return model.CatalogEntry{
		Category:      r.Category,
		Name:          r.Name,
		UsageCount:    r.UsageCount,
		DecisionCount: r.DecisionCount,
		CreatedAt:     parseTime(r.CreatedAt),
		UpdatedAt:     parseTime(r.UpdatedAt),
	}
}

type scoreRow struct {
	Category           string  `db:"category"`
	Name               string  `db:"name"`
	TimesCovered       int     `db:"times_covered"`
	TimesLedToDecision int     `db:"times_led_to_decision"`
	DecisionRate       float64 `db:"decision_rate"`
	AvgPosition        float64 `db:"avg_position"`
	PositionSamples    int     `db:"position_samples"`
	UpdatedAt          string  `db:"updated_at"`
}

func (r scoreRow) record() model.ScoreRecord {
	return model.ScoreRecord{
		Category:           r.Category,
		Name:               r.Name,
		TimesCovered:       r.TimesCovered,
		TimesLedToDecision: r.TimesLedToDecision,
		DecisionRate:       r.DecisionRate,
		AvgPosition:        r.AvgPosition,
		PositionSamples:    r.PositionSamples,
		UpdatedAt:          parseTime(r.UpdatedAt),
	}
}

func (s *SQLiteStore) CatalogEntries(ctx context.Context, category string) ([]model.CatalogEntry, error) {
	var rows []catalogRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT category, name, usage_count, decision_count, created_at, updated_at
		FROM checkpoint_catalog WHERE category = ? ORDER BY name`, category)
	if err != nil {
		return nil, fmt.Errorf("select catalog: %w", err)
	}
	out := make([]model.CatalogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}

func (s *SQLiteStore) Scores(ctx context.Context, category string) ([]model.ScoreRecord, error) {
	var rows []scoreRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT category, name, times_covered, times_led_to_decision, decision_rate,
		       avg_position, position_samples, updated_at
		FROM checkpoint_scores WHERE category = ? ORDER BY name`, category)
	if err != nil {
		return nil, fmt.Errorf("select scores: %w", err)
	}
	out := make([]model.ScoreRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func (s *SQLiteStore) RecordSessionMeta(ctx context.Context, meta model.SessionMeta) error {
	covered, err := json.Marshal(meta.CoveredCheckpoints)
	if err != nil {
		return fmt.Errorf("encode covered checkpoints: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO session_meta (id, category, covered_checkpoints, checkpoints_covered,
			checkpoints_total, total_qas, total_decisions, duration_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Category, string(covered), meta.CheckpointsCovered,
		meta.CheckpointsTotal, meta.TotalQAs, meta.TotalDecisions, meta.DurationSeconds,
		formatTime(meta.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert session meta: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ObserveCheckpoint(ctx context.Context, p ObserveParams) (bool, error) {
	now := formatTime(time.Now())
	decisions := 0
	if p.DecisionLed {
		decisions = 1
	}

	var created bool
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var prev catalogRow
		err := tx.GetContext(ctx, &prev, `
			SELECT category, name, usage_count, decision_count, created_at, updated_at
			FROM checkpoint_catalog WHERE category = ? AND name = ?`, p.Category, p.Name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = true
			_, err = tx.ExecContext(ctx, `
				INSERT INTO checkpoint_catalog (category, name, usage_count, decision_count, created_at, updated_at)
				VALUES (?, ?, 1, ?, ?, ?)`, p.Category, p.Name, decisions, now, now)
			return err
		case err != nil:
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE checkpoint_catalog SET usage_count = ?, decision_count = ?, updated_at = ?
			WHERE category = ? AND name = ?`,
			prev.UsageCount+1, prev.DecisionCount+decisions, now, p.Category, p.Name)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("observe checkpoint %q: %w", p.Name, err)
	}
	return created, nil
}

func (s *SQLiteStore) AppendPattern(ctx context.Context, rec model.PatternRecord) error {
	coverage, err := json.Marshal(rec.CoverageSequence)
	if err != nil {
		return fmt.Errorf("encode coverage sequence: %w", err)
	}
	decisions, err := json.Marshal(rec.DecisionSequence)
	if err != nil {
		return fmt.Errorf("encode decision sequence: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interview_patterns (id, category, coverage_sequence, decision_sequence,
			checkpoints_covered, checkpoints_total, total_qas, total_decisions, duration_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Category, string(coverage), string(decisions),
		rec.CheckpointsCovered, rec.CheckpointsTotal, rec.TotalQAs, rec.TotalDecisions,
		rec.DurationSeconds, formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert pattern: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ApplyCoverage(ctx context.Context, p CoverageParams) (*model.ScoreRecord, error) {
	var next model.ScoreRecord
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var row scoreRow
		var prev *model.ScoreRecord
		err := tx.GetContext(ctx, &row, `
			SELECT category, name, times_covered, times_led_to_decision, decision_rate,
			       avg_position, position_samples, updated_at
			FROM checkpoint_scores WHERE category = ? AND name = ?`, p.Category, p.Name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			r := row.record()
			prev = &r
		}

		next = scoring.ApplyCoverage(prev, p.Category, p.Name, p.Position, p.LedToDecision, time.Now())
		_, err = tx.ExecContext(ctx, `
			INSERT INTO checkpoint_scores (category, name, times_covered, times_led_to_decision,
				decision_rate, avg_position, position_samples, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(category, name) DO UPDATE SET
				times_covered = excluded.times_covered,
				times_led_to_decision = excluded.times_led_to_decision,
				decision_rate = excluded.decision_rate,
				avg_position = excluded.avg_position,
				position_samples = excluded.position_samples,
				updated_at = excluded.updated_at`,
			next.Category, next.Name, next.TimesCovered, next.TimesLedToDecision,
			next.DecisionRate, next.AvgPosition, next.PositionSamples, formatTime(next.UpdatedAt))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("apply coverage %q: %w", p.Name, err)
	}
	return &next, nil
}

// inTx runs fn in one write transaction, rolling back on error.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
