// Package model defines the core interview and checkpoint data types.
package model

import "time"

// CatalogEntry is the shared per-(category, name) usage counter.
type CatalogEntry struct {
	Category      string    `json:"category"`
	Name          string    `json:"name"`
	UsageCount    int       `json:"usage_count"`
	DecisionCount int       `json:"decision_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ScoreRecord is the shared per-(category, name) effectiveness record.
// DecisionRate is always derived from TimesLedToDecision and TimesCovered.
type ScoreRecord struct {
	Category           string    `json:"category"`
	Name               string    `json:"name"`
	TimesCovered       int       `json:"times_covered"`
	TimesLedToDecision int       `json:"times_led_to_decision"`
	DecisionRate       float64   `json:"decision_rate"`
	AvgPosition        float64   `json:"avg_position"`
	PositionSamples    int       `json:"position_samples"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// RankedCheckpoint is a checkpoint name with the scores used to order it.
type RankedCheckpoint struct {
	Name           string  `json:"name"`
	CompositeScore float64 `json:"composite_score"`
	DecisionRate   float64 `json:"decision_rate"`
	AvgPosition    float64 `json:"avg_position,omitempty"`
	UsageCount     int     `json:"usage_count,omitempty"`
}

// PatternRecord is an append-only record of one completed session's
// coverage sequence. It is never updated after creation.
type PatternRecord struct {
	ID                 string    `json:"id"`
	Category           string    `json:"category"`
	CoverageSequence   []string  `json:"coverage_sequence"`
	DecisionSequence   []string  `json:"decision_sequence"`
	CheckpointsCovered int       `json:"checkpoints_covered"`
	CheckpointsTotal   int       `json:"checkpoints_total"`
	TotalQAs           int       `json:"total_qas"`
	TotalDecisions     int       `json:"total_decisions"`
	DurationSeconds    float64   `json:"duration_seconds"`
	CreatedAt          time.Time `json:"created_at"`
}

// SessionMeta is the immutable reporting row written for every accepted
// session. It is not used for scoring.
type SessionMeta struct {
	ID                 string    `json:"id"`
	Category           string    `json:"category"`
	CoveredCheckpoints []string  `json:"covered_checkpoints"`
	CheckpointsCovered int       `json:"checkpoints_covered"`
	CheckpointsTotal   int       `json:"checkpoints_total"`
	TotalQAs           int       `json:"total_qas"`
	TotalDecisions     int       `json:"total_decisions"`
	DurationSeconds    float64   `json:"duration_seconds"`
	CreatedAt          time.Time `json:"created_at"`
}
