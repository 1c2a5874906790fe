package model

import "time"

// SessionStatus is the lifecycle state of an interview session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// QAEntry is one question/answer exchange. Immutable once appended.
type QAEntry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Decision is a concrete decision reached during a session. Immutable once appended.
type Decision struct {
	Topic     string    `json:"topic"`
	Decision  string    `json:"decision"`
	Reasoning string    `json:"reasoning,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Checkpoint is a session-local checkpoint. Score is the composite score
// copied at session start and is not live-updated.
type Checkpoint struct {
	Name         string  `json:"name"`
	Covered      bool    `json:"covered"`
	Score        float64 `json:"score"`
	DecisionRate float64 `json:"decision_rate"`
}

// CoverageEvent records the first time a session touched a checkpoint.
type CoverageEvent struct {
	Checkpoint    string    `json:"checkpoint"`
	Position      int       `json:"position"`
	LedToDecision bool      `json:"led_to_decision"`
	Timestamp     time.Time `json:"timestamp"`
}

// SessionState is a point-in-time copy of a session, safe to hand to callers.
type SessionState struct {
	ID            string          `json:"session_id"`
	Topic         string          `json:"topic"`
	Category      string          `json:"category"`
	Status        SessionStatus   `json:"status"`
	StartedAt     time.Time       `json:"started_at"`
	EndedAt       *time.Time      `json:"ended_at,omitempty"`
	Entries       []QAEntry       `json:"entries"`
	Decisions     []Decision      `json:"decisions"`
	Checkpoints   []Checkpoint    `json:"checkpoints"`
	CoverageOrder []CoverageEvent `json:"coverage_order"`
}

// CoverageStep is one element of a summary's ordered coverage list.
type CoverageStep struct {
	CheckpointName string `json:"checkpoint_name"`
	LedToDecision  bool   `json:"led_to_decision"`
}

// SessionSummary is what a completed session hands to ingestion.
type SessionSummary struct {
	Category             string         `json:"category"`
	CoveredCheckpoints   []string       `json:"covered_checkpoints"`
	CheckpointsTotal     int            `json:"checkpoints_total"`
	TotalQAs             int            `json:"total_qas"`
	TotalDecisions       int            `json:"total_decisions"`
	DurationSeconds      float64        `json:"duration_seconds"`
	CoverageOrder        []CoverageStep `json:"coverage_order"`
	DecisionTopics       []string       `json:"decision_topics"`
	KnownCheckpointNames []string       `json:"known_checkpoint_names"`
}

// DecisionLed returns the set of checkpoint names flagged as decision-leading
// anywhere in the coverage order.
func (s SessionSummary) DecisionLed() map[string]bool {
	led := make(map[string]bool)
	for _, step := range s.CoverageOrder {
		if step.LedToDecision {
			led[step.CheckpointName] = true
		}
	}
	return led
}
