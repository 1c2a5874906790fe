// Package session holds in-memory interview sessions: the registry that
// creates and resolves them, and the per-session coverage tracking.
//
// Sessions are not durable. A session lives until process exit and is
// flushed once to ingestion when it ends.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/rcliao/checkpoint-tracker/internal/model"
	"github.com/rcliao/checkpoint-tracker/internal/normalize"
)

var (
	// ErrNoSession is returned when no session matches the id, or no
	// active session exists when the id is omitted.
	ErrNoSession = errors.New("no matching session; start a new session")

	// ErrSessionCompleted is returned when mutating an ended session.
	ErrSessionCompleted = errors.New("session already completed")
)

// Session is one interview. All methods are safe for concurrent use;
// sessions share no mutable state with each other.
type Session struct {
	mu sync.Mutex

	id       string
	seq      uint64
	topic    string
	category string

	status    model.SessionStatus
	startedAt time.Time
	endedAt   *time.Time

	entries   []model.QAEntry
	decisions []model.Decision

	// checkpoints is in ranked order; index maps name to its slot.
	checkpoints []model.Checkpoint
	index       map[string]int

	coverage      []model.CoverageEvent
	coverageIndex map[string]int

	recommendedPath []string
	highValue       []string

	now func() time.Time
}

// Progress summarizes a session after an event.
type Progress struct {
	TotalQAs           int      `json:"total_qas"`
	TotalDecisions     int      `json:"total_decisions"`
	CheckpointsCovered int      `json:"checkpoints_covered"`
	CheckpointsTotal   int      `json:"checkpoints_total"`
	NewlyCovered       []string `json:"newly_covered,omitempty"`
	Uncovered          []string `json:"uncovered"`
	NextRecommended    string   `json:"next_recommended,omitempty"`
}

func newSession(id string, seq uint64, p CreateParams, now func() time.Time) *Session {
	s := &Session{
		id:              id,
		seq:             seq,
		topic:           p.Topic,
		category:        p.Category,
		status:          model.StatusActive,
		startedAt:       now(),
		entries:         []model.QAEntry{},
		decisions:       []model.Decision{},
		checkpoints:     make([]model.Checkpoint, 0, len(p.Checkpoints)),
		index:           make(map[string]int, len(p.Checkpoints)),
		coverage:        []model.CoverageEvent{},
		coverageIndex:   map[string]int{},
		recommendedPath: append([]string(nil), p.RecommendedPath...),
		highValue:       append([]string(nil), p.HighValue...),
		now:             now,
	}
	for _, rc := range p.Checkpoints {
		if _, dup := s.index[rc.Name]; dup {
			continue
		}
		s.index[rc.Name] = len(s.checkpoints)
		s.checkpoints = append(s.checkpoints, model.Checkpoint{
			Name:         rc.Name,
			Score:        rc.CompositeScore,
			DecisionRate: rc.DecisionRate,
		})
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Category returns the normalized category key.
func (s *Session) Category() string { return s.category }

// Status returns the lifecycle state.
func (s *Session) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// RecommendedPath returns the path computed at session start.
func (s *Session) RecommendedPath() []string {
	return append([]string(nil), s.recommendedPath...)
}

// HighValue returns the high-value checkpoints computed at session start.
func (s *Session) HighValue() []string {
	return append([]string(nil), s.highValue...)
}

// AddQA appends a question/answer entry and marks the cited checkpoints
// covered at the position of the new entry.
func (s *Session) AddQA(question, answer string, covered []string) (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusActive {
		return nil, ErrSessionCompleted
	}
	s.entries = append(s.entries, model.QAEntry{
		Question:  question,
		Answer:    answer,
		Timestamp: s.now(),
	})
	newly := s.recordCoverageLocked(covered, false)
	return s.progressLocked(newly), nil
}

// AddDecision appends a decision and marks the cited checkpoints, plus the
// decision topic itself, as decision-leading.
func (s *Session) AddDecision(topic, decision, reasoning string, covered []string) (*Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusActive {
		return nil, ErrSessionCompleted
	}
	s.decisions = append(s.decisions, model.Decision{
		Topic:     topic,
		Decision:  decision,
		Reasoning: reasoning,
		Timestamp: s.now(),
	})
	cited := append(append([]string(nil), covered...), topic)
	newly := s.recordCoverageLocked(cited, true)
	return s.progressLocked(newly), nil
}

// Progress returns current counts without mutating the session.
func (s *Session) Progress() *Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked(nil)
}

func (s *Session) progressLocked(newly []string) *Progress {
	p := &Progress{
		TotalQAs:           len(s.entries),
		TotalDecisions:     len(s.decisions),
		CheckpointsCovered: len(s.coverage),
		CheckpointsTotal:   len(s.checkpoints),
		NewlyCovered:       newly,
		Uncovered:          []string{},
	}
	for _, c := range s.uncoveredLocked() {
		p.Uncovered = append(p.Uncovered, c.Name)
	}
	if len(p.Uncovered) > 0 {
		p.NextRecommended = p.Uncovered[0]
	}
	return p
}

// State returns a deep copy of the session.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := model.SessionState{
		ID:            s.id,
		Topic:         s.topic,
		Category:      s.category,
		Status:        s.status,
		StartedAt:     s.startedAt,
		Entries:       append([]model.QAEntry{}, s.entries...),
		Decisions:     append([]model.Decision{}, s.decisions...),
		Checkpoints:   append([]model.Checkpoint{}, s.checkpoints...),
		CoverageOrder: append([]model.CoverageEvent{}, s.coverage...),
	}
	if s.endedAt != nil {
		t := *s.endedAt
		st.EndedAt = &t
	}
	return st
}

// Complete marks the session completed and returns the summary handed to
// ingestion. Completing twice returns ErrSessionCompleted.
func (s *Session) Complete() (model.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusActive {
		return model.SessionSummary{}, ErrSessionCompleted
	}
	now := s.now()
	s.status = model.StatusCompleted
	s.endedAt = &now
	return s.summaryLocked(now), nil
}

func (s *Session) summaryLocked(end time.Time) model.SessionSummary {
	sum := model.SessionSummary{
		Category:             s.category,
		CoveredCheckpoints:   make([]string, 0, len(s.coverage)),
		CheckpointsTotal:     len(s.checkpoints),
		TotalQAs:             len(s.entries),
		TotalDecisions:       len(s.decisions),
		DurationSeconds:      end.Sub(s.startedAt).Seconds(),
		CoverageOrder:        make([]model.CoverageStep, 0, len(s.coverage)),
		KnownCheckpointNames: make([]string, 0, len(s.checkpoints)),
	}
	for _, ev := range s.coverage {
		sum.CoveredCheckpoints = append(sum.CoveredCheckpoints, ev.Checkpoint)
		sum.CoverageOrder = append(sum.CoverageOrder, model.CoverageStep{
			CheckpointName: ev.Checkpoint,
			LedToDecision:  ev.LedToDecision,
		})
	}
	topics := make([]string, 0, len(s.decisions))
	for _, d := range s.decisions {
		topics = append(topics, d.Topic)
	}
	sum.DecisionTopics = normalize.Keys(topics)
	for _, c := range s.checkpoints {
		sum.KnownCheckpointNames = append(sum.KnownCheckpointNames, c.Name)
	}
	return sum
}
