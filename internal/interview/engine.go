// Package interview drives sessions end to end: it opens them against the
// shared checkpoint statistics, records events, reports context, and hands
// completed sessions to ingestion.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rcliao/checkpoint-tracker/internal/catalog"
	"github.com/rcliao/checkpoint-tracker/internal/ingest"
	"github.com/rcliao/checkpoint-tracker/internal/metrics"
	"github.com/rcliao/checkpoint-tracker/internal/model"
	"github.com/rcliao/checkpoint-tracker/internal/normalize"
	"github.com/rcliao/checkpoint-tracker/internal/session"
)

var (
	// ErrUnknownKind is returned for an event kind other than qa or decision.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrInvalidEvent is returned when an event or start request lacks a
	// required field.
	ErrInvalidEvent = errors.New("invalid event")
)

// Kind is the type of a recorded event.
type Kind string

const (
	KindQA       Kind = "qa"
	KindDecision Kind = "decision"
)

// Ingester persists a completed session's summary.
type Ingester interface {
	IngestSummary(ctx context.Context, sum model.SessionSummary) (*ingest.Result, error)
}

// Engine implements the four session operations.
type Engine struct {
	sessions *session.Registry
	loader   *catalog.Loader
	ingester Ingester
	logger   *slog.Logger
}

// NewEngine creates an Engine. A nil logger uses slog.Default().
func NewEngine(sessions *session.Registry, loader *catalog.Loader, ingester Ingester, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{sessions: sessions, loader: loader, ingester: ingester, logger: logger}
}

// StartResult is returned by StartSession.
type StartResult struct {
	SessionID         string                   `json:"session_id"`
	Category          string                   `json:"category"`
	RankedCheckpoints []model.RankedCheckpoint `json:"ranked_checkpoints"`
	RecommendedPath   []string                 `json:"recommended_path,omitempty"`
	HighValue         []string                 `json:"high_value_checkpoints,omitempty"`
}

// StartSession opens a session for topic. An empty category defaults to
// the normalized topic.
func (e *Engine) StartSession(ctx context.Context, topic, category string) (*StartResult, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidEvent)
	}
	category = normalize.Key(category)
	if category == "" {
		category = normalize.Key(topic)
	}

	snap, err := e.loader.Load(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	s := e.sessions.Create(session.CreateParams{
		Topic:           topic,
		Category:        category,
		Checkpoints:     snap.Checkpoints,
		RecommendedPath: snap.RecommendedPath,
		HighValue:       snap.HighValue,
	})
	metrics.SessionsStarted.Inc()
	metrics.ActiveSessions.Inc()
	e.logger.Info("session started",
		"session_id", s.ID(),
		"category", category,
		"checkpoints", len(snap.Checkpoints))

	return &StartResult{
		SessionID:         s.ID(),
		Category:          category,
		RankedCheckpoints: snap.Checkpoints,
		RecommendedPath:   snap.RecommendedPath,
		HighValue:         snap.HighValue,
	}, nil
}

// Event is one recorded exchange. SessionID may be empty to target the most
// recently started active session.
type Event struct {
	SessionID          string   `json:"session_id,omitempty"`
	Kind               Kind     `json:"kind"`
	Question           string   `json:"question,omitempty"`
	Answer             string   `json:"answer,omitempty"`
	Topic              string   `json:"topic,omitempty"`
	Decision           string   `json:"decision,omitempty"`
	Reasoning          string   `json:"reasoning,omitempty"`
	CoveredCheckpoints []string `json:"covered_checkpoints,omitempty"`
}

// EventResult is returned by RecordEvent.
type EventResult struct {
	SessionID string `json:"session_id"`
	*session.Progress
}

// RecordEvent appends a Q&A entry or decision and updates coverage.
func (e *Engine) RecordEvent(ctx context.Context, ev Event) (*EventResult, error) {
	if err := ev.validate(); err != nil {
		return nil, err
	}
	s, err := e.sessions.Find(ev.SessionID)
	if err != nil {
		return nil, err
	}

	var p *session.Progress
	switch ev.Kind {
	case KindQA:
		p, err = s.AddQA(ev.Question, ev.Answer, ev.CoveredCheckpoints)
	case KindDecision:
		p, err = s.AddDecision(ev.Topic, ev.Decision, ev.Reasoning, ev.CoveredCheckpoints)
	}
	if err != nil {
		return nil, err
	}
	e.logger.Debug("event recorded",
		"session_id", s.ID(),
		"kind", ev.Kind,
		"newly_covered", p.NewlyCovered)
	return &EventResult{SessionID: s.ID(), Progress: p}, nil
}

func (ev Event) validate() error {
	switch ev.Kind {
	case KindQA:
		if strings.TrimSpace(ev.Question) == "" {
			return fmt.Errorf("%w: question is required", ErrInvalidEvent)
		}
	case KindDecision:
		if strings.TrimSpace(ev.Topic) == "" || strings.TrimSpace(ev.Decision) == "" {
			return fmt.Errorf("%w: topic and decision are required", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, ev.Kind)
	}
	return nil
}

// ContextResult is returned by GetContext.
type ContextResult struct {
	Session         model.SessionState `json:"session"`
	UncoveredRanked []model.Checkpoint `json:"uncovered_ranked"`
	RecommendedNext string             `json:"recommended_next,omitempty"`
	RecommendedPath []string           `json:"recommended_path,omitempty"`
	HighValue       []string           `json:"high_value_checkpoints,omitempty"`
}

// GetContext returns the full session state with its uncovered checkpoints
// in ranked order. Works on completed sessions when addressed by id.
func (e *Engine) GetContext(ctx context.Context, sessionID string) (*ContextResult, error) {
	s, err := e.sessions.Find(sessionID)
	if err != nil {
		return nil, err
	}
	res := &ContextResult{
		Session:         s.State(),
		UncoveredRanked: s.Uncovered(),
		RecommendedPath: s.RecommendedPath(),
		HighValue:       s.HighValue(),
	}
	if next, ok := s.NextRecommended(); ok {
		res.RecommendedNext = next
	}
	return res, nil
}

// EndResult is returned by EndSession. Ingest carries the persistence outcome;
// IngestError is set when the summary was refused or could not be stored.
type EndResult struct {
	SessionID   string               `json:"session_id"`
	Summary     model.SessionSummary `json:"summary"`
	Ingest      *ingest.Result       `json:"ingest,omitempty"`
	IngestError string               `json:"ingest_error,omitempty"`
}

// EndSession completes the session and submits its summary to ingestion.
// The session stays completed even if ingestion refuses the summary.
func (e *Engine) EndSession(ctx context.Context, sessionID string) (*EndResult, error) {
	s, err := e.sessions.Find(sessionID)
	if err != nil {
		return nil, err
	}
	sum, err := s.Complete()
	if err != nil {
		return nil, err
	}
	metrics.SessionsEnded.Inc()
	metrics.ActiveSessions.Dec()

	res := &EndResult{SessionID: s.ID(), Summary: sum}
	ir, err := e.ingester.IngestSummary(ctx, sum)
	if err != nil {
		res.IngestError = err.Error()
		e.logger.Info("session summary not ingested", "session_id", s.ID(), "error", err)
	} else {
		res.Ingest = ir
	}
	e.logger.Info("session ended",
		"session_id", s.ID(),
		"category", sum.Category,
		"covered", len(sum.CoveredCheckpoints),
		"qas", sum.TotalQAs,
		"decisions", sum.TotalDecisions)
	return res, nil
}
