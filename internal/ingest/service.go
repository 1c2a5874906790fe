package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/oklog/ulid/v2"

	"github.com/rcliao/checkpoint-tracker/internal/metrics"
	"github.com/rcliao/checkpoint-tracker/internal/model"
	"github.com/rcliao/checkpoint-tracker/internal/store"
)

// Writer is the write side of the shared store.
type Writer interface {
	RecordSessionMeta(ctx context.Context, meta model.SessionMeta) error
	ObserveCheckpoint(ctx context.Context, p store.ObserveParams) (bool, error)
	AppendPattern(ctx context.Context, rec model.PatternRecord) error
	ApplyCoverage(ctx context.Context, p store.CoverageParams) (*model.ScoreRecord, error)
}

// RetryPolicy bounds retries of transient store failures.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy returns the retry bounds used when none are configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        5,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		MaxElapsed:      10 * time.Second,
	}
}

// Result reports the outcome of persisting an accepted summary. OK is false
// when any sub-write failed; writes that succeeded are not rolled back.
type Result struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

// Service validates, screens, and persists session summaries.
type Service struct {
	store  Writer
	retry  RetryPolicy
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service. A nil logger uses slog.Default().
func NewService(w Writer, retry RetryPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if retry.MaxTries == 0 {
		retry = DefaultRetryPolicy()
	}
	return &Service{store: w, retry: retry, logger: logger, now: time.Now}
}

// Ingest validates req, runs the anti-abuse gate, and persists the summary.
// Returns *ValidationError or *RejectionError before any side effect.
func (s *Service) Ingest(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		metrics.IngestTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}
	sum := req.Summary()
	if err := Gate(sum); err != nil {
		var rej *RejectionError
		if errors.As(err, &rej) {
			metrics.IngestRejections.WithLabelValues(rej.Reason).Inc()
		}
		metrics.IngestTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		s.logger.Info("summary rejected", "category", sum.Category, "error", err)
		return nil, err
	}

	start := time.Now()
	res := s.persist(ctx, sum)
	metrics.IngestDuration.Observe(time.Since(start).Seconds())

	if res.OK {
		metrics.IngestTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	} else {
		metrics.IngestTotal.WithLabelValues(metrics.OutcomePartial).Inc()
		s.logger.Warn("summary partially persisted", "category", sum.Category, "errors", res.Errors)
	}
	return res, nil
}

// IngestSummary runs an engine-produced summary through Ingest.
func (s *Service) IngestSummary(ctx context.Context, sum model.SessionSummary) (*Result, error) {
	return s.Ingest(ctx, RequestFromSummary(sum))
}

// persist applies the five write steps. Each row is its own atomic update;
// a failure is recorded and the remaining steps still run.
func (s *Service) persist(ctx context.Context, sum model.SessionSummary) *Result {
	res := &Result{OK: true, Errors: []string{}}
	fail := func(table string, err error) {
		res.OK = false
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", table, err))
	}
	now := s.now().UTC()
	led := sum.DecisionLed()

	// 1. Reporting row.
	meta := model.SessionMeta{
		ID:                 ulid.Make().String(),
		Category:           sum.Category,
		CoveredCheckpoints: sum.CoveredCheckpoints,
		CheckpointsCovered: len(sum.CoveredCheckpoints),
		CheckpointsTotal:   sum.CheckpointsTotal,
		TotalQAs:           sum.TotalQAs,
		TotalDecisions:     sum.TotalDecisions,
		DurationSeconds:    sum.DurationSeconds,
		CreatedAt:          now,
	}
	if err := s.withRetry(ctx, "session_meta", func() error {
		return s.store.RecordSessionMeta(ctx, meta)
	}); err != nil {
		fail("session_meta", err)
	}

	// 2. Catalog usage for covered checkpoints.
	handled := make(map[string]bool, len(sum.CoveredCheckpoints))
	for _, name := range sum.CoveredCheckpoints {
		handled[name] = true
		p := store.ObserveParams{Category: sum.Category, Name: name, DecisionLed: led[name]}
		if err := s.withRetry(ctx, "checkpoint_catalog", func() error {
			_, err := s.store.ObserveCheckpoint(ctx, p)
			return err
		}); err != nil {
			fail("checkpoint_catalog", err)
		}
	}

	// 3. Decision topics not yet known become new checkpoints.
	known := make(map[string]bool, len(sum.KnownCheckpointNames))
	for _, name := range sum.KnownCheckpointNames {
		known[name] = true
	}
	for _, topic := range sum.DecisionTopics {
		if known[topic] || handled[topic] {
			continue
		}
		handled[topic] = true
		p := store.ObserveParams{Category: sum.Category, Name: topic, DecisionLed: true}
		var created bool
		if err := s.withRetry(ctx, "checkpoint_catalog", func() error {
			var err error
			created, err = s.store.ObserveCheckpoint(ctx, p)
			return err
		}); err != nil {
			fail("checkpoint_catalog", err)
			continue
		}
		if created {
			s.logger.Info("checkpoint discovered", "category", sum.Category, "name", topic)
		}
	}

	// 4. Pattern log.
	rec := model.PatternRecord{
		ID:                 ulid.Make().String(),
		Category:           sum.Category,
		CoverageSequence:   make([]string, 0, len(sum.CoverageOrder)),
		DecisionSequence:   []string{},
		CheckpointsCovered: len(sum.CoveredCheckpoints),
		CheckpointsTotal:   sum.CheckpointsTotal,
		TotalQAs:           sum.TotalQAs,
		TotalDecisions:     sum.TotalDecisions,
		DurationSeconds:    sum.DurationSeconds,
		CreatedAt:          now,
	}
	for _, step := range sum.CoverageOrder {
		rec.CoverageSequence = append(rec.CoverageSequence, step.CheckpointName)
		if step.LedToDecision {
			rec.DecisionSequence = append(rec.DecisionSequence, step.CheckpointName)
		}
	}
	if err := s.withRetry(ctx, "interview_patterns", func() error {
		return s.store.AppendPattern(ctx, rec)
	}); err != nil {
		fail("interview_patterns", err)
	}

	// 5. Score records, one event at a time in coverage order.
	for i, step := range sum.CoverageOrder {
		p := store.CoverageParams{
			Category:      sum.Category,
			Name:          step.CheckpointName,
			Position:      i + 1,
			LedToDecision: step.LedToDecision,
		}
		if err := s.withRetry(ctx, "checkpoint_scores", func() error {
			_, err := s.store.ApplyCoverage(ctx, p)
			return err
		}); err != nil {
			fail("checkpoint_scores", err)
		}
	}

	return res
}

// withRetry retries fn with exponential backoff while it fails with a
// transient store error.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.InitialInterval
	b.MaxInterval = s.retry.MaxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err != nil && !store.IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.retry.MaxTries),
		backoff.WithMaxElapsedTime(s.retry.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.StoreRetries.WithLabelValues(op).Inc()
			s.logger.Debug("retrying store write", "op", op, "error", err, "backoff", next)
		}),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}
