package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/checkpoint-tracker/internal/model"
	"github.com/rcliao/checkpoint-tracker/internal/store"
)

var fastRetry = RetryPolicy{
	MaxTries:        5,
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
	MaxElapsed:      time.Second,
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func scoreFor(t *testing.T, s store.Store, category, name string) model.ScoreRecord {
	t.Helper()
	scores, err := s.Scores(context.Background(), category)
	require.NoError(t, err)
	for _, r := range scores {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no score record for %q", name)
	return model.ScoreRecord{}
}

func entryFor(t *testing.T, s store.Store, category, name string) model.CatalogEntry {
	t.Helper()
	entries, err := s.CatalogEntries(context.Background(), category)
	require.NoError(t, err)
	for _, e := range entries {
		if e.Name == name {
			return e
		}
	}
	t.Fatalf("no catalog entry for %q", name)
	return model.CatalogEntry{}
}

func coverage(steps ...interface{}) []CoverageItem {
	var out []CoverageItem
	for i := 0; i < len(steps); i += 2 {
		out = append(out, CoverageItem{CheckpointName: steps[i].(string), LedToDecision: boolp(steps[i+1].(bool))})
	}
	return out
}

func TestIngest_TwoSessionScenario(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, fastRetry, nil)

	first := &Request{
		Category:             "saas-pricing",
		CoveredCheckpoints:   []string{"target customer", "churn", "pricing-model"},
		CheckpointsTotal:     intp(3),
		TotalQAs:             intp(3),
		TotalDecisions:       intp(1),
		DurationSeconds:      floatp(300),
		CoverageOrder:        coverage("target customer", false, "churn", false, "pricing-model", true),
		DecisionTopics:       []string{"pricing-model"},
		KnownCheckpointNames: []string{"target customer", "churn", "pricing-model"},
	}
	res, err := svc.Ingest(ctx, first)
	require.NoError(t, err)
	require.True(t, res.OK, "errors: %v", res.Errors)
	assert.Empty(t, res.Errors)

	rec := scoreFor(t, st, "saas-pricing", "pricing-model")
	assert.Equal(t, 1, rec.TimesCovered)
	assert.Equal(t, 1, rec.TimesLedToDecision)
	assert.InDelta(t, 0.5333, rec.DecisionRate, 1e-4)
	assert.Equal(t, 3.0, rec.AvgPosition)

	second := &Request{
		Category:             "saas-pricing",
		CoveredCheckpoints:   []string{"a", "b", "c", "d", "pricing-model"},
		CheckpointsTotal:     intp(5),
		TotalQAs:             intp(6),
		TotalDecisions:       intp(0),
		DurationSeconds:      floatp(400),
		CoverageOrder:        coverage("a", false, "b", false, "c", false, "d", false, "pricing-model", false),
		KnownCheckpointNames: []string{"a", "b", "c", "d", "pricing-model"},
	}
	res, err = svc.Ingest(ctx, second)
	require.NoError(t, err)
	require.True(t, res.OK, "errors: %v", res.Errors)

	rec = scoreFor(t, st, "saas-pricing", "pricing-model")
	assert.Equal(t, 2, rec.TimesCovered)
	assert.Equal(t, 1, rec.TimesLedToDecision)
	assert.InDelta(t, 0.4, rec.DecisionRate, 1e-9)
	assert.Equal(t, 4.0, rec.AvgPosition)

	e := entryFor(t, st, "saas-pricing", "pricing-model")
	assert.Equal(t, 2, e.UsageCount)
	assert.Equal(t, 1, e.DecisionCount)
}

func TestIngest_DiscoversDecisionTopic(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, fastRetry, nil)

	res, err := svc.Ingest(ctx, &Request{
		Category:             "saas-pricing",
		CheckpointsTotal:     intp(2),
		TotalQAs:             intp(2),
		TotalDecisions:       intp(1),
		DurationSeconds:      floatp(90),
		CoverageOrder:        coverage("annual-discount-size", true),
		DecisionTopics:       []string{"Annual-Discount-Size"},
		KnownCheckpointNames: []string{"pricing-model", "churn"},
	})
	require.NoError(t, err)
	require.True(t, res.OK, "errors: %v", res.Errors)

	e := entryFor(t, st, "saas-pricing", "annual-discount-size")
	assert.Equal(t, 1, e.UsageCount)
	assert.Equal(t, 1, e.DecisionCount)

	rec := scoreFor(t, st, "saas-pricing", "annual-discount-size")
	assert.InDelta(t, 0.5333, rec.DecisionRate, 1e-4)
	assert.Equal(t, 1.0, rec.AvgPosition)

	entries, _ := st.CatalogEntries(ctx, "saas-pricing")
	assert.Len(t, entries, 1, "known names are not inserted")
}

func TestIngest_DecisionTopicCoveredIsNotDoubleCounted(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, fastRetry, nil)

	res, err := svc.Ingest(ctx, &Request{
		Category:           "hiring",
		CoveredCheckpoints: []string{"salary band"},
		CheckpointsTotal:   intp(0),
		TotalQAs:           intp(1),
		TotalDecisions:     intp(1),
		DurationSeconds:    floatp(60),
		CoverageOrder:      coverage("salary band", true),
		DecisionTopics:     []string{"Salary Band"},
	})
	require.NoError(t, err)
	require.True(t, res.OK)

	e := entryFor(t, st, "hiring", "salary band")
	assert.Equal(t, 1, e.UsageCount)
	assert.Equal(t, 1, e.DecisionCount)
}

func TestIngest_DuplicateCoverageAppliedSequentially(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, fastRetry, nil)

	res, err := svc.Ingest(ctx, &Request{
		Category:           "saas",
		CoveredCheckpoints: []string{"churn"},
		CheckpointsTotal:   intp(1),
		TotalQAs:           intp(2),
		TotalDecisions:     intp(0),
		DurationSeconds:    floatp(60),
		CoverageOrder:      coverage("churn", false, "churn", true),
	})
	require.NoError(t, err)
	require.True(t, res.OK)

	rec := scoreFor(t, st, "saas", "churn")
	assert.Equal(t, 2, rec.TimesCovered)
	assert.Equal(t, 1, rec.TimesLedToDecision)
	assert.Equal(t, 1.5, rec.AvgPosition)
	assert.Equal(t, 2, rec.PositionSamples)
}

func TestIngest_RejectsBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, fastRetry, nil)

	r := validRequest()
	r.DurationSeconds = floatp(9)
	_, err := svc.Ingest(ctx, r)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)

	r = validRequest()
	r.Category = ""
	_, err = svc.Ingest(ctx, r)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	cats, err := st.Categories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)
	patterns, _ := st.Patterns(ctx, store.PatternParams{})
	assert.Empty(t, patterns)
}

func TestIngest_PatternRecord(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, fastRetry, nil)

	r := validRequest()
	r.CoveredCheckpoints = []string{"churn", "pricing-model"}
	r.CoverageOrder = coverage("churn", false, "pricing-model", true)
	_, err := svc.Ingest(ctx, r)
	require.NoError(t, err)

	patterns, err := st.Patterns(ctx, store.PatternParams{Category: "saas pricing"})
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, []string{"churn", "pricing-model"}, patterns[0].CoverageSequence)
	assert.Equal(t, []string{"pricing-model"}, patterns[0].DecisionSequence)
	assert.Equal(t, 4, patterns[0].TotalQAs)
	assert.NotEmpty(t, patterns[0].ID)
}

// flakyWriter wraps a store and fails chosen operations.
type flakyWriter struct {
	store.Store

	mu          sync.Mutex
	patternErr  error
	coverageErr map[string]error
	conflicts   int // remaining transient failures for ApplyCoverage
	calls       map[string]int
}

func (f *flakyWriter) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[op]++
}

func (f *flakyWriter) AppendPattern(ctx context.Context, rec model.PatternRecord) error {
	f.count("pattern")
	if f.patternErr != nil {
		return f.patternErr
	}
	return f.Store.AppendPattern(ctx, rec)
}

func (f *flakyWriter) ApplyCoverage(ctx context.Context, p store.CoverageParams) (*model.ScoreRecord, error) {
	f.count("coverage")
	f.mu.Lock()
	if f.conflicts > 0 {
		f.conflicts--
		f.mu.Unlock()
		return nil, fmt.Errorf("apply coverage: %w", badger.ErrConflict)
	}
	f.mu.Unlock()
	if err := f.coverageErr[p.Name]; err != nil {
		return nil, err
	}
	return f.Store.ApplyCoverage(ctx, p)
}

func TestIngest_PartialFailureKeepsOtherWrites(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	w := &flakyWriter{
		Store:       st,
		patternErr:  errors.New("disk full"),
		coverageErr: map[string]error{"churn": errors.New("row locked by admin")},
	}
	svc := NewService(w, fastRetry, nil)

	r := validRequest()
	r.CoveredCheckpoints = []string{"churn", "pricing-model"}
	r.CoverageOrder = coverage("churn", false, "pricing-model", true)
	res, err := svc.Ingest(ctx, r)
	require.NoError(t, err)

	assert.False(t, res.OK)
	assert.Equal(t, []string{
		"interview_patterns: disk full",
		"checkpoint_scores: row locked by admin",
	}, res.Errors)
	assert.Equal(t, 1, w.calls["pattern"], "permanent errors are not retried")

	// Writes that succeeded stay.
	assert.Equal(t, 1, entryFor(t, st, "saas pricing", "churn").UsageCount)
	assert.Equal(t, 1, scoreFor(t, st, "saas pricing", "pricing-model").TimesCovered)
	scores, _ := st.Scores(ctx, "saas pricing")
	assert.Len(t, scores, 1, "failed row left untouched")
}

func TestIngest_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	w := &flakyWriter{Store: st, conflicts: 2}
	svc := NewService(w, fastRetry, nil)

	res, err := svc.Ingest(ctx, validRequest())
	require.NoError(t, err)
	assert.True(t, res.OK, "errors: %v", res.Errors)
	assert.Equal(t, 3, w.calls["coverage"])
	assert.Equal(t, 1, scoreFor(t, st, "saas pricing", "pricing-model").TimesCovered)
}

func TestIngest_GivesUpAfterMaxTries(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	w := &flakyWriter{Store: st, conflicts: 100}
	svc := NewService(w, fastRetry, nil)

	res, err := svc.Ingest(ctx, validRequest())
	require.NoError(t, err)
	assert.False(t, res.OK)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "checkpoint_scores")
	assert.Equal(t, int(fastRetry.MaxTries), w.calls["coverage"])
}

func TestIngest_ConcurrentSessionsNoLostUpdates(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, RetryPolicy{
		MaxTries:        20,
		InitialInterval: time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		MaxElapsed:      10 * time.Second,
	}, nil)

	const sessions = 20
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := validRequest()
			r.CoverageOrder = coverage("pricing-model", i%2 == 0)
			res, err := svc.Ingest(ctx, r)
			if assert.NoError(t, err) {
				assert.True(t, res.OK, "errors: %v", res.Errors)
			}
		}(i)
	}
	wg.Wait()

	rec := scoreFor(t, st, "saas pricing", "pricing-model")
	assert.Equal(t, sessions, rec.TimesCovered)
	assert.Equal(t, sessions/2, rec.TimesLedToDecision)
	assert.InDelta(t, (float64(sessions/2)+0.6)/(sessions+2), rec.DecisionRate, 1e-9)

	e := entryFor(t, st, "saas pricing", "pricing-model")
	assert.Equal(t, sessions, e.UsageCount)
	assert.Equal(t, sessions/2, e.DecisionCount)
}
