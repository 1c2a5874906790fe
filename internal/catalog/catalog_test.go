package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/checkpoint-tracker/internal/model"
	"github.com/rcliao/checkpoint-tracker/internal/scoring"
)

type fakeReader struct {
	entries   []model.CatalogEntry
	scores    []model.ScoreRecord
	entryErr  error
	scoresErr error
}

func (f *fakeReader) CatalogEntries(_ context.Context, _ string) ([]model.CatalogEntry, error) {
	return f.entries, f.entryErr
}

func (f *fakeReader) Scores(_ context.Context, _ string) ([]model.ScoreRecord, error) {
	return f.scores, f.scoresErr
}

func TestLoad(t *testing.T) {
	r := &fakeReader{
		entries: []model.CatalogEntry{
			{Name: "pricing model", UsageCount: 2},
			{Name: "churn", UsageCount: 2},
			{Name: "new idea", UsageCount: 1},
		},
		scores: []model.ScoreRecord{
			{Name: "pricing model", DecisionRate: 0.5333, AvgPosition: 3},
			{Name: "churn", DecisionRate: 0.25, AvgPosition: 1},
		},
	}
	snap, err := NewLoader(r, scoring.NormalizeMaxUsage, nil).Load(context.Background(), "saas")
	require.NoError(t, err)

	assert.Equal(t, "saas", snap.Category)
	assert.Equal(t, []string{"pricing model", "churn", "new idea"}, snap.Names())
	assert.Zero(t, snap.Checkpoints[2].CompositeScore)
	assert.Equal(t, []string{"churn", "pricing model"}, snap.RecommendedPath)
	assert.Equal(t, []string{"pricing model"}, snap.HighValue)
}

func TestLoad_EmptyCategory(t *testing.T) {
	snap, err := NewLoader(&fakeReader{}, "", nil).Load(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Empty(t, snap.Checkpoints)
	assert.Empty(t, snap.RecommendedPath)
	assert.Empty(t, snap.HighValue)
}

func TestLoad_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")

	_, err := NewLoader(&fakeReader{entryErr: boom}, "", nil).Load(context.Background(), "saas")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "load catalog")

	_, err = NewLoader(&fakeReader{scoresErr: boom}, "", nil).Load(context.Background(), "saas")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "load scores")
}
