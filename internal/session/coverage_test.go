package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCoverage_FirstCoverWins(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := r.Create(pricingParams())

	s.AddQA("q1", "a1", []string{"pricing-model"})
	s.AddQA("q2", "a2", []string{"pricing-model", " PRICING-MODEL "})

	st := s.State()
	require.Len(t, st.CoverageOrder, 1)
	assert.Equal(t, 1, st.CoverageOrder[0].Position)
	assert.False(t, st.CoverageOrder[0].LedToDecision)
}

func TestRecordCoverage_RetroactiveAttribution(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := r.Create(pricingParams())

	s.AddQA("How do you charge?", "Per seat", []string{"pricing-model"})
	s.AddQA("Churn?", "Low", []string{"churn"})
	p, err := s.AddDecision("seat price", "$12", "", []string{"pricing-model"})
	require.NoError(t, err)
	assert.Empty(t, p.NewlyCovered)

	st := s.State()
	require.Len(t, st.CoverageOrder, 2)
	assert.Equal(t, "pricing-model", st.CoverageOrder[0].Checkpoint)
	assert.True(t, st.CoverageOrder[0].LedToDecision)
	assert.Equal(t, 1, st.CoverageOrder[0].Position)
	assert.False(t, st.CoverageOrder[1].LedToDecision)

	sum, err := s.Complete()
	require.NoError(t, err)
	assert.True(t, sum.DecisionLed()["pricing-model"])
	assert.False(t, sum.DecisionLed()["churn"])
}

func TestRecordCoverage_QANeverClearsDecisionFlag(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := r.Create(pricingParams())

	s.AddDecision("churn", "annual plans", "", nil)
	s.AddQA("q", "a", []string{"churn"})

	st := s.State()
	require.Len(t, st.CoverageOrder, 1)
	assert.True(t, st.CoverageOrder[0].LedToDecision)
}

func TestRecordCoverage_IgnoresUnknownNames(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := r.Create(pricingParams())

	newly, err := s.RecordCoverage([]string{"not listed", ""}, true)
	require.NoError(t, err)
	assert.Empty(t, newly)
	assert.Empty(t, s.State().CoverageOrder)
}

func TestUncovered_RankedOrder(t *testing.T) {
	r, _ := newTestRegistry(t)
	s := r.Create(pricingParams())
	s.RecordCoverage([]string{"churn"}, false)

	names := []string{}
	for _, c := range s.Uncovered() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"pricing-model", "free tier"}, names)
}
