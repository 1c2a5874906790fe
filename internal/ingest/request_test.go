package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/checkpoint-tracker/internal/model"
)

func intp(v int) *int { return &v }
func floatp(v float64) *float64 { return &v }
func boolp(v bool) *bool { return &v }
func names(n int, s string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func validRequest() *Request {
	return &Request{
		Category:           "SaaS Pricing",
		CoveredCheckpoints: []string{"Pricing-Model"},
		CheckpointsTotal:   intp(3),
		TotalQAs:           intp(4),
		TotalDecisions:     intp(1),
		DurationSeconds:    floatp(120),
		CoverageOrder: []CoverageItem{
			{CheckpointName: "Pricing-Model", LedToDecision: boolp(true)},
		},
		DecisionTopics:       []string{"pricing-model"},
		KnownCheckpointNames: []string{"pricing-model", "churn", "free tier"},
	}
}

func TestValidate_Accepts(t *testing.T) {
	require.NoError(t, validRequest().Validate())

	r := validRequest()
	r.CoveredCheckpoints, r.CoverageOrder, r.DecisionTopics, r.KnownCheckpointNames = nil, nil, nil, nil
	assert.NoError(t, r.Validate(), "list fields are optional")

	r = validRequest()
	r.CoveredCheckpoints = names(100, strings.Repeat("x", 200))
	r.KnownCheckpointNames = names(500, "k")
	r.CheckpointsTotal, r.TotalQAs, r.TotalDecisions = intp(500), intp(0), intp(500)
	r.DurationSeconds = floatp(86400)
	assert.NoError(t, r.Validate(), "upper bounds are inclusive")
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Request)
		want   string
	}{
		{"missing category", func(r *Request) { r.Category = "" }, "category must not be blank"},
		{"blank category", func(r *Request) { r.Category = "   " }, "category must not be blank"},
		{"long category", func(r *Request) { r.Category = strings.Repeat("c", 201) }, "category must be at most 200 characters"},
		{"too many covered", func(r *Request) { r.CoveredCheckpoints = names(101, "a") }, "covered_checkpoints must have at most 100 entries"},
		{"long covered name", func(r *Request) { r.CoveredCheckpoints = []string{strings.Repeat("a", 201)} }, "covered_checkpoints[0] must be at most 200 characters"},
		{"missing total", func(r *Request) { r.CheckpointsTotal = nil }, "checkpoints_total is required"},
		{"negative qas", func(r *Request) { r.TotalQAs = intp(-1) }, "total_qas must be at least 0"},
		{"too many decisions", func(r *Request) { r.TotalDecisions = intp(501) }, "total_decisions must be at most 500"},
		{"long duration", func(r *Request) { r.DurationSeconds = floatp(86400.5) }, "duration_seconds must be at most 86400"},
		{"missing led flag", func(r *Request) { r.CoverageOrder = []CoverageItem{{CheckpointName: "a"}} }, "coverage_order[0].led_to_decision is required"},
		{"long coverage name", func(r *Request) {
			r.CoverageOrder = []CoverageItem{{CheckpointName: strings.Repeat("a", 201), LedToDecision: boolp(false)}}
		}, "coverage_order[0].checkpoint_name must be at most 200 characters"},
		{"too many topics", func(r *Request) { r.DecisionTopics = names(101, "t") }, "decision_topics must have at most 100 entries"},
		{"too many known", func(r *Request) { r.KnownCheckpointNames = names(501, "k") }, "known_checkpoint_names must have at most 500 entries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(r)
			err := r.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Problems, tt.want)
		})
	}
}

func TestSummary_Normalizes(t *testing.T) {
	r := validRequest()
	r.CoveredCheckpoints = []string{"Pricing-Model", "pricing-model ", "CHURN"}
	r.CoverageOrder = []CoverageItem{
		{CheckpointName: " Pricing-Model", LedToDecision: boolp(false)},
		{CheckpointName: "  ", LedToDecision: boolp(true)},
		{CheckpointName: "churn", LedToDecision: boolp(true)},
	}
	r.DecisionTopics = []string{"Annual  Discount", "annual discount"}

	s := r.Summary()
	assert.Equal(t, "saas pricing", s.Category)
	assert.Equal(t, []string{"pricing-model", "churn"}, s.CoveredCheckpoints)
	assert.Equal(t, []model.CoverageStep{
		{CheckpointName: "pricing-model"},
		{CheckpointName: "churn", LedToDecision: true},
	}, s.CoverageOrder)
	assert.Equal(t, []string{"annual discount"}, s.DecisionTopics)
	assert.Equal(t, 3, s.CheckpointsTotal)
	assert.Equal(t, 120.0, s.DurationSeconds)
}

func TestRequestFromSummary_RoundTrip(t *testing.T) {
	sum := model.SessionSummary{
		Category:             "saas",
		CoveredCheckpoints:   []string{"a", "b"},
		CheckpointsTotal:     2,
		TotalQAs:             3,
		TotalDecisions:       1,
		DurationSeconds:      60,
		CoverageOrder:        []model.CoverageStep{{CheckpointName: "a"}, {CheckpointName: "b", LedToDecision: true}},
		DecisionTopics:       []string{"b"},
		KnownCheckpointNames: []string{"a", "b"},
	}
	r := RequestFromSummary(sum)
	require.NoError(t, r.Validate())
	assert.Equal(t, sum, r.Summary())
}
