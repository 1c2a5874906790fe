package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/checkpoint-tracker/internal/model"
)

func gateSummary(qas, decisions int, duration float64) model.SessionSummary {
	return model.SessionSummary{
		Category:         "saas",
		CheckpointsTotal: 5,
		TotalQAs:         qas,
		TotalDecisions:   decisions,
		DurationSeconds:  duration,
	}
}

func requireRejected(t *testing.T, err error, reason string) {
	t.Helper()
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, reason, rej.Reason)
}

func TestGate_EmptySession(t *testing.T) {
	requireRejected(t, Gate(gateSummary(0, 0, 600)), ReasonEmptySession)
}

func TestGate_DurationBoundary(t *testing.T) {
	requireRejected(t, Gate(gateSummary(1, 0, 9)), ReasonTooShort)
	requireRejected(t, Gate(gateSummary(1, 0, 9.99)), ReasonTooShort)
	assert.NoError(t, Gate(gateSummary(1, 0, 10)))
}

func TestGate_DecisionRateBoundary(t *testing.T) {
	requireRejected(t, Gate(gateSummary(1, 16, 30)), ReasonImplausibleRate)
	assert.NoError(t, Gate(gateSummary(1, 15, 30)), "exactly 30 per minute is allowed")
}

func TestGate_DecisionsWithoutQAs(t *testing.T) {
	// Too-short applies only when Q&A was recorded.
	assert.NoError(t, Gate(gateSummary(0, 2, 5)))
	requireRejected(t, Gate(gateSummary(0, 1, 0)), ReasonImplausibleRate)
}

func TestGate_CoverageOverclaim(t *testing.T) {
	s := gateSummary(3, 1, 300)
	s.CoveredCheckpoints = []string{"a", "b", "c", "d", "e", "f"}
	assert.NoError(t, Gate(s), "five known plus one discovered")

	s.CoveredCheckpoints = append(s.CoveredCheckpoints, "g")
	requireRejected(t, Gate(s), ReasonCoverageOverclaim)
}
