package ingest

import (
	"fmt"

	"github.com/rcliao/checkpoint-tracker/internal/model"
)

const (
	minDurationSeconds    = 10
	maxDecisionsPerMinute = 30
)

// Gate screens a validated summary for sessions that look synthetic.
// Returns a *RejectionError or nil.
func Gate(s model.SessionSummary) error {
	if s.TotalQAs == 0 && s.TotalDecisions == 0 {
		return &RejectionError{Reason: ReasonEmptySession, Detail: "session recorded no Q&A and no decisions"}
	}
	if s.DurationSeconds < minDurationSeconds && s.TotalQAs > 0 {
		return &RejectionError{
			Reason: ReasonTooShort,
			Detail: fmt.Sprintf("duration %.1fs is under %ds", s.DurationSeconds, minDurationSeconds),
		}
	}
	if s.TotalDecisions > 0 {
		// A zero-length session cannot plausibly hold any decision.
		if s.DurationSeconds <= 0 || float64(s.TotalDecisions)*60/s.DurationSeconds > maxDecisionsPerMinute {
			return &RejectionError{
				Reason: ReasonImplausibleRate,
				Detail: fmt.Sprintf("%d decisions in %.1fs exceeds %d per minute", s.TotalDecisions, s.DurationSeconds, maxDecisionsPerMinute),
			}
		}
	}
	if len(s.CoveredCheckpoints) > s.CheckpointsTotal+s.TotalDecisions {
		return &RejectionError{
			Reason: ReasonCoverageOverclaim,
			Detail: fmt.Sprintf("%d covered checkpoints exceeds %d known plus %d decisions",
				len(s.CoveredCheckpoints), s.CheckpointsTotal, s.TotalDecisions),
		}
	}
	return nil
}
