package session

import (
	"github.com/rcliao/checkpoint-tracker/internal/model"
	"github.com/rcliao/checkpoint-tracker/internal/normalize"
)

// RecordCoverage marks snapshot checkpoints as covered and returns the names
// covered for the first time. A name already covered gets no second event;
// citing it from a decision flips its event to decision-leading. Names not
// in the snapshot are ignored.
func (s *Session) RecordCoverage(names []string, isDecision bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusActive {
		return nil, ErrSessionCompleted
	}
	return s.recordCoverageLocked(names, isDecision), nil
}

func (s *Session) recordCoverageLocked(names []string, isDecision bool) []string {
	var newly []string
	position := len(s.entries) + len(s.decisions)

	for _, raw := range names {
		name := normalize.Key(raw)
		idx, ok := s.index[name]
		if !ok {
			continue
		}
		if s.checkpoints[idx].Covered {
			if isDecision {
				s.coverage[s.coverageIndex[name]].LedToDecision = true
			}
			continue
		}
		s.checkpoints[idx].Covered = true
		s.coverageIndex[name] = len(s.coverage)
		s.coverage = append(s.coverage, model.CoverageEvent{
			Checkpoint:    name,
			Position:      position,
			LedToDecision: isDecision,
			Timestamp:     s.now(),
		})
		newly = append(newly, name)
	}
	return newly
}

// NextRecommended returns the highest-scoring uncovered checkpoint.
func (s *Session) NextRecommended() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uncovered := s.uncoveredLocked()
	if len(uncovered) == 0 {
		return "", false
	}
	return uncovered[0].Name, true
}

// Uncovered returns the uncovered checkpoints, highest score first.
func (s *Session) Uncovered() []model.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uncoveredLocked()
}

// uncoveredLocked relies on checkpoints being kept in ranked order.
func (s *Session) uncoveredLocked() []model.Checkpoint {
	out := []model.Checkpoint{}
	for _, c := range s.checkpoints {
		if !c.Covered {
			out = append(out, c)
		}
	}
	return out
}
