// Package scoring holds the pure formulas that rank checkpoints and evolve
// their effectiveness statistics. The constants encode tuned behavior and
// must not drift.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/rcliao/checkpoint-tracker/internal/model"
)

const (
	// PriorDecisions (α) and PriorCovers (β) are the Bayesian pseudo-counts.
	PriorDecisions = 0.6
	PriorCovers    = 2.0

	RateWeight  = 0.7
	UsageWeight = 0.3

	// PathThreshold is the minimum decision rate for the recommended path (inclusive).
	PathThreshold = 0.2

	// HighValueThreshold is the exclusive decision-rate floor for high-value checkpoints.
	HighValueThreshold = 0.3
	HighValueLimit     = 5
)

// SmoothedRate returns (decisions + α) / (covered + β). For covered >= 0 and
// 0 <= decisions <= covered the result is strictly inside (0, 1).
func SmoothedRate(decisions, covered int) float64 {
	return (float64(decisions) + PriorDecisions) / (float64(covered) + PriorCovers)
}

// CompositeScore blends decision effectiveness with normalized usage.
func CompositeScore(rate, usage, maxUsage float64) float64 {
	normalized := 0.0
	if maxUsage > 0 {
		normalized = usage / maxUsage
	}
	return rate*RateWeight + normalized*UsageWeight
}

// RecommendedPath returns the names with decision rate >= PathThreshold,
// ordered by where they tend to occur in a session.
func RecommendedPath(scores []model.ScoreRecord) []string {
	var picked []model.ScoreRecord
	for _, s := range scores {
		if s.DecisionRate >= PathThreshold {
			picked = append(picked, s)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool {
		if picked[i].AvgPosition != picked[j].AvgPosition {
			return picked[i].AvgPosition < picked[j].AvgPosition
		}
		return picked[i].Name < picked[j].Name
	})
	return names(picked)
}

// HighValue returns up to HighValueLimit names with decision rate above
// HighValueThreshold, highest rate first.
func HighValue(scores []model.ScoreRecord) []string {
	var picked []model.ScoreRecord
	for _, s := range scores {
		if s.DecisionRate > HighValueThreshold {
			picked = append(picked, s)
		}
	}
	sort.SliceStable(picked, func(i, j int) bool {
		if picked[i].DecisionRate != picked[j].DecisionRate {
			return picked[i].DecisionRate > picked[j].DecisionRate
		}
		return picked[i].Name < picked[j].Name
	})
	if len(picked) > HighValueLimit {
		picked = picked[:HighValueLimit]
	}
	return names(picked)
}

// UsageNormalization selects how usage is normalized in the composite score.
type UsageNormalization string

const (
	// NormalizeCatalogCount uses the category's known-checkpoint count as both
	// usage and max usage, so every known checkpoint gets the full usage term.
	NormalizeCatalogCount UsageNormalization = "catalog_count"

	// NormalizeMaxUsage divides each entry's usage count by the category maximum.
	NormalizeMaxUsage UsageNormalization = "max_usage"
)

// Rank scores every catalog entry and orders them by composite score,
// highest first, ties by name. Entries without a score record get a zero
// rate and a zero composite.
func Rank(entries []model.CatalogEntry, scores []model.ScoreRecord, norm UsageNormalization) []model.RankedCheckpoint {
	byName := make(map[string]model.ScoreRecord, len(scores))
	for _, s := range scores {
		byName[s.Name] = s
	}

	maxUsage := 0
	for _, e := range entries {
		if e.UsageCount > maxUsage {
			maxUsage = e.UsageCount
		}
	}

	ranked := make([]model.RankedCheckpoint, 0, len(entries))
	for _, e := range entries {
		rc := model.RankedCheckpoint{Name: e.Name, UsageCount: e.UsageCount}
		if s, ok := byName[e.Name]; ok {
			rc.DecisionRate = s.DecisionRate
			rc.AvgPosition = s.AvgPosition
			switch norm {
			case NormalizeCatalogCount:
				n := float64(len(entries))
				rc.CompositeScore = CompositeScore(s.DecisionRate, n, n)
			default:
				rc.CompositeScore = CompositeScore(s.DecisionRate, float64(e.UsageCount), float64(maxUsage))
			}
		}
		ranked = append(ranked, rc)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].CompositeScore != ranked[j].CompositeScore {
			return ranked[i].CompositeScore > ranked[j].CompositeScore
		}
		return ranked[i].Name < ranked[j].Name
	})
	return ranked
}

// ApplyCoverage folds one coverage observation at a 1-indexed position into
// prev (nil for a checkpoint with no record yet) and returns the new record.
// Both store backends call this so the arithmetic lives in one place.
func ApplyCoverage(prev *model.ScoreRecord, category, name string, position int, led bool, now time.Time) model.ScoreRecord {
	next := model.ScoreRecord{Category: category, Name: name}
	if prev != nil {
		next = *prev
		next.Category, next.Name = category, name
	}

	next.TimesCovered++
	if led {
		next.TimesLedToDecision++
	}
	avg := (next.AvgPosition*float64(next.PositionSamples) + float64(position)) / float64(next.PositionSamples+1)
	next.AvgPosition = Round2(avg)
	next.PositionSamples++
	next.DecisionRate = SmoothedRate(next.TimesLedToDecision, next.TimesCovered)
	next.UpdatedAt = now
	return next
}

// Round2 rounds to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func names(scores []model.ScoreRecord) []string {
	out := make([]string, 0, len(scores))
	for _, s := range scores {
		out = append(out, s.Name)
	}
	return out
}
