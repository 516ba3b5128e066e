package service

import (
	"github.com/quiby-ai/review-compare/internal/types"
)

// Classification thresholds on the 1-5 rating scale.
const (
	advantageThreshold = 0.4
	comparisonBand     = 0.05
	maxThemeList       = 5
)

// ReconcileResult is the fully local shared-theme comparison between
// the two apps. No model involvement anywhere in here.
type ReconcileResult struct {
	Comparisons     []types.ThemeComparison
	UniqueStrengths []string
	CompetitiveGaps []string
	Summary         types.ComparisonSummary
}

// Reconcile joins the two cluster sets on exact theme equality and
// classifies every shared theme. Pure and deterministic.
func Reconcile(yours, competitor types.AppAnalysis) ReconcileResult {
	competitorByTheme := make(map[string]types.ReviewCluster, len(competitor.Clusters))
	for _, c := range competitor.Clusters {
		competitorByTheme[c.Theme] = c
	}

	var result ReconcileResult
	for _, c := range yours.Clusters {
		other, ok := competitorByTheme[c.Theme]
		if !ok {
			continue
		}

		delta := c.AverageRating - other.AverageRating
		result.Comparisons = append(result.Comparisons, types.ThemeComparison{
			Theme:            c.Theme,
			YourRating:       c.AverageRating,
			CompetitorRating: other.AverageRating,
			Delta:            delta,
			YourCount:        c.Count,
			CompetitorCount:  other.Count,
			Classification:   Classify(delta),
		})

		if delta >= advantageThreshold && len(result.UniqueStrengths) < maxThemeList {
			result.UniqueStrengths = append(result.UniqueStrengths, c.Theme)
		}
		if delta <= -advantageThreshold && len(result.CompetitiveGaps) < maxThemeList {
			result.CompetitiveGaps = append(result.CompetitiveGaps, c.Theme)
		}
	}

	result.Summary = types.ComparisonSummary{
		RatingDelta: yours.AverageRating - competitor.AverageRating,
		VolumeDelta: yours.TotalReviews - competitor.TotalReviews,
	}
	for _, tc := range result.Comparisons {
		switch tc.Classification {
		case types.ClassificationAdvantage:
			result.Summary.Advantages++
		case types.ClassificationGap:
			result.Summary.Gaps++
		}
	}

	return result
}

// Classify maps a rating delta to its label. Boundaries are inclusive:
// exactly +0.4 is an advantage, exactly -0.4 is a gap.
func Classify(delta float64) types.Classification {
	switch {
	case delta >= advantageThreshold:
		return types.ClassificationAdvantage
	case delta <= -advantageThreshold:
		return types.ClassificationGap
	default:
		return types.ClassificationParity
	}
}

// Rank places your app first when its average is at least the
// competitor's.
func Rank(yours, competitor types.AppAnalysis) int {
	if yours.AverageRating >= competitor.AverageRating {
		return 1
	}
	return 2
}

// CompareScalars buckets value against other with a small tolerance
// band around equality.
func CompareScalars(value, other float64) string {
	switch {
	case value >= other+comparisonBand:
		return "above"
	case value <= other-comparisonBand:
		return "below"
	default:
		return "average"
	}
}
