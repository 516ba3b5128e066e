package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/quiby-ai/review-compare/internal/apperr"
	"github.com/quiby-ai/review-compare/internal/llm"
	"github.com/quiby-ai/review-compare/internal/types"
)

const (
	maxInsights        = 8
	maxRecommendations = 7
	maxEvidence        = 6
	maxBasedOn         = 6
	maxTitleLen        = 70
	maxDescriptionLen  = 220
	maxInsightDescLen  = 200
)

// SynthesisService asks the model for insights, recommendations and a
// market position, then validates and coerces every field. Locally
// computed numbers always win over model-guessed ones.
type SynthesisService struct {
	client  llm.Client
	limiter *RateLimiter
}

// NewSynthesisService wires the synthesis step onto the shared limiter.
func NewSynthesisService(client llm.Client, limiter *RateLimiter) *SynthesisService {
	return &SynthesisService{
		client:  client,
		limiter: limiter,
	}
}

// SynthesisResult carries the qualitative half of the comparison.
// ThemeComparisons and Summary stay on the ReconcileResult: the model
// has no say in them.
type SynthesisResult struct {
	Insights        []types.CompetitiveInsight
	Recommendations []types.Recommendation
	MarketPosition  types.MarketPosition
}

type synthesisEnvelope struct {
	Insights        []json.RawMessage `json:"insights"`
	Recommendations []json.RawMessage `json:"recommendations"`
	MarketPosition  json.RawMessage   `json:"marketPosition"`
}

// Synthesize runs the second model call. Transport and quota failures
// propagate; an unparseable JSON envelope degrades to empty qualitative
// output with the market position computed locally.
func (s *SynthesisService) Synthesize(ctx context.Context, yours, competitor types.AppAnalysis, recon ReconcileResult) (SynthesisResult, error) {
	if !s.limiter.Allow() {
		return SynthesisResult{}, apperr.New(apperr.KindRateLimited, "rate limit exceeded, please try again later")
	}
	s.limiter.Mark()

	prompt, err := buildSynthesisPrompt(yours, competitor, recon)
	if err != nil {
		return SynthesisResult{}, fmt.Errorf("failed to build synthesis prompt: %w", err)
	}

	response, err := s.client.GenerateText(ctx, prompt)
	if err != nil {
		return SynthesisResult{}, err
	}

	var envelope synthesisEnvelope
	if err := llm.ExtractJSON(response, &envelope); err != nil {
		// Qualitative output degrades to empty; the numeric half of the
		// comparison is local and survives regardless.
		log.Printf("synthesis: unparseable model response, continuing without qualitative output: %v", err)
		envelope = synthesisEnvelope{}
	}

	return SynthesisResult{
		Insights:        coerceInsights(envelope.Insights),
		Recommendations: coerceRecommendations(envelope.Recommendations),
		MarketPosition:  coerceMarketPosition(envelope.MarketPosition, yours, competitor, recon),
	}, nil
}

type themeStat struct {
	T string  `json:"t"`
	R float64 `json:"r"`
	N int     `json:"n"`
}

type appStat struct {
	Name   string      `json:"name"`
	Avg    float64     `json:"avg"`
	Total  int         `json:"total"`
	Themes []themeStat `json:"themes"`
}

type sharedThemeStat struct {
	Theme            string  `json:"theme"`
	YourRating       float64 `json:"yourRating"`
	CompetitorRating float64 `json:"competitorRating"`
	YourCount        int     `json:"yourCount"`
	CompetitorCount  int     `json:"competitorCount"`
	Delta            float64 `json:"delta"`
}

func buildSynthesisPrompt(yours, competitor types.AppAnalysis, recon ReconcileResult) (string, error) {
	shared := make([]sharedThemeStat, 0, len(recon.Comparisons))
	for _, tc := range recon.Comparisons {
		shared = append(shared, sharedThemeStat{
			Theme:            tc.Theme,
			YourRating:       tc.YourRating,
			CompetitorRating: tc.CompetitorRating,
			YourCount:        tc.YourCount,
			CompetitorCount:  tc.CompetitorCount,
			Delta:            tc.Delta,
		})
	}

	data, err := json.Marshal(struct {
		YourApp      appStat           `json:"yourApp"`
		Competitor   appStat           `json:"competitor"`
		SharedThemes []sharedThemeStat `json:"sharedThemes"`
	}{
		YourApp:      compactStats(yours),
		Competitor:   compactStats(competitor),
		SharedThemes: shared,
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are a product insights assistant.
Given this competitive review analysis data (JSON below), produce JSON ONLY with keys: insights, recommendations, marketPosition.

Rules:
- 6-8 insights. Each object MUST include fields:
  { id(optional), type(strength|weakness|opportunity|threat), category, description(<200 chars), evidence[string...], priority(high|medium|low), theme(optional), yourRating(optional number), competitorRating(optional number), ratingDelta(optional number), yourCount(optional number), competitorCount(optional number), sentiment(optional positive|neutral|negative), confidence(optional 0-1) }
- 5-7 recommendations. Each MUST include:
  { id(optional), title(<70), description(<220), impact(high|medium|low), effort(high|medium|low), category(feature|ux|performance|marketing|retention|growth), basedOn[array of insight indices like i0], metric(optional), expectedImpact(optional short), targetDelta(optional short), timeframe(optional short), basedOnThemes(optional array) }
- marketPosition unchanged: rank, totalApps, ratingComparison, volumeComparison, uniqueStrengths, competitiveGaps
- Ground numeric fields using sharedThemes when possible; set ratingDelta = yourRating - competitorRating.
- If a numeric cannot be derived, omit it (do NOT guess).
- No prose outside JSON.

Data:
%s

JSON:`, data), nil
}

func compactStats(app types.AppAnalysis) appStat {
	themes := make([]themeStat, 0, len(app.Clusters))
	for _, c := range app.Clusters {
		themes = append(themes, themeStat{T: c.Theme, R: c.AverageRating, N: c.Count})
	}
	return appStat{
		Name:   app.AppName,
		Avg:    app.AverageRating,
		Total:  app.TotalReviews,
		Themes: themes,
	}
}

func coerceInsights(raw []json.RawMessage) []types.CompetitiveInsight {
	if len(raw) > maxInsights {
		raw = raw[:maxInsights]
	}

	insights := make([]types.CompetitiveInsight, 0, len(raw))
	for _, item := range raw {
		fields, ok := decodeObject(item)
		if !ok {
			continue
		}

		i := len(insights)
		insight := types.CompetitiveInsight{
			ID:               fmt.Sprintf("ins-%d", i),
			Type:             oneOf(getString(fields, "type"), "opportunity", "strength", "weakness", "opportunity", "threat"),
			Category:         withDefault(getString(fields, "category"), "general"),
			Description:      truncate(withDefault(getString(fields, "description"), "Insight unavailable"), maxInsightDescLen),
			Evidence:         capList(getStringList(fields, "evidence"), maxEvidence),
			Priority:         oneOf(getString(fields, "priority"), "medium", "high", "medium", "low"),
			Theme:            getString(fields, "theme"),
			YourRating:       getNumber(fields, "yourRating"),
			CompetitorRating: getNumber(fields, "competitorRating"),
			YourCount:        getCount(fields, "yourCount"),
			CompetitorCount:  getCount(fields, "competitorCount"),
			Sentiment:        oneOf(getString(fields, "sentiment"), "", "positive", "neutral", "negative"),
		}
		if insight.Evidence == nil {
			insight.Evidence = []string{}
		}

		// Local recomputation is the source of truth; the model's own
		// delta is only a fallback.
		if insight.YourRating != nil && insight.CompetitorRating != nil {
			delta := *insight.YourRating - *insight.CompetitorRating
			insight.RatingDelta = &delta
		} else {
			insight.RatingDelta = getNumber(fields, "ratingDelta")
		}

		if conf := getNumber(fields, "confidence"); conf != nil {
			clamped := clamp01(*conf)
			insight.Confidence = &clamped
		}

		insights = append(insights, insight)
	}

	return insights
}

func coerceRecommendations(raw []json.RawMessage) []types.Recommendation {
	if len(raw) > maxRecommendations {
		raw = raw[:maxRecommendations]
	}

	recommendations := make([]types.Recommendation, 0, len(raw))
	for _, item := range raw {
		fields, ok := decodeObject(item)
		if !ok {
			continue
		}

		rec := types.Recommendation{
			ID:             fmt.Sprintf("rec-%d", len(recommendations)),
			Title:          truncate(withDefault(getString(fields, "title"), "Improve User Experience"), maxTitleLen),
			Description:    truncate(withDefault(getString(fields, "description"), "Refine onboarding and address key pain themes."), maxDescriptionLen),
			Impact:         oneOf(getString(fields, "impact"), "medium", "high", "medium", "low"),
			Effort:         oneOf(getString(fields, "effort"), "medium", "high", "medium", "low"),
			Category:       withDefault(getString(fields, "category"), "feature"),
			BasedOn:        capList(getStringList(fields, "basedOn"), maxBasedOn),
			Metric:         getString(fields, "metric"),
			ExpectedImpact: getString(fields, "expectedImpact"),
			TargetDelta:    getString(fields, "targetDelta"),
			Timeframe:      getString(fields, "timeframe"),
			BasedOnThemes:  capList(getStringList(fields, "basedOnThemes"), maxBasedOn),
		}
		if rec.BasedOn == nil {
			rec.BasedOn = []string{}
		}

		recommendations = append(recommendations, rec)
	}

	return recommendations
}

// coerceMarketPosition accepts valid model fields and fills everything
// else from deterministic local computation.
func coerceMarketPosition(raw json.RawMessage, yours, competitor types.AppAnalysis, recon ReconcileResult) types.MarketPosition {
	position := types.MarketPosition{
		Rank:             Rank(yours, competitor),
		TotalApps:        2,
		RatingComparison: CompareScalars(yours.AverageRating, competitor.AverageRating),
		VolumeComparison: CompareScalars(float64(yours.TotalReviews), float64(competitor.TotalReviews)),
		UniqueStrengths:  capList(recon.UniqueStrengths, maxThemeList),
		CompetitiveGaps:  capList(recon.CompetitiveGaps, maxThemeList),
	}
	if position.UniqueStrengths == nil {
		position.UniqueStrengths = []string{}
	}
	if position.CompetitiveGaps == nil {
		position.CompetitiveGaps = []string{}
	}

	fields, ok := decodeObject(raw)
	if !ok {
		return position
	}

	if rank := getCount(fields, "rank"); rank != nil && (*rank == 1 || *rank == 2) {
		position.Rank = *rank
	}
	if v := oneOf(getString(fields, "ratingComparison"), "", "above", "below", "average"); v != "" {
		position.RatingComparison = v
	}
	if v := oneOf(getString(fields, "volumeComparison"), "", "above", "below", "average"); v != "" {
		position.VolumeComparison = v
	}
	if list := capList(getStringList(fields, "uniqueStrengths"), maxThemeList); len(list) > 0 {
		position.UniqueStrengths = list
	}
	if list := capList(getStringList(fields, "competitiveGaps"), maxThemeList); len(list) > 0 {
		position.CompetitiveGaps = list
	}

	return position
}
