package service

import (
	"context"
	"math"
	"time"

	"github.com/quiby-ai/review-compare/internal/scraper"
	"github.com/quiby-ai/review-compare/internal/types"
)

const maxClustersPerApp = 5

// AppSummarizer turns one app identifier into an AppAnalysis: fetch
// reviews and metadata, derive rating statistics, cluster themes.
type AppSummarizer struct {
	connectors map[types.Source]scraper.Connector
	clusterer  *ClusterService
}

// NewAppSummarizer wires the per-app summarization step.
func NewAppSummarizer(connectors map[types.Source]scraper.Connector, clusterer *ClusterService) *AppSummarizer {
	return &AppSummarizer{
		connectors: connectors,
		clusterer:  clusterer,
	}
}

// Summarize fetches and aggregates one app. Connector failures
// propagate with their typed kind.
func (s *AppSummarizer) Summarize(ctx context.Context, appID string, source types.Source) (types.AppAnalysis, error) {
	connector := s.connectors[source]

	reviews, err := connector.FetchReviews(ctx, appID)
	if err != nil {
		return types.AppAnalysis{}, err
	}

	meta, err := connector.FetchAppMetadata(ctx, appID)
	if err != nil {
		return types.AppAnalysis{}, err
	}

	for i := range reviews {
		reviews[i].AppName = meta.Title
	}

	distribution := map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	var ratingSum float64
	for _, r := range reviews {
		distribution[starBucket(r.Rating)]++
		ratingSum += r.Rating
	}

	averageRating := 0.0
	if len(reviews) > 0 {
		averageRating = ratingSum / float64(len(reviews))
	}

	clusters, err := s.clusterer.ClusterReviews(ctx, reviews)
	if err != nil {
		return types.AppAnalysis{}, err
	}
	if len(clusters) > maxClustersPerApp {
		clusters = clusters[:maxClustersPerApp]
	}

	return types.AppAnalysis{
		AppID:              appID,
		AppName:            meta.Title,
		TotalReviews:       len(reviews),
		AverageRating:      averageRating,
		RatingDistribution: distribution,
		Clusters:           clusters,
		LastUpdated:        time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// starBucket rounds a raw rating to the nearest whole star, clamped to
// the 1-5 range.
func starBucket(rating float64) int {
	bucket := int(math.Floor(rating + 0.5))
	if bucket < 1 {
		return 1
	}
	if bucket > 5 {
		return 5
	}
	return bucket
}
