package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/quiby-ai/review-compare/internal/apperr"
	"github.com/quiby-ai/review-compare/internal/llm"
	"github.com/quiby-ai/review-compare/internal/types"
)

const (
	minReviewTextLen   = 15
	maxModelClusters   = 6
	maxSamplesPerTheme = 5
	promptTextLimit    = 200
)

// ClusterService groups one app's reviews into thematic clusters via
// the model, behind the shared limiter and cache.
type ClusterService struct {
	client  llm.Client
	limiter *RateLimiter
	cache   *ClusterCache
}

// NewClusterService wires the clustering step.
func NewClusterService(client llm.Client, limiter *RateLimiter, cache *ClusterCache) *ClusterService {
	return &ClusterService{
		client:  client,
		limiter: limiter,
		cache:   cache,
	}
}

type clusterEntry struct {
	Theme         string  `json:"theme"`
	Summary       string  `json:"summary"`
	ReviewNumbers []int   `json:"reviewNumbers"`
	Sentiment     string  `json:"sentiment"`
	AvgRating     float64 `json:"avgRating"`
}

type clusterResponse struct {
	Clusters []clusterEntry `json:"clusters"`
}

// ClusterReviews returns up to 6 clusters sorted descending by count.
// Identical review-id sets are served from the cache without a model
// call or a rate-limit slot.
func (s *ClusterService) ClusterReviews(ctx context.Context, reviews []types.Review) ([]types.ReviewCluster, error) {
	valid := filterReviews(reviews)
	if len(valid) == 0 {
		return nil, apperr.New(apperr.KindNoValidReviews, "no valid reviews found for analysis")
	}

	if !s.limiter.Allow() {
		return nil, apperr.New(apperr.KindRateLimited, "rate limit exceeded, please try again later")
	}

	key := s.cache.Key(valid)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	s.limiter.Mark()

	response, err := s.client.GenerateText(ctx, buildClusterPrompt(valid))
	if err != nil {
		return nil, err
	}

	var parsed clusterResponse
	if err := llm.ExtractJSON(response, &parsed); err != nil {
		return nil, err
	}
	if parsed.Clusters == nil {
		return nil, apperr.New(apperr.KindInvalidModelResponse, "model response has no clusters array")
	}

	clusters := normalizeClusters(parsed.Clusters, valid)
	s.cache.Set(key, clusters)

	return clusters, nil
}

func filterReviews(reviews []types.Review) []types.Review {
	var valid []types.Review
	for _, r := range reviews {
		if len(strings.TrimSpace(r.Text)) > minReviewTextLen {
			valid = append(valid, r)
		}
	}
	return valid
}

func buildClusterPrompt(reviews []types.Review) string {
	var block strings.Builder
	for i, r := range reviews {
		fmt.Fprintf(&block, "%d. (%.0f★) %s\n", i+1, r.Rating, truncate(r.Text, promptTextLimit))
	}

	return fmt.Sprintf(`Analyze these app reviews and group them into themes. Return ONLY valid JSON with no additional text.

Schema: {"clusters": [{"theme": "", "summary": "", "reviewNumbers": [], "sentiment": "", "avgRating": 0}]}

Rules:
- Maximum 7 themes (only include the most meaningful)
- Summaries under 200 characters (concise but clear, mention key user sentiment + primary driver)
- Include review numbers that match each theme
- Calculate average rating per theme
- Prefer grouping by user value or pain vs technical jargon

Reviews:
%s
JSON:`, block.String())
}

// normalizeClusters maps model output back onto the filtered reviews.
// Review numbers are 1-indexed; out-of-range or duplicate numbers are
// dropped silently. At most 5 sample reviews are retained per cluster
// and count reflects the retained samples.
func normalizeClusters(entries []clusterEntry, valid []types.Review) []types.ReviewCluster {
	if len(entries) > maxModelClusters {
		entries = entries[:maxModelClusters]
	}

	clusters := make([]types.ReviewCluster, 0, len(entries))
	for i, entry := range entries {
		seen := make(map[int]bool)
		var matched []types.Review
		for _, num := range entry.ReviewNumbers {
			if num < 1 || num > len(valid) || seen[num] {
				continue
			}
			seen[num] = true
			matched = append(matched, valid[num-1])
			if len(matched) == maxSamplesPerTheme {
				break
			}
		}

		avg := entry.AvgRating
		if avg == 0 && len(matched) > 0 {
			var sum float64
			for _, r := range matched {
				sum += r.Rating
			}
			avg = sum / float64(len(matched))
		}

		theme := entry.Theme
		if theme == "" {
			theme = fmt.Sprintf("Theme %d", i+1)
		}
		summary := entry.Summary
		if summary == "" {
			summary = "No summary available"
		}

		clusters = append(clusters, types.ReviewCluster{
			ID:            fmt.Sprintf("cluster-%d", i),
			Theme:         theme,
			Summary:       truncate(summary, promptTextLimit),
			Reviews:       matched,
			AverageRating: round1(avg),
			Count:         len(matched),
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Count > clusters[j].Count
	})

	return clusters
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
