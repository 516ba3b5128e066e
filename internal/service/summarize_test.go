package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/quiby-ai/review-compare/internal/apperr"
	"github.com/quiby-ai/review-compare/internal/scraper"
	"github.com/quiby-ai/review-compare/internal/types"
)

func newTestSummarizer(connector *MockConnector, client *MockLLMClient) *AppSummarizer {
	clusterer := NewClusterService(client, NewRateLimiter(10, time.Minute), NewClusterCache())
	return NewAppSummarizer(map[types.Source]scraper.Connector{
		types.SourceGooglePlay: connector,
	}, clusterer)
}

func TestSummarize_RatingStatistics(t *testing.T) {
	connector := &MockConnector{}
	client := &MockLLMClient{}
	summarizer := newTestSummarizer(connector, client)

	reviews := makeReviews("com.example.app", 5, 0)
	ratings := []float64{5, 4.4, 3.2, 1.0, 2.6}
	for i := range reviews {
		reviews[i].Rating = ratings[i]
	}

	connector.On("FetchReviews", mock.Anything, "com.example.app").Return(reviews, nil)
	connector.On("FetchAppMetadata", mock.Anything, "com.example.app").
		Return(types.AppMetadata{Title: "Example", Icon: "icon.png", Developer: "Dev"}, nil)
	client.On("GenerateText", mock.Anything, mock.Anything).Return(`{"clusters":[]}`, nil)

	analysis, err := summarizer.Summarize(context.Background(), "com.example.app", types.SourceGooglePlay)
	assert.NoError(t, err)

	assert.Equal(t, "Example", analysis.AppName)
	assert.Equal(t, 5, analysis.TotalReviews)

	// Mean of the raw, unrounded ratings.
	assert.InDelta(t, (5+4.4+3.2+1.0+2.6)/5, analysis.AverageRating, 1e-9)

	// 5→5, 4.4→4, 3.2→3, 1.0→1, 2.6→3
	assert.Equal(t, map[int]int{1: 1, 2: 0, 3: 2, 4: 1, 5: 1}, analysis.RatingDistribution)

	total := 0
	for bucket, count := range analysis.RatingDistribution {
		assert.GreaterOrEqual(t, bucket, 1)
		assert.LessOrEqual(t, bucket, 5)
		total += count
	}
	assert.Equal(t, analysis.TotalReviews, total)

	for _, r := range reviews {
		assert.Equal(t, "Example", r.AppName)
	}
}

func TestStarBucket_Clamping(t *testing.T) {
	assert.Equal(t, 1, starBucket(0))
	assert.Equal(t, 1, starBucket(-2))
	assert.Equal(t, 5, starBucket(7))
	assert.Equal(t, 5, starBucket(4.5))
	assert.Equal(t, 4, starBucket(4.4))
	assert.Equal(t, 1, starBucket(1.2))
}

func TestSummarize_ConnectorErrorPropagates(t *testing.T) {
	connector := &MockConnector{}
	client := &MockLLMClient{}
	summarizer := newTestSummarizer(connector, client)

	connector.On("FetchReviews", mock.Anything, "com.gone.app").
		Return(nil, apperr.Newf(apperr.KindUpstreamNotFound, "Google Play app not found: %s", "com.gone.app"))

	_, err := summarizer.Summarize(context.Background(), "com.gone.app", types.SourceGooglePlay)

	assert.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamNotFound, apperr.KindOf(err))
	client.AssertNotCalled(t, "GenerateText")
}

func TestSummarize_KeepsAtMostFiveClusters(t *testing.T) {
	connector := &MockConnector{}
	client := &MockLLMClient{}
	summarizer := newTestSummarizer(connector, client)

	connector.On("FetchReviews", mock.Anything, "com.example.app").
		Return(makeReviews("com.example.app", 8, 4), nil)
	connector.On("FetchAppMetadata", mock.Anything, "com.example.app").
		Return(types.AppMetadata{Title: "Example"}, nil)

	client.On("GenerateText", mock.Anything, mock.Anything).Return(`{"clusters":[
		{"theme":"a","summary":"s","reviewNumbers":[1],"avgRating":4},
		{"theme":"b","summary":"s","reviewNumbers":[2],"avgRating":4},
		{"theme":"c","summary":"s","reviewNumbers":[3],"avgRating":4},
		{"theme":"d","summary":"s","reviewNumbers":[4],"avgRating":4},
		{"theme":"e","summary":"s","reviewNumbers":[5],"avgRating":4},
		{"theme":"f","summary":"s","reviewNumbers":[6],"avgRating":4}
	]}`, nil)

	analysis, err := summarizer.Summarize(context.Background(), "com.example.app", types.SourceGooglePlay)
	assert.NoError(t, err)
	assert.Len(t, analysis.Clusters, 5)
}
