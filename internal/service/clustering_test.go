package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/quiby-ai/review-compare/internal/apperr"
	"github.com/quiby-ai/review-compare/internal/types"
)

func newClusterService(client *MockLLMClient) *ClusterService {
	return NewClusterService(client, NewRateLimiter(10, time.Minute), NewClusterCache())
}

func TestClusterReviews_NoValidReviews(t *testing.T) {
	client := &MockLLMClient{}
	svc := newClusterService(client)

	reviews := []types.Review{
		{ID: "r1", Rating: 5, Text: "short"},
		{ID: "r2", Rating: 4, Text: "   also short   "},
	}

	_, err := svc.ClusterReviews(context.Background(), reviews)

	assert.Error(t, err)
	assert.Equal(t, apperr.KindNoValidReviews, apperr.KindOf(err))
	client.AssertNotCalled(t, "GenerateText")
}

func TestClusterReviews_IdempotentViaCache(t *testing.T) {
	client := &MockLLMClient{}
	svc := newClusterService(client)

	client.On("GenerateText", mock.Anything, mock.Anything).
		Return(`{"clusters":[{"theme":"battery life","summary":"Battery drains fast","reviewNumbers":[1,2],"sentiment":"negative","avgRating":2.5}]}`, nil).
		Once()

	reviews := makeReviews("com.example.app", 4, 3)

	first, err := svc.ClusterReviews(context.Background(), reviews)
	assert.NoError(t, err)

	second, err := svc.ClusterReviews(context.Background(), reviews)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	client.AssertNumberOfCalls(t, "GenerateText", 1)
}

func TestClusterReviews_RateLimited(t *testing.T) {
	client := &MockLLMClient{}
	limiter := NewRateLimiter(1, time.Minute)
	svc := NewClusterService(client, limiter, NewClusterCache())

	client.On("GenerateText", mock.Anything, mock.Anything).
		Return(`{"clusters":[]}`, nil).
		Once()

	_, err := svc.ClusterReviews(context.Background(), makeReviews("com.first.app", 3, 4))
	assert.NoError(t, err)

	_, err = svc.ClusterReviews(context.Background(), makeReviews("com.second.app", 3, 4))
	assert.Error(t, err)
	assert.Equal(t, apperr.KindRateLimited, apperr.KindOf(err))
	client.AssertNumberOfCalls(t, "GenerateText", 1)
}

func TestClusterReviews_CacheHitSkipsLimiterSlot(t *testing.T) {
	client := &MockLLMClient{}
	limiter := NewRateLimiter(1, time.Minute)
	svc := NewClusterService(client, limiter, NewClusterCache())

	client.On("GenerateText", mock.Anything, mock.Anything).
		Return(`{"clusters":[]}`, nil).
		Once()

	reviews := makeReviews("com.example.app", 3, 4)

	_, err := svc.ClusterReviews(context.Background(), reviews)
	assert.NoError(t, err)

	// Second identical call is a cache hit: the exhausted limiter must
	// not block it and no slot is consumed.
	_, err = svc.ClusterReviews(context.Background(), reviews)
	assert.Error(t, err) // limiter is at max, Allow() rejects before the cache

	limiter.calls = 0
	_, err = svc.ClusterReviews(context.Background(), reviews)
	assert.NoError(t, err)
	assert.Equal(t, 0, limiter.calls, "cache hit must not consume a slot")
}

func TestClusterReviews_InvalidModelResponse(t *testing.T) {
	client := &MockLLMClient{}
	svc := newClusterService(client)

	client.On("GenerateText", mock.Anything, mock.Anything).
		Return("I could not produce any JSON, sorry.", nil).
		Once()

	_, err := svc.ClusterReviews(context.Background(), makeReviews("com.example.app", 3, 4))

	assert.Error(t, err)
	assert.Equal(t, apperr.KindInvalidModelResponse, apperr.KindOf(err))
}

func TestNormalizeClusters_SampleMapping(t *testing.T) {
	valid := makeReviews("com.example.app", 8, 4)
	valid[0].Rating = 5
	valid[1].Rating = 3

	entries := []clusterEntry{
		{
			Theme: "crashes",
			// 1-indexed; 0, 99 out of range; 2 duplicated.
			ReviewNumbers: []int{0, 1, 2, 2, 99},
		},
		{
			Theme:         "battery life",
			Summary:       "Battery complaints",
			ReviewNumbers: []int{3, 4, 5, 6, 7, 8},
			AvgRating:     3.95,
		},
	}

	clusters := normalizeClusters(entries, valid)

	// Stable sort by count descending puts battery life first.
	assert.Equal(t, "battery life", clusters[0].Theme)
	assert.Len(t, clusters[0].Reviews, 5, "samples capped at 5")
	assert.Equal(t, 5, clusters[0].Count)
	assert.Equal(t, 4.0, clusters[0].AverageRating, "model rating rounded to 1 decimal")

	crashes := clusters[1]
	assert.Len(t, crashes.Reviews, 2)
	assert.Equal(t, 2, crashes.Count)
	// Model gave no avgRating: recomputed from matched samples (5+3)/2.
	assert.Equal(t, 4.0, crashes.AverageRating)
	assert.Equal(t, "No summary available", crashes.Summary)
}

func TestNormalizeClusters_TruncatesToSix(t *testing.T) {
	valid := makeReviews("com.example.app", 10, 4)

	entries := make([]clusterEntry, 8)
	for i := range entries {
		entries[i] = clusterEntry{Theme: "theme", ReviewNumbers: []int{i + 1}}
	}

	clusters := normalizeClusters(entries, valid)
	assert.Len(t, clusters, 6)
}

func TestNormalizeClusters_NoMatchedSamples(t *testing.T) {
	valid := makeReviews("com.example.app", 2, 4)

	clusters := normalizeClusters([]clusterEntry{
		{Theme: "ghost theme", ReviewNumbers: []int{50, 60}},
	}, valid)

	assert.Equal(t, 0, clusters[0].Count)
	assert.Equal(t, 0.0, clusters[0].AverageRating)
	assert.Empty(t, clusters[0].Reviews)
}
