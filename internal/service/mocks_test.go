package service

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"

	"github.com/quiby-ai/review-compare/internal/types"
)

type MockLLMClient struct {
	mock.Mock
}

func (m *MockLLMClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockConnector struct {
	mock.Mock
}

func (m *MockConnector) FetchReviews(ctx context.Context, appID string) ([]types.Review, error) {
	args := m.Called(ctx, appID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Review), args.Error(1)
}

func (m *MockConnector) FetchAppMetadata(ctx context.Context, appID string) (types.AppMetadata, error) {
	args := m.Called(ctx, appID)
	return args.Get(0).(types.AppMetadata), args.Error(1)
}

// makeReviews builds n reviews with the given rating and text long
// enough to survive the clustering pre-filter.
func makeReviews(appID string, n int, rating float64) []types.Review {
	reviews := make([]types.Review, n)
	for i := range reviews {
		reviews[i] = types.Review{
			ID:     fmt.Sprintf("gplay-%s-%d", appID, i),
			Author: "Reviewer",
			Rating: rating,
			Date:   "2026-08-01T00:00:00Z",
			Text:   fmt.Sprintf("This is a sufficiently long review number %d for testing.", i),
			Source: types.SourceGooglePlay,
			AppID:  appID,
		}
	}
	return reviews
}

func makeCluster(theme string, rating float64, count int) types.ReviewCluster {
	return types.ReviewCluster{
		ID:            "cluster-0",
		Theme:         theme,
		Summary:       "Users talk about " + theme,
		Reviews:       makeReviews("sample", count, rating),
		AverageRating: rating,
		Count:         count,
	}
}
