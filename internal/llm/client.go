package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/quiby-ai/review-compare/internal/apperr"
)

// Client generates free-form text from a prompt. The response is
// intended to be JSON but carries no structural guarantee.
type Client interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type geminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient builds a Client backed by the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey, model string) (Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &geminiClient{
		client: client,
		model:  model,
	}, nil
}

func (c *geminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", classifyError(err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", apperr.New(apperr.KindInvalidModelResponse, "model returned an empty response")
	}

	return text, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.KindUpstreamTimeout, "model call timed out", err)
	}

	msg := err.Error()
	if strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "429") || strings.Contains(msg, "quota") {
		return apperr.Wrap(apperr.KindModelQuotaExceeded, "model quota exceeded", err)
	}

	return apperr.Wrap(apperr.KindUpstreamNetworkRestricted, "model call failed", err)
}
