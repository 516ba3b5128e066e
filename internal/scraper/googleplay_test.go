package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quiby-ai/review-compare/internal/apperr"
	"github.com/quiby-ai/review-compare/internal/types"
)

// batchexecuteBody builds a realistic batchexecute response: the
// anti-hijacking guard followed by the wrb.fr envelope whose payload is
// a JSON string holding the review rows.
func batchexecuteBody(t *testing.T, rows []any) []byte {
	t.Helper()

	payload, err := json.Marshal([]any{rows})
	assert.NoError(t, err)

	envelope, err := json.Marshal([]any{
		[]any{"wrb.fr", reviewsRPCID, string(payload), nil, nil, nil, "generic"},
	})
	assert.NoError(t, err)

	return []byte(")]}'\n\n" + string(envelope))
}

func playReviewRow(author string, rating float64, text string, unixSeconds float64) []any {
	var authorField any
	if author != "" {
		authorField = []any{author}
	}
	return []any{"review-id", authorField, rating, nil, text, []any{unixSeconds}}
}

func TestParseBatchexecuteReviews(t *testing.T) {
	body := batchexecuteBody(t, []any{
		playReviewRow("Alice", 5, "Great app, love the new design.", 1700000000),
		playReviewRow("", 2, "Keeps crashing on startup.", 0),
	})

	reviews, err := parseBatchexecuteReviews(body, "com.example.app")
	assert.NoError(t, err)
	assert.Len(t, reviews, 2)

	first := reviews[0]
	assert.Equal(t, "gplay-com.example.app-0", first.ID)
	assert.Equal(t, "Alice", first.Author)
	assert.Equal(t, 5.0, first.Rating)
	assert.Equal(t, "Great app, love the new design.", first.Text)
	assert.Equal(t, "2023-11-14T22:13:20Z", first.Date)
	assert.Equal(t, types.SourceGooglePlay, first.Source)
	assert.Equal(t, "com.example.app", first.AppID)

	second := reviews[1]
	assert.Equal(t, "gplay-com.example.app-1", second.ID)
	assert.Equal(t, "Anonymous", second.Author, "missing author falls back")
	// A missing timestamp falls back to the current time.
	parsed, err := time.Parse(time.RFC3339, second.Date)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, time.Minute)
}

func TestParseBatchexecuteReviews_NoPayload(t *testing.T) {
	envelope, err := json.Marshal([]any{
		[]any{"wrb.fr", "OtherRPC", "[]", nil, nil, nil, "generic"},
	})
	assert.NoError(t, err)

	_, err = parseBatchexecuteReviews([]byte(")]}'\n\n"+string(envelope)), "com.example.app")
	assert.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamNotFound, apperr.KindOf(err))
}

func TestParseBatchexecuteReviews_MalformedBody(t *testing.T) {
	_, err := parseBatchexecuteReviews([]byte(")]}'\n\nnot json at all"), "com.example.app")
	assert.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamNetworkRestricted, apperr.KindOf(err))
}

func TestGooglePlayFetchReviews(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, batchexecutePath, r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostFormValue("f.req"), "com.example.app")

		w.Write(batchexecuteBody(t, []any{
			playReviewRow("Alice", 4, "Solid app overall, a few rough edges.", 1700000000),
		}))
	}))
	defer server.Close()

	c := NewGooglePlay(Options{Language: "en", Country: "us", MaxCount: 50, Timeout: 2 * time.Second})
	c.baseURL = server.URL

	reviews, err := c.FetchReviews(context.Background(), "com.example.app")
	assert.NoError(t, err)
	assert.Len(t, reviews, 1)
	assert.Equal(t, "gplay-com.example.app-0", reviews[0].ID)
}

func TestGooglePlayFetchReviews_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := NewGooglePlay(Options{Language: "en", Country: "us", MaxCount: 50, Timeout: 2 * time.Second})
	c.baseURL = server.URL

	_, err := c.FetchReviews(context.Background(), "com.missing.app")
	assert.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamNotFound, apperr.KindOf(err))
}

func TestGooglePlayFetchReviews_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(batchexecuteBody(t, []any{}))
	}))
	defer server.Close()

	c := NewGooglePlay(Options{Language: "en", Country: "us", MaxCount: 50, Timeout: 2 * time.Second})
	c.baseURL = server.URL

	_, err := c.FetchReviews(context.Background(), "com.quiet.app")
	assert.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamEmpty, apperr.KindOf(err))
}

func TestParseListingMetadata(t *testing.T) {
	page := fmt.Sprintf(`<html><head><script type="application/ld+json" nonce="x">%s</script></head><body></body></html>`,
		`{"name":"Example App","image":"https://example.com/icon.png","author":{"name":"Example Dev"}}`)

	meta, err := parseListingMetadata([]byte(page), "com.example.app")
	assert.NoError(t, err)
	assert.Equal(t, "Example App", meta.Title)
	assert.Equal(t, "https://example.com/icon.png", meta.Icon)
	assert.Equal(t, "Example Dev", meta.Developer)
}

func TestParseListingMetadata_Fallbacks(t *testing.T) {
	page := `<script type="application/ld+json">{"image":"icon.png"}</script>`

	meta, err := parseListingMetadata([]byte(page), "com.example.app")
	assert.NoError(t, err)
	assert.Equal(t, "Unknown App", meta.Title)
	assert.Equal(t, "Unknown Developer", meta.Developer)
}

func TestParseListingMetadata_NoStructuredData(t *testing.T) {
	_, err := parseListingMetadata([]byte(`<html><body>plain page</body></html>`), "com.example.app")
	assert.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamNotFound, apperr.KindOf(err))
}
