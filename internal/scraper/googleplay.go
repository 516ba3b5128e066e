package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quiby-ai/review-compare/internal/apperr"
	"github.com/quiby-ai/review-compare/internal/types"
)

const batchexecutePath = "/_/PlayStoreUi/data/batchexecute"

// reviewsRPCID is the Play Store UI RPC that serves paged reviews.
const reviewsRPCID = "UsvDTd"

// GooglePlayConnector fetches reviews through the Play Store's
// batchexecute RPC and metadata from the store listing page.
type GooglePlayConnector struct {
	httpClient *http.Client
	baseURL    string
	opts       Options
	metaCache  *lru.Cache[string, types.AppMetadata]
}

// NewGooglePlay builds the Google Play connector.
func NewGooglePlay(opts Options) *GooglePlayConnector {
	cache, _ := lru.New[string, types.AppMetadata](metadataCacheSize)
	return &GooglePlayConnector{
		httpClient: newHTTPClient(opts.Timeout),
		baseURL:    "https://play.google.com",
		opts:       opts,
		metaCache:  cache,
	}
}

func (c *GooglePlayConnector) FetchReviews(ctx context.Context, appID string) ([]types.Review, error) {
	log.Printf("Fetching %d Google Play reviews for %s...", c.opts.MaxCount, appID)

	var reviews []types.Review
	err := withRetry(ctx, "google play reviews", func() error {
		var fetchErr error
		reviews, fetchErr = c.fetchReviewsOnce(ctx, appID)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}

	if len(reviews) == 0 {
		return nil, apperr.Newf(apperr.KindUpstreamEmpty,
			"no reviews found for Google Play app %s; the app may be new, have no reviews, or the app ID may be incorrect", appID)
	}

	log.Printf("Successfully fetched %d reviews from Google Play", len(reviews))
	return reviews, nil
}

func (c *GooglePlayConnector) fetchReviewsOnce(ctx context.Context, appID string) ([]types.Review, error) {
	// [null,null,[2,sort,[count,null,null],null,[]],[appId,7]] with
	// sort=2 (newest), wrapped in the batchexecute request envelope.
	payload := fmt.Sprintf(`[[["%s","[null,null,[2,2,[%d,null,null],null,[]],[\"%s\",7]]",null,"generic"]]]`,
		reviewsRPCID, c.opts.MaxCount, appID)

	form := url.Values{"f.req": {payload}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+batchexecutePath+"?rpcids="+reviewsRPCID+"&hl="+c.opts.Language+"&gl="+c.opts.Country,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError("Google Play", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperr.Newf(apperr.KindUpstreamNotFound, "Google Play app not found: %s", appID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.KindUpstreamNetworkRestricted, "Google Play returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError("Google Play", err)
	}

	return parseBatchexecuteReviews(body, appID)
}

// parseBatchexecuteReviews unwraps the anti-hijacking guard and the
// nested-array RPC envelope, then maps review rows onto the normalized
// model with positional IDs.
func parseBatchexecuteReviews(body []byte, appID string) ([]types.Review, error) {
	text := strings.TrimPrefix(string(body), ")]}'")
	start := strings.Index(text, "[")
	if start == -1 {
		return nil, apperr.New(apperr.KindUpstreamNetworkRestricted, "unexpected Google Play response format")
	}

	var envelope []any
	if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&envelope); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamNetworkRestricted, "failed to decode Google Play response", err)
	}

	payload := rpcPayload(envelope)
	if payload == "" {
		return nil, apperr.Newf(apperr.KindUpstreamNotFound, "Google Play app not found: %s", appID)
	}

	var data []any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamNetworkRestricted, "failed to decode Google Play review payload", err)
	}

	rows, _ := itemAt(data, 0).([]any)
	reviews := make([]types.Review, 0, len(rows))
	for i, row := range rows {
		reviews = append(reviews, types.Review{
			ID:      fmt.Sprintf("gplay-%s-%d", appID, i),
			Author:  authorName(row),
			Rating:  floatAt(row, 2),
			Date:    reviewDate(row),
			Text:    stringAt(row, 4),
			Source:  types.SourceGooglePlay,
			AppID:   appID,
			AppName: "",
		})
	}

	return reviews, nil
}

// rpcPayload finds the wrb.fr chunk for the reviews RPC and returns its
// embedded JSON string.
func rpcPayload(envelope []any) string {
	for _, chunk := range envelope {
		row, ok := chunk.([]any)
		if !ok {
			continue
		}
		for _, entry := range row {
			if stringAt(entry, 0) == "wrb.fr" && stringAt(entry, 1) == reviewsRPCID {
				return stringAt(entry, 2)
			}
		}
		if stringAt(chunk, 0) == "wrb.fr" && stringAt(chunk, 1) == reviewsRPCID {
			return stringAt(chunk, 2)
		}
	}
	return ""
}

func authorName(row any) string {
	if name := stringAt(itemAt(row, 1), 0); name != "" {
		return name
	}
	return "Anonymous"
}

func reviewDate(row any) string {
	if seconds := floatAt(itemAt(row, 5), 0); seconds > 0 {
		return time.Unix(int64(seconds), 0).UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func (c *GooglePlayConnector) FetchAppMetadata(ctx context.Context, appID string) (types.AppMetadata, error) {
	if meta, ok := c.metaCache.Get(appID); ok {
		return meta, nil
	}

	log.Printf("Fetching app details for %s...", appID)

	detailsURL := fmt.Sprintf("%s/store/apps/details?id=%s&hl=%s&gl=%s",
		c.baseURL, url.QueryEscape(appID), c.opts.Language, c.opts.Country)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, detailsURL, nil)
	if err != nil {
		return types.AppMetadata{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.AppMetadata{}, classifyTransportError("Google Play", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return types.AppMetadata{}, apperr.Newf(apperr.KindUpstreamNotFound, "Google Play app not found: %s", appID)
	}
	if resp.StatusCode != http.StatusOK {
		return types.AppMetadata{}, apperr.Newf(apperr.KindUpstreamNetworkRestricted, "Google Play returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.AppMetadata{}, classifyTransportError("Google Play", err)
	}

	meta, err := parseListingMetadata(body, appID)
	if err != nil {
		return types.AppMetadata{}, err
	}

	c.metaCache.Add(appID, meta)
	return meta, nil
}

// parseListingMetadata pulls the ld+json structured-data block out of
// the store listing page.
func parseListingMetadata(body []byte, appID string) (types.AppMetadata, error) {
	const marker = `<script type="application/ld+json"`
	page := string(body)

	start := strings.Index(page, marker)
	if start == -1 {
		return types.AppMetadata{}, apperr.Newf(apperr.KindUpstreamNotFound, "Google Play app not found: %s", appID)
	}
	open := strings.Index(page[start:], ">")
	if open == -1 {
		return types.AppMetadata{}, apperr.New(apperr.KindUpstreamNetworkRestricted, "unexpected Google Play listing format")
	}
	rest := page[start+open+1:]
	end := strings.Index(rest, "</script>")
	if end == -1 {
		return types.AppMetadata{}, apperr.New(apperr.KindUpstreamNetworkRestricted, "unexpected Google Play listing format")
	}

	var listing struct {
		Name   string `json:"name"`
		Image  string `json:"image"`
		Author struct {
			Name string `json:"name"`
		} `json:"author"`
	}
	if err := json.Unmarshal([]byte(rest[:end]), &listing); err != nil {
		return types.AppMetadata{}, apperr.Wrap(apperr.KindUpstreamNetworkRestricted, "failed to decode Google Play listing data", err)
	}

	meta := types.AppMetadata{
		Title:     listing.Name,
		Icon:      listing.Image,
		Developer: listing.Author.Name,
	}
	if meta.Title == "" {
		meta.Title = "Unknown App"
	}
	if meta.Developer == "" {
		meta.Developer = "Unknown Developer"
	}
	return meta, nil
}

func itemAt(v any, i int) any {
	row, ok := v.([]any)
	if !ok || i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func stringAt(v any, i int) string {
	s, _ := itemAt(v, i).(string)
	return s
}

func floatAt(v any, i int) float64 {
	n, _ := itemAt(v, i).(float64)
	return n
}
