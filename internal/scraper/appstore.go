package scraper

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quiby-ai/review-compare/internal/apperr"
	"github.com/quiby-ai/review-compare/internal/types"
)

const (
	appStoreReviewsPerPage = 50
	appStoreMaxPages       = 3
	appStorePageDelay      = 300 * time.Millisecond
)

// AppStoreConnector fetches reviews from the iTunes customer-reviews
// RSS feed and metadata from the iTunes lookup endpoint.
type AppStoreConnector struct {
	httpClient *http.Client
	feedURL    string
	lookupURL  string
	opts       Options
	metaCache  *lru.Cache[string, types.AppMetadata]
}

// NewAppStore builds the App Store connector.
func NewAppStore(opts Options) *AppStoreConnector {
	cache, _ := lru.New[string, types.AppMetadata](metadataCacheSize)
	return &AppStoreConnector{
		httpClient: newHTTPClient(opts.Timeout),
		feedURL:    "https://itunes.apple.com",
		lookupURL:  "https://itunes.apple.com",
		opts:       opts,
		metaCache:  cache,
	}
}

type rssFeed struct {
	Entries []rssEntry `xml:"entry"`
}

type rssEntry struct {
	Title  string `xml:"title"`
	Author struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Content []rssContent `xml:"content"`
	Rating  string       `xml:"rating"`
	Updated string       `xml:"updated"`
}

type rssContent struct {
	Type string `xml:"type,attr"`
	Text string `xml:",chardata"`
}

// FetchReviews pages through the RSS feed. A failure on the first page
// fails the fetch; failures on later pages just stop pagination.
func (c *AppStoreConnector) FetchReviews(ctx context.Context, appID string) ([]types.Review, error) {
	num := c.opts.MaxCount
	log.Printf("Fetching %d App Store reviews for %s...", num, appID)

	maxPages := (num + appStoreReviewsPerPage - 1) / appStoreReviewsPerPage
	if maxPages > appStoreMaxPages {
		maxPages = appStoreMaxPages
	}

	var reviews []types.Review
	for page := 1; page <= maxPages && len(reviews) < num; page++ {
		entries, err := c.fetchPage(ctx, appID, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			log.Printf("Failed to fetch App Store page %d, stopping: %v", page, err)
			break
		}
		if len(entries) == 0 {
			break
		}

		reviews = append(reviews, parseFeedEntries(entries, appID, len(reviews))...)

		if page < maxPages {
			select {
			case <-time.After(appStorePageDelay):
			case <-ctx.Done():
				return nil, apperr.Wrap(apperr.KindUpstreamTimeout, "App Store request timed out", ctx.Err())
			}
		}
	}

	if len(reviews) == 0 {
		return nil, apperr.Newf(apperr.KindUpstreamEmpty,
			"no reviews found for App Store app %s; the app may be new, have no reviews, or the app ID may be incorrect", appID)
	}

	if len(reviews) > num {
		reviews = reviews[:num]
	}
	log.Printf("Successfully parsed %d reviews from App Store", len(reviews))
	return reviews, nil
}

func (c *AppStoreConnector) fetchPage(ctx context.Context, appID string, page int) ([]rssEntry, error) {
	feedURL := fmt.Sprintf("%s/%s/rss/customerreviews/page=%d/id=%s/sortby=mostrecent/xml",
		c.feedURL, c.opts.Country, page, url.PathEscape(appID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError("App Store", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperr.Newf(apperr.KindUpstreamNotFound, "App Store app not found: %s", appID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.KindUpstreamNetworkRestricted,
			"failed to fetch App Store reviews: status %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamNetworkRestricted, "failed to decode App Store feed", err)
	}

	return feed.Entries, nil
}

// parseFeedEntries filters out the feed-header entry and anything
// without meaningful text, assigning positional IDs.
func parseFeedEntries(entries []rssEntry, appID string, startIndex int) []types.Review {
	var reviews []types.Review
	for _, entry := range entries {
		title := strings.TrimSpace(entry.Title)
		content := strings.TrimSpace(textContent(entry.Content))

		if title == "" || content == "" || title == "iTunes Store: Customer Reviews" || len(content) <= 10 {
			continue
		}

		rating, _ := strconv.ParseFloat(strings.TrimSpace(entry.Rating), 64)
		date := strings.TrimSpace(entry.Updated)
		if date == "" {
			date = time.Now().UTC().Format(time.RFC3339)
		}
		author := strings.TrimSpace(entry.Author.Name)
		if author == "" {
			author = "Anonymous"
		}

		reviews = append(reviews, types.Review{
			ID:      fmt.Sprintf("appstore-%s-%d", appID, startIndex+len(reviews)),
			Author:  author,
			Rating:  rating,
			Date:    date,
			Text:    content,
			Source:  types.SourceAppStore,
			AppID:   appID,
			AppName: "",
		})
	}
	return reviews
}

// textContent prefers the plain-text content element over the HTML one.
func textContent(contents []rssContent) string {
	for _, c := range contents {
		if c.Type == "text" {
			return c.Text
		}
	}
	if len(contents) > 0 {
		return contents[0].Text
	}
	return ""
}

func (c *AppStoreConnector) FetchAppMetadata(ctx context.Context, appID string) (types.AppMetadata, error) {
	if meta, ok := c.metaCache.Get(appID); ok {
		return meta, nil
	}

	log.Printf("Fetching App Store app details for %s...", appID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/lookup?id=%s", c.lookupURL, url.QueryEscape(appID)), nil)
	if err != nil {
		return types.AppMetadata{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return types.AppMetadata{}, classifyTransportError("App Store", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return types.AppMetadata{}, apperr.Newf(apperr.KindUpstreamNotFound, "App Store app not found: %s", appID)
	}
	if resp.StatusCode != http.StatusOK {
		return types.AppMetadata{}, apperr.Newf(apperr.KindUpstreamNetworkRestricted,
			"failed to fetch app details: status %d", resp.StatusCode)
	}

	var lookup struct {
		Results []struct {
			TrackName     string `json:"trackName"`
			ArtworkURL100 string `json:"artworkUrl100"`
			ArtistName    string `json:"artistName"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		return types.AppMetadata{}, apperr.Wrap(apperr.KindUpstreamNetworkRestricted, "failed to decode App Store lookup", err)
	}

	if len(lookup.Results) == 0 {
		return types.AppMetadata{}, apperr.Newf(apperr.KindUpstreamNotFound, "App Store app not found: %s", appID)
	}

	app := lookup.Results[0]
	meta := types.AppMetadata{
		Title:     app.TrackName,
		Icon:      app.ArtworkURL100,
		Developer: app.ArtistName,
	}
	if meta.Title == "" {
		meta.Title = "Unknown App"
	}
	if meta.Developer == "" {
		meta.Developer = "Unknown Developer"
	}

	c.metaCache.Add(appID, meta)
	return meta, nil
}
