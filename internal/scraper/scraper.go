// Package scraper implements the review-source connectors. Each
// connector returns a normalized review list or a typed failure
// (not-found, timeout, network-restricted, empty).
package scraper

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/quiby-ai/review-compare/internal/apperr"
	"github.com/quiby-ai/review-compare/internal/types"
)

// Connector fetches public reviews and listing metadata for one store.
type Connector interface {
	FetchReviews(ctx context.Context, appID string) ([]types.Review, error)
	FetchAppMetadata(ctx context.Context, appID string) (types.AppMetadata, error)
}

// Options bounds a connector's fetch behavior.
type Options struct {
	Language string
	Country  string
	MaxCount int
	Timeout  time.Duration
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const metadataCacheSize = 256

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// classifyTransportError maps a request error onto the upstream
// failure taxonomy.
func classifyTransportError(store string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindUpstreamTimeout, store+" request timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.Wrap(apperr.KindUpstreamTimeout, store+" request timed out", err)
	}
	return apperr.Wrap(apperr.KindUpstreamNetworkRestricted, "network error reaching "+store, err)
}

// withRetry runs fn up to two times with a short backoff, retrying only
// transient failures. Not-found and empty results fail immediately.
func withRetry(ctx context.Context, name string, fn func() error) error {
	var lastErr error
	delay := 500 * time.Millisecond

	for attempt := 1; attempt <= 2; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		kind := apperr.KindOf(lastErr)
		if kind != apperr.KindUpstreamTimeout && kind != apperr.KindUpstreamNetworkRestricted {
			return lastErr
		}

		if attempt < 2 {
			log.Printf("%s failed (attempt %d/2): %v — retrying in %v", name, attempt, lastErr, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return lastErr
			}
		}
	}

	return lastErr
}
