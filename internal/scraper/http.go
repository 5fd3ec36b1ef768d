package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// maxPageSize caps how much of a response body is read.
const maxPageSize = 5 << 20

// HTTPFetcher fetches pages with a plain HTTP client.
type HTTPFetcher struct {
	client *http.Client
	log    logrus.FieldLogger
}

// NewHTTPFetcher creates a fetcher. Per-call timeouts come from Fetch.
func NewHTTPFetcher(logger logrus.FieldLogger) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{},
		log:    logger.WithField("component", "http_fetcher"),
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status: %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	f.log.WithFields(logrus.Fields{"url": url, "bytes": len(body)}).Debug("Page fetched")
	return body, nil
}
