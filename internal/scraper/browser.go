package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// BrowserFetcher renders pages in a headless browser driven by rod. It is
// used for sites that build their listings client side. The browser is
// launched on first use and kept until Close.
type BrowserFetcher struct {
	log logrus.FieldLogger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowserFetcher creates a fetcher. No browser is started yet.
func NewBrowserFetcher(logger logrus.FieldLogger) *BrowserFetcher {
	return &BrowserFetcher{
		log: logger.WithField("component", "browser_fetcher"),
	}
}

func (f *BrowserFetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		return f.browser, nil
	}

	path, exists := launcher.LookPath()
	if !exists {
		f.log.Error("Cannot find browser executable for rod")
		return nil, errors.New("rod browser dependency not found")
	}
	u, err := launcher.New().Bin(path).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		f.log.WithError(err).Error("Failed to connect to rod browser")
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	f.log.Info("Rod browser instance started")
	f.browser = browser
	return browser, nil
}

// Fetch implements Fetcher.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	log := f.log.WithField("url", url)

	browser, err := f.connect()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		log.WithError(err).Error("Failed to create rod page")
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			log.WithError(closeErr).Warn("Error closing rod page")
		}
	}()

	pageCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	page = page.Context(pageCtx)

	if err := page.WaitLoad(); err != nil {
		if errors.Is(pageCtx.Err(), context.DeadlineExceeded) {
			log.WithError(pageCtx.Err()).Warn("Page load timed out")
			return nil, fmt.Errorf("loading %s timed out: %w", url, pageCtx.Err())
		}
		log.WithError(err).Error("Failed to wait for page load")
		return nil, fmt.Errorf("failed waiting for page load: %w", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read page html: %w", err)
	}
	log.Debug("Page rendered")
	return []byte(html), nil
}

// Close shuts the browser down if it was started.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil
	}
	f.log.Info("Closing rod browser instance")
	err := f.browser.Close()
	f.browser = nil
	return err
}
