package scraper

import (
	"context"
	"time"

	"newsreader/internal/domain"
)

// Fetcher retrieves the HTML of a page.
type Fetcher interface {
	// Fetch returns the document at url. The call is abandoned after timeout.
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// Source scrapes one news site.
type Source interface {
	// Name identifies the site the articles come from.
	Name() domain.Source

	// Scrape returns the articles listed on the site whose title and URL are
	// not in seen. Returned articles are added to seen.
	Scrape(ctx context.Context, seen *Seen) ([]domain.Article, error)
}

// Seen tracks titles and URLs already stored or scraped during a run.
type Seen struct {
	titles map[string]struct{}
	urls   map[string]struct{}
}

// NewSeen indexes the titles and URLs of articles.
func NewSeen(articles []domain.Article) *Seen {
	s := &Seen{
		titles: make(map[string]struct{}, len(articles)),
		urls:   make(map[string]struct{}, len(articles)),
	}
	for _, a := range articles {
		s.Add(a.Title, a.URL)
	}
	return s
}

// Add records a title and URL. Empty values are ignored.
func (s *Seen) Add(title, url string) {
	if title != "" {
		s.titles[title] = struct{}{}
	}
	if url != "" {
		s.urls[url] = struct{}{}
	}
}

// HasTitle reports whether title was seen.
func (s *Seen) HasTitle(title string) bool {
	_, ok := s.titles[title]
	return ok
}

// HasURL reports whether url was seen.
func (s *Seen) HasURL(url string) bool {
	_, ok := s.urls[url]
	return ok
}

// Options tunes the network behavior shared by every source.
type Options struct {
	ListingTimeout time.Duration
	ArticleTimeout time.Duration
	// RequestDelay is the pause between two article fetches.
	RequestDelay time.Duration
}

// DefaultOptions returns the timeouts used against the real sites.
func DefaultOptions() Options {
	return Options{
		ListingTimeout: 10 * time.Second,
		ArticleTimeout: 15 * time.Second,
		RequestDelay:   time.Second,
	}
}

// pause waits d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
