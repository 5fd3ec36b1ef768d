// Package cache holds a time-bounded in-memory view of the article
// collection.
package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"newsreader/internal/domain"
)

// DefaultDuration is how long a loaded collection stays valid.
const DefaultDuration = 60 * time.Second

// Sort orders accepted by PaginatedTitles.
const (
	SortByDate  = "date"
	SortByOrder = "order"
)

// missingDate sorts undated articles after every dated one.
const missingDate = "1900-01-01"

// Loader reads the persisted collection. Errors are reported, not hidden, so
// the cache can tell a failed refresh from an empty store.
type Loader interface {
	Read(ctx context.Context) ([]domain.Article, error)
}

// snapshot is an immutable loaded collection. It is replaced, never mutated.
type snapshot struct {
	articles []domain.Article
	loadedAt time.Time
	stale    bool
}

// ArticleCache serves reads from the latest snapshot and reloads it from the
// Loader once it is older than the configured duration. Concurrent readers
// never block on a refresh in progress.
type ArticleCache struct {
	loader   Loader
	duration time.Duration
	log      logrus.FieldLogger
	now      func() time.Time

	current atomic.Pointer[snapshot]
	// refreshMu ensures a single reload runs at a time.
	refreshMu sync.Mutex
}

// Option configures an ArticleCache.
type Option func(*ArticleCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *ArticleCache) { c.now = now }
}

// New creates an empty cache over loader. A non-positive duration selects
// DefaultDuration.
func New(loader Loader, duration time.Duration, logger logrus.FieldLogger, opts ...Option) *ArticleCache {
	if duration <= 0 {
		duration = DefaultDuration
	}
	c := &ArticleCache{
		loader:   loader,
		duration: duration,
		log:      logger.WithField("component", "article_cache"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ArticleCache) valid(s *snapshot, now time.Time) bool {
	return s != nil && !s.stale && len(s.articles) > 0 && now.Sub(s.loadedAt) <= c.duration
}

// load returns the snapshot to serve, reloading when needed.
func (c *ArticleCache) load(ctx context.Context, force bool) *snapshot {
	if s := c.current.Load(); !force && c.valid(s, c.now()) {
		return s
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	prev := c.current.Load()
	now := c.now()
	// Another caller may have refreshed while we waited.
	if !force && c.valid(prev, now) {
		return prev
	}

	articles, err := c.loader.Read(ctx)
	if err != nil {
		if !force && prev != nil && len(prev.articles) > 0 {
			c.log.WithError(err).Warn("Cache refresh failed, serving previous articles")
			return prev
		}
		c.log.WithError(err).Warn("Cache refresh failed, cache emptied")
		articles = []domain.Article{}
	}

	next := &snapshot{articles: articles, loadedAt: now}
	c.current.Store(next)
	c.log.WithFields(logrus.Fields{
		"article_count": len(articles),
		"forced":        force,
	}).Debug("Articles reloaded in cache")
	return next
}

// Articles returns a copy of the cached collection, reloading it when
// forceRefresh is set, the cache is empty or the snapshot has expired.
//
// A failed forced reload empties the cache. A failed expiry reload keeps
// the previous articles and leaves the timestamp untouched so the next call
// retries.
func (c *ArticleCache) Articles(ctx context.Context, forceRefresh bool) []domain.Article {
	return domain.CloneArticles(c.load(ctx, forceRefresh).articles)
}

// Invalidate marks the current snapshot expired. The articles stay in memory
// until the next access reloads them.
func (c *ArticleCache) Invalidate() {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	s := c.current.Load()
	if s == nil {
		return
	}
	c.current.Store(&snapshot{articles: s.articles, loadedAt: s.loadedAt, stale: true})
	c.log.Debug("Cache manually invalidated")
}

// UpdateAfterModification invalidates the cache and reloads it eagerly, so
// the read following a write is guaranteed fresh.
func (c *ArticleCache) UpdateAfterModification(ctx context.Context) {
	c.Invalidate()
	c.load(ctx, true)
}

// Count returns the number of cached articles.
func (c *ArticleCache) Count(ctx context.Context) int {
	return len(c.load(ctx, false).articles)
}

// ArticleByID returns the article at position id.
func (c *ArticleCache) ArticleByID(ctx context.Context, id int) (domain.Article, bool) {
	articles := c.load(ctx, false).articles
	if id < 0 || id >= len(articles) {
		return domain.Article{}, false
	}
	a := articles[id].Clone()
	a.ID = id
	return a, true
}

// Range describes a slice returned by Paginated.
type Range struct {
	Start    int `json:"start"`
	End      int `json:"end"`
	Total    int `json:"total"`
	Returned int `json:"returned"`
}

// Paginated returns the articles at 1-based positions start..end inclusive.
// start is clamped to at least 1 and end to the collection length.
func (c *ArticleCache) Paginated(ctx context.Context, start, end int) ([]domain.Article, Range) {
	articles := c.load(ctx, false).articles
	total := len(articles)

	if start < 1 {
		start = 1
	}
	if end > total {
		end = total
	}

	out := []domain.Article{}
	if start <= end {
		out = domain.CloneArticles(articles[start-1 : end])
	}
	return out, Range{Start: start, End: end, Total: total, Returned: len(out)}
}

// Page describes a slice returned by PaginatedTitles.
type Page struct {
	Page     int    `json:"page"`
	PerPage  int    `json:"per_page"`
	Total    int    `json:"total"`
	Returned int    `json:"returned"`
	SortBy   string `json:"sort_by"`
}

// PaginatedTitles filters articles by fuzzy title search, sorts them and
// returns the requested page as title views. Total counts the articles left
// after filtering.
func (c *ArticleCache) PaginatedTitles(ctx context.Context, page, perPage int, sortBy, search string) ([]domain.TitleView, Page) {
	articles := c.load(ctx, false).articles

	selected := make([]*domain.Article, 0, len(articles))
	for i := range articles {
		if search != "" && !MatchesSearch(articles[i].Title, search) {
			continue
		}
		selected = append(selected, &articles[i])
	}

	if sortBy == SortByDate {
		sort.SliceStable(selected, func(i, j int) bool {
			di, dj := dateKey(selected[i]), dateKey(selected[j])
			if di != dj {
				return di > dj
			}
			return selected[i].ID > selected[j].ID
		})
	}

	info := Page{Page: page, PerPage: perPage, Total: len(selected), SortBy: sortBy}

	titles := []domain.TitleView{}
	// Compare page indexes before multiplying so huge pages cannot overflow.
	if page >= 1 && perPage >= 1 && len(selected) > 0 && page-1 <= (len(selected)-1)/perPage {
		from := (page - 1) * perPage
		to := len(selected)
		if perPage < to-from {
			to = from + perPage
		}
		for _, a := range selected[from:to] {
			titles = append(titles, a.View())
		}
	}
	info.Returned = len(titles)
	return titles, info
}

func dateKey(a *domain.Article) string {
	if a.Date == "" {
		return missingDate
	}
	return a.Date
}

// Info reports the cache state for diagnostics.
type Info struct {
	Size          int        `json:"cache_size"`
	AgeSeconds    float64    `json:"cache_age_seconds"`
	Valid         bool       `json:"cache_valid"`
	DurationSecs  float64    `json:"cache_duration"`
	LastUpdatedAt *time.Time `json:"last_updated"`
}

// Info returns the current cache state without triggering a reload.
// AgeSeconds is -1 when nothing has been loaded yet.
func (c *ArticleCache) Info() Info {
	s := c.current.Load()
	now := c.now()
	info := Info{
		AgeSeconds:   -1,
		Valid:        c.valid(s, now),
		DurationSecs: c.duration.Seconds(),
	}
	if s != nil {
		info.Size = len(s.articles)
		info.AgeSeconds = now.Sub(s.loadedAt).Seconds()
		t := s.loadedAt
		info.LastUpdatedAt = &t
	}
	return info
}
