package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"newsreader/internal/domain"
)

const (
	feedSize           = 50
	feedDescriptionLen = 500
)

// GenerateRSSFeed renders the most recently stored articles as RSS 2.0.
func GenerateRSSFeed(articles []domain.Article, cfg FeedConfig, now time.Time) (string, error) {
	feed := &feeds.Feed{
		Title:       cfg.Title,
		Link:        &feeds.Link{Href: cfg.Link},
		Description: cfg.Description,
		Created:     now,
	}

	latest := append([]domain.Article(nil), articles...)
	sort.SliceStable(latest, func(i, j int) bool { return latest[i].ID > latest[j].ID })
	if len(latest) > feedSize {
		latest = latest[:feedSize]
	}

	feed.Items = make([]*feeds.Item, 0, len(latest))
	for _, a := range latest {
		item := &feeds.Item{
			Title:       a.Title,
			Link:        &feeds.Link{Href: a.URL},
			Id:          itemID(a, cfg.Link),
			Description: truncate(a.Content, feedDescriptionLen),
			Created:     publishedAt(a, now),
		}
		if a.Source != "" {
			item.Author = &feeds.Author{Name: string(a.Source)}
		}
		feed.Items = append(feed.Items, item)
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("failed to generate RSS: %w", err)
	}
	return rss, nil
}

func itemID(a domain.Article, link string) string {
	if a.UID != "" {
		return "urn:uuid:" + a.UID
	}
	return fmt.Sprintf("%s/api/article/%d", strings.TrimRight(link, "/"), a.ID)
}

// publishedAt prefers the publication date, then the scrape time.
func publishedAt(a domain.Article, fallback time.Time) time.Time {
	if t, err := time.Parse(time.DateOnly, a.Date); err == nil {
		return t
	}
	if t, err := time.Parse(domain.ScrapedDateLayout, a.ScrapedDate); err == nil {
		return t
	}
	return fallback
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func (s *Server) handleRSS(w http.ResponseWriter, r *http.Request) {
	rss, err := GenerateRSSFeed(s.deps.Cache.Articles(r.Context(), false), s.cfg.Feed, time.Now())
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(rss))
}
