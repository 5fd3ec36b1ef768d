package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"newsreader/internal/domain"
	"newsreader/internal/tags"
)

// TechCrunchListingURL is the AI category page.
const TechCrunchListingURL = "https://techcrunch.com/category/artificial-intelligence/"

// TechCrunch scrapes the AI category of techcrunch.com.
type TechCrunch struct {
	listingURL string
	fetcher    Fetcher
	opts       Options
	log        logrus.FieldLogger
	now        func() time.Time
}

// NewTechCrunch creates a scraper reading listingURL, TechCrunchListingURL
// when empty.
func NewTechCrunch(listingURL string, fetcher Fetcher, opts Options, logger logrus.FieldLogger) *TechCrunch {
	if listingURL == "" {
		listingURL = TechCrunchListingURL
	}
	return &TechCrunch{
		listingURL: listingURL,
		fetcher:    fetcher,
		opts:       opts,
		log:        logger.WithFields(logrus.Fields{"component": "scraper", "source": domain.SourceTechCrunch}),
		now:        time.Now,
	}
}

// Name implements Source.
func (s *TechCrunch) Name() domain.Source { return domain.SourceTechCrunch }

type listedArticle struct {
	title string
	url   string
}

// listing returns the titles and links of the category page.
func (s *TechCrunch) listing(ctx context.Context) ([]listedArticle, error) {
	body, err := s.fetcher.Fetch(ctx, s.listingURL, s.opts.ListingTimeout)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(body)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(s.listingURL)
	if err != nil {
		return nil, fmt.Errorf("parse listing url: %w", err)
	}

	var out []listedArticle
	doc.Find(".loop-card__title").Each(func(_ int, el *goquery.Selection) {
		href, ok := el.Find("a").First().Attr("href")
		title := strings.TrimSpace(el.Text())
		if !ok || title == "" || strings.TrimSpace(href) == "" {
			return
		}
		out = append(out, listedArticle{title: title, url: resolve(base, href)})
	})
	if len(out) == 0 {
		s.log.Warn("No article titles found on listing page")
	}
	return out, nil
}

// content returns the body text of an article page.
func (s *TechCrunch) content(ctx context.Context, articleURL string) (string, error) {
	body, err := s.fetcher.Fetch(ctx, articleURL, s.opts.ArticleTimeout)
	if err != nil {
		return "", err
	}
	doc, err := parseHTML(body)
	if err != nil {
		return "", err
	}

	text := longParagraphs(doc.Find("p.wp-block-paragraph"))
	if text == "" {
		text = longParagraphs(doc.Find("p"))
	}
	if text == "" {
		text = readableText(body, articleURL)
	}
	return text, nil
}

// Scrape implements Source.
func (s *TechCrunch) Scrape(ctx context.Context, seen *Seen) ([]domain.Article, error) {
	listed, err := s.listing(ctx)
	if err != nil {
		return nil, fmt.Errorf("techcrunch listing: %w", err)
	}

	required := tags.RequiredTag(domain.SourceTechCrunch)
	var out []domain.Article
	fetched := 0
	for _, l := range listed {
		if seen.HasTitle(l.title) || seen.HasURL(l.url) {
			continue
		}
		if fetched > 0 {
			if err := pause(ctx, s.opts.RequestDelay); err != nil {
				return out, err
			}
		}
		fetched++

		log := s.log.WithField("url", l.url)
		text, err := s.content(ctx, l.url)
		if err != nil {
			log.WithError(err).Warn("Failed to fetch article")
			continue
		}
		if text == "" {
			log.Warn("No substantial content found for article")
			continue
		}

		out = append(out, domain.Article{
			Title:       l.title,
			URL:         l.url,
			Content:     text,
			Tags:        []string{required},
			Source:      domain.SourceTechCrunch,
			ScrapedDate: s.now().Format(domain.ScrapedDateLayout),
			Date:        dateFromURL(l.url),
		})
		seen.Add(l.title, l.url)
		log.WithField("title", l.title).Debug("Scraped new article")
	}

	s.log.WithFields(logrus.Fields{"listed": len(listed), "new": len(out)}).Info("TechCrunch scrape finished")
	return out, nil
}
