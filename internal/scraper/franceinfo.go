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

// FranceInfoListingURL is the section page whose cards are followed.
const FranceInfoListingURL = "https://www.franceinfo.fr/europe/"

const franceInfoCardSelector = "a.card-article-m__link, a.card-article-majeure__link"

// FranceInfo scrapes a section of franceinfo.fr. Titles are only known after
// the article page is fetched.
type FranceInfo struct {
	listingURL string
	fetcher    Fetcher
	opts       Options
	log        logrus.FieldLogger
	now        func() time.Time
}

// NewFranceInfo creates a scraper reading listingURL, FranceInfoListingURL
// when empty.
func NewFranceInfo(listingURL string, fetcher Fetcher, opts Options, logger logrus.FieldLogger) *FranceInfo {
	if listingURL == "" {
		listingURL = FranceInfoListingURL
	}
	return &FranceInfo{
		listingURL: listingURL,
		fetcher:    fetcher,
		opts:       opts,
		log:        logger.WithFields(logrus.Fields{"component": "scraper", "source": domain.SourceFranceInfo}),
		now:        time.Now,
	}
}

// Name implements Source.
func (s *FranceInfo) Name() domain.Source { return domain.SourceFranceInfo }

// links returns the unique absolute article URLs of the listing page, in
// page order.
func (s *FranceInfo) links(ctx context.Context) ([]string, error) {
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

	var out []string
	dup := map[string]struct{}{}
	doc.Find(franceInfoCardSelector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		u := resolve(base, href)
		if _, seen := dup[u]; seen || u == "" {
			return
		}
		dup[u] = struct{}{}
		out = append(out, u)
	})
	return out, nil
}

type franceInfoPage struct {
	title   string
	content string
	date    string
}

func (s *FranceInfo) article(ctx context.Context, articleURL string) (franceInfoPage, error) {
	body, err := s.fetcher.Fetch(ctx, articleURL, s.opts.ArticleTimeout)
	if err != nil {
		return franceInfoPage{}, err
	}
	doc, err := parseHTML(body)
	if err != nil {
		return franceInfoPage{}, err
	}

	page := franceInfoPage{
		title: strings.TrimSpace(doc.Find("h1").First().Text()),
	}

	var blocks []string
	doc.Find("div.c-body").Each(func(_ int, b *goquery.Selection) {
		if text := strings.Join(strings.Fields(b.Text()), " "); text != "" {
			blocks = append(blocks, text)
		}
	})
	page.content = strings.Join(blocks, "\n")
	if page.content == "" {
		page.content = longParagraphs(doc.Find("p"))
	}
	if page.content == "" {
		page.content = readableText(body, articleURL)
	}

	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		page.date = validDate(dt)
	}
	return page, nil
}

// Scrape implements Source.
func (s *FranceInfo) Scrape(ctx context.Context, seen *Seen) ([]domain.Article, error) {
	links, err := s.links(ctx)
	if err != nil {
		return nil, fmt.Errorf("france info listing: %w", err)
	}

	required := tags.RequiredTag(domain.SourceFranceInfo)
	var out []domain.Article
	fetched := 0
	for _, link := range links {
		if seen.HasURL(link) {
			continue
		}
		if fetched > 0 {
			if err := pause(ctx, s.opts.RequestDelay); err != nil {
				return out, err
			}
		}
		fetched++

		log := s.log.WithField("url", link)
		page, err := s.article(ctx, link)
		if err != nil {
			log.WithError(err).Warn("Failed to fetch article")
			continue
		}
		if page.title == "" || page.content == "" || seen.HasTitle(page.title) {
			log.WithField("title", page.title).Debug("Article skipped")
			continue
		}

		out = append(out, domain.Article{
			Title:       page.title,
			URL:         link,
			Content:     page.content,
			Tags:        []string{required},
			Source:      domain.SourceFranceInfo,
			ScrapedDate: s.now().Format(domain.ScrapedDateLayout),
			Date:        page.date,
		})
		seen.Add(page.title, link)
	}

	s.log.WithFields(logrus.Fields{"listed": len(links), "new": len(out)}).Info("France Info scrape finished")
	return out, nil
}
