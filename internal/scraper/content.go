package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// minParagraphLength filters out captions, bylines and other short blocks.
const minParagraphLength = 20

func parseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// longParagraphs joins the trimmed text of sel's elements that are longer
// than minParagraphLength characters, one per line.
func longParagraphs(sel *goquery.Selection) string {
	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if utf8.RuneCountInString(text) > minParagraphLength {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}

// readableText extracts the main text of a page with the readability
// algorithm. It is the last resort when the site selectors match nothing.
func readableText(body []byte, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

// resolve makes href absolute against base.
func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

var urlDatePattern = regexp.MustCompile(`/(\d{4})/(\d{2})/(\d{2})/`)

// dateFromURL extracts a YYYY-MM-DD date from paths like /2024/05/17/slug/.
func dateFromURL(u string) string {
	m := urlDatePattern.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return validDate(m[1] + "-" + m[2] + "-" + m[3])
}

// validDate returns the YYYY-MM-DD prefix of s when it is a real date.
func validDate(s string) string {
	if len(s) < 10 {
		return ""
	}
	d := s[:10]
	if _, err := time.Parse("2006-01-02", d); err != nil {
		return ""
	}
	return d
}
