// Package query holds stateless filters over an article snapshot.
package query

import (
	"sort"

	"newsreader/internal/domain"
	"newsreader/internal/tags"
)

// FilterByTags keeps articles carrying at least one of wanted. An empty
// wanted list returns articles unchanged.
func FilterByTags(articles []domain.Article, wanted []string) []domain.Article {
	if len(wanted) == 0 {
		return articles
	}
	set := make(map[string]struct{}, len(wanted))
	for _, t := range wanted {
		set[t] = struct{}{}
	}

	out := []domain.Article{}
	for _, a := range articles {
		for _, t := range a.Tags {
			if _, ok := set[t]; ok {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// FilterByRating keeps rated articles whose rating is at least minRating.
func FilterByRating(articles []domain.Article, minRating int) []domain.Article {
	out := []domain.Article{}
	for _, a := range articles {
		if a.Rating != nil && *a.Rating >= minRating {
			out = append(out, a)
		}
	}
	return out
}

// Unpretreated lists the articles still waiting for AI processing. IDs are
// positions in articles.
func Unpretreated(articles []domain.Article) []domain.UnpretreatedArticle {
	out := []domain.UnpretreatedArticle{}
	for i, a := range articles {
		if a.HasBeenPretreat {
			continue
		}
		out = append(out, domain.UnpretreatedArticle{ID: i, Title: a.Title, URL: a.URL})
	}
	return out
}

// AllTags returns the sorted union of every article's tags and basic.
func AllTags(articles []domain.Article, basic []string) []string {
	set := map[string]struct{}{}
	for _, a := range articles {
		for _, t := range a.Tags {
			if t != "" {
				set[t] = struct{}{}
			}
		}
	}
	for _, t := range basic {
		if t != "" {
			set[t] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// CategoryTags is a category restricted to the tags actually in use.
type CategoryTags struct {
	MainTag string   `json:"main_tag"`
	SubTags []string `json:"sub_tags"`
	HasMain bool     `json:"has_main"`
}

// Organized splits the tags in use into the known categories, the basic
// vocabulary and everything else.
type Organized struct {
	Categories map[string]CategoryTags `json:"categories"`
	BasicTags  []string                `json:"basic_tags"`
	OtherTags  []string                `json:"other_tags"`
}

// Categories organizes inUse against the tag vocabulary. A category is
// listed only when its main tag or one of its sub tags is in use.
func Categories(inUse []string) Organized {
	used := make(map[string]struct{}, len(inUse))
	for _, t := range inUse {
		used[t] = struct{}{}
	}
	has := func(t string) bool {
		_, ok := used[t]
		return ok
	}

	org := Organized{
		Categories: map[string]CategoryTags{},
		BasicTags:  []string{},
		OtherTags:  []string{},
	}
	for _, c := range tags.Categories {
		subs := []string{}
		for _, s := range c.SubTags {
			if has(s) {
				subs = append(subs, s)
			}
		}
		if has(c.MainTag) || len(subs) > 0 {
			org.Categories[c.Key] = CategoryTags{MainTag: c.MainTag, SubTags: subs, HasMain: has(c.MainTag)}
		}
	}
	for _, b := range tags.BasicTags {
		if has(b) {
			org.BasicTags = append(org.BasicTags, b)
		}
	}
	for _, t := range inUse {
		if !tags.Defined(t) {
			org.OtherTags = append(org.OtherTags, t)
		}
	}
	return org
}
