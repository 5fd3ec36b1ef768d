package tags

import (
	"strings"

	"newsreader/internal/domain"
)

// Category groups a main tag with its sub tags.
type Category struct {
	Key     string
	MainTag string
	SubTags []string
}

// Categories is the hierarchical tag vocabulary, in display order.
var Categories = []Category{
	{
		Key:     "ia",
		MainTag: "ia",
		SubTags: []string{
			"découverte", "technologie", "innovation", "économie", "finance",
			"entreprise", "juridique", "santé", "éducation", "productivité",
		},
	},
	{
		Key:     "politique",
		MainTag: "politique",
		SubTags: []string{
			"elections", "gouvernement", "parlement", "union européenne",
			"relations internationales", "économie politique", "réformes",
			"débats publics", "institutions", "politique sociale",
		},
	},
}

// BasicTags are merged into every tag listing. Empty by default.
var BasicTags []string

// sourceCategory maps each known source to the category it must be tagged with.
var sourceCategory = map[domain.Source]string{
	domain.SourceTechCrunch: "ia",
	domain.SourceFranceInfo: "politique",
}

func category(key string) (Category, bool) {
	for _, c := range Categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

// RequiredTag returns the tag every article from source must carry, or ""
// for sources without one.
func RequiredTag(source domain.Source) string {
	key, ok := sourceCategory[source]
	if !ok {
		return ""
	}
	c, _ := category(key)
	return c.MainTag
}

// ForSource returns the vocabulary offered to the AI for articles of source.
// Unknown sources get every category.
func ForSource(source domain.Source) []string {
	var out []string
	if key, ok := sourceCategory[source]; ok {
		c, _ := category(key)
		out = append(out, c.MainTag)
		out = append(out, c.SubTags...)
	} else {
		for _, c := range Categories {
			out = append(out, c.MainTag)
			out = append(out, c.SubTags...)
		}
	}
	return append(out, BasicTags...)
}

// Defined reports whether tag belongs to a category or to BasicTags.
func Defined(tag string) bool {
	for _, c := range Categories {
		if c.MainTag == tag {
			return true
		}
		for _, s := range c.SubTags {
			if s == tag {
				return true
			}
		}
	}
	for _, b := range BasicTags {
		if b == tag {
			return true
		}
	}
	return false
}

// PromptList renders tags as "[a, b, c]" for prompt templates.
func PromptList(list []string) string {
	if len(list) == 0 {
		return "[No tags available]"
	}
	return "[" + strings.Join(list, ", ") + "]"
}
