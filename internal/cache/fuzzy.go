package cache

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// similarityThreshold is the minimum Similarity for two words to be
// considered the same word misspelled.
const similarityThreshold = 0.8

// minFuzzyWordLength is the length a word must exceed before edit-distance
// matching applies to it.
const minFuzzyWordLength = 3

// Similarity returns 1 - distance/len(longer) for the rune-level Levenshtein
// distance between a and b. Identical strings score 1.0 and two empty
// strings are considered identical.
func Similarity(a, b string) float64 {
	longer := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longer {
		longer = n
	}
	if longer == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(longer-dist) / float64(longer)
}

// MatchesSearch reports whether title matches the search term. A
// case-insensitive substring match wins outright. Otherwise every search word
// must match some title word, either as a substring of it or, for words
// longer than three characters, with a Similarity of at least 0.8.
func MatchesSearch(title, search string) bool {
	if title == "" || search == "" {
		return false
	}
	title = strings.ToLower(title)
	search = strings.ToLower(search)
	if strings.Contains(title, search) {
		return true
	}

	titleWords := strings.Fields(title)
	searchWords := strings.Fields(search)
	if len(searchWords) == 0 {
		return false
	}
	for _, sw := range searchWords {
		if !matchesAnyWord(sw, titleWords) {
			return false
		}
	}
	return true
}

func matchesAnyWord(word string, candidates []string) bool {
	wordLen := utf8.RuneCountInString(word)
	for _, c := range candidates {
		if strings.Contains(c, word) {
			return true
		}
		if wordLen > minFuzzyWordLength &&
			utf8.RuneCountInString(c) > minFuzzyWordLength &&
			Similarity(word, c) >= similarityThreshold {
			return true
		}
	}
	return false
}
