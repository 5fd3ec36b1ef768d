package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("générative", "générative"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.InDelta(t, 0.9, Similarity("génerative", "générative"), 1e-9)
	assert.InDelta(t, 0.0, Similarity("abc", "xyz"), 1e-9)
	assert.Equal(t, Similarity("kitten", "sitting"), Similarity("sitting", "kitten"))
}

func TestMatchesSearch(t *testing.T) {
	const title = "Intelligence Artificielle générative"

	tests := []struct {
		name   string
		title  string
		search string
		want   bool
	}{
		{"empty title", "", "ia", false},
		{"empty search", title, "", false},
		{"whole substring", title, "ARTIFICIELLE GÉN", true},
		{"word substring", title, "artif intell", true},
		{"misspelled word within threshold", title, "intelligence génerative", true},
		{"short word without substring", title, "IA génerative", false},
		{"one word missing", title, "intelligence quantique", false},
		{"too far apart", title, "generation", false},
		{"dissimilar words", "les chats", "chut", false},
		{"short words never fuzzy", "les chats", "cht", false},
		{"misspelled long word", "les chats", "chots", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesSearch(tt.title, tt.search))
		})
	}
}
