package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsreader/internal/domain"
)

func rating(r int) *int { return &r }

func fixture() []domain.Article {
	return []domain.Article{
		{ID: 0, Title: "a", Tags: []string{"ia", "santé"}, Rating: rating(5), HasBeenPretreat: true},
		{ID: 1, Title: "b", Tags: []string{"politique"}, Rating: rating(3)},
		{ID: 2, Title: "c", Tags: []string{}, Rating: nil},
		{ID: 3, Title: "d", Tags: []string{"robotique", "ia"}, Rating: rating(4), HasBeenPretreat: true},
		{ID: 4, Title: "e", Tags: []string{"elections"}, Rating: rating(1)},
	}
}

func titles(articles []domain.Article) []string {
	out := []string{}
	for _, a := range articles {
		out = append(out, a.Title)
	}
	return out
}

func TestFilterByTags(t *testing.T) {
	all := fixture()

	assert.Equal(t, all, FilterByTags(all, nil), "no tags returns input")
	assert.Equal(t, []string{"a", "d"}, titles(FilterByTags(all, []string{"ia"})))
	assert.Equal(t, []string{"a", "b", "d"}, titles(FilterByTags(all, []string{"ia", "politique"})), "OR semantics")
	assert.Empty(t, FilterByTags(all, []string{"sport"}))
}

func TestFilterByRating(t *testing.T) {
	all := fixture()
	assert.Equal(t, []string{"a", "b", "d"}, titles(FilterByRating(all, 3)))
	assert.Equal(t, []string{"a", "d"}, titles(FilterByRating(all, 4)))
	assert.Len(t, FilterByRating(all, 0), 4, "unrated articles never match")
}

func TestFilterByRating_Monotonic(t *testing.T) {
	all := fixture()
	for floor := 0; floor <= 5; floor++ {
		wider := titles(FilterByRating(all, floor))
		narrower := titles(FilterByRating(all, floor+1))
		assert.Subset(t, wider, narrower, "min %d", floor)
	}
}

func TestUnpretreated(t *testing.T) {
	got := Unpretreated(fixture())
	require.Len(t, got, 3)
	assert.Equal(t, domain.UnpretreatedArticle{ID: 1, Title: "b"}, got[0])
	assert.Equal(t, 2, got[1].ID)
	assert.Equal(t, 4, got[2].ID)
}

func TestAllTags(t *testing.T) {
	got := AllTags(fixture(), []string{"à la une", "ia"})
	assert.Equal(t, []string{"elections", "ia", "politique", "robotique", "santé", "à la une"}, got)
	assert.NotNil(t, AllTags(nil, nil))
}

func TestCategories(t *testing.T) {
	org := Categories([]string{"elections", "ia", "robotique", "santé"})

	require.Contains(t, org.Categories, "ia")
	assert.Equal(t, CategoryTags{MainTag: "ia", SubTags: []string{"santé"}, HasMain: true}, org.Categories["ia"])

	require.Contains(t, org.Categories, "politique")
	assert.False(t, org.Categories["politique"].HasMain)
	assert.Equal(t, []string{"elections"}, org.Categories["politique"].SubTags)

	assert.Equal(t, []string{"robotique"}, org.OtherTags)
	assert.Empty(t, org.BasicTags)
}
