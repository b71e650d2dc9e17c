package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSearch(t *testing.T) {
	assert.Equal(t, "charlotte bronte", NormalizeSearch("  Charlotte Brontë "))
	assert.Equal(t, "fourth wing", NormalizeSearch("FOURTH Wing"))
}

func TestBookSearchText(t *testing.T) {
	got := BookSearchText("Jane Eyre", []string{"Charlotte Brontë", "Anon"})
	assert.Equal(t, "jane eyre\ncharlotte bronte, anon", got)
}

func TestFoldEqual(t *testing.T) {
	assert.True(t, FoldEqual("Romance", "romance"))
	assert.True(t, FoldEqual("Café", "cafe"))
	assert.False(t, FoldEqual("Romance", "Fantasy"))
}

func TestCanonicalGenres(t *testing.T) {
	got := CanonicalGenres([]string{" young  adult", "FANTASY", "", "Young Adult"})
	assert.Equal(t, []string{"Young Adult", "Fantasy"}, got)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "fourth-wing-rebecca-yarros", Slugify("Fourth Wing", "Rebecca Yarros"))
}
