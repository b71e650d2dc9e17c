package utils

import (
	"strings"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeSearch folds case and strips accents so "Brontë" matches "bronte".
func NormalizeSearch(s string) string {
	return strings.TrimSpace(cases.Fold().String(unidecode.Unidecode(s)))
}

// BookSearchText builds the stored text the local catalog search matches on.
func BookSearchText(title string, authors []string) string {
	return NormalizeSearch(title) + "\n" + NormalizeSearch(strings.Join(authors, ", "))
}

// FoldEqual compares two labels (genres, hashtags) ignoring case and accents.
func FoldEqual(a, b string) bool {
	return NormalizeSearch(a) == NormalizeSearch(b)
}

// CanonicalGenre title-cases a user supplied genre: " young adult " -> "Young Adult".
func CanonicalGenre(g string) string {
	g = strings.Join(strings.Fields(g), " ")
	if g == "" {
		return ""
	}
	return cases.Title(language.English).String(cases.Lower(language.English).String(g))
}

// CanonicalGenres applies CanonicalGenre and drops blanks and duplicates.
func CanonicalGenres(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, g := range in {
		c := CanonicalGenre(g)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Slugify joins parts into a URL slug.
func Slugify(parts ...string) string {
	return slug.Make(strings.Join(parts, " "))
}
