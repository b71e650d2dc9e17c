package googlebooks

import (
	"regexp"
	"slices"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/moraes/isbn"
	"gorm.io/datatypes"

	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/utils"
)

// trendingTagThreshold: a volume with more booktok tags than this is trending.
const trendingTagThreshold = 2

var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// MapVolume converts a provider volume into a catalog book.
func MapVolume(v Volume) models.Book {
	info := v.VolumeInfo
	providerID := v.ID

	authors := nonBlank(info.Authors)
	if len(authors) == 0 {
		authors = []string{models.UnknownAuthor}
	}

	genres, tags := mapGenres(info.Categories, info.Title+" "+info.Description)

	language := info.Language
	if language == "" {
		language = "en"
	}

	book := models.Book{
		ID:            models.BookIDForProvider(providerID),
		ProviderID:    &providerID,
		Slug:          utils.Slugify(info.Title, strings.Join(authors, " ")),
		Title:         strings.TrimSpace(info.Title),
		Authors:       datatypes.JSONSlice[string](authors),
		Description:   optional(htmlToMarkdown(info.Description)),
		CoverURL:      optional(coverURL(info.ImageLinks)),
		PublishedDate: parsePublishedDate(info.PublishedDate),
		Genres:        datatypes.JSONSlice[string](genres),
		BooktokTags:   datatypes.JSONSlice[string](tags),
		AverageRating: info.AverageRating,
		RatingsCount:  info.RatingsCount,
		Language:      language,
		PreviewLink:   optional(info.PreviewLink),
		IsTrending:    len(tags) > trendingTagThreshold,
		SearchText:    utils.BookSearchText(info.Title, authors),
	}
	if info.PageCount > 0 {
		pages := info.PageCount
		book.PageCount = &pages
	}
	book.ISBN10, book.ISBN13 = mapISBNs(info.IndustryIdentifiers)
	return book
}

// mapISBNs keeps identifiers with a valid check digit and derives the
// ISBN-13 from the ISBN-10 when the provider only sent the short form.
func mapISBNs(ids []IndustryIdentifier) (isbn10, isbn13 *string) {
	for _, id := range ids {
		code := strings.ReplaceAll(strings.TrimSpace(id.Identifier), "-", "")
		switch id.Type {
		case "ISBN_13":
			if isbn13 == nil && isbn.Validate13(code) {
				isbn13 = optional(code)
			}
		case "ISBN_10":
			if isbn10 == nil && isbn.Validate10(code) {
				isbn10 = optional(code)
			}
		}
	}
	if isbn13 == nil && isbn10 != nil {
		if code, err := isbn.To13(*isbn10); err == nil {
			isbn13 = optional(code)
		}
	}
	return isbn10, isbn13
}

// mapGenres maps provider categories to catalog genres and derives booktok
// tags from the categories and the title/description text.
func mapGenres(categories []string, text string) (genres, tags []string) {
	genres = []string{}
	tags = []string{}

	for _, category := range categories {
		lower := strings.ToLower(category)

		if strings.Contains(lower, "romance") {
			genres = append(genres, "Romance")
			if strings.Contains(lower, "historical") {
				tags = append(tags, "historical-romance")
			}
			if strings.Contains(lower, "contemporary") {
				tags = append(tags, "contemporary-romance")
			}
			tags = append(tags, "love-story", "romantic")
		}
		if strings.Contains(lower, "fantasy") {
			genres = append(genres, "Fantasy")
			if strings.Contains(lower, "urban") {
				tags = append(tags, "urban-fantasy")
			}
			if strings.Contains(lower, "epic") {
				tags = append(tags, "epic-fantasy")
			}
			tags = append(tags, "magic", "fantasy-world")
		}
		if strings.Contains(lower, "young adult") {
			genres = append(genres, "Young Adult")
			tags = append(tags, "ya", "booktok")
		}
		if strings.Contains(lower, "science fiction") {
			genres = append(genres, "Science Fiction")
			tags = append(tags, "sci-fi")
		}
		if strings.TrimSpace(category) != "" {
			genres = append(genres, category)
		}
	}

	lower := strings.ToLower(text)
	for _, rule := range textTagRules {
		for _, needle := range rule.needles {
			if strings.Contains(lower, needle) {
				tags = append(tags, rule.tags...)
				break
			}
		}
	}

	return dedupe(genres), dedupe(tags)
}

var textTagRules = []struct {
	needles []string
	tags    []string
}{
	{[]string{"dragon"}, []string{"dragons", "dragon-riders"}},
	{[]string{"vampire"}, []string{"vampires", "paranormal"}},
	{[]string{"enemies to lovers", "enemy"}, []string{"enemies-to-lovers"}},
	{[]string{"fake dating", "fake relationship"}, []string{"fake-dating"}},
	{[]string{"second chance"}, []string{"second-chance"}},
	{[]string{"love triangle"}, []string{"love-triangle"}},
	{[]string{"spicy", "steamy"}, []string{"spicy", "steamy"}},
	{[]string{"fae", "faerie"}, []string{"fae", "faerie"}},
}

func coverURL(links *ImageLinks) string {
	if links == nil {
		return ""
	}
	u := links.Thumbnail
	if u == "" {
		u = links.SmallThumbnail
	}
	if strings.HasPrefix(u, "http://") {
		u = "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

var publishedLayouts = []string{"2006-01-02", "2006-01", "2006"}

func parsePublishedDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// htmlToMarkdown converts HTML descriptions; plain text is returned as is.
func htmlToMarkdown(s string) string {
	if s == "" || !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return s
	}
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
