package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Book is a catalog record. Provider-sourced books carry ProviderID and get
// an ID derived from it, so resolving the same volume twice lands on the
// same row.
type Book struct {
	ID               string                      `gorm:"primaryKey;size:36" json:"id"`
	ProviderID       *string                     `gorm:"uniqueIndex;size:64" json:"google_books_id,omitempty"`
	Slug             string                      `gorm:"size:255;index" json:"slug"`
	Title            string                      `gorm:"not null" json:"title"`
	Authors          datatypes.JSONSlice[string] `gorm:"not null" json:"authors"`
	Description      *string                     `gorm:"type:text" json:"description,omitempty"`
	CoverURL         *string                     `json:"cover_url,omitempty"`
	MirroredCoverURL *string                     `json:"mirrored_cover_url,omitempty"`
	PageCount        *int                        `json:"page_count,omitempty"`
	PublishedDate    *time.Time                  `json:"published_date,omitempty"`
	Genres           datatypes.JSONSlice[string] `json:"genres"`
	BooktokTags      datatypes.JSONSlice[string] `json:"booktok_tags"`
	ISBN10           *string                     `gorm:"column:isbn_10;size:16" json:"isbn_10,omitempty"`
	ISBN13           *string                     `gorm:"column:isbn_13;size:16" json:"isbn_13,omitempty"`
	AverageRating    float64                     `gorm:"not null;default:0" json:"average_rating"`
	RatingsCount     int                         `gorm:"not null;default:0" json:"ratings_count"`
	Language         string                      `gorm:"size:16" json:"language"`
	PreviewLink      *string                     `json:"preview_link,omitempty"`
	IsTrending       bool                        `gorm:"index" json:"is_trending"`

	// Lowercased, accent-free "title\nauthors" for the local fallback search.
	SearchText string `gorm:"type:text" json:"-"`

	// Failed cover mirroring runs; the worker gives up at a cap.
	CoverMirrorAttempts int `gorm:"not null;default:0" json:"-"`

	Timestamps
}

// BookIDForProvider returns the stable ID of a provider volume.
func BookIDForProvider(providerID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("googlebooks:"+providerID)).String()
}

func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		if b.ProviderID != nil && *b.ProviderID != "" {
			b.ID = BookIDForProvider(*b.ProviderID)
		} else {
			b.ID = uuid.NewString()
		}
	}
	if len(b.Authors) == 0 {
		b.Authors = datatypes.JSONSlice[string]{UnknownAuthor}
	}
	if b.Genres == nil {
		b.Genres = datatypes.JSONSlice[string]{}
	}
	if b.BooktokTags == nil {
		b.BooktokTags = datatypes.JSONSlice[string]{}
	}
	return nil
}

const UnknownAuthor = "Unknown Author"

// HasGenre reports whether the book carries genre, ignoring case.
func (b *Book) HasGenre(genre string) bool {
	for _, g := range b.Genres {
		if strings.EqualFold(g, genre) {
			return true
		}
	}
	return false
}

// ReadingStatus is the shelf a library entry sits on.
type ReadingStatus string

const (
	StatusWantToRead       ReadingStatus = "want_to_read"
	StatusCurrentlyReading ReadingStatus = "currently_reading"
	StatusCompleted        ReadingStatus = "completed"
)

func (s ReadingStatus) Valid() bool {
	switch s {
	case StatusWantToRead, StatusCurrentlyReading, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo allows only want_to_read -> currently_reading -> completed.
func (s ReadingStatus) CanTransitionTo(next ReadingStatus) bool {
	switch s {
	case StatusWantToRead:
		return next == StatusCurrentlyReading
	case StatusCurrentlyReading:
		return next == StatusCompleted
	}
	return false
}

// LibraryEntry is one book on one user's shelves.
type LibraryEntry struct {
	ID                 string        `gorm:"primaryKey;size:36" json:"id"`
	UserID             string        `gorm:"not null;size:64;uniqueIndex:idx_user_book" json:"user_id"`
	BookID             string        `gorm:"not null;size:36;uniqueIndex:idx_user_book;index" json:"book_id"`
	Status             ReadingStatus `gorm:"size:24;not null;index" json:"status"`
	CurrentPage        int           `gorm:"not null;default:0" json:"current_page"`
	TotalPages         *int          `json:"total_pages,omitempty"`
	ProgressPercentage int           `gorm:"not null;default:0" json:"progress_percentage"`
	StartDate          *time.Time    `json:"start_date,omitempty"`
	EndDate            *time.Time    `gorm:"index" json:"end_date,omitempty"`
	PersonalRating     *int          `json:"personal_rating,omitempty"`
	PersonalReview     *string       `gorm:"type:text" json:"personal_review,omitempty"`
	Notes              *string       `gorm:"type:text" json:"notes,omitempty"`
	ReadingTimeMinutes int           `gorm:"not null;default:0" json:"reading_time_minutes"`

	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`

	Timestamps
}

func (LibraryEntry) TableName() string { return "user_books" }

func (e *LibraryEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// ProgressPercentage is round(current/total*100) clamped to [0,100]; 0 when
// the total is unknown.
func ProgressPercentage(current int, total *int) int {
	if total == nil || *total <= 0 {
		return 0
	}
	return clampPercent(int((float64(current)/float64(*total))*100 + 0.5))
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ReadingSession records one progress update. It feeds the pages
// leaderboard and the streak.
type ReadingSession struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	UserID         string    `gorm:"not null;size:64;index" json:"user_id"`
	BookID         string    `gorm:"not null;size:36;index" json:"book_id"`
	LibraryEntryID string    `gorm:"not null;size:36" json:"library_entry_id"`
	PagesRead      int       `gorm:"not null;default:0" json:"pages_read"`
	Minutes        int       `gorm:"not null;default:0" json:"minutes"`
	RecordedAt     time.Time `gorm:"not null;index" json:"recorded_at"`
}

func (s *ReadingSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
