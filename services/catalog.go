package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/metrics"
	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/utils"
)

// FallbackLimit caps local catalog matches when the provider is unavailable.
const FallbackLimit = 10

// BookProvider searches an external metadata source.
type BookProvider interface {
	SearchBooks(ctx context.Context, query, genreFilter string, maxResults int) ([]models.Book, error)
}

type CatalogService struct {
	DB         *gorm.DB
	Provider   BookProvider
	MaxResults int
	Now        func() time.Time
}

func NewCatalogService(db *gorm.DB, provider BookProvider, maxResults int) *CatalogService {
	if maxResults <= 0 {
		maxResults = 20
	}
	return &CatalogService{DB: db, Provider: provider, MaxResults: maxResults, Now: utcNow}
}

// Resolve returns books for query, provider first. Provider results are
// upserted locally; on provider failure or an empty result the local catalog
// is searched instead.
func (s *CatalogService) Resolve(ctx context.Context, query, genreFilter string) ([]models.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.Validation("invalid query")
	}

	if s.Provider != nil {
		books, err := s.Provider.SearchBooks(ctx, query, strings.TrimSpace(genreFilter), s.MaxResults)
		switch {
		case err != nil:
			metrics.ProviderSearches.WithLabelValues("error").Inc()
			metrics.ExternalCallFailures.WithLabelValues("googlebooks").Inc()
			log.Printf("⚠️ [CATALOG] provider search failed for %q: %v", query, err)
		case len(books) == 0:
			metrics.ProviderSearches.WithLabelValues("empty").Inc()
		default:
			metrics.ProviderSearches.WithLabelValues("ok").Inc()
			for i := range books {
				if err := upsertBook(s.DB.WithContext(ctx), &books[i]); err != nil {
					metrics.BookUpsertFailures.Inc()
					log.Printf("❌ [CATALOG] upsert %q failed: %v", books[i].Title, err)
				}
			}
			return books, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, apperrors.Upstream("search cancelled", err)
	}
	metrics.CatalogFallbacks.Inc()
	return s.searchLocal(ctx, query)
}

func (s *CatalogService) searchLocal(ctx context.Context, query string) ([]models.Book, error) {
	pattern := "%" + escapeLike(utils.NormalizeSearch(query)) + "%"
	var books []models.Book
	err := s.DB.WithContext(ctx).
		Where("search_text LIKE ? ESCAPE '\\'", pattern).
		Limit(FallbackLimit).
		Find(&books).Error
	if err != nil {
		return nil, apperrors.Internal("failed to search catalog", err)
	}
	return books, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// upsertBook inserts b or overwrites the stored row with the same provider
// id (or id for local books). b.ID is set to the stored id on return.
func upsertBook(tx *gorm.DB, b *models.Book) error {
	if strings.TrimSpace(b.Title) == "" {
		return apperrors.Validation("book title is required")
	}
	if len(b.Authors) == 0 {
		b.Authors = []string{models.UnknownAuthor}
	}
	if b.SearchText == "" {
		b.SearchText = utils.BookSearchText(b.Title, b.Authors)
	}
	if b.Slug == "" {
		b.Slug = utils.Slugify(b.Title)
	}

	isProvider := b.ProviderID != nil && *b.ProviderID != ""
	conflict := []clause.Column{{Name: "id"}}
	if isProvider {
		conflict = []clause.Column{{Name: "provider_id"}}
		b.ID = models.BookIDForProvider(*b.ProviderID)
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: conflict,
		DoUpdates: clause.AssignmentColumns([]string{
			"slug", "title", "authors", "description", "cover_url", "page_count",
			"published_date", "genres", "booktok_tags", "isbn_10", "isbn_13",
			"average_rating", "ratings_count", "language", "preview_link",
			"is_trending", "search_text", "updated_at",
		}),
	}).Create(b).Error
	if err != nil || !isProvider {
		return err
	}

	// The conflicting row keeps its own id.
	var ids []string
	if err := tx.Model(&models.Book{}).Where("provider_id = ?", *b.ProviderID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 1 {
		b.ID = ids[0]
	}
	return nil
}

// storeClientBook saves a book supplied by a user. A provider volume already
// in the catalog is returned as stored; only the provider refreshes it.
func storeClientBook(tx *gorm.DB, b *models.Book) error {
	if b.ProviderID != nil && *b.ProviderID != "" {
		var stored models.Book
		err := tx.Where("provider_id = ?", *b.ProviderID).First(&stored).Error
		if err == nil {
			*b = stored
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	return upsertBook(tx, b)
}

// UpsertBook stores a book record supplied by a client.
func (s *CatalogService) UpsertBook(ctx context.Context, b *models.Book) (*models.Book, error) {
	if err := storeClientBook(s.DB.WithContext(ctx), b); err != nil {
		return nil, apperrors.Wrap(err, "failed to save book")
	}
	return s.GetBook(ctx, b.ID)
}

func (s *CatalogService) GetBook(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("book not found")
	}
	if err != nil {
		return nil, apperrors.Internal("DB error fetching book", err)
	}
	return &book, nil
}

// ListTrending returns trending books, best rated first.
func (s *CatalogService) ListTrending(ctx context.Context, limit int) ([]models.Book, error) {
	if limit < 1 || limit > 50 {
		limit = 12
	}
	var books []models.Book
	err := s.DB.WithContext(ctx).Where("is_trending = ?", true).
		Order("average_rating DESC, ratings_count DESC, id ASC").
		Limit(limit).Find(&books).Error
	if err != nil {
		return nil, apperrors.Internal("failed to list trending books", err)
	}
	return books, nil
}
