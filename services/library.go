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
	"github.com/butykaidavid/read-rival-quest/models"
)

type LibraryService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewLibraryService(db *gorm.DB) *LibraryService {
	return &LibraryService{DB: db, Now: utcNow}
}

// AddToLibrary shelves book for userID. A book carrying only an ID must
// already be in the catalog; anything else is upserted first.
func (s *LibraryService) AddToLibrary(ctx context.Context, userID string, book *models.Book, status models.ReadingStatus) (*models.LibraryEntry, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if book == nil || (book.ID == "" && strings.TrimSpace(book.Title) == "") {
		return nil, apperrors.Validation("book is required")
	}
	if status == "" {
		status = models.StatusWantToRead
	}
	if !status.Valid() {
		return nil, apperrors.Validationf("invalid status %q", status)
	}

	now := s.Now()
	var entryID string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureProfile(tx, userID); err != nil {
			return err
		}

		stored := *book
		if strings.TrimSpace(book.Title) == "" {
			if err := tx.Where("id = ?", book.ID).First(&stored).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.NotFound("book not found")
				}
				return err
			}
		} else if err := storeClientBook(tx, &stored); err != nil {
			return err
		}

		entry := models.LibraryEntry{
			UserID:     userID,
			BookID:     stored.ID,
			Status:     status,
			TotalPages: stored.PageCount,
		}
		switch status {
		case models.StatusCurrentlyReading:
			entry.StartDate = &now
		case models.StatusCompleted:
			entry.StartDate = &now
			entry.EndDate = &now
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("already in library")
		}
		entryID = entry.ID

		if status == models.StatusCompleted {
			return completeBook(tx, userID, now)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to add book to library")
	}

	log.Printf("📚 [LIBRARY] %s shelved %s as %s", userID, entryID, status)
	return s.GetEntry(ctx, userID, entryID)
}

// UpdateProgress moves the bookmark and adds reading time. It never changes
// the status, even when the last page is reached.
func (s *LibraryService) UpdateProgress(ctx context.Context, userID, entryID string, currentPage, deltaMinutes int) (*models.LibraryEntry, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if deltaMinutes < 0 {
		return nil, apperrors.Validation("invalid delta")
	}
	if currentPage < 0 {
		currentPage = 0
	}

	now := s.Now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := findEntry(tx, userID, entryID)
		if err != nil {
			return err
		}

		page := currentPage
		if entry.TotalPages != nil && *entry.TotalPages > 0 && page > *entry.TotalPages {
			page = *entry.TotalPages
		}
		pagesRead := page - entry.CurrentPage
		if pagesRead < 0 {
			pagesRead = 0
		}

		err = tx.Model(&models.LibraryEntry{}).Where("id = ?", entry.ID).Updates(map[string]any{
			"current_page":         page,
			"progress_percentage":  models.ProgressPercentage(page, entry.TotalPages),
			"reading_time_minutes": gorm.Expr("reading_time_minutes + ?", deltaMinutes),
			"updated_at":           now,
		}).Error
		if err != nil {
			return err
		}

		if pagesRead == 0 && deltaMinutes == 0 {
			return nil
		}
		session := models.ReadingSession{
			UserID:         userID,
			BookID:         entry.BookID,
			LibraryEntryID: entry.ID,
			PagesRead:      pagesRead,
			Minutes:        deltaMinutes,
			RecordedAt:     now,
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		if err := recordReading(tx, userID, pagesRead, now); err != nil {
			return err
		}
		_, err = evaluateAchievements(tx, userID, now)
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to update progress")
	}
	return s.GetEntry(ctx, userID, entryID)
}

// TransitionStatus advances the entry one shelf forward.
func (s *LibraryService) TransitionStatus(ctx context.Context, userID, entryID string, next models.ReadingStatus) (*models.LibraryEntry, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if !next.Valid() {
		return nil, apperrors.Validationf("invalid status %q", next)
	}

	now := s.Now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := findEntry(tx, userID, entryID)
		if err != nil {
			return err
		}
		if !entry.Status.CanTransitionTo(next) {
			return apperrors.State("invalid transition")
		}

		updates := map[string]any{"status": next, "updated_at": now}
		if entry.StartDate == nil {
			updates["start_date"] = now
		}
		if next == models.StatusCompleted && entry.EndDate == nil {
			updates["end_date"] = now
		}
		// Guarded on the old status so two racing transitions cannot both apply.
		res := tx.Model(&models.LibraryEntry{}).
			Where("id = ? AND status = ?", entry.ID, entry.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.State("invalid transition")
		}

		if next == models.StatusCompleted {
			return completeBook(tx, userID, now)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to change status")
	}

	log.Printf("📖 [LIBRARY] %s moved %s to %s", userID, entryID, next)
	return s.GetEntry(ctx, userID, entryID)
}

func completeBook(tx *gorm.DB, userID string, now time.Time) error {
	if err := tx.Model(&models.UserProfile{}).Where("user_id = ?", userID).
		UpdateColumn("total_books_read", gorm.Expr("total_books_read + ?", 1)).Error; err != nil {
		return err
	}
	_, err := evaluateAchievements(tx, userID, now)
	return err
}

type EntryReview struct {
	Rating *int    `json:"personal_rating" validate:"omitempty,min=1,max=5"`
	Review *string `json:"personal_review" validate:"omitempty,max=10000"`
	Notes  *string `json:"notes" validate:"omitempty,max=10000"`
}

// RateEntry stores the user's rating, review and notes for an entry.
func (s *LibraryService) RateEntry(ctx context.Context, userID, entryID string, in EntryReview) (*models.LibraryEntry, error) {
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return nil, apperrors.Validation("rating must be between 1 and 5")
	}
	updates := map[string]any{"updated_at": s.Now()}
	if in.Rating != nil {
		updates["personal_rating"] = *in.Rating
	}
	if in.Review != nil {
		updates["personal_review"] = *in.Review
	}
	if in.Notes != nil {
		updates["notes"] = *in.Notes
	}

	res := s.DB.WithContext(ctx).Model(&models.LibraryEntry{}).
		Where("id = ? AND user_id = ?", entryID, userID).Updates(updates)
	if res.Error != nil {
		return nil, apperrors.Internal("failed to save review", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.NotFound("library entry not found")
	}
	return s.GetEntry(ctx, userID, entryID)
}

// ListLibrary returns the user's entries, most recently touched first.
func (s *LibraryService) ListLibrary(ctx context.Context, userID string, status models.ReadingStatus) ([]models.LibraryEntry, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	q := s.DB.WithContext(ctx).Preload("Book").Where("user_id = ?", userID)
	if status != "" {
		if !status.Valid() {
			return nil, apperrors.Validationf("invalid status %q", status)
		}
		q = q.Where("status = ?", status)
	}
	var entries []models.LibraryEntry
	if err := q.Order("updated_at DESC, id ASC").Find(&entries).Error; err != nil {
		return nil, apperrors.Internal("failed to list library", err)
	}
	return entries, nil
}

func (s *LibraryService) GetEntry(ctx context.Context, userID, entryID string) (*models.LibraryEntry, error) {
	var entry models.LibraryEntry
	err := s.DB.WithContext(ctx).Preload("Book").
		Where("id = ? AND user_id = ?", entryID, userID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("library entry not found")
	}
	if err != nil {
		return nil, apperrors.Internal("DB error fetching library entry", err)
	}
	return &entry, nil
}

// RemoveFromLibrary deletes the entry only; the book stays in the catalog.
func (s *LibraryService) RemoveFromLibrary(ctx context.Context, userID, entryID string) error {
	res := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", entryID, userID).Delete(&models.LibraryEntry{})
	if res.Error != nil {
		return apperrors.Internal("failed to remove library entry", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("library entry not found")
	}
	return nil
}

func findEntry(tx *gorm.DB, userID, entryID string) (*models.LibraryEntry, error) {
	var entry models.LibraryEntry
	err := tx.Where("id = ? AND user_id = ?", entryID, userID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("library entry not found")
	}
	return &entry, err
}
