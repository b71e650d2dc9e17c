package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/testutil"
)

func setupLibrary(t *testing.T) (*LibraryService, *gorm.DB, *testutil.Clock) {
	t.Helper()
	db := testutil.NewDB(t)
	clock := testutil.NewClock(testStart)
	svc := NewLibraryService(db)
	svc.Now = clock.Now
	return svc, db, clock
}

func shelve(t *testing.T, svc *LibraryService, userID string, status models.ReadingStatus) *models.LibraryEntry {
	t.Helper()
	b := providerBook("vol-"+userID, "A Court of Thorns and Roses", "Sarah J. Maas")
	entry, err := svc.AddToLibrary(context.Background(), userID, &b, status)
	require.NoError(t, err)
	return entry
}

func TestAddToLibrary_DuplicateConflicts(t *testing.T) {
	svc, db, _ := setupLibrary(t)
	ctx := context.Background()

	entry := shelve(t, svc, "reader-1", "")
	assert.Equal(t, models.StatusWantToRead, entry.Status)
	require.NotNil(t, entry.Book)
	require.NotNil(t, entry.TotalPages)
	assert.Equal(t, 320, *entry.TotalPages)

	again := models.Book{ID: entry.BookID}
	_, err := svc.AddToLibrary(ctx, "reader-1", &again, models.StatusCurrentlyReading)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, "already in library", err.Error())

	var n int64
	require.NoError(t, db.Model(&models.LibraryEntry{}).Where("user_id = ?", "reader-1").Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestAddToLibrary_UnknownBookID(t *testing.T) {
	svc, _, _ := setupLibrary(t)
	_, err := svc.AddToLibrary(context.Background(), "reader-1", &models.Book{ID: "nope"}, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.AddToLibrary(context.Background(), "", &models.Book{ID: "nope"}, "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAddToLibrary_InlineBookMatchesStoredProviderRow(t *testing.T) {
	svc, db, _ := setupLibrary(t)
	ctx := context.Background()

	original := providerBook("vol-1", "Fourth Wing", "Rebecca Yarros")
	_, err := NewCatalogService(db, nil, 20).UpsertBook(ctx, &original)
	require.NoError(t, err)

	inline := providerBook("vol-1", "Vandalised Title", "Nobody")
	inline.ID = "client-made-up-id"
	entry, err := svc.AddToLibrary(ctx, "reader-1", &inline, "")
	require.NoError(t, err)

	assert.Equal(t, models.BookIDForProvider("vol-1"), entry.BookID)
	require.NotNil(t, entry.Book)
	assert.Equal(t, "Fourth Wing", entry.Book.Title)

	var books []models.Book
	require.NoError(t, db.Find(&books).Error)
	require.Len(t, books, 1)
	assert.Equal(t, "Fourth Wing", books[0].Title)
}

func TestAddToLibrary_InlineProviderBookIgnoresClientID(t *testing.T) {
	svc, db, _ := setupLibrary(t)

	inline := providerBook("vol-9", "Iron Flame", "Rebecca Yarros")
	inline.ID = "client-made-up-id"
	entry, err := svc.AddToLibrary(context.Background(), "reader-1", &inline, "")
	require.NoError(t, err)
	assert.Equal(t, models.BookIDForProvider("vol-9"), entry.BookID)

	var count int64
	require.NoError(t, db.Model(&models.Book{}).Where("id = ?", "client-made-up-id").Count(&count).Error)
	assert.Zero(t, count)
}

func TestAddToLibrary_CompletedCountsBook(t *testing.T) {
	svc, db, _ := setupLibrary(t)
	entry := shelve(t, svc, "reader-1", models.StatusCompleted)
	require.NotNil(t, entry.StartDate)
	require.NotNil(t, entry.EndDate)

	var prof models.UserProfile
	require.NoError(t, db.Where("user_id = ?", "reader-1").First(&prof).Error)
	assert.Equal(t, int64(1), prof.TotalBooksRead)
	assert.Equal(t, int64(50), prof.TotalPoints, "FIRST_CHAPTER reward")
}

func TestUpdateProgress_ClampsAndAccumulates(t *testing.T) {
	svc, db, clock := setupLibrary(t)
	ctx := context.Background()
	entry := shelve(t, svc, "reader-1", models.StatusCurrentlyReading)

	got, err := svc.UpdateProgress(ctx, "reader-1", entry.ID, 80, 25)
	require.NoError(t, err)
	assert.Equal(t, 80, got.CurrentPage)
	assert.Equal(t, 25, got.ProgressPercentage)
	assert.Equal(t, 25, got.ReadingTimeMinutes)

	clock.Advance(24 * time.Hour)
	got, err = svc.UpdateProgress(ctx, "reader-1", entry.ID, 9999, 15)
	require.NoError(t, err)
	assert.Equal(t, 320, got.CurrentPage)
	assert.Equal(t, 100, got.ProgressPercentage)
	assert.Equal(t, 40, got.ReadingTimeMinutes)
	assert.Equal(t, models.StatusCurrentlyReading, got.Status, "reaching the end does not complete")

	var sessions []models.ReadingSession
	require.NoError(t, db.Order("recorded_at ASC").Find(&sessions).Error)
	require.Len(t, sessions, 2)
	assert.Equal(t, 80, sessions[0].PagesRead)
	assert.Equal(t, 240, sessions[1].PagesRead)

	var prof models.UserProfile
	require.NoError(t, db.Where("user_id = ?", "reader-1").First(&prof).Error)
	assert.Equal(t, int64(320), prof.TotalPagesRead)
	assert.Equal(t, 2, prof.CurrentStreak)
}

func TestUpdateProgress_BackwardsWritesNoSession(t *testing.T) {
	svc, db, _ := setupLibrary(t)
	ctx := context.Background()
	entry := shelve(t, svc, "reader-1", models.StatusCurrentlyReading)

	_, err := svc.UpdateProgress(ctx, "reader-1", entry.ID, 100, 0)
	require.NoError(t, err)
	got, err := svc.UpdateProgress(ctx, "reader-1", entry.ID, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, got.CurrentPage)

	var n int64
	require.NoError(t, db.Model(&models.ReadingSession{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestUpdateProgress_InvalidDelta(t *testing.T) {
	svc, _, _ := setupLibrary(t)
	entry := shelve(t, svc, "reader-1", models.StatusCurrentlyReading)

	_, err := svc.UpdateProgress(context.Background(), "reader-1", entry.ID, 10, -5)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "invalid delta", err.Error())

	_, err = svc.UpdateProgress(context.Background(), "someone-else", entry.ID, 10, 5)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTransitionStatus(t *testing.T) {
	cases := []struct {
		from, to models.ReadingStatus
		ok       bool
	}{
		{models.StatusWantToRead, models.StatusCurrentlyReading, true},
		{models.StatusWantToRead, models.StatusCompleted, false},
		{models.StatusCurrentlyReading, models.StatusCompleted, true},
		{models.StatusCurrentlyReading, models.StatusWantToRead, false},
		{models.StatusCompleted, models.StatusCurrentlyReading, false},
		{models.StatusCompleted, models.StatusCompleted, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			svc, _, _ := setupLibrary(t)
			entry := shelve(t, svc, "reader-1", tc.from)

			got, err := svc.TransitionStatus(context.Background(), "reader-1", entry.ID, tc.to)
			if !tc.ok {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrState)
				assert.Equal(t, "invalid transition", err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, got.Status)
			assert.NotNil(t, got.StartDate)
		})
	}
}

func TestTransitionStatus_CompletionAwardsFirstChapter(t *testing.T) {
	svc, db, clock := setupLibrary(t)
	ctx := context.Background()
	entry := shelve(t, svc, "reader-1", models.StatusWantToRead)

	_, err := svc.TransitionStatus(ctx, "reader-1", entry.ID, models.StatusCurrentlyReading)
	require.NoError(t, err)
	clock.Advance(48 * time.Hour)
	got, err := svc.TransitionStatus(ctx, "reader-1", entry.ID, models.StatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, got.EndDate)
	assert.True(t, got.EndDate.After(*got.StartDate))

	var earned []models.UserAchievement
	require.NoError(t, db.Preload("Achievement").Where("user_id = ?", "reader-1").Find(&earned).Error)
	require.Len(t, earned, 1)
	assert.Equal(t, "FIRST_CHAPTER", earned[0].Achievement.Code)
}

func TestRateEntry(t *testing.T) {
	svc, _, _ := setupLibrary(t)
	ctx := context.Background()
	entry := shelve(t, svc, "reader-1", models.StatusCompleted)

	rating, review := 5, "Could not put it down"
	got, err := svc.RateEntry(ctx, "reader-1", entry.ID, EntryReview{Rating: &rating, Review: &review})
	require.NoError(t, err)
	require.NotNil(t, got.PersonalRating)
	assert.Equal(t, 5, *got.PersonalRating)
	assert.Equal(t, review, *got.PersonalReview)

	bad := 6
	_, err = svc.RateEntry(ctx, "reader-1", entry.ID, EntryReview{Rating: &bad})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRemoveFromLibrary_KeepsBook(t *testing.T) {
	svc, db, _ := setupLibrary(t)
	ctx := context.Background()
	entry := shelve(t, svc, "reader-1", "")

	require.NoError(t, svc.RemoveFromLibrary(ctx, "reader-1", entry.ID))
	assert.ErrorIs(t, svc.RemoveFromLibrary(ctx, "reader-1", entry.ID), apperrors.ErrNotFound)

	var n int64
	require.NoError(t, db.Model(&models.Book{}).Where("id = ?", entry.BookID).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	list, err := svc.ListLibrary(ctx, "reader-1", "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListLibrary_FiltersByStatus(t *testing.T) {
	svc, _, _ := setupLibrary(t)
	ctx := context.Background()

	first := providerBook("vol-a", "Book A", "X")
	second := providerBook("vol-b", "Book B", "Y")
	_, err := svc.AddToLibrary(ctx, "reader-1", &first, models.StatusWantToRead)
	require.NoError(t, err)
	_, err = svc.AddToLibrary(ctx, "reader-1", &second, models.StatusCurrentlyReading)
	require.NoError(t, err)

	reading, err := svc.ListLibrary(ctx, "reader-1", models.StatusCurrentlyReading)
	require.NoError(t, err)
	require.Len(t, reading, 1)
	assert.Equal(t, "Book B", reading[0].Book.Title)

	_, err = svc.ListLibrary(ctx, "reader-1", "shelved")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
