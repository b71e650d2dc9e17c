package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/testutil"
)

func setupBoards(t *testing.T) (*LeaderboardService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewLeaderboardService(db)
	svc.Now = testutil.NewClock(testStart).Now
	return svc, db
}

func seedBook(t *testing.T, db *gorm.DB, providerID string, genres ...string) string {
	t.Helper()
	b := providerBook(providerID, "Book "+providerID, "Author")
	b.Genres = datatypes.JSONSlice[string](genres)
	require.NoError(t, upsertBook(db, &b))
	return b.ID
}

func seedSession(t *testing.T, db *gorm.DB, userID, bookID string, pages int, at time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.ReadingSession{
		UserID:         userID,
		BookID:         bookID,
		LibraryEntryID: "entry-" + userID,
		PagesRead:      pages,
		RecordedAt:     at,
	}).Error)
}

func boardUsers(entries []models.LeaderboardEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.UserID)
	}
	return out
}

func TestRankEntries_TiesAndExclusion(t *testing.T) {
	entries := rankEntries(map[string]int64{"c": 800, "a": 500, "b": 800, "z": 0, "n": -3})
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"b", "c", "a"}, boardUsers(entries))
	for i, e := range entries {
		assert.Equal(t, i+1, e.RankPosition)
	}
}

func TestComputeLeaderboard_PagesWeekly(t *testing.T) {
	svc, db := setupBoards(t)
	ctx := context.Background()
	book := seedBook(t, db, "vol-1", "Romance")

	seedSession(t, db, "user-a", book, 500, testStart.Add(-time.Hour))
	seedSession(t, db, "user-b", book, 300, testStart.AddDate(0, 0, -2))
	seedSession(t, db, "user-b", book, 500, testStart.AddDate(0, 0, -1))
	seedSession(t, db, "user-c", book, 800, testStart.AddDate(0, 0, -3))
	// Outside the weekly window.
	seedSession(t, db, "user-a", book, 9000, testStart.AddDate(0, 0, -10))

	first, err := svc.ComputeLeaderboard(ctx, models.MetricPages, models.PeriodWeekly, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-b", "user-c", "user-a"}, boardUsers(first))
	assert.Equal(t, []int64{800, 800, 500}, []int64{first[0].Value, first[1].Value, first[2].Value})
	assert.Equal(t, []int{1, 2, 3}, []int{first[0].RankPosition, first[1].RankPosition, first[2].RankPosition})
	require.NotNil(t, first[0].PeriodStart)
	assert.True(t, testStart.AddDate(0, 0, -7).Equal(*first[0].PeriodStart))

	second, err := svc.ComputeLeaderboard(ctx, models.MetricPages, models.PeriodWeekly, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	allTime, err := svc.ComputeLeaderboard(ctx, models.MetricPages, models.PeriodAllTime, "")
	require.NoError(t, err)
	assert.Equal(t, "user-a", allTime[0].UserID)
	assert.Equal(t, int64(9500), allTime[0].Value)
	assert.Nil(t, allTime[0].PeriodStart)
}

func TestComputeLeaderboard_GenreFilter(t *testing.T) {
	svc, db := setupBoards(t)
	ctx := context.Background()
	romance := seedBook(t, db, "vol-r", "Romance")
	fantasy := seedBook(t, db, "vol-f", "Fantasy", "Young Adult")

	seedSession(t, db, "user-a", romance, 200, testStart.Add(-time.Hour))
	seedSession(t, db, "user-a", fantasy, 50, testStart.Add(-time.Hour))
	seedSession(t, db, "user-b", fantasy, 400, testStart.Add(-time.Hour))

	got, err := svc.ComputeLeaderboard(ctx, models.MetricPages, models.PeriodMonthly, "fantasy")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-b", "user-a"}, boardUsers(got))
	assert.Equal(t, int64(50), got[1].Value)
	require.NotNil(t, got[0].GenreFilter)
	assert.Equal(t, "fantasy", *got[0].GenreFilter)

	got, err = svc.ComputeLeaderboard(ctx, models.MetricPages, models.PeriodMonthly, "Horror")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestComputeLeaderboard_BooksCompleted(t *testing.T) {
	svc, db := setupBoards(t)
	ctx := context.Background()
	b1 := seedBook(t, db, "vol-1", "Romance")
	b2 := seedBook(t, db, "vol-2", "Romance")

	finished := testStart.AddDate(0, 0, -1)
	for _, e := range []models.LibraryEntry{
		{UserID: "user-a", BookID: b1, Status: models.StatusCompleted, EndDate: &finished},
		{UserID: "user-a", BookID: b2, Status: models.StatusCompleted, EndDate: &finished},
		{UserID: "user-b", BookID: b1, Status: models.StatusCompleted, EndDate: &finished},
		{UserID: "user-c", BookID: b1, Status: models.StatusCurrentlyReading},
	} {
		require.NoError(t, db.Create(&e).Error)
	}

	got, err := svc.ComputeLeaderboard(ctx, models.MetricBooks, models.PeriodWeekly, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a", "user-b"}, boardUsers(got))
	assert.Equal(t, int64(2), got[0].Value)
}

func TestComputeLeaderboard_StreakAndPoints(t *testing.T) {
	svc, db := setupBoards(t)
	ctx := context.Background()
	book := seedBook(t, db, "vol-1", "Fantasy")

	for _, u := range []struct {
		id     string
		streak int
		points int64
		name   string
	}{
		{"user-a", 4, 300, "Alice"},
		{"user-b", 9, 100, ""},
		{"user-idle", 30, 5000, "Idle"},
	} {
		require.NoError(t, db.Create(&models.UserProfile{
			UserID: u.id, CurrentStreak: u.streak, TotalPoints: u.points, DisplayName: u.name,
		}).Error)
	}
	seedSession(t, db, "user-a", book, 10, testStart.Add(-time.Hour))
	seedSession(t, db, "user-b", book, 10, testStart.Add(-time.Hour))
	for _, id := range []string{"user-a", "user-b"} {
		require.NoError(t, db.Create(&models.PointTransaction{
			UserID: id, Points: 10, SourceType: models.PointSourceChallenge, SourceID: "c-" + id,
			Reason: "challenge_completed", Genres: datatypes.JSONSlice[string]{"Fantasy"},
			CreatedAt: testStart.Add(-time.Hour),
		}).Error)
	}

	streak, err := svc.ComputeLeaderboard(ctx, models.MetricStreak, models.PeriodWeekly, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-b", "user-a"}, boardUsers(streak), "idle users are not ranked")
	assert.Equal(t, int64(9), streak[0].Value)
	assert.Equal(t, "user-b", streak[0].DisplayName)
	assert.Equal(t, "Alice", streak[1].DisplayName)

	points, err := svc.ComputeLeaderboard(ctx, models.MetricPoints, models.PeriodAllTime, "fantasy")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a", "user-b"}, boardUsers(points))
	assert.Equal(t, int64(300), points[0].Value)

	_, err = svc.ComputeLeaderboard(ctx, "likes", models.PeriodWeekly, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	_, err = svc.ComputeLeaderboard(ctx, models.MetricPages, "daily", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSnapshotAll_ReplacesStoredBoards(t *testing.T) {
	svc, db := setupBoards(t)
	ctx := context.Background()
	book := seedBook(t, db, "vol-1", "Romance")
	seedSession(t, db, "user-a", book, 120, testStart.Add(-time.Hour))
	seedSession(t, db, "user-b", book, 90, testStart.Add(-time.Hour))

	for i := 0; i < 2; i++ {
		n, err := svc.SnapshotAll(ctx)
		require.NoError(t, err)
		// pages over three periods; no profiles so streak and points are empty.
		assert.Equal(t, 6, n)
	}

	var stored int64
	require.NoError(t, db.Model(&models.LeaderboardEntry{}).Count(&stored).Error)
	assert.Equal(t, int64(6), stored)

	weekly, err := svc.LatestSnapshot(ctx, models.MetricPages, models.PeriodWeekly, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a", "user-b"}, boardUsers(weekly))

	rank, err := svc.UserRank(ctx, "user-b", models.MetricPages, models.PeriodWeekly, "")
	require.NoError(t, err)
	assert.Equal(t, 2, rank.RankPosition)

	_, err = svc.UserRank(ctx, "nobody", models.MetricPages, models.PeriodWeekly, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
