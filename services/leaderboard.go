package services

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/metrics"
	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/utils"
)

type LeaderboardService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewLeaderboardService(db *gorm.DB) *LeaderboardService {
	return &LeaderboardService{DB: db, Now: utcNow}
}

// ComputeLeaderboard ranks users for metric over period from the stored
// state at call time. Nothing is persisted.
func (s *LeaderboardService) ComputeLeaderboard(ctx context.Context, metric models.LeaderboardMetric, period models.LeaderboardPeriod, genre string) ([]models.LeaderboardEntry, error) {
	if !metric.Valid() {
		return nil, apperrors.Validationf("invalid metric %q", metric)
	}
	if !period.Valid() {
		return nil, apperrors.Validationf("invalid period %q", period)
	}
	return s.compute(ctx, metric, period, strings.TrimSpace(genre), s.Now())
}

func (s *LeaderboardService) compute(ctx context.Context, metric models.LeaderboardMetric, period models.LeaderboardPeriod, genre string, now time.Time) ([]models.LeaderboardEntry, error) {
	started := time.Now()
	defer func() {
		metrics.LeaderboardDuration.WithLabelValues(string(metric), string(period)).Observe(time.Since(started).Seconds())
	}()

	db := s.DB.WithContext(ctx)
	start, end := period.Window(now)

	var (
		values map[string]int64
		err    error
	)
	switch metric {
	case models.MetricPages:
		values, err = pagesRead(db, start, end, genre)
	case models.MetricBooks:
		values, err = booksCompleted(db, start, end, genre)
	case models.MetricStreak:
		values, err = streakSnapshot(db, start, end, genre)
	case models.MetricPoints:
		values, err = pointsSnapshot(db, start, end, genre)
	}
	if err != nil {
		return nil, apperrors.Internal("failed to compute leaderboard", err)
	}

	names, err := displayNames(db, values)
	if err != nil {
		return nil, apperrors.Internal("failed to load profiles", err)
	}

	var genreFilter *string
	if genre != "" {
		genreFilter = &genre
	}
	entries := rankEntries(values)
	for i := range entries {
		entries[i].Metric = metric
		entries[i].Period = period
		entries[i].GenreFilter = genreFilter
		entries[i].DisplayName = names[entries[i].UserID]
		entries[i].PeriodStart = start
		entries[i].PeriodEnd = end
		entries[i].CalculatedAt = now
	}
	return entries, nil
}

// rankEntries orders by value descending then user id ascending and assigns
// 1-based ranks. Users with no positive value are left out.
func rankEntries(values map[string]int64) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(values))
	for userID, v := range values {
		if v <= 0 {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{UserID: userID, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].RankPosition = i + 1
	}
	return entries
}

func inWindow(q *gorm.DB, column string, start *time.Time, end time.Time) *gorm.DB {
	if start != nil {
		q = q.Where(column+" >= ?", *start)
	}
	return q.Where(column+" <= ?", end)
}

type userBookValue struct {
	UserID string
	BookID string
	Total  int64
}

// sumByBook totals rows per user, keeping only books in genre when set.
func sumByBook(db *gorm.DB, rows []userBookValue, genre string) (map[string]int64, error) {
	var keep map[string]bool
	if genre != "" {
		ids := make([]string, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.BookID)
		}
		var err error
		if keep, err = booksInGenre(db, ids, genre); err != nil {
			return nil, err
		}
	}
	out := make(map[string]int64)
	for _, r := range rows {
		if keep != nil && !keep[r.BookID] {
			continue
		}
		out[r.UserID] += r.Total
	}
	return out, nil
}

func booksInGenre(db *gorm.DB, ids []string, genre string) (map[string]bool, error) {
	keep := make(map[string]bool)
	if len(ids) == 0 {
		return keep, nil
	}
	var books []models.Book
	if err := db.Select("id", "genres").Where("id IN ?", dedupeStrings(ids)).Find(&books).Error; err != nil {
		return nil, err
	}
	for _, b := range books {
		if hasLabel(b.Genres, genre) {
			keep[b.ID] = true
		}
	}
	return keep, nil
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if utils.FoldEqual(l, want) {
			return true
		}
	}
	return false
}

func pagesRead(db *gorm.DB, start *time.Time, end time.Time, genre string) (map[string]int64, error) {
	var rows []userBookValue
	q := db.Model(&models.ReadingSession{}).
		Select("user_id, book_id, SUM(pages_read) AS total").
		Group("user_id, book_id")
	if err := inWindow(q, "recorded_at", start, end).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return sumByBook(db, rows, genre)
}

func booksCompleted(db *gorm.DB, start *time.Time, end time.Time, genre string) (map[string]int64, error) {
	var rows []userBookValue
	q := db.Model(&models.LibraryEntry{}).
		Select("user_id, book_id, COUNT(*) AS total").
		Where("status = ? AND end_date IS NOT NULL", models.StatusCompleted).
		Group("user_id, book_id")
	if err := inWindow(q, "end_date", start, end).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return sumByBook(db, rows, genre)
}

// streakSnapshot ranks the stored streak of everyone who read in the window.
func streakSnapshot(db *gorm.DB, start *time.Time, end time.Time, genre string) (map[string]int64, error) {
	var rows []userBookValue
	q := db.Model(&models.ReadingSession{}).
		Select("user_id, book_id, COUNT(*) AS total").
		Group("user_id, book_id")
	if err := inWindow(q, "recorded_at", start, end).Scan(&rows).Error; err != nil {
		return nil, err
	}
	active, err := sumByBook(db, rows, genre)
	if err != nil {
		return nil, err
	}
	return profileSnapshot(db, active, "current_streak")
}

// pointsSnapshot ranks total points of everyone credited in the window. The
// genre filter matches the genres recorded on the credit.
func pointsSnapshot(db *gorm.DB, start *time.Time, end time.Time, genre string) (map[string]int64, error) {
	var rows []models.PointTransaction
	q := db.Model(&models.PointTransaction{}).Select("user_id", "genres")
	if err := inWindow(q, "created_at", start, end).Find(&rows).Error; err != nil {
		return nil, err
	}
	active := make(map[string]int64)
	for _, r := range rows {
		if genre != "" && !hasLabel(r.Genres, genre) {
			continue
		}
		active[r.UserID]++
	}
	return profileSnapshot(db, active, "total_points")
}

func profileSnapshot(db *gorm.DB, population map[string]int64, column string) (map[string]int64, error) {
	out := make(map[string]int64, len(population))
	if len(population) == 0 {
		return out, nil
	}
	var rows []struct {
		UserID string
		Value  int64
	}
	err := db.Model(&models.UserProfile{}).
		Select("user_id, "+column+" AS value").
		Where("user_id IN ?", mapKeys(population)).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.UserID] = r.Value
	}
	return out, nil
}

func displayNames(db *gorm.DB, values map[string]int64) (map[string]string, error) {
	names := make(map[string]string, len(values))
	if len(values) == 0 {
		return names, nil
	}
	var profiles []models.UserProfile
	if err := db.Where("user_id IN ?", mapKeys(values)).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for i := range profiles {
		names[profiles[i].UserID] = profiles[i].Name()
	}
	return names, nil
}

func mapKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// SnapshotAll recomputes every metric and period without a genre filter and
// replaces the stored snapshot in one transaction.
func (s *LeaderboardService) SnapshotAll(ctx context.Context) (int, error) {
	now := s.Now()
	type board struct {
		metric models.LeaderboardMetric
		period models.LeaderboardPeriod
	}
	var boards []board
	for _, m := range models.LeaderboardMetrics {
		for _, p := range models.LeaderboardPeriods {
			boards = append(boards, board{m, p})
		}
	}

	results := make([][]models.LeaderboardEntry, len(boards))
	group, gctx := errgroup.WithContext(ctx)
	for i, b := range boards {
		group.Go(func() error {
			entries, err := s.compute(gctx, b.metric, b.period, "", now)
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return 0, apperrors.Wrap(err, "failed to compute leaderboards")
	}

	var all []models.LeaderboardEntry
	for _, entries := range results {
		all = append(all, entries...)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("genre_filter IS NULL").Delete(&models.LeaderboardEntry{}).Error; err != nil {
			return err
		}
		if len(all) == 0 {
			return nil
		}
		return tx.CreateInBatches(&all, 200).Error
	})
	if err != nil {
		return 0, apperrors.Internal("failed to store leaderboards", err)
	}

	log.Printf("📊 [LEADERBOARD] snapshot stored: %d rows across %d boards", len(all), len(boards))
	return len(all), nil
}

// LatestSnapshot reads the stored board for metric and period.
func (s *LeaderboardService) LatestSnapshot(ctx context.Context, metric models.LeaderboardMetric, period models.LeaderboardPeriod, limit int) ([]models.LeaderboardEntry, error) {
	if !metric.Valid() || !period.Valid() {
		return nil, apperrors.Validation("invalid metric or period")
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var out []models.LeaderboardEntry
	err := s.DB.WithContext(ctx).
		Where("metric = ? AND period = ? AND genre_filter IS NULL", metric, period).
		Order("rank_position ASC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, apperrors.Internal("failed to load leaderboard", err)
	}
	return out, nil
}

// UserRank returns userID's live position on a board.
func (s *LeaderboardService) UserRank(ctx context.Context, userID string, metric models.LeaderboardMetric, period models.LeaderboardPeriod, genre string) (*models.LeaderboardEntry, error) {
	entries, err := s.ComputeLeaderboard(ctx, metric, period, genre)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].UserID == userID {
			return &entries[i], nil
		}
	}
	return nil, apperrors.NotFound("user is not ranked on this leaderboard")
}
