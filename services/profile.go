package services

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/metrics"
	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/utils"
)

// LevelConfig: points needed for *next* level (e.g., level 1 → 2 needs BasePointsPerLevel * 1^1.2)
const BasePointsPerLevel = 100

// pointsForNextLevel returns points required to reach level+1 from current level
func pointsForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	// L_n = floor(BasePointsPerLevel * n^1.2)
	return int64(float64(BasePointsPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// levelForPoints walks the level curve from level 1, spending the cost of
// each level in turn.
func levelForPoints(total int64) int {
	level := 1
	for total >= pointsForNextLevel(level) {
		total -= pointsForNextLevel(level)
		level++
	}
	return level
}

func utcNow() time.Time { return time.Now().UTC() }

type ProfileService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{DB: db, Now: utcNow}
}

// EnsureProfile returns the user's profile, creating it if missing (idempotent).
func (s *ProfileService) EnsureProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	prof, err := ensureProfile(s.DB.WithContext(ctx), userID)
	return prof, apperrors.Wrap(err, "failed to load profile")
}

func ensureProfile(tx *gorm.DB, userID string) (*models.UserProfile, error) {
	prof := models.UserProfile{UserID: userID, Username: userID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&prof).Error; err != nil {
		return nil, err
	}
	var out models.UserProfile
	if err := tx.Where("user_id = ?", userID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var prof models.UserProfile
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&prof).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("profile not found")
	}
	if err != nil {
		return nil, apperrors.Internal("DB error fetching profile", err)
	}
	return &prof, nil
}

type ProfileUpdate struct {
	DisplayName    *string  `json:"display_name" validate:"omitempty,max=128"`
	AvatarURL      *string  `json:"avatar_url" validate:"omitempty,url"`
	Bio            *string  `json:"bio" validate:"omitempty,max=2000"`
	FavoriteGenres []string `json:"favorite_genres" validate:"omitempty,max=20,dive,max=64"`
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*models.UserProfile, error) {
	if _, err := s.EnsureProfile(ctx, userID); err != nil {
		return nil, err
	}
	updates := map[string]any{}
	if in.DisplayName != nil {
		updates["display_name"] = *in.DisplayName
	}
	if in.AvatarURL != nil {
		updates["avatar_url"] = *in.AvatarURL
	}
	if in.Bio != nil {
		updates["bio"] = *in.Bio
	}
	if in.FavoriteGenres != nil {
		updates["favorite_genres"] = datatypes.JSONSlice[string](utils.CanonicalGenres(in.FavoriteGenres))
	}
	if len(updates) > 0 {
		err := s.DB.WithContext(ctx).Model(&models.UserProfile{}).Where("user_id = ?", userID).Updates(updates).Error
		if err != nil {
			return nil, apperrors.Internal("failed to update profile", err)
		}
	}
	return s.GetProfile(ctx, userID)
}

// pointCredit describes one ledger credit.
type pointCredit struct {
	UserID     string
	Points     int64
	Source     models.PointSource
	SourceID   string
	Reason     string
	Genres     []string
	OccurredAt time.Time
}

// awardPoints credits points at most once per source, inside tx. It reports
// whether this call did the credit.
func awardPoints(tx *gorm.DB, c pointCredit) (bool, error) {
	if _, err := ensureProfile(tx, c.UserID); err != nil {
		return false, err
	}

	genres := c.Genres
	if genres == nil {
		genres = []string{}
	}
	entry := models.PointTransaction{
		UserID:     c.UserID,
		SourceType: c.Source,
		SourceID:   c.SourceID,
		Points:     c.Points,
		Reason:     c.Reason,
		Genres:     datatypes.JSONSlice[string](genres),
		CreatedAt:  c.OccurredAt,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := tx.Model(&models.UserProfile{}).Where("user_id = ?", c.UserID).
		UpdateColumn("total_points", gorm.Expr("total_points + ?", c.Points)).Error; err != nil {
		return false, err
	}

	// Level-up logic
	var prof models.UserProfile
	if err := tx.Where("user_id = ?", c.UserID).First(&prof).Error; err != nil {
		return false, err
	}
	if level := levelForPoints(prof.TotalPoints); level > prof.Level {
		if err := tx.Model(&models.UserProfile{}).Where("user_id = ?", c.UserID).
			Updates(map[string]any{"level": level, "last_level_up_at": c.OccurredAt}).Error; err != nil {
			return false, err
		}
	}

	metrics.PointsCredited.WithLabelValues(string(c.Source)).Add(float64(c.Points))
	log.Printf("🏅 [POINTS] %s +%d (%s) → total=%d", c.UserID, c.Points, c.Reason, prof.TotalPoints)
	return true, nil
}

// GrantPoints is an admin credit. Each grant is its own ledger source.
func (s *ProfileService) GrantPoints(ctx context.Context, userID string, points int64, reason string) (*models.UserProfile, error) {
	if userID == "" {
		return nil, apperrors.Validation("user_id is required")
	}
	if points <= 0 {
		return nil, apperrors.Validation("points must be positive")
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := awardPoints(tx, pointCredit{
			UserID:     userID,
			Points:     points,
			Source:     models.PointSourceAdmin,
			SourceID:   uuid.NewString(),
			Reason:     reason,
			OccurredAt: s.Now(),
		})
		if err != nil {
			return err
		}
		_, err = evaluateAchievements(tx, userID, s.Now())
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to grant points")
	}
	return s.GetProfile(ctx, userID)
}

// PointHistory returns the newest ledger rows first.
func (s *ProfileService) PointHistory(ctx context.Context, userID string, limit int) ([]models.PointTransaction, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var rows []models.PointTransaction
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, apperrors.Internal("failed to load point history", err)
	}
	return rows, nil
}

// nextStreak applies the daily streak rule: same day keeps it, the next day
// extends it, any gap restarts at 1.
func nextStreak(current int, last *time.Time, at time.Time) int {
	if last == nil || current <= 0 {
		return 1
	}
	day := startOfDay(at)
	lastDay := startOfDay(*last)
	switch {
	case day.Equal(lastDay) || day.Before(lastDay):
		return current
	case day.Equal(lastDay.AddDate(0, 0, 1)):
		return current + 1
	default:
		return 1
	}
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// recordReading adds pages to the profile total and advances the streak.
func recordReading(tx *gorm.DB, userID string, pages int, at time.Time) error {
	prof, err := ensureProfile(tx, userID)
	if err != nil {
		return err
	}
	streak := nextStreak(prof.CurrentStreak, prof.LastReadingDate, at)
	longest := prof.LongestStreak
	if streak > longest {
		longest = streak
	}
	lastDay := at.UTC()
	if prof.LastReadingDate != nil && prof.LastReadingDate.After(lastDay) {
		lastDay = *prof.LastReadingDate
	}
	return tx.Model(&models.UserProfile{}).Where("user_id = ?", userID).Updates(map[string]any{
		"total_pages_read":  gorm.Expr("total_pages_read + ?", pages),
		"current_streak":    streak,
		"longest_streak":    longest,
		"last_reading_date": lastDay,
	}).Error
}

// ResetLapsedStreaks zeroes streaks of users who did not read yesterday or
// today. Returns the number of profiles changed.
func (s *ProfileService) ResetLapsedStreaks(ctx context.Context) (int64, error) {
	cutoff := startOfDay(s.Now()).AddDate(0, 0, -1)
	res := s.DB.WithContext(ctx).Model(&models.UserProfile{}).
		Where("current_streak > 0 AND (last_reading_date IS NULL OR last_reading_date < ?)", cutoff).
		UpdateColumn("current_streak", 0)
	if res.Error != nil {
		return 0, apperrors.Internal("failed to reset streaks", res.Error)
	}
	return res.RowsAffected, nil
}
