package services

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/models"
)

// evaluateAchievements awards every satisfied achievement the user does not
// hold yet and credits its points. Runs inside the caller's transaction.
func evaluateAchievements(tx *gorm.DB, userID string, now time.Time) ([]models.Achievement, error) {
	var prof models.UserProfile
	if err := tx.Where("user_id = ?", userID).First(&prof).Error; err != nil {
		return nil, err
	}

	var catalog []models.Achievement
	if err := tx.Find(&catalog).Error; err != nil {
		return nil, err
	}

	var awarded []models.Achievement
	for _, a := range catalog {
		if !meetsRequirement(&prof, a.RequirementType, a.RequirementValue) {
			continue
		}
		ua := models.UserAchievement{UserID: userID, AchievementID: a.ID, EarnedAt: now}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ua)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		if a.PointsReward > 0 {
			if _, err := awardPoints(tx, pointCredit{
				UserID:     userID,
				Points:     a.PointsReward,
				Source:     models.PointSourceAchievement,
				SourceID:   a.ID,
				Reason:     "achievement_" + a.Code,
				OccurredAt: now,
			}); err != nil {
				return nil, err
			}
		}
		awarded = append(awarded, a)
		log.Printf("🎖️ [ACHIEVEMENT] %s → %s", a.Title, userID)
	}
	return awarded, nil
}

func meetsRequirement(prof *models.UserProfile, requirement string, required int64) bool {
	switch requirement {
	case models.RequirementBooksCompleted:
		return prof.TotalBooksRead >= required
	case models.RequirementPagesRead:
		return prof.TotalPagesRead >= required
	case models.RequirementCurrentStreak:
		return int64(prof.CurrentStreak) >= required
	case models.RequirementChallengesCompleted:
		return prof.ChallengesCompleted >= required
	}
	return false
}

// ListAchievements returns the achievements the user has earned, newest first.
func (s *ProfileService) ListAchievements(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	var out []models.UserAchievement
	err := s.DB.WithContext(ctx).Preload("Achievement").
		Where("user_id = ?", userID).Order("earned_at DESC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Internal("failed to load achievements", err)
	}
	return out, nil
}

// AchievementCatalog lists every achievement that can be earned.
func (s *ProfileService) AchievementCatalog(ctx context.Context) ([]models.Achievement, error) {
	var out []models.Achievement
	if err := s.DB.WithContext(ctx).Order("requirement_type, requirement_value").Find(&out).Error; err != nil {
		return nil, apperrors.Internal("failed to load achievements", err)
	}
	return out, nil
}
