package models

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Book{},
		&UserProfile{},
		&LibraryEntry{},
		&ReadingSession{},
		&PointTransaction{},
		&Challenge{},
		&ChallengeParticipation{},
		&LeaderboardEntry{},
		&Achievement{},
		&UserAchievement{},
		&SocialPost{},
		&PostLike{},
		&PostComment{},
		&Follow{},
		&Subscription{},
	}
}

// Migrate creates or updates the schema and seeds the achievement catalog.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return SeedAchievements(db)
}

// SeedAchievements upserts AchievementTriggers by code.
func SeedAchievements(db *gorm.DB) error {
	for _, trigger := range AchievementTriggers {
		a := trigger
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "description", "icon", "rarity",
				"requirement_type", "requirement_value", "points_reward",
			}),
		}).Create(&a).Error
		if err != nil {
			return fmt.Errorf("seed achievement %s: %w", a.Code, err)
		}
	}
	return nil
}
