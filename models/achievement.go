package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Requirement types an achievement can be triggered by.
const (
	RequirementBooksCompleted      = "books_completed"
	RequirementPagesRead           = "pages_read"
	RequirementCurrentStreak       = "current_streak"
	RequirementChallengesCompleted = "challenges_completed"
)

// Achievement: static config, seeded from AchievementTriggers
type Achievement struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	Code             string    `gorm:"uniqueIndex;not null;size:64" json:"code"`
	Title            string    `gorm:"not null" json:"title"`
	Description      string    `json:"description"`
	Icon             string    `json:"icon"`
	Rarity           string    `gorm:"size:16" json:"rarity"` // common, rare, epic, legendary
	RequirementType  string    `gorm:"size:32;not null" json:"requirement_type"`
	RequirementValue int64     `gorm:"not null" json:"requirement_value"`
	PointsReward     int64     `gorm:"not null;default:0" json:"points_reward"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// AchievementIDForCode keeps seeded IDs identical across databases.
func AchievementIDForCode(code string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("achievement:"+code)).String()
}

func (a *Achievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = AchievementIDForCode(a.Code)
	}
	return nil
}

// UserAchievement: awarded instance, at most one per (user, achievement)
type UserAchievement struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	UserID        string    `gorm:"not null;size:64;uniqueIndex:idx_user_achievement" json:"user_id"`
	AchievementID string    `gorm:"not null;size:36;uniqueIndex:idx_user_achievement" json:"achievement_id"`
	EarnedAt      time.Time `gorm:"autoCreateTime" json:"earned_at"`

	Achievement *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}

func (u *UserAchievement) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

var AchievementTriggers = []Achievement{
	{
		Code:             "FIRST_CHAPTER",
		Title:            "First Chapter",
		Description:      "Finished your first book",
		Icon:             "📖",
		Rarity:           "common",
		RequirementType:  RequirementBooksCompleted,
		RequirementValue: 1,
		PointsReward:     50,
	},
	{
		Code:             "BOOKWORM",
		Title:            "Bookworm",
		Description:      "Finished 10 books",
		Icon:             "🐛",
		Rarity:           "rare",
		RequirementType:  RequirementBooksCompleted,
		RequirementValue: 10,
		PointsReward:     250,
	},
	{
		Code:             "PAGE_TURNER",
		Title:            "Page Turner",
		Description:      "Read 1,000 pages",
		Icon:             "📚",
		Rarity:           "common",
		RequirementType:  RequirementPagesRead,
		RequirementValue: 1000,
		PointsReward:     100,
	},
	{
		Code:             "MARATHON_READER",
		Title:            "Marathon Reader",
		Description:      "Read 10,000 pages",
		Icon:             "🏃",
		Rarity:           "epic",
		RequirementType:  RequirementPagesRead,
		RequirementValue: 10000,
		PointsReward:     500,
	},
	{
		Code:             "WEEK_STREAK",
		Title:            "On a Roll",
		Description:      "Read 7 days in a row",
		Icon:             "🔥",
		Rarity:           "rare",
		RequirementType:  RequirementCurrentStreak,
		RequirementValue: 7,
		PointsReward:     100,
	},
	{
		Code:             "MONTH_STREAK",
		Title:            "Unstoppable",
		Description:      "Read 30 days in a row",
		Icon:             "⚡",
		Rarity:           "legendary",
		RequirementType:  RequirementCurrentStreak,
		RequirementValue: 30,
		PointsReward:     500,
	},
	{
		Code:             "CHALLENGER",
		Title:            "Challenger",
		Description:      "Completed your first challenge",
		Icon:             "🏆",
		Rarity:           "common",
		RequirementType:  RequirementChallengesCompleted,
		RequirementValue: 1,
		PointsReward:     75,
	},
	{
		Code:             "CHAMPION",
		Title:            "Champion",
		Description:      "Completed 5 challenges",
		Icon:             "👑",
		Rarity:           "epic",
		RequirementType:  RequirementChallengesCompleted,
		RequirementValue: 5,
		PointsReward:     300,
	},
}
