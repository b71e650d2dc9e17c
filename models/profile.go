package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TierFree    = "free"
	TierPremium = "premium"
)

// UserProfile is the denormalized reading summary for one user. Totals are
// only ever changed with col = col + n updates.
type UserProfile struct {
	ID               string                      `gorm:"primaryKey;size:36" json:"id"`
	UserID           string                      `gorm:"uniqueIndex;not null;size:64" json:"user_id"`
	Username         string                      `gorm:"size:64;index" json:"username"`
	DisplayName      string                      `gorm:"size:128" json:"display_name"`
	AvatarURL        *string                     `json:"avatar_url,omitempty"`
	Bio              *string                     `gorm:"type:text" json:"bio,omitempty"`
	FavoriteGenres   datatypes.JSONSlice[string] `json:"favorite_genres"`
	SubscriptionTier string                      `gorm:"size:16;not null" json:"subscription_tier"`

	TotalPoints         int64 `gorm:"not null;default:0" json:"total_points"`
	Level               int   `gorm:"not null;default:1" json:"level"`
	TotalPagesRead      int64 `gorm:"not null;default:0" json:"total_pages_read"`
	TotalBooksRead      int64 `gorm:"not null;default:0" json:"total_books_read"`
	ChallengesCompleted int64 `gorm:"not null;default:0" json:"challenges_completed"`

	// Streak snapshot, advanced by reading sessions.
	CurrentStreak   int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak   int        `gorm:"not null;default:0" json:"longest_streak"`
	LastReadingDate *time.Time `json:"last_reading_date,omitempty"`
	LastLevelUpAt   *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

func (UserProfile) TableName() string { return "profiles" }

func (p *UserProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.SubscriptionTier == "" {
		p.SubscriptionTier = TierFree
	}
	if p.Level == 0 {
		p.Level = 1
	}
	if p.FavoriteGenres == nil {
		p.FavoriteGenres = datatypes.JSONSlice[string]{}
	}
	return nil
}

func (p *UserProfile) IsPremium() bool {
	return p.SubscriptionTier == TierPremium
}

// Name is what leaderboards and feeds show for the user.
func (p *UserProfile) Name() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Username != "":
		return p.Username
	default:
		return p.UserID
	}
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// PointSource identifies what a ledger row was credited for.
type PointSource string

const (
	PointSourceChallenge   PointSource = "challenge"
	PointSourceAchievement PointSource = "achievement"
	PointSourceAdmin       PointSource = "admin"
)

// PointTransaction is the append-only points ledger. The unique index on
// (user, source type, source id) makes a second credit for the same source
// a no-op insert.
type PointTransaction struct {
	ID         string                      `gorm:"primaryKey;size:36" json:"id"`
	UserID     string                      `gorm:"not null;size:64;uniqueIndex:idx_point_source" json:"user_id"`
	SourceType PointSource                 `gorm:"not null;size:16;uniqueIndex:idx_point_source" json:"source_type"`
	SourceID   string                      `gorm:"not null;size:64;uniqueIndex:idx_point_source" json:"source_id"`
	Points     int64                       `gorm:"not null" json:"points"`
	Reason     string                      `json:"reason"`
	Genres     datatypes.JSONSlice[string] `json:"genres"`
	CreatedAt  time.Time                   `gorm:"autoCreateTime;index" json:"created_at"`
}

func (t *PointTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Genres == nil {
		t.Genres = datatypes.JSONSlice[string]{}
	}
	return nil
}
