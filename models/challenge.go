package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	UnitPages   = "pages"
	UnitBooks   = "books"
	UnitMinutes = "minutes"
	UnitDays    = "days"

	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Challenge is a time-boxed reading goal.
type Challenge struct {
	ID              string                      `gorm:"primaryKey;size:36" json:"id"`
	Title           string                      `gorm:"not null" json:"title"`
	Slug            string                      `gorm:"size:255;index" json:"slug"`
	Description     *string                     `gorm:"type:text" json:"description,omitempty"`
	ChallengeType   string                      `gorm:"size:32" json:"challenge_type"`
	TargetValue     int                         `gorm:"not null" json:"target_value"`
	TargetUnit      string                      `gorm:"size:16;not null" json:"target_unit"`
	StartDate       time.Time                   `gorm:"not null" json:"start_date"`
	EndDate         time.Time                   `gorm:"not null;index" json:"end_date"`
	RewardPoints    int                         `gorm:"not null;default:0" json:"reward_points"`
	Difficulty      string                      `gorm:"size:16;not null" json:"difficulty"`
	Genres          datatypes.JSONSlice[string] `json:"genres"`
	IsPublic        bool                        `gorm:"index" json:"is_public"`
	MaxParticipants *int                        `json:"max_participants,omitempty"`
	IsFeatured      bool                        `json:"is_featured"`
	BooktokThemed   bool                        `json:"booktok_themed"`
	CreatedBy       string                      `gorm:"not null;size:64;index" json:"created_by"`

	// Exact count of participation rows, maintained by Join.
	ParticipantCount int `gorm:"not null;default:0" json:"participant_count"`

	Timestamps
}

func (c *Challenge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Genres == nil {
		c.Genres = datatypes.JSONSlice[string]{}
	}
	return nil
}

// IsClosed reports whether the challenge no longer accepts joins.
func (c *Challenge) IsClosed(now time.Time) bool {
	return now.After(c.EndDate)
}

func (c *Challenge) IsActive(now time.Time) bool {
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

func (c *Challenge) IsFull() bool {
	return c.MaxParticipants != nil && c.ParticipantCount >= *c.MaxParticipants
}

func ValidTargetUnit(u string) bool {
	switch u {
	case UnitPages, UnitBooks, UnitMinutes, UnitDays:
		return true
	}
	return false
}

func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}
