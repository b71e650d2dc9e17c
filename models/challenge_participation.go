package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChallengeParticipation is one user's progress in one challenge.
type ChallengeParticipation struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	UserID      string `gorm:"not null;size:64;uniqueIndex:idx_user_challenge" json:"user_id"`
	ChallengeID string `gorm:"not null;size:36;uniqueIndex:idx_user_challenge;index" json:"challenge_id"`

	ProgressValue      int `gorm:"not null;default:0" json:"progress_value"`
	ProgressPercentage int `gorm:"not null;default:0" json:"progress_percentage"`

	// Completed flips false -> true once; CompletionDate is set with it.
	Completed      bool       `gorm:"not null;default:false;index" json:"completed"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	PointsAwarded  int        `gorm:"not null;default:0" json:"points_awarded"`
	JoinedAt       time.Time  `gorm:"not null" json:"joined_at"`

	Challenge *Challenge `gorm:"foreignKey:ChallengeID" json:"challenge,omitempty"`

	Timestamps
}

func (p *ChallengeParticipation) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ChallengeProgress is round(value/target*100) clamped to [0,100].
func ChallengeProgress(value, target int) int {
	if target <= 0 {
		return 0
	}
	return clampPercent(int((float64(value)/float64(target))*100 + 0.5))
}
