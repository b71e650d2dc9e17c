package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PostType string

const (
	PostReview              PostType = "review"
	PostAchievement         PostType = "achievement"
	PostProgress            PostType = "progress"
	PostChallengeCompletion PostType = "challenge_completion"
)

func (t PostType) Valid() bool {
	switch t {
	case PostReview, PostAchievement, PostProgress, PostChallengeCompletion:
		return true
	}
	return false
}

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// SocialPost is an append-only feed item. Hashtags are derived once when the
// post is created; LikesCount and CommentsCount are store-maintained.
type SocialPost struct {
	ID            string                      `gorm:"primaryKey;size:36" json:"id"`
	UserID        string                      `gorm:"not null;size:64;index" json:"user_id"`
	PostType      PostType                    `gorm:"size:32;not null" json:"post_type"`
	Content       string                      `gorm:"type:text;not null" json:"content"`
	BookID        *string                     `gorm:"size:36;index" json:"book_id,omitempty"`
	AchievementID *string                     `gorm:"size:36" json:"achievement_id,omitempty"`
	ChallengeID   *string                     `gorm:"size:36" json:"challenge_id,omitempty"`
	ImageURL      *string                     `json:"image_url,omitempty"`
	Hashtags      datatypes.JSONSlice[string] `json:"hashtags"`
	LikesCount    int                         `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int                         `gorm:"not null;default:0" json:"comments_count"`
	IsPinned      bool                        `json:"is_pinned"`
	Visibility    string                      `gorm:"size:16;not null;index" json:"visibility"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SocialPost) TableName() string { return "social_posts" }

func (p *SocialPost) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	if p.Hashtags == nil {
		p.Hashtags = datatypes.JSONSlice[string]{}
	}
	return nil
}

type PostLike struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PostID    string    `gorm:"not null;size:36;uniqueIndex:idx_post_user" json:"post_id"`
	UserID    string    `gorm:"not null;size:64;uniqueIndex:idx_post_user" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (l *PostLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

type PostComment struct {
	ID              string  `gorm:"primaryKey;size:36" json:"id"`
	PostID          string  `gorm:"not null;size:36;index" json:"post_id"`
	UserID          string  `gorm:"not null;size:64" json:"user_id"`
	ParentCommentID *string `gorm:"size:36" json:"parent_comment_id,omitempty"`
	Content         string  `gorm:"type:text;not null" json:"content"`

	Timestamps
}

func (c *PostComment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Follow is a directed follower -> following edge.
type Follow struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	FollowerID  string    `gorm:"not null;size:64;uniqueIndex:idx_follow_pair" json:"follower_id"`
	FollowingID string    `gorm:"not null;size:64;uniqueIndex:idx_follow_pair;index" json:"following_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
