package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/metrics"
	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/utils"
)

type ChallengeService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewChallengeService(db *gorm.DB) *ChallengeService {
	return &ChallengeService{DB: db, Now: utcNow}
}

// ChallengeInput is the writable part of a challenge.
type ChallengeInput struct {
	Title           string    `json:"title" yaml:"title" validate:"notblank,max=200"`
	Description     *string   `json:"description" yaml:"description" validate:"omitempty,max=5000"`
	ChallengeType   string    `json:"challenge_type" yaml:"challenge_type" validate:"omitempty,max=32"`
	TargetValue     int       `json:"target_value" yaml:"target_value" validate:"gt=0"`
	TargetUnit      string    `json:"target_unit" yaml:"target_unit" validate:"oneof=pages books minutes days"`
	StartDate       time.Time `json:"start_date" yaml:"start_date" validate:"required"`
	EndDate         time.Time `json:"end_date" yaml:"end_date" validate:"required,gtfield=StartDate"`
	RewardPoints    int       `json:"reward_points" yaml:"reward_points" validate:"gte=0"`
	Difficulty      string    `json:"difficulty" yaml:"difficulty" validate:"oneof=easy medium hard"`
	Genres          []string  `json:"genres" yaml:"genres" validate:"omitempty,max=20,dive,max=64"`
	IsPublic        *bool     `json:"is_public" yaml:"is_public"`
	MaxParticipants *int      `json:"max_participants" yaml:"max_participants" validate:"omitempty,gt=0"`
	IsFeatured      bool      `json:"is_featured" yaml:"is_featured"`
	BooktokThemed   bool      `json:"booktok_themed" yaml:"booktok_themed"`
}

func (in ChallengeInput) check() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return apperrors.Validation("title is required")
	case in.TargetValue <= 0:
		return apperrors.Validation("target_value must be positive")
	case !models.ValidTargetUnit(in.TargetUnit):
		return apperrors.Validationf("invalid target_unit %q", in.TargetUnit)
	case !models.ValidDifficulty(in.Difficulty):
		return apperrors.Validationf("invalid difficulty %q", in.Difficulty)
	case in.RewardPoints < 0:
		return apperrors.Validation("reward_points must not be negative")
	case !in.StartDate.Before(in.EndDate):
		return apperrors.Validation("start_date must be before end_date")
	case in.MaxParticipants != nil && *in.MaxParticipants <= 0:
		return apperrors.Validation("max_participants must be positive")
	}
	return nil
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, userID string, in ChallengeInput) (*models.Challenge, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if err := in.check(); err != nil {
		return nil, err
	}

	public := true
	if in.IsPublic != nil {
		public = *in.IsPublic
	}
	ch := models.Challenge{
		Title:           strings.TrimSpace(in.Title),
		Slug:            utils.Slugify(in.Title),
		Description:     in.Description,
		ChallengeType:   in.ChallengeType,
		TargetValue:     in.TargetValue,
		TargetUnit:      in.TargetUnit,
		StartDate:       in.StartDate.UTC(),
		EndDate:         in.EndDate.UTC(),
		RewardPoints:    in.RewardPoints,
		Difficulty:      in.Difficulty,
		Genres:          datatypes.JSONSlice[string](utils.CanonicalGenres(in.Genres)),
		IsPublic:        public,
		MaxParticipants: in.MaxParticipants,
		IsFeatured:      in.IsFeatured,
		BooktokThemed:   in.BooktokThemed,
		CreatedBy:       userID,
	}
	if ch.ChallengeType == "" {
		ch.ChallengeType = in.TargetUnit
	}
	if err := s.DB.WithContext(ctx).Create(&ch).Error; err != nil {
		return nil, apperrors.Internal("failed to create challenge", err)
	}

	log.Printf("🏁 [CHALLENGE] created %q (%s) by %s", ch.Title, ch.ID, userID)
	return &ch, nil
}

// UpdateChallenge replaces the writable fields. Only the creator or an admin
// may change a challenge.
func (s *ChallengeService) UpdateChallenge(ctx context.Context, userID string, isAdmin bool, challengeID string, in ChallengeInput) (*models.Challenge, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	ch, err := s.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if ch.CreatedBy != userID && !isAdmin {
		return nil, apperrors.Forbidden("only the creator can edit this challenge")
	}
	if in.MaxParticipants != nil && *in.MaxParticipants < ch.ParticipantCount {
		return nil, apperrors.Validation("max_participants is below the current participant count")
	}

	updates := map[string]any{
		"title":            strings.TrimSpace(in.Title),
		"slug":             utils.Slugify(in.Title),
		"description":      in.Description,
		"target_value":     in.TargetValue,
		"target_unit":      in.TargetUnit,
		"start_date":       in.StartDate.UTC(),
		"end_date":         in.EndDate.UTC(),
		"reward_points":    in.RewardPoints,
		"difficulty":       in.Difficulty,
		"genres":           datatypes.JSONSlice[string](utils.CanonicalGenres(in.Genres)),
		"max_participants": in.MaxParticipants,
		"is_featured":      in.IsFeatured,
		"booktok_themed":   in.BooktokThemed,
		"updated_at":       s.Now(),
	}
	if in.ChallengeType != "" {
		updates["challenge_type"] = in.ChallengeType
	}
	if in.IsPublic != nil {
		updates["is_public"] = *in.IsPublic
	}
	if err := s.DB.WithContext(ctx).Model(&models.Challenge{}).Where("id = ?", ch.ID).Updates(updates).Error; err != nil {
		return nil, apperrors.Internal("failed to update challenge", err)
	}
	return s.GetChallenge(ctx, ch.ID)
}

func (s *ChallengeService) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	var ch models.Challenge
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&ch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("challenge not found")
	}
	if err != nil {
		return nil, apperrors.Internal("DB error fetching challenge", err)
	}
	return &ch, nil
}

// ViewChallenge returns a challenge as seen by viewerID. Private challenges
// are visible only to their creator and admins.
func (s *ChallengeService) ViewChallenge(ctx context.Context, viewerID string, isAdmin bool, id string) (*models.Challenge, error) {
	ch, err := s.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ch.IsPublic && !isAdmin && (viewerID == "" || ch.CreatedBy != viewerID) {
		return nil, apperrors.NotFound("challenge not found")
	}
	return ch, nil
}

// Challenge list filters. Any other non-empty filter is treated as a genre.
const (
	ChallengeFilterAll      = "all"
	ChallengeFilterFeatured = "featured"
	ChallengeFilterActive   = "active"
	ChallengeFilterUpcoming = "upcoming"
)

// ListChallenges returns public challenges, featured first then newest.
func (s *ChallengeService) ListChallenges(ctx context.Context, filter string, limit, offset int) ([]models.Challenge, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	now := s.Now()
	q := s.DB.WithContext(ctx).Model(&models.Challenge{}).Where("is_public = ?", true)
	switch f := strings.TrimSpace(strings.ToLower(filter)); f {
	case "", ChallengeFilterAll:
	case ChallengeFilterFeatured:
		q = q.Where("is_featured = ?", true)
	case ChallengeFilterActive:
		q = q.Where("start_date <= ? AND end_date >= ?", now, now)
	case ChallengeFilterUpcoming:
		q = q.Where("start_date > ?", now)
	default:
		q = q.Where("LOWER(CAST(genres AS TEXT)) LIKE ? ESCAPE '\\'", `%"`+escapeLike(f)+`"%`)
	}

	var out []models.Challenge
	err := q.Order("is_featured DESC, created_at DESC, id ASC").Limit(limit).Offset(offset).Find(&out).Error
	if err != nil {
		return nil, apperrors.Internal("failed to list challenges", err)
	}
	return out, nil
}

// Join enrolls userID. The unique (user, challenge) index rejects a second
// join, and the participant counter is only bumped while below the cap.
// Only the creator may join a private challenge.
func (s *ChallengeService) Join(ctx context.Context, userID, challengeID string) (*models.ChallengeParticipation, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	now := s.Now()
	var part models.ChallengeParticipation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ch models.Challenge
		if err := tx.Where("id = ?", challengeID).First(&ch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("challenge not found")
			}
			return err
		}
		if !ch.IsPublic && ch.CreatedBy != userID {
			return apperrors.NotFound("challenge not found")
		}
		if ch.IsClosed(now) {
			return apperrors.State("challenge closed")
		}
		if _, err := ensureProfile(tx, userID); err != nil {
			return err
		}

		part = models.ChallengeParticipation{UserID: userID, ChallengeID: ch.ID, JoinedAt: now}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&part)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("already participating")
		}

		inc := tx.Model(&models.Challenge{}).Where("id = ?", ch.ID)
		if ch.MaxParticipants != nil {
			inc = inc.Where("participant_count < max_participants")
		}
		res = inc.UpdateColumn("participant_count", gorm.Expr("participant_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("challenge full")
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to join challenge")
	}

	log.Printf("🤝 [CHALLENGE] %s joined %s", userID, challengeID)
	return s.GetParticipation(ctx, userID, challengeID)
}

// ReportProgress records a new cumulative progress value. Crossing the target
// completes the participation and credits the reward once; calls after
// completion return the stored state unchanged.
func (s *ChallengeService) ReportProgress(ctx context.Context, userID, challengeID string, value int) (*models.ChallengeParticipation, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	if value < 0 {
		return nil, apperrors.State("invalid progress")
	}

	now := s.Now()
	completed := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var part models.ChallengeParticipation
		err := tx.Preload("Challenge").
			Where("user_id = ? AND challenge_id = ?", userID, challengeID).First(&part).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("not participating in this challenge")
		}
		if err != nil {
			return err
		}
		if part.Completed {
			return nil
		}
		if value < part.ProgressValue {
			return apperrors.State("invalid progress")
		}
		ch := part.Challenge

		res := tx.Model(&models.ChallengeParticipation{}).
			Where("id = ? AND completed = ? AND progress_value <= ?", part.ID, false, value).
			Updates(map[string]any{
				"progress_value":      value,
				"progress_percentage": models.ChallengeProgress(value, ch.TargetValue),
				"updated_at":          now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 || value < ch.TargetValue {
			return nil
		}

		// Only the update that flips completed may credit the reward.
		res = tx.Model(&models.ChallengeParticipation{}).
			Where("id = ? AND completed = ?", part.ID, false).
			Updates(map[string]any{
				"completed":       true,
				"completion_date": now,
				"points_awarded":  ch.RewardPoints,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		completed = true

		if ch.RewardPoints > 0 {
			if _, err := awardPoints(tx, pointCredit{
				UserID:     userID,
				Points:     int64(ch.RewardPoints),
				Source:     models.PointSourceChallenge,
				SourceID:   ch.ID,
				Reason:     "challenge_completed",
				Genres:     ch.Genres,
				OccurredAt: now,
			}); err != nil {
				return err
			}
		}
		if err := tx.Model(&models.UserProfile{}).Where("user_id = ?", userID).
			UpdateColumn("challenges_completed", gorm.Expr("challenges_completed + ?", 1)).Error; err != nil {
			return err
		}
		_, err = evaluateAchievements(tx, userID, now)
		return err
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to report progress")
	}

	if completed {
		metrics.ChallengeCompletions.Inc()
		log.Printf("🏆 [CHALLENGE] %s completed %s", userID, challengeID)
	}
	return s.GetParticipation(ctx, userID, challengeID)
}

func (s *ChallengeService) GetParticipation(ctx context.Context, userID, challengeID string) (*models.ChallengeParticipation, error) {
	var part models.ChallengeParticipation
	err := s.DB.WithContext(ctx).Preload("Challenge").
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).First(&part).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("not participating in this challenge")
	}
	if err != nil {
		return nil, apperrors.Internal("DB error fetching participation", err)
	}
	return &part, nil
}

// ListParticipations returns the user's challenges, open ones first.
func (s *ChallengeService) ListParticipations(ctx context.Context, userID string) ([]models.ChallengeParticipation, error) {
	var out []models.ChallengeParticipation
	err := s.DB.WithContext(ctx).Preload("Challenge").
		Where("user_id = ?", userID).
		Order("completed ASC, joined_at DESC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Internal("failed to list participations", err)
	}
	return out, nil
}
