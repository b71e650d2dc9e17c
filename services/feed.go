package services

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/models"
)

var hashtagPattern = regexp.MustCompile(`#(\w+)`)

// ExtractHashtags returns the distinct #word tokens of content without the
// '#', case preserved, in order of first appearance.
func ExtractHashtags(content string) []string {
	tags := []string{}
	seen := map[string]bool{}
	for _, m := range hashtagPattern.FindAllStringSubmatch(content, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		tags = append(tags, m[1])
	}
	return tags
}

type FeedService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{DB: db, Now: utcNow}
}

type PostInput struct {
	Content       string          `json:"content" validate:"max=5000"`
	PostType      models.PostType `json:"post_type" validate:"required"`
	BookID        *string         `json:"book_id" validate:"omitempty,max=36"`
	AchievementID *string         `json:"achievement_id" validate:"omitempty,max=36"`
	ChallengeID   *string         `json:"challenge_id" validate:"omitempty,max=36"`
	ImageURL      *string         `json:"image_url" validate:"omitempty,url"`
	Visibility    string          `json:"visibility" validate:"omitempty,oneof=public private"`
}

func (s *FeedService) CreatePost(ctx context.Context, userID string, in PostInput) (*models.SocialPost, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperrors.Validation("empty content")
	}
	if !in.PostType.Valid() {
		return nil, apperrors.Validationf("invalid post_type %q", in.PostType)
	}
	if in.Visibility != "" && in.Visibility != models.VisibilityPublic && in.Visibility != models.VisibilityPrivate {
		return nil, apperrors.Validationf("invalid visibility %q", in.Visibility)
	}

	post := models.SocialPost{
		UserID:        userID,
		PostType:      in.PostType,
		Content:       content,
		BookID:        in.BookID,
		AchievementID: in.AchievementID,
		ChallengeID:   in.ChallengeID,
		ImageURL:      in.ImageURL,
		Hashtags:      datatypes.JSONSlice[string](ExtractHashtags(content)),
		Visibility:    in.Visibility,
		CreatedAt:     s.Now(),
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mustExist(tx, &models.Book{}, in.BookID, "book not found"); err != nil {
			return err
		}
		if err := mustExist(tx, &models.Challenge{}, in.ChallengeID, "challenge not found"); err != nil {
			return err
		}
		if err := mustExist(tx, &models.Achievement{}, in.AchievementID, "achievement not found"); err != nil {
			return err
		}
		return tx.Create(&post).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create post")
	}

	log.Printf("📝 [FEED] %s posted %s (%s, %d hashtags)", userID, post.ID, post.PostType, len(post.Hashtags))
	return &post, nil
}

func mustExist(tx *gorm.DB, model any, id *string, msg string) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := tx.Model(model).Where("id = ?", *id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound(msg)
	}
	return nil
}

// visiblePost loads a post the viewer may see. Private posts of others read
// as missing.
func visiblePost(tx *gorm.DB, viewerID, postID string) (*models.SocialPost, error) {
	var post models.SocialPost
	err := tx.Where("id = ?", postID).
		Where("visibility = ? OR user_id = ?", models.VisibilityPublic, viewerID).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("post not found")
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *FeedService) GetPost(ctx context.Context, viewerID, postID string) (*models.SocialPost, error) {
	post, err := visiblePost(s.DB.WithContext(ctx), viewerID, postID)
	return post, apperrors.Wrap(err, "DB error fetching post")
}

type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likes_count"`
}

// ToggleLike likes the post, or unlikes it when the user already does.
func (s *FeedService) ToggleLike(ctx context.Context, userID, postID string) (*LikeResult, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var result LikeResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := visiblePost(tx, userID, postID); err != nil {
			return err
		}

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			if err := tx.Model(&models.SocialPost{}).Where("id = ? AND likes_count > 0", postID).
				UpdateColumn("likes_count", gorm.Expr("likes_count - ?", 1)).Error; err != nil {
				return err
			}
		} else {
			result.Liked = true
			res = tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&models.PostLike{PostID: postID, UserID: userID})
			if res.Error != nil {
				return res.Error
			}
			// No row inserted means a concurrent like already counted it.
			if res.RowsAffected > 0 {
				if err := tx.Model(&models.SocialPost{}).Where("id = ?", postID).
					UpdateColumn("likes_count", gorm.Expr("likes_count + ?", 1)).Error; err != nil {
					return err
				}
			}
		}

		var post models.SocialPost
		if err := tx.Select("likes_count").Where("id = ?", postID).First(&post).Error; err != nil {
			return err
		}
		result.LikesCount = post.LikesCount
		return nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to toggle like")
	}
	return &result, nil
}

type CommentInput struct {
	Content         string  `json:"content" validate:"max=2000"`
	ParentCommentID *string `json:"parent_comment_id" validate:"omitempty,max=36"`
}

func (s *FeedService) AddComment(ctx context.Context, userID, postID string, in CommentInput) (*models.PostComment, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperrors.Validation("empty content")
	}

	comment := models.PostComment{PostID: postID, UserID: userID, ParentCommentID: in.ParentCommentID, Content: content}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := visiblePost(tx, userID, postID); err != nil {
			return err
		}
		if in.ParentCommentID != nil {
			var n int64
			if err := tx.Model(&models.PostComment{}).
				Where("id = ? AND post_id = ?", *in.ParentCommentID, postID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return apperrors.NotFound("parent comment not found")
			}
		}
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.SocialPost{}).Where("id = ?", postID).
			UpdateColumn("comments_count", gorm.Expr("comments_count + ?", 1)).Error
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to add comment")
	}
	return &comment, nil
}

func (s *FeedService) ListComments(ctx context.Context, viewerID, postID string) ([]models.PostComment, error) {
	if _, err := s.GetPost(ctx, viewerID, postID); err != nil {
		return nil, err
	}
	var out []models.PostComment
	if err := s.DB.WithContext(ctx).Where("post_id = ?", postID).
		Order("created_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, apperrors.Internal("failed to list comments", err)
	}
	return out, nil
}

// EditPost replaces the content. Hashtags keep the values derived when the
// post was created.
func (s *FeedService) EditPost(ctx context.Context, userID, postID, content string) (*models.SocialPost, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.Validation("empty content")
	}
	if err := s.updateOwnPost(ctx, userID, postID, map[string]any{"content": content}); err != nil {
		return nil, err
	}
	return s.GetPost(ctx, userID, postID)
}

func (s *FeedService) SetPinned(ctx context.Context, userID, postID string, pinned bool) (*models.SocialPost, error) {
	if err := s.updateOwnPost(ctx, userID, postID, map[string]any{"is_pinned": pinned}); err != nil {
		return nil, err
	}
	return s.GetPost(ctx, userID, postID)
}

func (s *FeedService) updateOwnPost(ctx context.Context, userID, postID string, updates map[string]any) error {
	post, err := s.GetPost(ctx, userID, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return apperrors.Forbidden("only the author can change this post")
	}
	updates["updated_at"] = s.Now()
	if err := s.DB.WithContext(ctx).Model(&models.SocialPost{}).
		Where("id = ? AND user_id = ?", postID, userID).Updates(updates).Error; err != nil {
		return apperrors.Internal("failed to update post", err)
	}
	return nil
}

func (s *FeedService) Follow(ctx context.Context, followerID, followingID string) error {
	if followerID == "" {
		return apperrors.ErrUnauthorized
	}
	if followingID == "" || followerID == followingID {
		return apperrors.Validation("cannot follow yourself")
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FollowingID: followingID}).Error
	if err != nil {
		return apperrors.Internal("failed to follow user", err)
	}
	return nil
}

func (s *FeedService) Unfollow(ctx context.Context, followerID, followingID string) error {
	err := s.DB.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{}).Error
	if err != nil {
		return apperrors.Internal("failed to unfollow user", err)
	}
	return nil
}

// Feed tabs.
const (
	FeedAll       = "all"
	FeedRomance   = "romance"
	FeedFantasy   = "fantasy"
	FeedFollowing = "following"
)

// tabTags are hashtag fragments and the book genre each genre tab matches.
var tabTags = map[string]struct {
	fragments []string
	genre     string
}{
	FeedRomance: {fragments: []string{"romance"}, genre: "romance"},
	FeedFantasy: {fragments: []string{"fantasy", "dragon"}, genre: "fantasy"},
}

type FeedQuery struct {
	Tab     string `query:"filter" validate:"omitempty,oneof=all romance fantasy following"`
	Hashtag string `query:"hashtag" validate:"omitempty,max=64"`
	Author  string `query:"author" validate:"omitempty,max=64"`
	Limit   int    `query:"limit"`
	Offset  int    `query:"offset"`
}

// ListFeed returns posts visible to viewerID, newest first.
func (s *FeedService) ListFeed(ctx context.Context, viewerID string, fq FeedQuery) ([]models.SocialPost, error) {
	if fq.Limit < 1 || fq.Limit > 100 {
		fq.Limit = 20
	}
	if fq.Offset < 0 {
		fq.Offset = 0
	}

	db := s.DB.WithContext(ctx)
	q := db.Model(&models.SocialPost{}).
		Where("visibility = ? OR user_id = ?", models.VisibilityPublic, viewerID)

	tab := strings.ToLower(strings.TrimSpace(fq.Tab))
	switch tab {
	case "", FeedAll:
	case FeedFollowing:
		following := db.Model(&models.Follow{}).Select("following_id").Where("follower_id = ?", viewerID)
		q = q.Where("user_id IN (?) OR user_id = ?", following, viewerID)
	case FeedRomance, FeedFantasy:
		t := tabTags[tab]
		books := db.Model(&models.Book{}).Select("id").
			Where("LOWER(CAST(genres AS TEXT)) LIKE ?", `%"`+t.genre+`"%`)
		cond := db.Where("book_id IN (?)", books)
		for _, f := range t.fragments {
			cond = cond.Or("LOWER(CAST(hashtags AS TEXT)) LIKE ?", "%"+f+"%")
		}
		q = q.Where(cond)
	default:
		return nil, apperrors.Validationf("invalid feed filter %q", fq.Tab)
	}

	if tag := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fq.Hashtag), "#")); tag != "" {
		q = q.Where("LOWER(CAST(hashtags AS TEXT)) LIKE ? ESCAPE '\\'", `%"`+escapeLike(tag)+`"%`)
	}
	order := "created_at DESC, id DESC"
	if fq.Author != "" {
		q = q.Where("user_id = ?", fq.Author)
		order = "is_pinned DESC, " + order
	}

	var posts []models.SocialPost
	if err := q.Order(order).Limit(fq.Limit).Offset(fq.Offset).Find(&posts).Error; err != nil {
		return nil, apperrors.Internal("failed to load feed", err)
	}
	return posts, nil
}

// PublicPostsSince returns public posts created after since, oldest first.
func (s *FeedService) PublicPostsSince(ctx context.Context, since time.Time, limit int) ([]models.SocialPost, error) {
	if limit < 1 {
		limit = 50
	}
	var posts []models.SocialPost
	err := s.DB.WithContext(ctx).
		Where("visibility = ? AND created_at > ?", models.VisibilityPublic, since).
		Order("created_at ASC, id ASC").Limit(limit).Find(&posts).Error
	return posts, err
}
