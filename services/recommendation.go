package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/clients/openai"
	"github.com/butykaidavid/read-rival-quest/metrics"
	"github.com/butykaidavid/read-rival-quest/models"
)

// Completer runs one chat completion.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
}

const (
	RecommendBooks       = "books"
	RecommendReadingPlan = "reading_plan"
	RecommendChallenge   = "challenge"

	premiumMaxTokens = 2000
	freeMaxTokens    = 1000
	recommendTemp    = 0.7
)

type RecommendationRequest struct {
	Type         string         `json:"type" validate:"required,oneof=books reading_plan challenge"`
	Genres       []string       `json:"genres" validate:"omitempty,max=20,dive,max=64"`
	CurrentBooks []string       `json:"currentBooks" validate:"omitempty,max=20,dive,max=255"`
	Preferences  map[string]any `json:"preferences"`
}

type Recommendation struct {
	Recommendation any       `json:"recommendation"`
	Type           string    `json:"type"`
	GeneratedAt    time.Time `json:"generated_at"`
	IsPremium      bool      `json:"is_premium"`
}

type RecommendationService struct {
	DB        *gorm.DB
	Completer Completer
	Now       func() time.Time
}

func NewRecommendationService(db *gorm.DB, completer Completer) *RecommendationService {
	return &RecommendationService{DB: db, Completer: completer, Now: utcNow}
}

// Recommend asks the completion provider for a recommendation shaped by the
// user's finished books and profile. Provider failures are returned as
// upstream errors carrying the provider message; there is no retry.
func (s *RecommendationService) Recommend(ctx context.Context, userID string, req RecommendationRequest) (*Recommendation, error) {
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	switch req.Type {
	case RecommendBooks, RecommendReadingPlan, RecommendChallenge:
	default:
		return nil, apperrors.Validation("invalid recommendation type")
	}
	if s.Completer == nil {
		return nil, apperrors.Upstream(openai.ErrNotConfigured.Error(), openai.ErrNotConfigured)
	}

	prof, err := ensureProfile(s.DB.WithContext(ctx), userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load profile", err)
	}
	read, err := s.readingHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	system, user := buildPrompts(req, read, prof.FavoriteGenres)
	maxTokens := freeMaxTokens
	if prof.IsPremium() {
		maxTokens = premiumMaxTokens
	}

	log.Printf("🤖 [RECOMMEND] %s requested %s (max_tokens=%d)", userID, req.Type, maxTokens)
	raw, err := s.Completer.Complete(ctx, system, user, maxTokens, recommendTemp)
	if err != nil {
		metrics.ExternalCallFailures.WithLabelValues("openai").Inc()
		log.Printf("❌ [RECOMMEND] completion failed for %s: %v", userID, err)
		return nil, apperrors.Upstream(err.Error(), err)
	}

	return &Recommendation{
		Recommendation: parseRecommendation(raw),
		Type:           req.Type,
		GeneratedAt:    s.Now(),
		IsPremium:      prof.IsPremium(),
	}, nil
}

// readingHistory returns up to ten of the user's completed books.
func (s *RecommendationService) readingHistory(ctx context.Context, userID string) ([]models.Book, error) {
	var entries []models.LibraryEntry
	err := s.DB.WithContext(ctx).Preload("Book").
		Where("user_id = ? AND status = ?", userID, models.StatusCompleted).
		Order("end_date DESC").Limit(10).Find(&entries).Error
	if err != nil {
		return nil, apperrors.Internal("failed to load reading history", err)
	}
	books := make([]models.Book, 0, len(entries))
	for _, e := range entries {
		if e.Book != nil {
			books = append(books, *e.Book)
		}
	}
	return books, nil
}

// parseRecommendation decodes the completion as JSON, wrapping plain text
// under "text" when it is not.
func parseRecommendation(raw string) any {
	var parsed any
	if err := json.Unmarshal([]byte(openai.ExtractJSON(raw)), &parsed); err != nil {
		return map[string]any{"text": raw}
	}
	return parsed
}

func pref(prefs map[string]any, key string, def any) any {
	if v, ok := prefs[key]; ok && v != nil && v != "" {
		return v
	}
	return def
}

func buildPrompts(req RecommendationRequest, read []models.Book, favorites []string) (string, string) {
	genres := strings.Join(req.Genres, ", ")
	switch req.Type {
	case RecommendReadingPlan:
		return readingPlanSystemPrompt, fmt.Sprintf(readingPlanUserPrompt,
			strings.Join(favorites, ", "), genres,
			pref(req.Preferences, "dailyGoal", 30), pref(req.Preferences, "level", "intermediate"))
	case RecommendChallenge:
		return challengeSystemPrompt, fmt.Sprintf(challengeUserPrompt,
			genres, pref(req.Preferences, "duration", "monthly"), pref(req.Preferences, "difficulty", "medium"))
	default:
		history := make([]string, 0, len(read))
		for _, b := range read {
			history = append(history, fmt.Sprintf("%q by %s (%s)", b.Title, strings.Join(b.Authors, ", "), strings.Join(b.Genres, ", ")))
		}
		return booksSystemPrompt, fmt.Sprintf(booksUserPrompt,
			strings.Join(history, "; "), strings.Join(favorites, ", "), genres, strings.Join(req.CurrentBooks, ", "))
	}
}

const booksSystemPrompt = `You are a book recommendation expert specializing in romance and fantasy genres, particularly popular on BookTok. Focus on trending books with themes like enemies-to-lovers, dragons, fae, love triangles, and spicy romance. Provide personalized recommendations based on user's reading history.`

const booksUserPrompt = `Based on this reading profile, recommend 5 books:

Reading History: %s
Favorite Genres: %s
Current Interests: %s
Current Reading: %s

Focus on:
- Romance books with enemies-to-lovers, fake dating, second chance themes
- Fantasy books with dragons, fae, magic systems, epic quests
- Popular BookTok trends and viral books
- Books similar to ACOTAR, Fourth Wing, The Seven Husbands of Evelyn Hugo

Format as JSON array with: title, author, genre, reason, booktok_appeal, spice_level (1-5)`

const readingPlanSystemPrompt = `You are a reading coach specializing in romance and fantasy genres. Create engaging 30-day reading plans that incorporate popular BookTok trends and challenge themes.`

const readingPlanUserPrompt = `Create a 30-day reading plan for:

User Profile:
- Favorite Genres: %s
- Preferred Themes: %s
- Reading Goal: %v pages/day
- Experience Level: %v

Plan Requirements:
- Include romance and fantasy books
- Mix of popular BookTok titles and classics
- Include challenges like "enemies-to-lovers week" or "dragon fantasy marathon"
- Provide daily motivation and mini-goals
- Consider spice levels and content warnings

Format as JSON with: week_themes, daily_goals, book_suggestions, challenges, motivation_tips`

const challengeSystemPrompt = `You are a gamification expert for reading challenges. Create engaging, genre-specific challenges that motivate readers to explore romance and fantasy books.`

const challengeUserPrompt = `Create a reading challenge based on:

Preferences: %s
Duration: %v
Difficulty: %v
Focus: Romance and Fantasy genres

Requirements:
- Specific page/book targets
- Genre-specific themes (dragons, enemies-to-lovers, etc.)
- Bonus objectives for extra points
- BookTok integration opportunities
- Social sharing elements

Format as JSON with: title, description, requirements, bonus_objectives, estimated_difficulty, genre_focus`
