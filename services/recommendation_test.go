package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/testutil"
)

type fakeCompleter struct {
	reply     string
	err       error
	calls     int
	system    string
	user      string
	maxTokens int
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string, maxTokens int, _ float64) (string, error) {
	f.calls++
	f.system, f.user, f.maxTokens = system, user, maxTokens
	return f.reply, f.err
}

func setupRecommendations(t *testing.T, completer Completer) (*RecommendationService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewRecommendationService(db, completer)
	svc.Now = testutil.NewClock(testStart).Now
	return svc, db
}

func TestRecommend_RejectsUnknownType(t *testing.T) {
	completer := &fakeCompleter{}
	svc, _ := setupRecommendations(t, completer)

	_, err := svc.Recommend(context.Background(), "reader-1", RecommendationRequest{Type: "poems"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "invalid recommendation type", err.Error())
	assert.Zero(t, completer.calls)
}

func TestRecommend_TokenBudgetByTier(t *testing.T) {
	completer := &fakeCompleter{reply: `[{"title":"Fourth Wing"}]`}
	svc, db := setupRecommendations(t, completer)
	ctx := context.Background()

	rec, err := svc.Recommend(ctx, "reader-1", RecommendationRequest{Type: RecommendBooks})
	require.NoError(t, err)
	assert.Equal(t, freeMaxTokens, completer.maxTokens)
	assert.False(t, rec.IsPremium)
	assert.True(t, testStart.Equal(rec.GeneratedAt))

	require.NoError(t, db.Model(&models.UserProfile{}).Where("user_id = ?", "reader-1").
		Update("subscription_tier", models.TierPremium).Error)
	rec, err = svc.Recommend(ctx, "reader-1", RecommendationRequest{Type: RecommendBooks})
	require.NoError(t, err)
	assert.Equal(t, premiumMaxTokens, completer.maxTokens)
	assert.True(t, rec.IsPremium)
}

func TestRecommend_PromptCarriesHistory(t *testing.T) {
	completer := &fakeCompleter{reply: "{}"}
	svc, db := setupRecommendations(t, completer)
	ctx := context.Background()

	b := providerBook("vol-1", "Iron Flame", "Rebecca Yarros")
	require.NoError(t, upsertBook(db, &b))
	finished := testStart
	require.NoError(t, db.Create(&models.LibraryEntry{
		UserID: "reader-1", BookID: b.ID, Status: models.StatusCompleted, EndDate: &finished,
	}).Error)

	_, err := svc.Recommend(ctx, "reader-1", RecommendationRequest{
		Type:         RecommendBooks,
		Genres:       []string{"fantasy"},
		CurrentBooks: []string{"Onyx Storm"},
	})
	require.NoError(t, err)
	assert.Equal(t, booksSystemPrompt, completer.system)
	assert.Contains(t, completer.user, `"Iron Flame" by Rebecca Yarros`)
	assert.Contains(t, completer.user, "Current Reading: Onyx Storm")

	_, err = svc.Recommend(ctx, "reader-1", RecommendationRequest{
		Type:        RecommendReadingPlan,
		Preferences: map[string]any{"dailyGoal": 45},
	})
	require.NoError(t, err)
	assert.Equal(t, readingPlanSystemPrompt, completer.system)
	assert.Contains(t, completer.user, "Reading Goal: 45 pages/day")
	assert.Contains(t, completer.user, "Experience Level: intermediate")
}

func TestRecommend_ParsesReply(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  any
	}{
		{"fenced json", "Sure!\n```json\n{\"title\": \"Dragon Week\",}\n```", map[string]any{"title": "Dragon Week"}},
		{"bare array", `[{"title":"A"}]`, []any{map[string]any{"title": "A"}}},
		{"plain text", "Read more fantasy.", map[string]any{"text": "Read more fantasy."}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := setupRecommendations(t, &fakeCompleter{reply: tc.reply})
			rec, err := svc.Recommend(context.Background(), "reader-1", RecommendationRequest{Type: RecommendChallenge})
			require.NoError(t, err)
			assert.Equal(t, tc.want, rec.Recommendation)
			assert.Equal(t, RecommendChallenge, rec.Type)
		})
	}
}

func TestRecommend_UpstreamFailure(t *testing.T) {
	svc, _ := setupRecommendations(t, &fakeCompleter{err: errors.New("rate limit reached")})

	_, err := svc.Recommend(context.Background(), "reader-1", RecommendationRequest{Type: RecommendBooks})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Contains(t, err.Error(), "rate limit reached")

	unconfigured, _ := setupRecommendations(t, nil)
	_, err = unconfigured.Recommend(context.Background(), "reader-1", RecommendationRequest{Type: RecommendBooks})
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}
