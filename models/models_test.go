package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestProgressPercentage(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   *int
		want    int
	}{
		{"unknown total", 50, nil, 0},
		{"zero total", 50, intPtr(0), 0},
		{"start", 0, intPtr(300), 0},
		{"rounds half up", 1, intPtr(200), 1},
		{"one third", 100, intPtr(300), 33},
		{"two thirds", 200, intPtr(300), 67},
		{"finished", 300, intPtr(300), 100},
		{"clamped", 400, intPtr(300), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProgressPercentage(tt.current, tt.total))
		})
	}
}

func TestReadingStatus_CanTransitionTo(t *testing.T) {
	statuses := []ReadingStatus{StatusWantToRead, StatusCurrentlyReading, StatusCompleted}
	allowed := map[[2]ReadingStatus]bool{
		{StatusWantToRead, StatusCurrentlyReading}: true,
		{StatusCurrentlyReading, StatusCompleted}:  true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, allowed[[2]ReadingStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, ReadingStatus("dnf").Valid())
}

func TestBookIDForProvider_Stable(t *testing.T) {
	a := BookIDForProvider("zyTCAlFPjgYC")
	b := BookIDForProvider("zyTCAlFPjgYC")
	c := BookIDForProvider("other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 36)
}

func TestLeaderboardPeriod_Window(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	start, end := PeriodWeekly.Window(now)
	require.NotNil(t, start)
	assert.Equal(t, time.Date(2026, 3, 24, 12, 0, 0, 0, time.UTC), *start)
	assert.Equal(t, now, end)

	start, _ = PeriodMonthly.Window(now)
	require.NotNil(t, start)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), *start)

	start, _ = PeriodAllTime.Window(now)
	assert.Nil(t, start)
}

func TestChallenge_State(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	c := &Challenge{
		StartDate:        now.AddDate(0, 0, -1),
		EndDate:          now.AddDate(0, 0, 1),
		MaxParticipants:  intPtr(2),
		ParticipantCount: 2,
	}
	assert.True(t, c.IsActive(now))
	assert.False(t, c.IsClosed(now))
	assert.True(t, c.IsClosed(now.AddDate(0, 0, 2)))
	assert.True(t, c.IsFull())

	assert.Equal(t, 50, ChallengeProgress(5, 10))
	assert.Equal(t, 100, ChallengeProgress(15, 10))
}

func TestUserProfile_Name(t *testing.T) {
	assert.Equal(t, "Ada", (&UserProfile{UserID: "u1", Username: "ada", DisplayName: "Ada"}).Name())
	assert.Equal(t, "ada", (&UserProfile{UserID: "u1", Username: "ada"}).Name())
	assert.Equal(t, "u1", (&UserProfile{UserID: "u1"}).Name())
}
