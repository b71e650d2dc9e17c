package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LeaderboardMetric string

const (
	MetricPages  LeaderboardMetric = "pages"
	MetricBooks  LeaderboardMetric = "books"
	MetricStreak LeaderboardMetric = "streak"
	MetricPoints LeaderboardMetric = "points"
)

var LeaderboardMetrics = []LeaderboardMetric{MetricPages, MetricBooks, MetricStreak, MetricPoints}

func (m LeaderboardMetric) Valid() bool {
	switch m {
	case MetricPages, MetricBooks, MetricStreak, MetricPoints:
		return true
	}
	return false
}

type LeaderboardPeriod string

const (
	PeriodWeekly  LeaderboardPeriod = "weekly"
	PeriodMonthly LeaderboardPeriod = "monthly"
	PeriodAllTime LeaderboardPeriod = "all_time"
)

var LeaderboardPeriods = []LeaderboardPeriod{PeriodWeekly, PeriodMonthly, PeriodAllTime}

func (p LeaderboardPeriod) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodAllTime:
		return true
	}
	return false
}

// Window returns the trailing window ending at now. Start is nil for
// all_time.
func (p LeaderboardPeriod) Window(now time.Time) (start *time.Time, end time.Time) {
	var s time.Time
	switch p {
	case PeriodWeekly:
		s = now.AddDate(0, 0, -7)
	case PeriodMonthly:
		s = now.AddDate(0, 0, -30)
	default:
		return nil, now
	}
	return &s, now
}

// LeaderboardEntry is one ranked row. Computed boards return it directly;
// the scheduler persists snapshots of them.
type LeaderboardEntry struct {
	ID           string            `gorm:"primaryKey;size:36" json:"id,omitempty"`
	Metric       LeaderboardMetric `gorm:"size:16;not null;index:idx_leaderboard_lookup" json:"metric"`
	Period       LeaderboardPeriod `gorm:"size:16;not null;index:idx_leaderboard_lookup" json:"period"`
	GenreFilter  *string           `gorm:"size:64" json:"genre_filter,omitempty"`
	UserID       string            `gorm:"not null;size:64;index" json:"user_id"`
	DisplayName  string            `json:"display_name"`
	Value        int64             `gorm:"not null" json:"value"`
	RankPosition int               `gorm:"not null" json:"rank_position"`
	PeriodStart  *time.Time        `json:"period_start,omitempty"`
	PeriodEnd    time.Time         `json:"period_end"`
	CalculatedAt time.Time         `gorm:"not null;index:idx_leaderboard_lookup" json:"calculated_at"`
}

func (LeaderboardEntry) TableName() string { return "leaderboards" }

func (e *LeaderboardEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
