// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/butykaidavid/read-rival-quest/config"
	"github.com/butykaidavid/read-rival-quest/metrics"
	"github.com/butykaidavid/read-rival-quest/models"
)

// RemoteProfile matches one entry of the account service's profile feed.
type RemoteProfile struct {
	ExternalID        string    `json:"external_id"`
	Username          string    `json:"username"`
	FirstName         *string   `json:"first_name,omitempty"`
	LastName          *string   `json:"last_name,omitempty"`
	Bio               *string   `json:"bio,omitempty"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	SubscriptionTier  string    `json:"subscription_tier"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DisplayName joins first and last name, falling back to the username.
func (p RemoteProfile) DisplayName() string {
	var parts []string
	for _, s := range []*string{p.FirstName, p.LastName} {
		if s != nil && strings.TrimSpace(*s) != "" {
			parts = append(parts, strings.TrimSpace(*s))
		}
	}
	if len(parts) == 0 {
		return p.Username
	}
	return strings.Join(parts, " ")
}

type profileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProfileSyncWorker mirrors account profiles into the local profiles table.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client

	// Newest remote updated_at applied so far.
	since time.Time
}

func NewProfileSyncWorker(db *gorm.DB, cfg config.ProfileSyncConfig) *ProfileSyncWorker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &ProfileSyncWorker{
		db:           db,
		interval:     interval,
		baseURL:      cfg.URL,
		endpointPath: cfg.EndpointPath,
		serviceToken: cfg.ServiceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Profile Sync Worker (account service → profiles)…")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial sync backfills everything.
	if _, err := w.SyncOnce(ctx); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx); err != nil {
				log.Printf("❌ Profile sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Profile Sync Worker stopped")
			return
		}
	}
}

// SyncOnce pulls profiles changed since the last applied batch and upserts
// them. It returns the number of profiles written.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	users, err := w.fetch(ctx, w.since)
	if err != nil {
		metrics.WorkerRuns.WithLabelValues("profile_sync", "error").Inc()
		return 0, err
	}
	if len(users) == 0 {
		log.Printf("[SYNC] ✅ No profile changes since %s", w.since.Format(time.RFC3339))
		metrics.WorkerRuns.WithLabelValues("profile_sync", "ok").Inc()
		return 0, nil
	}

	log.Printf("[SYNC] 📥 Processing %d profile(s)…", len(users))

	var upserted, failed int
	latest := w.since
	for _, remote := range users {
		if remote.ExternalID == "" {
			failed++
			continue
		}
		tier := remote.SubscriptionTier
		if tier != models.TierPremium {
			tier = models.TierFree
		}
		local := models.UserProfile{
			UserID:           remote.ExternalID,
			Username:         remote.Username,
			DisplayName:      remote.DisplayName(),
			AvatarURL:        remote.ProfilePictureURL,
			Bio:              remote.Bio,
			SubscriptionTier: tier,
		}
		err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "display_name", "avatar_url", "bio", "subscription_tier", "updated_at",
			}),
		}).Create(&local).Error
		if err != nil {
			failed++
			log.Printf("[SYNC] ⚠️ Failed to upsert profile (external_id=%q, username=%q): %v",
				remote.ExternalID, remote.Username, err)
			continue
		}
		upserted++
		if remote.UpdatedAt.After(latest) {
			latest = remote.UpdatedAt
		}
	}

	// Only advance past a batch that fully applied, so failures are retried.
	if failed == 0 {
		w.since = latest
		metrics.WorkerRuns.WithLabelValues("profile_sync", "ok").Inc()
	} else {
		metrics.WorkerRuns.WithLabelValues("profile_sync", "error").Inc()
	}
	log.Printf("[SYNC] ✅ Synced %d profiles (%d upserted, %d errors). Cursor: %s",
		len(users), upserted, failed, w.since.Format(time.RFC3339))
	return upserted, nil
}

func (w *ProfileSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	if w.baseURL == "" {
		return nil, fmt.Errorf("profile sync URL not configured")
	}
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid profile sync URL '%s': %w", w.baseURL, err)
	}

	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to profile service failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile service returned %d: %s", resp.StatusCode, string(body))
	}

	var response profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode profile service response: %w", err)
	}
	return response.Users, nil
}
