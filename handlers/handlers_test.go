package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/services"
	"github.com/butykaidavid/read-rival-quest/testutil"
)

const gatewayToken = "gw-secret"

type noProvider struct{}

func (noProvider) SearchBooks(context.Context, string, string, int) ([]models.Book, error) {
	return nil, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	db := testutil.NewDB(t)
	return NewApp(Services{
		Catalog:         services.NewCatalogService(db, noProvider{}, 10),
		Library:         services.NewLibraryService(db),
		Challenges:      services.NewChallengeService(db),
		Leaderboards:    services.NewLeaderboardService(db),
		Feed:            services.NewFeedService(db),
		Profiles:        services.NewProfileService(db),
		Recommendations: services.NewRecommendationService(db, nil),
		Subscriptions:   services.NewSubscriptionService(db, nil),
	}, AppOptions{GatewayToken: gatewayToken})
}

type call struct {
	method, path, body string
	user, roles        string
	noGateway          bool
}

func do(t *testing.T, app *fiber.App, c call) (int, map[string]any, string) {
	t.Helper()
	var body io.Reader
	if c.body != "" {
		body = strings.NewReader(c.body)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if !c.noGateway {
		req.Header.Set("Authorization", "Bearer "+gatewayToken)
	}
	if c.user != "" {
		req.Header.Set("X-User-ID", c.user)
	}
	if c.roles != "" {
		req.Header.Set("X-User-Roles", c.roles)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var obj map[string]any
	_ = json.Unmarshal(raw, &obj)
	return resp.StatusCode, obj, string(raw)
}

func TestHealthEndpointsSkipGateway(t *testing.T) {
	app := newTestApp(t)

	status, body, _ := do(t, app, call{method: http.MethodGet, path: "/healthz", noGateway: true})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, _, raw := do(t, app, call{method: http.MethodGet, path: "/metrics", noGateway: true})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, raw, "go_goroutines")
}

func TestAPIRequiresGateway(t *testing.T) {
	app := newTestApp(t)

	status, body, _ := do(t, app, call{method: http.MethodGet, path: "/api/v1/challenges", noGateway: true})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	status, _, _ = do(t, app, call{method: http.MethodGet, path: "/api/v1/challenges"})
	assert.Equal(t, http.StatusOK, status)
}

func TestSecuredRoutesRequireUser(t *testing.T) {
	app := newTestApp(t)

	for _, c := range []call{
		{method: http.MethodGet, path: "/api/v1/library"},
		{method: http.MethodPost, path: "/api/v1/posts", body: `{"content":"hi","post_type":"review"}`},
		{method: http.MethodGet, path: "/api/v1/me/profile"},
		{method: http.MethodPost, path: "/api/v1/challenges/x/join"},
	} {
		status, body, _ := do(t, app, c)
		assert.Equal(t, http.StatusUnauthorized, status, c.path)
		assert.Equal(t, "UNAUTHORIZED", body["code"], c.path)
	}

	// Public routes registered after secured ones stay public.
	status, _, _ := do(t, app, call{method: http.MethodGet, path: "/api/v1/achievements"})
	assert.Equal(t, http.StatusOK, status)
	status, _, _ = do(t, app, call{method: http.MethodGet, path: "/api/v1/leaderboards/pages/weekly"})
	assert.Equal(t, http.StatusOK, status)
}

func TestLibraryFlow(t *testing.T) {
	app := newTestApp(t)

	status, entry, raw := do(t, app, call{
		method: http.MethodPost, path: "/api/v1/library", user: "reader-1",
		body: `{"book":{"title":"Dune","authors":["Frank Herbert"],"page_count":400},"status":"currently_reading"}`,
	})
	require.Equal(t, http.StatusCreated, status, raw)
	id, _ := entry["id"].(string)
	require.NotEmpty(t, id)

	status, entry, raw = do(t, app, call{
		method: http.MethodPatch, path: "/api/v1/library/" + id + "/progress", user: "reader-1",
		body: `{"current_page":100,"reading_time_minutes":30}`,
	})
	require.Equal(t, http.StatusOK, status, raw)
	assert.EqualValues(t, 100, entry["current_page"])

	status, body, _ := do(t, app, call{
		method: http.MethodPatch, path: "/api/v1/library/" + id + "/status", user: "reader-1",
		body: `{"status":"abandoned"}`,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", body["code"])

	status, body, _ = do(t, app, call{
		method: http.MethodPost, path: "/api/v1/library", user: "reader-1",
		body: `{"book_id":"` + entry["book_id"].(string) + `"}`,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body["code"])

	// Another reader cannot see the entry.
	status, _, _ = do(t, app, call{method: http.MethodGet, path: "/api/v1/library/" + id, user: "reader-2"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _, _ = do(t, app, call{method: http.MethodDelete, path: "/api/v1/library/" + id, user: "reader-1"})
	assert.Equal(t, http.StatusNoContent, status)
}

func TestLibraryInlineBookIgnoresClientID(t *testing.T) {
	app := newTestApp(t)

	status, entry, raw := do(t, app, call{
		method: http.MethodPost, path: "/api/v1/library", user: "reader-1",
		body: `{"book":{"id":"chosen-by-client","google_books_id":"vol-7","title":"Dune"}}`,
	})
	require.Equal(t, http.StatusCreated, status, raw)
	assert.Equal(t, models.BookIDForProvider("vol-7"), entry["book_id"])
}

func TestPrivateChallengeVisibility(t *testing.T) {
	app := newTestApp(t)

	status, ch, raw := do(t, app, call{
		method: http.MethodPost, path: "/api/v1/challenges", user: "creator",
		body: `{"title":"Secret Club","target_value":5,"target_unit":"books","difficulty":"easy",` +
			`"start_date":"2030-01-01T00:00:00Z","end_date":"2030-02-01T00:00:00Z","is_public":false}`,
	})
	require.Equal(t, http.StatusCreated, status, raw)
	path := "/api/v1/challenges/" + ch["id"].(string)

	status, _, _ = do(t, app, call{method: http.MethodGet, path: path})
	assert.Equal(t, http.StatusNotFound, status)
	status, _, _ = do(t, app, call{method: http.MethodGet, path: path, user: "creator"})
	assert.Equal(t, http.StatusOK, status)
	status, _, _ = do(t, app, call{method: http.MethodGet, path: path, user: "mod", roles: "admin"})
	assert.Equal(t, http.StatusOK, status)
	status, _, _ = do(t, app, call{method: http.MethodPost, path: path + "/join", user: "stranger"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMalformedBody(t *testing.T) {
	app := newTestApp(t)

	status, body, _ := do(t, app, call{method: http.MethodPost, path: "/api/v1/posts", user: "reader-1", body: `{"content":`})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid request body", body["error"])
}

func TestAdminRoutes(t *testing.T) {
	app := newTestApp(t)
	grant := `{"user_id":"reader-1","points":40,"reason":"event winner"}`

	status, body, _ := do(t, app, call{method: http.MethodPost, path: "/api/v1/admin/points", user: "mod", body: grant})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])

	status, body, raw := do(t, app, call{method: http.MethodPost, path: "/api/v1/admin/points", user: "mod", roles: "reader, admin", body: grant})
	require.Equal(t, http.StatusOK, status, raw)
	assert.EqualValues(t, 40, body["total_points"])
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApp(t)

	status, body, _ := do(t, app, call{method: http.MethodGet, path: "/nope"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}
