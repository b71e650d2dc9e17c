package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butykaidavid/read-rival-quest/services"
)

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func whoami(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"user_id": UserID(c), "roles": Roles(c), "admin": IsAdmin(c), "email": UserEmail(c)})
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("gw-secret"))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Bearer gw-secret", http.StatusOK},
		{"raw", "gw-secret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.status == http.StatusUnauthorized {
				assert.Equal(t, "UNAUTHORIZED", decode(t, resp)["code"])
			}
		})
	}
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(UserContextMiddleware())
	app.Get("/open", whoami)
	app.Get("/secure", RequireUser(), whoami)
	app.Get("/admin", RequireUser(), RequireAdmin(), whoami)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", decode(t, resp)["user_id"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/secure", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", decode(t, resp)["code"])

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("X-User-ID", "reader-1")
	req.Header.Set("X-User-Roles", "reader, admin ,")
	req.Header.Set("X-User-Email", "r@example.com")
	resp, err = app.Test(req)
	require.NoError(t, err)
	body := decode(t, resp)
	assert.Equal(t, "reader-1", body["user_id"])
	assert.Equal(t, []any{"reader", "admin"}, body["roles"])
	assert.Equal(t, true, body["admin"])
	assert.Equal(t, "r@example.com", body["email"])

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("X-User-ID", "reader-2")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

type fakeValidator struct{}

func (fakeValidator) ValidateToken(_ context.Context, token, deviceID string) (*services.ValidateResponse, error) {
	if token != "good" {
		return nil, errors.New("auth validation failed: 401")
	}
	return &services.ValidateResponse{UserID: "reader-9", DeviceID: deviceID}, nil
}

func TestSSEAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/stream", SSEAuthMiddleware(fakeValidator{}), whoami)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/stream?token=good", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/stream?token=bad&device_id=d1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/stream?token=good&device_id=d1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "reader-9", decode(t, resp)["user_id"])
}
