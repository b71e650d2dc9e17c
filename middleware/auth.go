package middleware

import (
	"log"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/butykaidavid/read-rival-quest/apperrors"
)

// Locals keys set by the auth middlewares.
const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
	LocalUserEmail = "user_email"
	LocalDeviceID  = "device_id"
)

const RoleAdmin = "admin"

// UserContextMiddleware extracts user identity and roles set by Gateway.
// Anonymous requests pass through with an empty user id.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, roles)
		c.Locals(LocalUserEmail, strings.TrimSpace(c.Get("X-User-Email")))
		return c.Next()
	}
}

// RequireUser rejects requests that reached the route without a user.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			log.Printf("❌ [USER_CTX] X-User-ID required but missing on secured route: %s", c.Path())
			return reject(c, apperrors.Unauthorized("missing X-User-ID, request must come through gateway with auth context"))
		}
		return c.Next()
	}
}

// RequireAdmin rejects requests from users without the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			log.Printf("🚫 [USER_CTX] %q is not an admin: %s", UserID(c), c.Path())
			return reject(c, apperrors.Forbidden("admin role required"))
		}
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

func UserEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(LocalUserEmail).(string)
	return email
}

func Roles(c *fiber.Ctx) []string {
	roles, _ := c.Locals(LocalUserRoles).([]string)
	return roles
}

func IsAdmin(c *fiber.Ctx) bool {
	return slices.Contains(Roles(c), RoleAdmin)
}
