package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/butykaidavid/read-rival-quest/apperrors"
)

// GatewayAuthMiddleware validates the Bearer token from the Gateway.
func GatewayAuthMiddleware(expectedToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			log.Printf("🚫 [GATEWAY_AUTH] Missing Authorization header for %s", c.Path())
			return reject(c, apperrors.Unauthorized("gateway authentication token missing"))
		}

		// Accept "Bearer <token>" or the raw token.
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Printf("❌ [GATEWAY_AUTH] Invalid token for %s", c.Path())
			return reject(c, apperrors.Unauthorized("invalid gateway authentication token"))
		}
		return c.Next()
	}
}

func reject(c *fiber.Ctx, err *apperrors.Error) error {
	return c.Status(err.HTTPStatus()).JSON(fiber.Map{
		"error": err.Message,
		"code":  err.Code,
	})
}
