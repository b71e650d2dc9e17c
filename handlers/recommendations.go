package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/butykaidavid/read-rival-quest/middleware"
	"github.com/butykaidavid/read-rival-quest/services"
)

func SetupRecommendationRoutes(r fiber.Router, recs *services.RecommendationService) {
	r.Post("/recommendations", middleware.RequireUser(), func(c *fiber.Ctx) error {
		var req services.RecommendationRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, errInvalidBody)
		}
		// Type is checked by the service so unknown types get its message.
		rec, err := recs.Recommend(c.UserContext(), middleware.UserID(c), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rec)
	})
}
