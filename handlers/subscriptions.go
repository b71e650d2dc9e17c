package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/butykaidavid/read-rival-quest/middleware"
	"github.com/butykaidavid/read-rival-quest/services"
)

type checkoutRequest struct {
	PlanType string `json:"planType"`
}

func SetupSubscriptionRoutes(r fiber.Router, subs *services.SubscriptionService) {
	auth := middleware.RequireUser()

	r.Post("/subscriptions/checkout", auth, func(c *fiber.Ctx) error {
		var req checkoutRequest
		if err := c.BodyParser(&req); err != nil {
			return respondError(c, errInvalidBody)
		}
		res, err := subs.CreateCheckout(c.UserContext(), middleware.UserID(c), middleware.UserEmail(c), req.PlanType, c.Get(fiber.HeaderOrigin))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	r.Get("/me/subscription", auth, func(c *fiber.Ctx) error {
		sub, err := subs.GetSubscription(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(sub)
	})
}
