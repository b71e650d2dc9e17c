package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/butykaidavid/read-rival-quest/middleware"
	"github.com/butykaidavid/read-rival-quest/services"
)

type challengeProgressRequest struct {
	Value int `json:"value" validate:"gte=0"`
}

func SetupChallengeRoutes(r fiber.Router, challenges *services.ChallengeService) {
	// 🔓 Public
	r.Get("/challenges", func(c *fiber.Ctx) error {
		list, err := challenges.ListChallenges(c.UserContext(), c.Query("filter", "all"), queryInt(c, "limit", 20), queryInt(c, "offset", 0))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})
	r.Get("/challenges/:id", func(c *fiber.Ctx) error {
		ch, err := challenges.ViewChallenge(c.UserContext(), middleware.UserID(c), middleware.IsAdmin(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(ch)
	})

	// 🔐 Secured
	auth := middleware.RequireUser()

	r.Get("/me/challenges", auth, func(c *fiber.Ctx) error {
		list, err := challenges.ListParticipations(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	r.Post("/challenges", auth, func(c *fiber.Ctx) error {
		var in services.ChallengeInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		ch, err := challenges.CreateChallenge(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(ch)
	})

	r.Put("/challenges/:id", auth, func(c *fiber.Ctx) error {
		var in services.ChallengeInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		ch, err := challenges.UpdateChallenge(c.UserContext(), middleware.UserID(c), middleware.IsAdmin(c), c.Params("id"), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(ch)
	})

	r.Post("/challenges/:id/join", auth, func(c *fiber.Ctx) error {
		p, err := challenges.Join(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	r.Post("/challenges/:id/progress", auth, func(c *fiber.Ctx) error {
		var req challengeProgressRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		p, err := challenges.ReportProgress(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Value)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})

	r.Get("/challenges/:id/participation", auth, func(c *fiber.Ctx) error {
		p, err := challenges.GetParticipation(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})
}
