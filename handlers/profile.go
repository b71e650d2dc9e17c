package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/butykaidavid/read-rival-quest/middleware"
	"github.com/butykaidavid/read-rival-quest/services"
)

type grantPointsRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Points int64  `json:"points" validate:"gt=0"`
	Reason string `json:"reason" validate:"required,max=255"`
}

func SetupProfileRoutes(r fiber.Router, profiles *services.ProfileService) {
	// 🔓 Public
	r.Get("/achievements", func(c *fiber.Ctx) error {
		list, err := profiles.AchievementCatalog(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})
	r.Get("/profiles/:user_id", func(c *fiber.Ctx) error {
		p, err := profiles.GetProfile(c.UserContext(), c.Params("user_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})

	// 🔐 Secured
	me := r.Group("/me", middleware.RequireUser())

	me.Get("/profile", func(c *fiber.Ctx) error {
		p, err := profiles.EnsureProfile(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})
	me.Patch("/profile", func(c *fiber.Ctx) error {
		var in services.ProfileUpdate
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		p, err := profiles.UpdateProfile(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})
	me.Get("/points", func(c *fiber.Ctx) error {
		rows, err := profiles.PointHistory(c.UserContext(), middleware.UserID(c), queryInt(c, "limit", 20))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(rows)
	})
	me.Get("/achievements", func(c *fiber.Ctx) error {
		list, err := profiles.ListAchievements(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	})

	// 👑 Admin
	admin := r.Group("/admin", middleware.RequireUser(), middleware.RequireAdmin())
	admin.Post("/points", func(c *fiber.Ctx) error {
		var req grantPointsRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		p, err := profiles.GrantPoints(c.UserContext(), req.UserID, req.Points, req.Reason)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})
}
