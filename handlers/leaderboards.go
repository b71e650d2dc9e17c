package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/butykaidavid/read-rival-quest/middleware"
	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/services"
)

func boardParams(c *fiber.Ctx) (models.LeaderboardMetric, models.LeaderboardPeriod) {
	return models.LeaderboardMetric(c.Params("metric")), models.LeaderboardPeriod(c.Params("period"))
}

func SetupLeaderboardRoutes(r fiber.Router, boards *services.LeaderboardService) {
	g := r.Group("/leaderboards")

	// Live ranking, computed on request.
	g.Get("/:metric/:period", func(c *fiber.Ctx) error {
		metric, period := boardParams(c)
		entries, err := boards.ComputeLeaderboard(c.UserContext(), metric, period, c.Query("genre"))
		if err != nil {
			return respondError(c, err)
		}
		if limit := queryInt(c, "limit", 0); limit > 0 && limit < len(entries) {
			entries = entries[:limit]
		}
		return c.JSON(entries)
	})

	// Last stored snapshot written by the scheduler.
	g.Get("/:metric/:period/snapshot", func(c *fiber.Ctx) error {
		metric, period := boardParams(c)
		entries, err := boards.LatestSnapshot(c.UserContext(), metric, period, queryInt(c, "limit", 100))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	})

	g.Get("/:metric/:period/me", middleware.RequireUser(), func(c *fiber.Ctx) error {
		metric, period := boardParams(c)
		entry, err := boards.UserRank(c.UserContext(), middleware.UserID(c), metric, period, c.Query("genre"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entry)
	})
}
