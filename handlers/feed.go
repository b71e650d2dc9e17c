package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/middleware"
	"github.com/butykaidavid/read-rival-quest/services"
)

type editPostRequest struct {
	Content string `json:"content" validate:"max=5000"`
}

type pinRequest struct {
	Pinned bool `json:"is_pinned"`
}

func SetupFeedRoutes(r fiber.Router, feed *services.FeedService) {
	// Anonymous viewers see public posts only.
	r.Get("/feed", func(c *fiber.Ctx) error {
		var fq services.FeedQuery
		if err := c.QueryParser(&fq); err != nil {
			return respondError(c, apperrors.Validation("invalid query"))
		}
		if err := validate.Validate(&fq); err != nil {
			return respondError(c, err)
		}
		posts, err := feed.ListFeed(c.UserContext(), middleware.UserID(c), fq)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(posts)
	})
	r.Get("/posts/:id", func(c *fiber.Ctx) error {
		p, err := feed.GetPost(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})
	r.Get("/posts/:id/comments", func(c *fiber.Ctx) error {
		comments, err := feed.ListComments(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(comments)
	})

	// 🔐 Secured
	auth := middleware.RequireUser()

	r.Post("/posts", auth, func(c *fiber.Ctx) error {
		var in services.PostInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		p, err := feed.CreatePost(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	})

	r.Patch("/posts/:id", auth, func(c *fiber.Ctx) error {
		var req editPostRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		p, err := feed.EditPost(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Content)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})

	r.Post("/posts/:id/pin", auth, func(c *fiber.Ctx) error {
		req := pinRequest{Pinned: true}
		if len(c.Body()) > 0 {
			if err := parseBody(c, &req); err != nil {
				return respondError(c, err)
			}
		}
		p, err := feed.SetPinned(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Pinned)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	})

	r.Post("/posts/:id/like", auth, func(c *fiber.Ctx) error {
		res, err := feed.ToggleLike(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})

	r.Post("/posts/:id/comments", auth, func(c *fiber.Ctx) error {
		var in services.CommentInput
		if err := parseBody(c, &in); err != nil {
			return respondError(c, err)
		}
		comment, err := feed.AddComment(c.UserContext(), middleware.UserID(c), c.Params("id"), in)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(comment)
	})

	r.Post("/users/:id/follow", auth, func(c *fiber.Ctx) error {
		if err := feed.Follow(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"following": true})
	})
	r.Delete("/users/:id/follow", auth, func(c *fiber.Ctx) error {
		if err := feed.Unfollow(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"following": false})
	})
}
