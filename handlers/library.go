package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/middleware"
	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/services"
)

type addToLibraryRequest struct {
	BookID *string              `json:"book_id" validate:"omitempty,max=36"`
	Book   *models.Book         `json:"book"`
	Status models.ReadingStatus `json:"status" validate:"omitempty,oneof=want_to_read currently_reading completed"`
}

type progressRequest struct {
	CurrentPage  int `json:"current_page" validate:"gte=0"`
	DeltaMinutes int `json:"reading_time_minutes"`
}

type statusRequest struct {
	Status models.ReadingStatus `json:"status" validate:"required,oneof=want_to_read currently_reading completed"`
}

func SetupLibraryRoutes(r fiber.Router, library *services.LibraryService) {
	// 🔐 Secured
	g := r.Group("/library", middleware.RequireUser())

	g.Get("/", func(c *fiber.Ctx) error {
		entries, err := library.ListLibrary(c.UserContext(), middleware.UserID(c), models.ReadingStatus(c.Query("status")))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	})

	g.Post("/", func(c *fiber.Ctx) error {
		var req addToLibraryRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		book := req.Book
		if book != nil {
			// Inline books are matched by provider id or created fresh.
			book.ID, book.MirroredCoverURL, book.SearchText = "", nil, ""
		}
		if req.BookID != nil {
			book = &models.Book{ID: *req.BookID}
		}
		if book == nil {
			return respondError(c, apperrors.Validation("book or book_id is required"))
		}
		entry, err := library.AddToLibrary(c.UserContext(), middleware.UserID(c), book, req.Status)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(entry)
	})

	g.Get("/:id", func(c *fiber.Ctx) error {
		entry, err := library.GetEntry(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entry)
	})

	g.Patch("/:id/progress", func(c *fiber.Ctx) error {
		var req progressRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		entry, err := library.UpdateProgress(c.UserContext(), middleware.UserID(c), c.Params("id"), req.CurrentPage, req.DeltaMinutes)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entry)
	})

	g.Patch("/:id/status", func(c *fiber.Ctx) error {
		var req statusRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		entry, err := library.TransitionStatus(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Status)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entry)
	})

	g.Patch("/:id/review", func(c *fiber.Ctx) error {
		var req services.EntryReview
		if err := parseBody(c, &req); err != nil {
			return respondError(c, err)
		}
		entry, err := library.RateEntry(c.UserContext(), middleware.UserID(c), c.Params("id"), req)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entry)
	})

	g.Delete("/:id", func(c *fiber.Ctx) error {
		if err := library.RemoveFromLibrary(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
