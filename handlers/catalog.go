package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/butykaidavid/read-rival-quest/middleware"
	"github.com/butykaidavid/read-rival-quest/models"
	"github.com/butykaidavid/read-rival-quest/services"
)

func SetupCatalogRoutes(r fiber.Router, catalog *services.CatalogService) {
	// 🔓 Public
	r.Get("/books/search", func(c *fiber.Ctx) error {
		books, err := catalog.Resolve(c.UserContext(), c.Query("q"), c.Query("genre"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"books": books, "count": len(books)})
	})
	r.Get("/books/trending", func(c *fiber.Ctx) error {
		books, err := catalog.ListTrending(c.UserContext(), queryInt(c, "limit", 12))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(books)
	})
	r.Get("/books/:id", func(c *fiber.Ctx) error {
		book, err := catalog.GetBook(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(book)
	})

	// 🔐 Secured
	r.Post("/books", middleware.RequireUser(), func(c *fiber.Ctx) error {
		var book models.Book
		if err := c.BodyParser(&book); err != nil {
			return respondError(c, errInvalidBody)
		}
		// Clients may not set server-maintained fields.
		book.ID, book.MirroredCoverURL, book.SearchText = "", nil, ""
		saved, err := catalog.UpsertBook(c.UserContext(), &book)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(saved)
	})
}
