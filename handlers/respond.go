package handlers

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/butykaidavid/read-rival-quest/apperrors"
	"github.com/butykaidavid/read-rival-quest/validation"
)

var validate = validation.New()

// respondError writes err as {"error", "code"} with the status of its code.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal("internal error", err)
	}
	if appErr.Code == apperrors.CodeInternal {
		log.Printf("❌ [HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}
	body := fiber.Map{"error": appErr.Message, "code": appErr.Code}
	if appErr.Details != nil {
		body["details"] = appErr.Details
	}
	return c.Status(appErr.HTTPStatus()).JSON(body)
}

// ErrorHandler is the fiber.Config error handler. Routing errors keep their
// status; everything else goes through respondError.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message, "code": codeForStatus(fe.Code)})
	}
	return respondError(c, err)
}

func codeForStatus(status int) apperrors.Code {
	switch status {
	case fiber.StatusBadRequest:
		return apperrors.CodeValidation
	case fiber.StatusUnauthorized:
		return apperrors.CodeUnauthorized
	case fiber.StatusForbidden:
		return apperrors.CodeForbidden
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return apperrors.CodeNotFound
	default:
		return apperrors.CodeInternal
	}
}

// parseBody decodes the JSON body into dst and validates it.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return errInvalidBody
	}
	return validate.Validate(dst)
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return n
}

var errInvalidBody = apperrors.Validation("invalid request body")
