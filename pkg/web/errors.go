package web

import (
	"strings"

	"github.com/dukex/flujo/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// problemType is the lower-cased service error code, or fallback when the
// error carries none.
func problemType(err error, fallback string) string {
	if code := services.ErrorCode(err); code != "" {
		return strings.ToLower(code)
	}

	return fallback
}

// handleServiceError maps service error classes to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var status int

	switch {
	case services.IsValidationError(err):
		status = fiber.StatusBadRequest
	case services.IsUnauthorized(err):
		status = fiber.StatusUnauthorized
	case services.IsNotFound(err):
		status = fiber.StatusNotFound
	case services.IsConflictError(err):
		status = fiber.StatusConflict
	default:
		return internalError(c, err)
	}

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType(err, "error")).
		WithDetail(err.Error())

	return c.Status(status).JSON(problem)
}
