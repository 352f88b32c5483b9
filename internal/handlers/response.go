package handlers

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

var validate = validator.New()

// StatusForKind maps an error kind to its HTTP status code.
func StatusForKind(kind string) int {
	switch kind {
	case services.KindValidation, services.KindNoMatch, services.KindParse:
		return fiber.StatusBadRequest
	case services.KindInvalidResult:
		return fiber.StatusUnprocessableEntity
	case services.KindNotFound, services.KindNoRecords:
		return fiber.StatusNotFound
	case services.KindConcurrentRun, services.KindBatchActive, services.KindCancelled:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func errorJSON(c *fiber.Ctx, err error) error {
	kind := services.ErrorKind(err)
	return c.Status(StatusForKind(kind)).JSON(models.ErrorResponse{
		Error: err.Error(),
		Kind:  kind,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
		Error: message,
		Kind:  services.KindValidation,
	})
}

// parseBody decodes the JSON body into dst and runs its validate tags.
// The returned *fiber.Error is rendered by ErrorHandler.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request payload")
	}
	if err := validate.Struct(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Invalid request payload: %v", err))
	}
	return nil
}

// ErrorHandler renders errors returned from handlers in the same shape as
// errorJSON. Service errors are mapped by kind.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		kind := ""
		if fiberErr.Code == fiber.StatusBadRequest {
			kind = services.KindValidation
		}
		return c.Status(fiberErr.Code).JSON(models.ErrorResponse{
			Error: fiberErr.Message,
			Kind:  kind,
		})
	}
	return errorJSON(c, err)
}

func sendExport(c *fiber.Ctx, name string, format services.ExportFormat, body string) error {
	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.%s"`, name, format.Extension()))
	return c.SendString(body)
}
