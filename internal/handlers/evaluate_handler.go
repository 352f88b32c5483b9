package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

type EvaluationHandler struct {
	worker *services.Worker
}

func NewEvaluationHandler(worker *services.Worker) *EvaluationHandler {
	return &EvaluationHandler{
		worker: worker,
	}
}

// HandleEvaluate handles POST /evaluate
func (h *EvaluationHandler) HandleEvaluate(c *fiber.Ctx) error {
	var req models.EvaluationRequest

	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	// Submit validates the transcript and request shape
	job, err := h.worker.Submit(c.UserContext(), req)
	if err != nil {
		return errorJSON(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(models.EvaluateResponse{
		ID:     job.ProcessID,
		Status: job.Status,
	})
}
