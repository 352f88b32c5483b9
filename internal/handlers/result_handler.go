package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

type ResultHandler struct {
	worker *services.Worker
}

func NewResultHandler(worker *services.Worker) *ResultHandler {
	return &ResultHandler{
		worker: worker,
	}
}

// HandleGetResult handles GET /result/:id. Pending and running jobs are
// returned without results; failed jobs carry their error message.
func (h *ResultHandler) HandleGetResult(c *fiber.Ctx) error {
	job, err := h.worker.GetJob(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}

	// the stored request duplicates what the client sent
	job.Request = nil
	return c.JSON(job)
}
