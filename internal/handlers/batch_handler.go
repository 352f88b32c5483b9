package handlers

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/GCYYfun/ai-studio-sub001/internal/config"
	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

type BatchHandler struct {
	batches  *services.BatchService
	defaults config.BatchConfig
	// batches outlive the request that started them
	baseCtx context.Context
}

func NewBatchHandler(ctx context.Context, batches *services.BatchService, defaults config.BatchConfig) *BatchHandler {
	return &BatchHandler{
		batches:  batches,
		defaults: defaults,
		baseCtx:  ctx,
	}
}

// HandleStartBatch handles POST /batches. The batch runs in the background;
// poll GET /batches/status and fetch the summary from GET /batches/:id.
func (h *BatchHandler) HandleStartBatch(c *fiber.Ctx) error {
	var req models.BatchStartRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	sel := models.FileSelection{IDs: req.FileIDs}
	if len(req.FileIDs) == 0 {
		if req.Selection == nil {
			return badRequest(c, "fileIds or selection is required")
		}
		sel = *req.Selection
	}

	files, err := h.batches.SelectFiles(c.UserContext(), sel)
	if err != nil {
		return errorJSON(c, err)
	}

	cfg := services.BatchEvaluationConfig{
		Files:           files,
		Step:            req.Step,
		Stage:           req.Stage,
		PreviousSummary: req.PreviousSummary,
		Concurrency:     h.defaults.Concurrency,
		SkipErrors:      h.defaults.SkipErrors,
		SaveResults:     h.defaults.SaveResults,
	}
	if req.Concurrency > 0 {
		cfg.Concurrency = req.Concurrency
	}
	if req.SkipErrors != nil {
		cfg.SkipErrors = *req.SkipErrors
	}
	if req.SaveResults != nil {
		cfg.SaveResults = *req.SaveResults
	}

	batchID, err := h.batches.StartBatch(h.baseCtx, cfg, func(summary *models.BatchSummary, err error) {
		if err == nil {
			log.Printf("📦 Batch %s summary saved\n", summary.BatchID)
		}
	})
	if err != nil {
		return errorJSON(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(models.BatchStartResponse{
		BatchID: batchID,
		Total:   len(files),
	})
}

func (h *BatchHandler) HandleListBatches(c *fiber.Ctx) error {
	summaries, err := h.batches.ListBatches(c.UserContext())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(summaries)
}

func (h *BatchHandler) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(h.batches.GetProcessingStatus())
}

func (h *BatchHandler) HandleCancel(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"cancelled": h.batches.CancelBatch(),
	})
}

func (h *BatchHandler) HandleGetBatch(c *fiber.Ctx) error {
	summary, err := h.batches.GetBatch(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(summary)
}

// HandleExport handles GET /batches/:id/export?format=json|csv|txt
func (h *BatchHandler) HandleExport(c *fiber.Ctx) error {
	format, err := services.ParseExportFormat(c.Query("format"))
	if err != nil {
		return errorJSON(c, err)
	}

	summary, err := h.batches.GetBatch(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}

	body, err := h.batches.ExportSummary(summary, format)
	if err != nil {
		return errorJSON(c, err)
	}
	return sendExport(c, "batch-"+summary.BatchID, format, body)
}

func (h *BatchHandler) HandleDeleteBatch(c *fiber.Ctx) error {
	if err := h.batches.DeleteBatch(c.UserContext(), c.Params("id")); err != nil {
		return errorJSON(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
