package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Upload   *UploadHandler
	Evaluate *EvaluationHandler
	Result   *ResultHandler
	Batch    *BatchHandler
	History  *HistoryHandler
	Sim      *SimHandler
}

// Endpoints lists the routes registered by RegisterRoutes, relative to the
// API prefix.
var Endpoints = []string{
	"GET /health",
	"POST /upload",
	"GET /files",
	"GET /files/:id",
	"DELETE /files/:id",
	"POST /evaluate",
	"GET /result/:id",
	"POST /batches",
	"GET /batches",
	"GET /batches/status",
	"POST /batches/cancel",
	"GET /batches/:id",
	"GET /batches/:id/export",
	"DELETE /batches/:id",
	"GET /history",
	"POST /history",
	"DELETE /history",
	"GET /history/stats",
	"GET /history/export",
	"POST /history/compare",
	"GET /history/:id",
	"PATCH /history/:id",
	"DELETE /history/:id",
	"POST /history/:id/tags",
	"DELETE /history/:id/tags",
	"GET /history/:id/similar",
	"POST /sim/turn",
}

func (h *Handlers) RegisterRoutes(api fiber.Router) {
	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	// Files
	api.Post("/upload", h.Upload.HandleUpload)
	api.Get("/files", h.Upload.HandleListFiles)
	api.Get("/files/:id", h.Upload.HandleGetFile)
	api.Delete("/files/:id", h.Upload.HandleDeleteFile)

	// Async evaluation
	api.Post("/evaluate", h.Evaluate.HandleEvaluate)
	api.Get("/result/:id", h.Result.HandleGetResult)

	// Batches; static paths before :id
	api.Post("/batches", h.Batch.HandleStartBatch)
	api.Get("/batches", h.Batch.HandleListBatches)
	api.Get("/batches/status", h.Batch.HandleStatus)
	api.Post("/batches/cancel", h.Batch.HandleCancel)
	api.Get("/batches/:id", h.Batch.HandleGetBatch)
	api.Get("/batches/:id/export", h.Batch.HandleExport)
	api.Delete("/batches/:id", h.Batch.HandleDeleteBatch)

	// History
	api.Get("/history", h.History.HandleList)
	api.Post("/history", h.History.HandleSave)
	api.Delete("/history", h.History.HandleDeleteMany)
	api.Get("/history/stats", h.History.HandleStatistics)
	api.Get("/history/export", h.History.HandleExport)
	api.Post("/history/compare", h.History.HandleCompare)
	api.Get("/history/:id", h.History.HandleGet)
	api.Patch("/history/:id", h.History.HandleUpdate)
	api.Delete("/history/:id", h.History.HandleDelete)
	api.Post("/history/:id/tags", h.History.HandleAddTags)
	api.Delete("/history/:id/tags", h.History.HandleRemoveTags)
	api.Get("/history/:id/similar", h.History.HandleSimilar)

	// Simulation
	api.Post("/sim/turn", h.Sim.HandleTurn)
}
