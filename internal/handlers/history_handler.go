package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

type HistoryHandler struct {
	history *services.HistoryService
	worker  *services.Worker
}

func NewHistoryHandler(history *services.HistoryService, worker *services.Worker) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		worker:  worker,
	}
}

// HandleList handles GET /history. Supported query parameters: q,
// candidate, position, status, tags (comma separated), from, to,
// hasAnalysis, minRating, maxRating.
func (h *HistoryHandler) HandleList(c *fiber.Ctx) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	records, err := h.history.FilterRecords(c.UserContext(), filter)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(records)
}

func filterFromQuery(c *fiber.Ctx) (models.HistoryFilter, error) {
	filter := models.HistoryFilter{
		SearchText:    c.Query("q"),
		CandidateName: c.Query("candidate"),
		Position:      c.Query("position"),
		Status:        models.RecordStatus(c.Query("status")),
		Tags:          splitList(c.Query("tags")),
	}

	var err error
	if filter.DateFrom, err = parseQueryTime(c.Query("from"), false); err != nil {
		return filter, err
	}
	if filter.DateTo, err = parseQueryTime(c.Query("to"), true); err != nil {
		return filter, err
	}
	if v := c.Query("hasAnalysis"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid hasAnalysis: %s", v)
		}
		filter.HasAnalysis = &b
	}
	if filter.MinRating, err = parseQueryFloat("minRating", c.Query("minRating")); err != nil {
		return filter, err
	}
	if filter.MaxRating, err = parseQueryFloat("maxRating", c.Query("maxRating")); err != nil {
		return filter, err
	}
	return filter, nil
}

// parseQueryTime accepts RFC 3339 or a plain date. A plain date used as an
// upper bound covers the whole day.
func parseQueryTime(v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %s", v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseQueryFloat(name, v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %s", name, v)
	}
	return &f, nil
}

func splitList(v string) []string {
	var items []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// HandleSave handles POST /history. A finished evaluation job can be
// referenced by analysisId instead of sending the results inline.
func (h *HistoryHandler) HandleSave(c *fiber.Ctx) error {
	var req models.SaveHistoryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	interview, analysis := req.InterviewResult, req.AnalysisResult
	if req.AnalysisID != "" {
		job, err := h.worker.GetJob(c.UserContext(), req.AnalysisID)
		if err != nil {
			return errorJSON(c, err)
		}
		if !job.Status.Terminal() {
			return badRequest(c, fmt.Sprintf("evaluation %s is still %s", job.ProcessID, job.Status))
		}
		analysis = job
		if interview == nil && job.Request != nil {
			interview = services.InterviewFromRequest(job.ProcessID, job.Request, job.Status == models.AnalysisCompleted)
		}
	}

	id, err := h.history.SaveToHistory(c.UserContext(), interview, analysis, req.Tags, req.Notes)
	if err != nil {
		return errorJSON(c, err)
	}

	record, err := h.history.GetRecord(c.UserContext(), id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(record)
}

func (h *HistoryHandler) HandleGet(c *fiber.Ctx) error {
	record, err := h.history.GetRecord(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(record)
}

func (h *HistoryHandler) HandleUpdate(c *fiber.Ctx) error {
	var update models.RecordUpdate
	if err := parseBody(c, &update); err != nil {
		return err
	}

	record, err := h.history.UpdateRecord(c.UserContext(), c.Params("id"), update)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(record)
}

func (h *HistoryHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.history.DeleteRecord(c.UserContext(), c.Params("id")); err != nil {
		return errorJSON(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleDeleteMany handles DELETE /history. Without a body every record is
// removed.
func (h *HistoryHandler) HandleDeleteMany(c *fiber.Ctx) error {
	if len(c.Body()) == 0 {
		if err := h.history.ClearHistory(c.UserContext()); err != nil {
			return errorJSON(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}

	var req models.IDsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	deleted, err := h.history.DeleteRecords(c.UserContext(), req.IDs)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(models.DeleteRecordsResponse{Deleted: deleted})
}

func (h *HistoryHandler) HandleAddTags(c *fiber.Ctx) error {
	var req models.TagRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	record, err := h.history.AddTags(c.UserContext(), c.Params("id"), req.Tags)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(record)
}

func (h *HistoryHandler) HandleRemoveTags(c *fiber.Ctx) error {
	var req models.TagRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	record, err := h.history.RemoveTags(c.UserContext(), c.Params("id"), req.Tags)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(record)
}

func (h *HistoryHandler) HandleStatistics(c *fiber.Ctx) error {
	stats, err := h.history.GetStatistics(c.UserContext())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(stats)
}

func (h *HistoryHandler) HandleCompare(c *fiber.Ctx) error {
	var req models.IDsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.history.CompareRecords(c.UserContext(), req.IDs)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(result)
}

// HandleExport handles GET /history/export?format=&ids=a,b. All records are
// exported when ids is empty.
func (h *HistoryHandler) HandleExport(c *fiber.Ctx) error {
	format, err := services.ParseExportFormat(c.Query("format"))
	if err != nil {
		return errorJSON(c, err)
	}

	body, err := h.history.ExportRecords(c.UserContext(), splitList(c.Query("ids")), format)
	if err != nil {
		return errorJSON(c, err)
	}
	return sendExport(c, "interview-history", format, body)
}

func (h *HistoryHandler) HandleSimilar(c *fiber.Ctx) error {
	similar, err := h.history.FindSimilar(c.UserContext(), c.Params("id"), c.QueryInt("limit", 5))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(similar)
}
