package handlers

import (
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

type UploadHandler struct {
	files *services.FileManager
}

func NewUploadHandler(files *services.FileManager) *UploadHandler {
	return &UploadHandler{
		files: files,
	}
}

// HandleUpload handles POST /upload. The multipart form carries the
// "file" part, a "type" field and optional metadata fields.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "No file uploaded. Please upload a 'file' part.")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: fmt.Sprintf("failed to open uploaded file: %v", err),
			Kind:  services.KindInternal,
		})
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: fmt.Sprintf("failed to read uploaded file: %v", err),
			Kind:  services.KindInternal,
		})
	}

	metadata := make(map[string]string)
	for _, key := range []string{models.MetaCandidateName, models.MetaPosition, models.MetaJDFileID, models.MetaResumeFileID, models.MetaStage} {
		if v := strings.TrimSpace(c.FormValue(key)); v != "" {
			metadata[key] = v
		}
	}

	file, err := h.files.UploadFile(c.UserContext(), services.UploadRequest{
		Name:     fileHeader.Filename,
		MimeType: fileHeader.Header.Get(fiber.HeaderContentType),
		Data:     data,
		Type:     models.FileType(c.FormValue("type")),
		Metadata: metadata,
	})
	if err != nil {
		return errorJSON(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.UploadResponse{
		ID:       file.ID,
		Name:     file.Name,
		Type:     file.Type,
		Size:     file.Size,
		Metadata: file.Metadata,
	})
}

// HandleListFiles handles GET /files?type=
func (h *UploadHandler) HandleListFiles(c *fiber.Ctx) error {
	files, err := h.files.ListFiles(c.UserContext(), models.FileType(c.Query("type")))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(files)
}

func (h *UploadHandler) HandleGetFile(c *fiber.Ctx) error {
	file, err := h.files.GetFile(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(file)
}

func (h *UploadHandler) HandleDeleteFile(c *fiber.Ctx) error {
	if err := h.files.DeleteFile(c.UserContext(), c.Params("id")); err != nil {
		return errorJSON(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
