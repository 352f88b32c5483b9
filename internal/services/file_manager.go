package services

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
)

type UploadRequest struct {
	Name     string
	MimeType string
	Data     []byte
	Type     models.FileType
	Metadata map[string]string
}

var allowedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".json": true,
	".csv":  true,
	".pdf":  true,
}

var allowedMimeTypes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"text/plain":               true,
	"text/markdown":            true,
	"text/csv":                 true,
	"application/json":         true,
	"application/pdf":          true,
}

var pdfNameMarkers = []string{"transcript", "jd", "resume"}

var contentKeywords = map[models.FileType][]string{
	models.FileTypeConversation: {"面试官", "候选人", "interviewer", "candidate", "问：", "答："},
	models.FileTypeJD:           {"职位", "岗位", "职责", "要求", "任职", "job", "responsibilit", "requirement", "qualification"},
	models.FileTypeResume:       {"经历", "经验", "教育", "学历", "项目", "技能", "experience", "education", "skills", "project"},
}

// FileManager validates uploads and keeps them in the files collection.
type FileManager struct {
	files       repositories.FileRepository
	storage     *StorageService
	pdfParser   *PDFParser
	maxFileSize int64
}

func NewFileManager(files repositories.FileRepository, storage *StorageService, pdfParser *PDFParser, maxFileSize int64) *FileManager {
	return &FileManager{
		files:       files,
		storage:     storage,
		pdfParser:   pdfParser,
		maxFileSize: maxFileSize,
	}
}

// UploadFile validates, parses and stores one upload.
func (m *FileManager) UploadFile(ctx context.Context, req UploadRequest) (*models.UploadedFile, error) {
	if !req.Type.Valid() {
		return nil, newValidationError("Invalid file type: %s", req.Type)
	}
	if m.maxFileSize > 0 && int64(len(req.Data)) > m.maxFileSize {
		return nil, newValidationError("File size exceeds limit")
	}
	if len(req.Data) == 0 {
		return nil, newValidationError("File is empty")
	}

	ext := strings.ToLower(filepath.Ext(req.Name))
	mimeType := strings.ToLower(strings.TrimSpace(strings.Split(req.MimeType, ";")[0]))
	if !allowedExtensions[ext] || !allowedMimeTypes[mimeType] {
		return nil, newValidationError("Unsupported file type")
	}

	var content string
	if ext == ".pdf" {
		if !hasPDFNameMarker(req.Name) {
			return nil, newValidationError("未预期的PDF文件命名，文件名需包含 transcript、jd 或 resume")
		}
		parsed, err := m.pdfParser.ExtractText(req.Data)
		if err != nil {
			return nil, newValidationError("Failed to parse PDF: %v", err)
		}
		content = parsed.Text
	} else {
		if !utf8.Valid(req.Data) {
			return nil, newValidationError("Unsupported file type")
		}
		content = string(req.Data)
		if !ValidateContent(req.Type, content) {
			return nil, newValidationError("Invalid content for file type: %s", req.Type)
		}
	}

	if req.Type == models.FileTypeConversation {
		content = CleanTranscript(content)
	}

	id := uuid.New().String()

	metadata := ExtractMetadata(req.Type, req.Name, content)
	for k, v := range req.Metadata {
		if strings.TrimSpace(v) != "" {
			metadata[k] = v
		}
	}
	if mimeType != "" {
		metadata[models.MetaMimeType] = mimeType
	}

	if m.storage != nil {
		storedName, err := m.storage.SaveFile(id, req.Type, req.Name, req.Data)
		if err != nil {
			return nil, err
		}
		metadata[models.MetaStoragePath] = storedName
	}

	file := &models.UploadedFile{
		ID:         id,
		Name:       req.Name,
		Type:       req.Type,
		Content:    content,
		Metadata:   metadata,
		UploadedAt: time.Now().UTC(),
		Size:       int64(len(req.Data)),
	}

	if err := m.files.Create(ctx, file); err != nil {
		if storedName := metadata[models.MetaStoragePath]; storedName != "" {
			if rmErr := m.storage.DeleteFile(storedName); rmErr != nil {
				log.Printf("⚠️  Failed to remove orphaned upload %s: %v\n", storedName, rmErr)
			}
		}
		return nil, persistenceError("upload file", err)
	}

	log.Printf("📄 Uploaded %s file %s (%d bytes)\n", file.Type, file.Name, file.Size)
	return file, nil
}

func hasPDFNameMarker(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	for _, marker := range pdfNameMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ValidateContent applies the keyword heuristics for fileType. Reports are
// accepted as-is.
func ValidateContent(fileType models.FileType, content string) bool {
	keywords, ok := contentKeywords[fileType]
	if !ok {
		return strings.TrimSpace(content) != ""
	}

	lower := strings.ToLower(content)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return fileType == models.FileTypeConversation && turnStartPattern.MatchString(firstLine(content))
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "\n"); idx >= 0 {
		return text[:idx]
	}
	return text
}

var filenameKeywords = map[string]bool{
	"transcript": true, "jd": true, "resume": true, "conversation": true,
	"report": true, "interview": true, "cv": true,
	"面试记录": true, "简历": true, "职位描述": true, "面试": true,
}

var (
	metadataNamePattern     = regexp.MustCompile(`^\s*(?:候选人姓名|候选人|姓名|(?i:candidate name)|(?i:name))\s*[:：]\s*([^\s:：,，。]{1,20})\s*$`)
	metadataPositionPattern = regexp.MustCompile(`^\s*(?:应聘职位|应聘岗位|职位名称|职位|岗位|(?i:position)|(?i:job title))\s*[:：]\s*(.{1,40}?)\s*$`)
)

const metadataHeaderLines = 10

// ExtractMetadata derives candidate name and position from the filename
// ("张三_后端工程师_transcript.txt") or, failing that, from labelled lines
// near the top of the content.
func ExtractMetadata(fileType models.FileType, name, content string) map[string]string {
	metadata := make(map[string]string)

	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if strings.ContainsAny(base, "_-") {
		var tokens []string
		for _, token := range strings.FieldsFunc(base, func(r rune) bool { return r == '_' || r == '-' }) {
			token = strings.TrimSpace(token)
			if token == "" || filenameKeywords[strings.ToLower(token)] {
				continue
			}
			tokens = append(tokens, token)
		}

		switch {
		case len(tokens) == 0:
		case fileType == models.FileTypeJD:
			metadata[models.MetaPosition] = tokens[0]
		default:
			metadata[models.MetaCandidateName] = tokens[0]
			if len(tokens) > 1 {
				metadata[models.MetaPosition] = tokens[1]
			}
		}
	}

	lines := strings.Split(content, "\n")
	if len(lines) > metadataHeaderLines {
		lines = lines[:metadataHeaderLines]
	}
	for _, line := range lines {
		if _, ok := metadata[models.MetaCandidateName]; !ok && fileType != models.FileTypeJD {
			if m := metadataNamePattern.FindStringSubmatch(line); m != nil {
				metadata[models.MetaCandidateName] = m[1]
			}
		}
		if _, ok := metadata[models.MetaPosition]; !ok {
			if m := metadataPositionPattern.FindStringSubmatch(line); m != nil {
				metadata[models.MetaPosition] = m[1]
			}
		}
	}

	return metadata
}

func (m *FileManager) GetFile(ctx context.Context, id string) (*models.UploadedFile, error) {
	file, err := m.files.FindByID(ctx, id)
	if err != nil {
		return nil, persistenceError("get file", err)
	}
	return file, nil
}

// ListFiles returns every stored file, or only those of fileType when set.
func (m *FileManager) ListFiles(ctx context.Context, fileType models.FileType) ([]models.UploadedFile, error) {
	return m.SelectFiles(ctx, models.FileSelection{Type: fileType})
}

// SelectFiles applies every non-empty criterion of sel.
func (m *FileManager) SelectFiles(ctx context.Context, sel models.FileSelection) ([]models.UploadedFile, error) {
	var (
		files []models.UploadedFile
		err   error
	)
	if len(sel.IDs) > 0 {
		files, err = m.files.FindByIDs(ctx, sel.IDs)
	} else {
		files, err = m.files.FindAll(ctx)
	}
	if err != nil {
		return nil, persistenceError("select files", err)
	}

	needle := strings.ToLower(strings.TrimSpace(sel.NameContains))
	selected := make([]models.UploadedFile, 0, len(files))
	for _, file := range files {
		if sel.Type != "" && file.Type != sel.Type {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(file.Name), needle) {
			continue
		}
		if sel.UploadedAfter != nil && file.UploadedAt.Before(*sel.UploadedAfter) {
			continue
		}
		if sel.UploadedBefore != nil && file.UploadedAt.After(*sel.UploadedBefore) {
			continue
		}
		selected = append(selected, file)
	}
	return selected, nil
}

// DeleteFile removes the record and its stored bytes.
func (m *FileManager) DeleteFile(ctx context.Context, id string) error {
	file, err := m.GetFile(ctx, id)
	if err != nil {
		return err
	}

	if stored := file.Metadata[models.MetaStoragePath]; stored != "" && m.storage != nil {
		if err := m.storage.DeleteFile(stored); err != nil {
			log.Printf("⚠️ Failed to remove stored bytes for %s: %v\n", id, err)
		}
	}

	if _, err := m.files.Delete(ctx, id); err != nil {
		return persistenceError("delete file", err)
	}
	return nil
}

// ResolveContext builds an InterviewContext for a conversation file from
// inline metadata or referenced JD/resume files.
func (m *FileManager) ResolveContext(ctx context.Context, file models.UploadedFile) (models.InterviewContext, error) {
	ic := models.InterviewContext{
		JD:     file.Metadata[models.MetaJD],
		Resume: file.Metadata[models.MetaResume],
	}

	if ic.JD == "" {
		if id := file.Metadata[models.MetaJDFileID]; id != "" {
			jd, err := m.GetFile(ctx, id)
			if err != nil {
				return ic, fmt.Errorf("failed to resolve JD file: %w", err)
			}
			ic.JD = jd.Content
		}
	}
	if ic.Resume == "" {
		if id := file.Metadata[models.MetaResumeFileID]; id != "" {
			resume, err := m.GetFile(ctx, id)
			if err != nil {
				return ic, fmt.Errorf("failed to resolve resume file: %w", err)
			}
			ic.Resume = resume.Content
		}
	}
	return ic, nil
}
