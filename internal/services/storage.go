package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

// StorageService keeps the raw bytes of uploads on local disk.
type StorageService struct {
	uploadPath string
}

func NewStorageService(uploadPath string) *StorageService {
	return &StorageService{
		uploadPath: uploadPath,
	}
}

func (s *StorageService) EnsureUploadDir() error {
	if err := os.MkdirAll(s.uploadPath, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	return nil
}

// SaveFile writes data as "<type>_<id><ext>" and returns the stored name.
func (s *StorageService) SaveFile(id string, fileType models.FileType, originalName string, data []byte) (string, error) {
	if err := s.EnsureUploadDir(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	storedName := fmt.Sprintf("%s_%s%s", fileType, id, ext)

	if err := os.WriteFile(s.GetFilePath(storedName), data, 0644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return storedName, nil
}

func (s *StorageService) GetFilePath(filename string) string {
	return filepath.Join(s.uploadPath, filepath.Base(filename))
}

// DeleteFile removes a stored upload. A file that is already gone is not
// an error.
func (s *StorageService) DeleteFile(filename string) error {
	if err := os.Remove(s.GetFilePath(filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
