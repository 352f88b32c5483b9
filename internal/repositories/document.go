package repositories

import (
	"context"
	"fmt"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

type FileRepository interface {
	Create(ctx context.Context, file *models.UploadedFile) error
	FindByID(ctx context.Context, id string) (*models.UploadedFile, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.UploadedFile, error)
	FindAll(ctx context.Context) ([]models.UploadedFile, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type fileRepository struct {
	files collection[models.UploadedFile]
}

func NewFileRepository(store Store) FileRepository {
	return &fileRepository{files: newCollection[models.UploadedFile](store, CollectionFiles)}
}

// Create implements FileRepository.
func (r *fileRepository) Create(ctx context.Context, file *models.UploadedFile) error {
	if err := r.files.save(ctx, file.ID, file); err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

// FindByID implements FileRepository. Missing files yield ErrNotFound.
func (r *fileRepository) FindByID(ctx context.Context, id string) (*models.UploadedFile, error) {
	file, err := r.files.find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find file: %w", err)
	}
	if file == nil {
		return nil, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	return file, nil
}

// FindByIDs implements FileRepository. Unknown ids are skipped.
func (r *fileRepository) FindByIDs(ctx context.Context, ids []string) ([]models.UploadedFile, error) {
	var files []models.UploadedFile
	for _, id := range ids {
		file, err := r.files.find(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to find files: %w", err)
		}
		if file != nil {
			files = append(files, *file)
		}
	}
	return files, nil
}

// FindAll implements FileRepository.
func (r *fileRepository) FindAll(ctx context.Context) ([]models.UploadedFile, error) {
	files, err := r.files.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// Delete implements FileRepository.
func (r *fileRepository) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := r.files.delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete file: %w", err)
	}
	return deleted, nil
}
