package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

var ErrNotFound = errors.New("not found")

// AnalysisRepository persists AnalysisResult documents keyed by process id.
type AnalysisRepository interface {
	Save(ctx context.Context, result *models.AnalysisResult) error
	FindByID(ctx context.Context, id string) (*models.AnalysisResult, error)
	UpdateStatus(ctx context.Context, id string, status models.AnalysisStatus) error
	UpdateError(ctx context.Context, id string, errorMsg string) error
	FindPendingJobs(ctx context.Context, limit int) ([]models.AnalysisResult, error)
	ResetRunningJobs(ctx context.Context) ([]string, error)
}

type analysisRepository struct {
	analyses collection[models.AnalysisResult]
}

func NewAnalysisRepository(store Store) AnalysisRepository {
	return &analysisRepository{analyses: newCollection[models.AnalysisResult](store, CollectionAnalyses)}
}

// Save implements AnalysisRepository.
func (r *analysisRepository) Save(ctx context.Context, result *models.AnalysisResult) error {
	if err := r.analyses.save(ctx, result.ProcessID, result); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// FindByID implements AnalysisRepository.
func (r *analysisRepository) FindByID(ctx context.Context, id string) (*models.AnalysisResult, error) {
	result, err := r.analyses.find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find analysis: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	return result, nil
}

// UpdateStatus implements AnalysisRepository.
func (r *analysisRepository) UpdateStatus(ctx context.Context, id string, status models.AnalysisStatus) error {
	result, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	result.Status = status
	result.Timestamp = time.Now().UTC()
	return r.Save(ctx, result)
}

// UpdateError implements AnalysisRepository.
func (r *analysisRepository) UpdateError(ctx context.Context, id string, errorMsg string) error {
	result, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	result.Status = models.AnalysisError
	result.Error = errorMsg
	result.Timestamp = time.Now().UTC()
	return r.Save(ctx, result)
}

// FindPendingJobs implements AnalysisRepository, oldest first.
func (r *analysisRepository) FindPendingJobs(ctx context.Context, limit int) ([]models.AnalysisResult, error) {
	all, err := r.analyses.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending jobs: %w", err)
	}

	var pending []models.AnalysisResult
	for _, result := range all {
		if result.Status != models.AnalysisPending {
			continue
		}
		pending = append(pending, result)
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// ResetRunningJobs implements AnalysisRepository. Jobs left running by a
// stopped process go back to pending; their ids are returned.
func (r *analysisRepository) ResetRunningJobs(ctx context.Context) ([]string, error) {
	all, err := r.analyses.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find running jobs: %w", err)
	}

	var reset []string
	for i := range all {
		result := &all[i]
		if result.Status != models.AnalysisRunning {
			continue
		}
		result.Status = models.AnalysisPending
		result.Timestamp = time.Now().UTC()
		if err := r.Save(ctx, result); err != nil {
			return reset, err
		}
		reset = append(reset, result.ProcessID)
	}
	return reset, nil
}
