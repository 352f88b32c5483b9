package repositories

import (
	"context"
	"fmt"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

type InterviewRepository interface {
	Save(ctx context.Context, record *models.HistoryRecord) error
	FindByID(ctx context.Context, id string) (*models.HistoryRecord, error)
	FindAll(ctx context.Context) ([]models.HistoryRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
}

type interviewRepository struct {
	records collection[models.HistoryRecord]
}

func NewInterviewRepository(store Store) InterviewRepository {
	return &interviewRepository{records: newCollection[models.HistoryRecord](store, CollectionInterviews)}
}

// Save implements InterviewRepository.
func (r *interviewRepository) Save(ctx context.Context, record *models.HistoryRecord) error {
	if err := r.records.save(ctx, record.ID, record); err != nil {
		return fmt.Errorf("failed to save history record: %w", err)
	}
	return nil
}

// FindByID implements InterviewRepository.
func (r *interviewRepository) FindByID(ctx context.Context, id string) (*models.HistoryRecord, error) {
	record, err := r.records.find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find history record: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("history record %s: %w", id, ErrNotFound)
	}
	return record, nil
}

// FindAll implements InterviewRepository.
func (r *interviewRepository) FindAll(ctx context.Context) ([]models.HistoryRecord, error) {
	records, err := r.records.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list history records: %w", err)
	}
	return records, nil
}

// Delete implements InterviewRepository.
func (r *interviewRepository) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := r.records.delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete history record: %w", err)
	}
	return deleted, nil
}

// Clear implements InterviewRepository.
func (r *interviewRepository) Clear(ctx context.Context) error {
	if err := r.records.clear(ctx); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

type BatchRepository interface {
	Save(ctx context.Context, summary *models.BatchSummary) error
	FindByID(ctx context.Context, id string) (*models.BatchSummary, error)
	FindAll(ctx context.Context) ([]models.BatchSummary, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type batchRepository struct {
	batches collection[models.BatchSummary]
}

func NewBatchRepository(store Store) BatchRepository {
	return &batchRepository{batches: newCollection[models.BatchSummary](store, CollectionBatches)}
}

// Save implements BatchRepository.
func (r *batchRepository) Save(ctx context.Context, summary *models.BatchSummary) error {
	if err := r.batches.save(ctx, summary.BatchID, summary); err != nil {
		return fmt.Errorf("failed to save batch summary: %w", err)
	}
	return nil
}

// FindByID implements BatchRepository.
func (r *batchRepository) FindByID(ctx context.Context, id string) (*models.BatchSummary, error) {
	summary, err := r.batches.find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find batch summary: %w", err)
	}
	if summary == nil {
		return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
	}
	return summary, nil
}

// FindAll implements BatchRepository.
func (r *batchRepository) FindAll(ctx context.Context) ([]models.BatchSummary, error) {
	summaries, err := r.batches.all(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch summaries: %w", err)
	}
	return summaries, nil
}

// Delete implements BatchRepository.
func (r *batchRepository) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := r.batches.delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete batch summary: %w", err)
	}
	return deleted, nil
}
