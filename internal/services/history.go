package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
)

const topCandidatesLimit = 10

// SimilarityIndex finds history records with comparable evaluations.
type SimilarityIndex interface {
	IndexRecord(ctx context.Context, record *models.HistoryRecord) error
	FindSimilar(ctx context.Context, record *models.HistoryRecord, limit int) ([]SimilarHit, error)
	DeleteRecord(ctx context.Context, id string) error
}

type SimilarHit struct {
	RecordID string
	Score    float32
}

// HistoryService owns interview history. Reads go through an in-memory
// mirror of the interviews collection that is updated after every
// successful write.
type HistoryService struct {
	records repositories.InterviewRepository
	index   SimilarityIndex
	now     func() time.Time

	mu    sync.RWMutex
	cache map[string]models.HistoryRecord

	// editMu serializes read-modify-write edits of existing records.
	editMu sync.Mutex
}

// NewHistoryService builds the service. index may be nil.
func NewHistoryService(records repositories.InterviewRepository, index SimilarityIndex) *HistoryService {
	return &HistoryService{
		records: records,
		index:   index,
		now:     time.Now,
		cache:   make(map[string]models.HistoryRecord),
	}
}

// Initialize loads every record into the cache.
func (h *HistoryService) Initialize(ctx context.Context) error {
	records, err := h.GetAllRecords(ctx)
	if err != nil {
		return err
	}
	log.Printf("✅ History loaded: %d records\n", len(records))
	return nil
}

// SaveToHistory stores an interview and/or its analysis as a new record and
// returns its id.
func (h *HistoryService) SaveToHistory(ctx context.Context, interview *models.InterviewResult, analysis *models.AnalysisResult, tags []string, notes string) (string, error) {
	if interview == nil && analysis == nil {
		return "", newValidationError("an interview result or an analysis result is required")
	}

	now := h.now().UTC()
	record := models.HistoryRecord{
		ID:              uuid.New().String(),
		InterviewResult: interview,
		AnalysisResult:  analysis,
		Status:          deriveRecordStatus(interview, analysis),
		Tags:            normalizeTags(nil, tags),
		Notes:           notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var eval *models.EvaluationResult
	if analysis != nil {
		eval = analysis.Evaluation
	}

	if interview != nil {
		record.CandidateName = interview.Metadata.CandidateName
		record.Position = interview.Metadata.Position
		switch {
		case interview.Metadata.InterviewDate != nil:
			record.InterviewDate = *interview.Metadata.InterviewDate
		case interview.Metadata.StartTime != nil:
			record.InterviewDate = *interview.Metadata.StartTime
		}

		record.Metadata.TotalTurns = interview.Metadata.TotalTurns
		if record.Metadata.TotalTurns == 0 {
			record.Metadata.TotalTurns = len(interview.Messages)
		}
		if start, end := interview.Metadata.StartTime, interview.Metadata.EndTime; start != nil && end != nil {
			duration := end.Sub(*start).Milliseconds()
			record.Metadata.Duration = &duration
		}
	}

	if eval != nil {
		if record.CandidateName == "" {
			record.CandidateName = eval.CandidateName
		}
		if record.Position == "" {
			record.Position = eval.Position
		}
		rating := eval.OverallRating
		confidence := eval.OverallConfidence
		record.Metadata.OverallRating = &rating
		record.Metadata.Confidence = &confidence
	}

	if record.InterviewDate.IsZero() {
		if analysis != nil && !analysis.Timestamp.IsZero() {
			record.InterviewDate = analysis.Timestamp
		} else {
			record.InterviewDate = now
		}
	}

	if err := h.put(ctx, record); err != nil {
		return "", err
	}

	if h.index != nil && eval != nil {
		if err := h.index.IndexRecord(ctx, &record); err != nil {
			log.Printf("⚠️ Failed to index history record %s: %v\n", record.ID, err)
		}
	}

	log.Printf("💾 Saved history record %s (%s)\n", record.ID, record.CandidateName)
	return record.ID, nil
}

// deriveRecordStatus: failed if either part failed, else completed if
// either part completed, else in progress.
func deriveRecordStatus(interview *models.InterviewResult, analysis *models.AnalysisResult) models.RecordStatus {
	interviewStatus := models.InterviewStatus("")
	if interview != nil {
		interviewStatus = interview.Status
	}
	analysisStatus := models.AnalysisStatus("")
	if analysis != nil {
		analysisStatus = analysis.Status
	}

	switch {
	case interviewStatus == models.InterviewFailed || analysisStatus == models.AnalysisError:
		return models.RecordFailed
	case interviewStatus == models.InterviewCompleted || analysisStatus == models.AnalysisCompleted:
		return models.RecordCompleted
	default:
		return models.RecordInProgress
	}
}

// normalizeTags appends the trimmed, non-empty tags not already present.
func normalizeTags(existing, tags []string) []string {
	out := append([]string{}, existing...)
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func (h *HistoryService) put(ctx context.Context, record models.HistoryRecord) error {
	if err := h.records.Save(ctx, &record); err != nil {
		return persistenceError("save history record", err)
	}
	h.mu.Lock()
	h.cache[record.ID] = record
	h.mu.Unlock()
	return nil
}

// GetRecord returns the record with id, checking the cache first.
func (h *HistoryService) GetRecord(ctx context.Context, id string) (*models.HistoryRecord, error) {
	h.mu.RLock()
	record, ok := h.cache[id]
	h.mu.RUnlock()
	if ok {
		return &record, nil
	}

	stored, err := h.records.FindByID(ctx, id)
	if err != nil {
		return nil, persistenceError("get history record", err)
	}

	h.mu.Lock()
	h.cache[id] = *stored
	h.mu.Unlock()
	return stored, nil
}

// GetAllRecords reloads the cache from the store and returns every record,
// most recent interview first.
func (h *HistoryService) GetAllRecords(ctx context.Context) ([]models.HistoryRecord, error) {
	records, err := h.records.FindAll(ctx)
	if err != nil {
		return nil, persistenceError("list history records", err)
	}

	cache := make(map[string]models.HistoryRecord, len(records))
	for _, record := range records {
		cache[record.ID] = record
	}
	h.mu.Lock()
	h.cache = cache
	h.mu.Unlock()

	sortRecords(records)
	return records, nil
}

func sortRecords(records []models.HistoryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].InterviewDate.Equal(records[j].InterviewDate) {
			return records[i].InterviewDate.After(records[j].InterviewDate)
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}

// UpdateRecord applies the non-nil fields of update.
func (h *HistoryService) UpdateRecord(ctx context.Context, id string, update models.RecordUpdate) (*models.HistoryRecord, error) {
	h.editMu.Lock()
	defer h.editMu.Unlock()

	record, err := h.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.CandidateName != nil {
		record.CandidateName = *update.CandidateName
	}
	if update.Position != nil {
		record.Position = *update.Position
	}
	if update.Notes != nil {
		record.Notes = *update.Notes
	}
	if update.Status != nil {
		record.Status = *update.Status
	}
	if update.Tags != nil {
		record.Tags = normalizeTags(nil, update.Tags)
	}
	record.UpdatedAt = h.now().UTC()

	if err := h.put(ctx, *record); err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteRecord removes one record; a missing id is ErrNotFound.
func (h *HistoryService) DeleteRecord(ctx context.Context, id string) error {
	deleted, err := h.records.Delete(ctx, id)
	if err != nil {
		return persistenceError("delete history record", err)
	}

	h.mu.Lock()
	delete(h.cache, id)
	h.mu.Unlock()

	if !deleted {
		return fmt.Errorf("history record %s: %w", id, ErrNotFound)
	}

	if h.index != nil {
		if err := h.index.DeleteRecord(ctx, id); err != nil {
			log.Printf("⚠️ Failed to remove record %s from index: %v\n", id, err)
		}
	}
	return nil
}

// DeleteRecords removes every existing id and returns how many were
// deleted. Unknown ids are skipped.
func (h *HistoryService) DeleteRecords(ctx context.Context, ids []string) (int, error) {
	count := 0
	for _, id := range ids {
		err := h.DeleteRecord(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ClearHistory removes every record.
func (h *HistoryService) ClearHistory(ctx context.Context) error {
	records, err := h.GetAllRecords(ctx)
	if err != nil {
		return err
	}
	if err := h.records.Clear(ctx); err != nil {
		return persistenceError("clear history", err)
	}

	h.mu.Lock()
	h.cache = make(map[string]models.HistoryRecord)
	h.mu.Unlock()

	if h.index != nil {
		for _, record := range records {
			if err := h.index.DeleteRecord(ctx, record.ID); err != nil {
				log.Printf("⚠️ Failed to remove record %s from index: %v\n", record.ID, err)
			}
		}
	}
	return nil
}

// FilterRecords returns the records matching every set field of filter.
func (h *HistoryService) FilterRecords(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryRecord, error) {
	records, err := h.GetAllRecords(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]models.HistoryRecord, 0, len(records))
	for _, record := range records {
		if matchesFilter(record, filter) {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

// SearchRecords is FilterRecords with only a search text.
func (h *HistoryService) SearchRecords(ctx context.Context, text string) ([]models.HistoryRecord, error) {
	return h.FilterRecords(ctx, models.HistoryFilter{SearchText: text})
}

func matchesFilter(r models.HistoryRecord, f models.HistoryFilter) bool {
	if q := strings.ToLower(strings.TrimSpace(f.SearchText)); q != "" {
		found := containsFold(r.CandidateName, q) || containsFold(r.Position, q) || containsFold(r.Notes, q)
		for _, tag := range r.Tags {
			found = found || containsFold(tag, q)
		}
		if !found {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(f.CandidateName)); q != "" && !containsFold(r.CandidateName, q) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Position)); q != "" && !containsFold(r.Position, q) {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.DateFrom != nil && r.InterviewDate.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && r.InterviewDate.After(*f.DateTo) {
		return false
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, func(tag string) bool { return slices.Contains(r.Tags, tag) }) {
		return false
	}
	if f.HasAnalysis != nil && (r.AnalysisResult != nil) != *f.HasAnalysis {
		return false
	}
	if f.MinRating != nil || f.MaxRating != nil {
		rating := r.Metadata.OverallRating
		if rating == nil {
			return false
		}
		if f.MinRating != nil && *rating < *f.MinRating {
			return false
		}
		if f.MaxRating != nil && *rating > *f.MaxRating {
			return false
		}
	}
	return true
}

func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}

// CompareRecords lines up the given records side by side. Unknown ids are
// skipped; a record without an evaluation contributes zeros.
func (h *HistoryService) CompareRecords(ctx context.Context, ids []string) (*models.ComparisonResult, error) {
	var records []models.HistoryRecord
	for _, id := range ids {
		record, err := h.GetRecord(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	result := &models.ComparisonResult{
		RecordIDs:       make([]string, 0, len(records)),
		CandidateNames:  make([]string, 0, len(records)),
		Positions:       make([]string, 0, len(records)),
		Ratings:         make([]float64, 0, len(records)),
		Confidences:     make([]float64, 0, len(records)),
		Strengths:       make([][]string, 0, len(records)),
		Weaknesses:      make([][]string, 0, len(records)),
		DimensionScores: make(map[models.Dimension][]float64, len(models.Dimensions)),
	}
	for _, dim := range models.Dimensions {
		result.DimensionScores[dim] = make([]float64, len(records))
	}

	for i, record := range records {
		result.RecordIDs = append(result.RecordIDs, record.ID)
		result.CandidateNames = append(result.CandidateNames, record.CandidateName)
		result.Positions = append(result.Positions, record.Position)

		var eval *models.EvaluationResult
		if record.AnalysisResult != nil {
			eval = record.AnalysisResult.Evaluation
		}
		if eval == nil {
			result.Ratings = append(result.Ratings, 0)
			result.Confidences = append(result.Confidences, 0)
			result.Strengths = append(result.Strengths, []string{})
			result.Weaknesses = append(result.Weaknesses, []string{})
			continue
		}

		result.Ratings = append(result.Ratings, eval.OverallRating)
		result.Confidences = append(result.Confidences, eval.OverallConfidence)
		result.Strengths = append(result.Strengths, append([]string{}, eval.Strengths...))
		result.Weaknesses = append(result.Weaknesses, append([]string{}, eval.Weaknesses...))
		for _, dim := range models.Dimensions {
			if score, ok := eval.Dimensions[dim]; ok {
				result.DimensionScores[dim][i] = score.Score
			}
		}
	}
	return result, nil
}

// GetStatistics aggregates over all records. Averages only count records
// that carry the value.
func (h *HistoryService) GetStatistics(ctx context.Context) (*models.HistoryStatistics, error) {
	records, err := h.GetAllRecords(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.HistoryStatistics{
		TotalRecords:   len(records),
		TopCandidates:  []models.CandidateRating{},
		PositionCounts: map[string]int{},
		TagCounts:      map[string]int{},
	}

	var (
		ratingSum, confidenceSum     float64
		ratingCount, confidenceCount int
	)
	for _, r := range records {
		switch r.Status {
		case models.RecordCompleted:
			stats.CompletedRecords++
		case models.RecordFailed:
			stats.FailedRecords++
		}

		if r.Metadata.OverallRating != nil {
			ratingSum += *r.Metadata.OverallRating
			ratingCount++
			stats.TopCandidates = append(stats.TopCandidates, models.CandidateRating{
				RecordID:      r.ID,
				CandidateName: r.CandidateName,
				Position:      r.Position,
				Rating:        *r.Metadata.OverallRating,
				InterviewDate: r.InterviewDate,
			})
		}
		if r.Metadata.Confidence != nil {
			confidenceSum += *r.Metadata.Confidence
			confidenceCount++
		}

		if r.Position != "" {
			stats.PositionCounts[r.Position]++
		}
		for _, tag := range r.Tags {
			stats.TagCounts[tag]++
		}

		if stats.DateRange == nil {
			stats.DateRange = &models.DateRange{Start: r.InterviewDate, End: r.InterviewDate}
			continue
		}
		if r.InterviewDate.Before(stats.DateRange.Start) {
			stats.DateRange.Start = r.InterviewDate
		}
		if r.InterviewDate.After(stats.DateRange.End) {
			stats.DateRange.End = r.InterviewDate
		}
	}

	if ratingCount > 0 {
		stats.AverageRating = ratingSum / float64(ratingCount)
	}
	if confidenceCount > 0 {
		stats.AverageConfidence = confidenceSum / float64(confidenceCount)
	}

	sort.SliceStable(stats.TopCandidates, func(i, j int) bool {
		return stats.TopCandidates[i].Rating > stats.TopCandidates[j].Rating
	})
	if len(stats.TopCandidates) > topCandidatesLimit {
		stats.TopCandidates = stats.TopCandidates[:topCandidatesLimit]
	}
	return stats, nil
}

// AddTags adds tags not yet on the record. Adding an existing tag is a
// no-op.
func (h *HistoryService) AddTags(ctx context.Context, id string, tags []string) (*models.HistoryRecord, error) {
	h.editMu.Lock()
	defer h.editMu.Unlock()

	record, err := h.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := normalizeTags(record.Tags, tags)
	if len(updated) == len(record.Tags) {
		return record, nil
	}
	record.Tags = updated
	record.UpdatedAt = h.now().UTC()

	if err := h.put(ctx, *record); err != nil {
		return nil, err
	}
	return record, nil
}

// RemoveTags drops the given tags. Removing an absent tag is a no-op.
func (h *HistoryService) RemoveTags(ctx context.Context, id string, tags []string) (*models.HistoryRecord, error) {
	h.editMu.Lock()
	defer h.editMu.Unlock()

	record, err := h.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	kept := make([]string, 0, len(record.Tags))
	for _, tag := range record.Tags {
		if !slices.Contains(tags, tag) {
			kept = append(kept, tag)
		}
	}
	if len(kept) == len(record.Tags) {
		return record, nil
	}
	record.Tags = kept
	record.UpdatedAt = h.now().UTC()

	if err := h.put(ctx, *record); err != nil {
		return nil, err
	}
	return record, nil
}

// ExportRecords exports the given records, or all of them when ids is
// empty.
func (h *HistoryService) ExportRecords(ctx context.Context, ids []string, format ExportFormat) (string, error) {
	var records []models.HistoryRecord
	if len(ids) == 0 {
		all, err := h.GetAllRecords(ctx)
		if err != nil {
			return "", err
		}
		records = all
	} else {
		for _, id := range ids {
			record, err := h.GetRecord(ctx, id)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return "", err
			}
			records = append(records, *record)
		}
	}
	return ExportHistoryRecords(records, format)
}

// FindSimilar returns up to limit other records whose evaluations resemble
// the record with id.
func (h *HistoryService) FindSimilar(ctx context.Context, id string, limit int) ([]models.SimilarRecord, error) {
	if h.index == nil {
		return nil, newValidationError("similarity search is not configured")
	}
	if limit <= 0 {
		limit = 5
	}

	record, err := h.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.AnalysisResult == nil || record.AnalysisResult.Evaluation == nil {
		return nil, newValidationError("record %s has no evaluation to compare", id)
	}

	hits, err := h.index.FindSimilar(ctx, record, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar records: %w", err)
	}

	similar := make([]models.SimilarRecord, 0, len(hits))
	for _, hit := range hits {
		if hit.RecordID == id {
			continue
		}
		other, err := h.GetRecord(ctx, hit.RecordID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		similar = append(similar, models.SimilarRecord{
			RecordID:      other.ID,
			CandidateName: other.CandidateName,
			Position:      other.Position,
			Score:         hit.Score,
		})
	}
	return similar, nil
}

// Reindex pushes every evaluated record into the similarity index again.
// Records that fail to index are counted and skipped.
func (h *HistoryService) Reindex(ctx context.Context) (indexed, failed int, err error) {
	if h.index == nil {
		return 0, 0, newValidationError("similarity search is not configured")
	}

	records, err := h.GetAllRecords(ctx)
	if err != nil {
		return 0, 0, err
	}

	for i := range records {
		record := &records[i]
		if record.AnalysisResult == nil || record.AnalysisResult.Evaluation == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return indexed, failed, err
		}
		if err := h.index.IndexRecord(ctx, record); err != nil {
			log.Printf("⚠️ Failed to index history record %s: %v\n", record.ID, err)
			failed++
			continue
		}
		indexed++
	}
	return indexed, failed, nil
}
