package services

import (
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
)

type fakeIndex struct {
	mu      sync.Mutex
	indexed map[string]bool
	hits    []SimilarHit
	err     error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{indexed: make(map[string]bool)}
}

func (f *fakeIndex) IndexRecord(_ context.Context, record *models.HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.indexed[record.ID] = true
	return nil
}

func (f *fakeIndex) FindSimilar(_ context.Context, _ *models.HistoryRecord, limit int) ([]SimilarHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.hits) > limit {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func (f *fakeIndex) DeleteRecord(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.indexed, id)
	return nil
}

func (f *fakeIndex) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexed[id]
}

func newTestHistory(t *testing.T) (*HistoryService, *fakeIndex) {
	t.Helper()
	index := newFakeIndex()
	svc := NewHistoryService(repositories.NewInterviewRepository(newTestStore(t)), index)
	return svc, index
}

func completedAnalysis(rating, confidence float64) *models.AnalysisResult {
	return &models.AnalysisResult{
		ProcessID:  "proc",
		Status:     models.AnalysisCompleted,
		Timestamp:  time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		Evaluation: sampleEvaluation(rating, confidence),
	}
}

func interviewAt(name, position string, start time.Time, minutes int) *models.InterviewResult {
	end := start.Add(time.Duration(minutes) * time.Minute)
	return &models.InterviewResult{
		ID:       "iv-" + name,
		Messages: sampleTranscript(),
		Status:   models.InterviewCompleted,
		Metadata: models.InterviewMetadata{
			CandidateName: name,
			Position:      position,
			StartTime:     &start,
			EndTime:       &end,
			TotalTurns:    6,
		},
	}
}

func TestHistoryService_SaveToHistory(t *testing.T) {
	h, index := newTestHistory(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 30, 14, 0, 0, 0, time.UTC)

	id, err := h.SaveToHistory(ctx, interviewAt("张三", "后端工程师", start, 45), completedAnalysis(82, 70), []string{" 后端 ", "后端", "", "二面"}, "表现不错")
	require.NoError(t, err)

	record, err := h.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "张三", record.CandidateName)
	assert.Equal(t, "后端工程师", record.Position)
	assert.True(t, record.InterviewDate.Equal(start))
	assert.Equal(t, models.RecordCompleted, record.Status)
	assert.Equal(t, []string{"后端", "二面"}, record.Tags)
	assert.Equal(t, "表现不错", record.Notes)
	assert.Equal(t, 6, record.Metadata.TotalTurns)
	require.NotNil(t, record.Metadata.Duration)
	assert.Equal(t, int64(45*60*1000), *record.Metadata.Duration)
	require.NotNil(t, record.Metadata.OverallRating)
	assert.Equal(t, 82.0, *record.Metadata.OverallRating)
	assert.True(t, index.has(id))

	fresh := NewHistoryService(repositories.NewInterviewRepository(newTestStore(t)), nil)
	_, err = fresh.GetRecord(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryService_SaveAnalysisOnly(t *testing.T) {
	h, _ := newTestHistory(t)
	ctx := context.Background()

	analysis := completedAnalysis(60, 50)
	analysis.Evaluation.CandidateName = "李四"
	analysis.Evaluation.Position = "产品经理"

	id, err := h.SaveToHistory(ctx, nil, analysis, nil, "")
	require.NoError(t, err)

	record, err := h.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "李四", record.CandidateName)
	assert.Equal(t, "产品经理", record.Position)
	assert.True(t, record.InterviewDate.Equal(analysis.Timestamp))
	assert.Nil(t, record.Metadata.Duration)
	assert.NotNil(t, record.Tags)

	_, err = h.SaveToHistory(ctx, nil, nil, nil, "")
	assert.Equal(t, KindValidation, ErrorKind(err))
}

func TestHistoryService_IndexFailureDoesNotFailSave(t *testing.T) {
	h, index := newTestHistory(t)
	index.err = errors.New("qdrant down")

	id, err := h.SaveToHistory(context.Background(), nil, completedAnalysis(70, 70), nil, "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestDeriveRecordStatus(t *testing.T) {
	completed := &models.InterviewResult{Status: models.InterviewCompleted}
	failed := &models.InterviewResult{Status: models.InterviewFailed}
	running := &models.InterviewResult{Status: models.InterviewInProgress}
	ok := &models.AnalysisResult{Status: models.AnalysisCompleted}
	broken := &models.AnalysisResult{Status: models.AnalysisError}
	pending := &models.AnalysisResult{Status: models.AnalysisPending}

	assert.Equal(t, models.RecordCompleted, deriveRecordStatus(completed, ok))
	assert.Equal(t, models.RecordFailed, deriveRecordStatus(completed, broken))
	assert.Equal(t, models.RecordFailed, deriveRecordStatus(failed, ok))
	assert.Equal(t, models.RecordCompleted, deriveRecordStatus(running, ok))
	assert.Equal(t, models.RecordCompleted, deriveRecordStatus(nil, ok))
	assert.Equal(t, models.RecordInProgress, deriveRecordStatus(running, pending))
	assert.Equal(t, models.RecordInProgress, deriveRecordStatus(nil, pending))
}

func TestHistoryService_Tags(t *testing.T) {
	h, _ := newTestHistory(t)
	ctx := context.Background()

	id, err := h.SaveToHistory(ctx, nil, completedAnalysis(70, 70), []string{"a"}, "")
	require.NoError(t, err)
	before, err := h.GetRecord(ctx, id)
	require.NoError(t, err)

	h.now = func() time.Time { return before.UpdatedAt.Add(time.Hour) }

	same, err := h.AddTags(ctx, id, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, same.Tags)
	assert.True(t, same.UpdatedAt.Equal(before.UpdatedAt))

	added, err := h.AddTags(ctx, id, []string{"b", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, added.Tags)
	assert.True(t, added.UpdatedAt.After(before.UpdatedAt))

	unchanged, err := h.RemoveTags(ctx, id, []string{"zzz"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, unchanged.Tags)

	removed, err := h.RemoveTags(ctx, id, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, removed.Tags)

	_, err = h.AddTags(ctx, "missing", []string{"x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistoryService_ConcurrentTagEdits(t *testing.T) {
	h, _ := newTestHistory(t)
	ctx := context.Background()
	id, err := h.SaveToHistory(ctx, interviewAt("张三", "后端工程师", time.Now(), 30), completedAnalysis(80, 70), nil, "")
	require.NoError(t, err)

	tags := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, tag := range tags {
		wg.Add(1)
		go func(tag string) {
			defer wg.Done()
			_, err := h.AddTags(ctx, id, []string{tag})
			assert.NoError(t, err)
		}(tag)
	}
	wg.Wait()

	record, err := h.GetRecord(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, tags, record.Tags)
}

func TestHistoryService_UpdateAndDelete(t *testing.T) {
	h, index := newTestHistory(t)
	ctx := context.Background()

	id, err := h.SaveToHistory(ctx, nil, completedAnalysis(70, 70), nil, "")
	require.NoError(t, err)
	other, err := h.SaveToHistory(ctx, nil, completedAnalysis(75, 70), nil, "")
	require.NoError(t, err)

	name := "王五"
	status := models.RecordFailed
	updated, err := h.UpdateRecord(ctx, id, models.RecordUpdate{CandidateName: &name, Status: &status, Tags: []string{"复核"}})
	require.NoError(t, err)
	assert.Equal(t, "王五", updated.CandidateName)
	assert.Equal(t, models.RecordFailed, updated.Status)
	assert.Equal(t, []string{"复核"}, updated.Tags)

	require.NoError(t, h.DeleteRecord(ctx, id))
	assert.False(t, index.has(id))
	assert.ErrorIs(t, h.DeleteRecord(ctx, id), ErrNotFound)

	count, err := h.DeleteRecords(ctx, []string{id, other, "missing"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	records, err := h.GetAllRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryService_ClearHistory(t *testing.T) {
	h, index := newTestHistory(t)
	ctx := context.Background()

	id, err := h.SaveToHistory(ctx, nil, completedAnalysis(70, 70), nil, "")
	require.NoError(t, err)

	require.NoError(t, h.ClearHistory(ctx))
	assert.False(t, index.has(id))

	_, err = h.GetRecord(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func seedHistory(t *testing.T, h *HistoryService) []string {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	first, err := h.SaveToHistory(ctx, interviewAt("张三", "后端工程师", base, 30), completedAnalysis(85, 80), []string{"后端"}, "")
	require.NoError(t, err)
	second, err := h.SaveToHistory(ctx, interviewAt("李四", "前端工程师", base.AddDate(0, 0, 5), 60), completedAnalysis(65, 60), []string{"前端"}, "需要复核")
	require.NoError(t, err)

	failed := interviewAt("王五", "后端工程师", base.AddDate(0, 0, 10), 10)
	failed.Status = models.InterviewFailed
	third, err := h.SaveToHistory(ctx, failed, nil, []string{"后端"}, "")
	require.NoError(t, err)

	return []string{first, second, third}
}

func TestHistoryService_GetAllRecordsOrder(t *testing.T) {
	h, _ := newTestHistory(t)
	ids := seedHistory(t, h)

	records, err := h.GetAllRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ids[2], records[0].ID)
	assert.Equal(t, ids[1], records[1].ID)
	assert.Equal(t, ids[0], records[2].ID)
}

func TestHistoryService_FilterRecords(t *testing.T) {
	h, _ := newTestHistory(t)
	ids := seedHistory(t, h)
	ctx := context.Background()

	hasAnalysis := false
	minRating := 80.0
	from := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter models.HistoryFilter
		want   []string
	}{
		{name: "empty", filter: models.HistoryFilter{}, want: []string{ids[2], ids[1], ids[0]}},
		{name: "search notes", filter: models.HistoryFilter{SearchText: "复核"}, want: []string{ids[1]}},
		{name: "search tag", filter: models.HistoryFilter{SearchText: "后端"}, want: []string{ids[2], ids[0]}},
		{name: "status", filter: models.HistoryFilter{Status: models.RecordFailed}, want: []string{ids[2]}},
		{name: "tags", filter: models.HistoryFilter{Tags: []string{"前端", "nope"}}, want: []string{ids[1]}},
		{name: "no analysis", filter: models.HistoryFilter{HasAnalysis: &hasAnalysis}, want: []string{ids[2]}},
		{name: "min rating", filter: models.HistoryFilter{MinRating: &minRating}, want: []string{ids[0]}},
		{name: "date from", filter: models.HistoryFilter{DateFrom: &from}, want: []string{ids[2], ids[1]}},
		{name: "position and name", filter: models.HistoryFilter{Position: "后端", CandidateName: "王"}, want: []string{ids[2]}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := h.FilterRecords(ctx, tt.filter)
			require.NoError(t, err)
			got := make([]string, 0, len(records))
			for _, r := range records {
				got = append(got, r.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	found, err := h.SearchRecords(ctx, "李四")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ids[1], found[0].ID)
}

func TestHistoryService_CompareRecords(t *testing.T) {
	h, _ := newTestHistory(t)
	ids := seedHistory(t, h)
	ctx := context.Background()

	_, err := h.CompareRecords(ctx, []string{"missing"})
	assert.ErrorIs(t, err, ErrNoRecords)

	result, err := h.CompareRecords(ctx, []string{ids[0], "missing", ids[2]})
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[2]}, result.RecordIDs)
	assert.Equal(t, []string{"张三", "王五"}, result.CandidateNames)
	assert.Equal(t, []float64{85, 0}, result.Ratings)
	assert.Equal(t, []float64{80, 0}, result.Confidences)
	assert.Equal(t, []string{}, result.Strengths[1])
	require.Len(t, result.DimensionScores, len(models.Dimensions))
	for _, dim := range models.Dimensions {
		require.Len(t, result.DimensionScores[dim], 2)
		assert.Equal(t, 0.0, result.DimensionScores[dim][1])
	}
	assert.Equal(t, 60.0, result.DimensionScores[models.DimensionIntelligence][0])
}

func TestHistoryService_GetStatistics(t *testing.T) {
	h, _ := newTestHistory(t)
	ctx := context.Background()

	empty, err := h.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalRecords)
	assert.Equal(t, 0.0, empty.AverageRating)
	assert.Nil(t, empty.DateRange)
	assert.NotNil(t, empty.PositionCounts)
	assert.NotNil(t, empty.TagCounts)
	assert.NotNil(t, empty.TopCandidates)

	ids := seedHistory(t, h)
	stats, err := h.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalRecords)
	assert.Equal(t, 2, stats.CompletedRecords)
	assert.Equal(t, 1, stats.FailedRecords)
	assert.Equal(t, 75.0, stats.AverageRating)
	assert.Equal(t, 70.0, stats.AverageConfidence)
	assert.Equal(t, map[string]int{"后端工程师": 2, "前端工程师": 1}, stats.PositionCounts)
	assert.Equal(t, map[string]int{"后端": 2, "前端": 1}, stats.TagCounts)
	require.Len(t, stats.TopCandidates, 2)
	assert.Equal(t, ids[0], stats.TopCandidates[0].RecordID)
	require.NotNil(t, stats.DateRange)
	assert.True(t, stats.DateRange.Start.Equal(time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, stats.DateRange.End.Equal(time.Date(2026, 9, 11, 10, 0, 0, 0, time.UTC)))
}

func TestHistoryService_ExportRecordsCSV(t *testing.T) {
	h, _ := newTestHistory(t)
	ids := seedHistory(t, h)

	out, err := h.ExportRecords(context.Background(), []string{ids[1], "missing"}, ExportCSV)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Duration (min)", rows[0][7])

	row := rows[1]
	assert.Equal(t, ids[1], row[0])
	assert.Equal(t, "李四", row[1])
	assert.Equal(t, "65", row[5])
	assert.Equal(t, "60", row[7])
	assert.Equal(t, "6", row[8])
	assert.Equal(t, "前端", row[9])
	assert.Equal(t, "需要复核", row[10])

	all, err := h.ExportRecords(context.Background(), nil, ExportText)
	require.NoError(t, err)
	assert.Contains(t, all, "记录总数：3")
}

func TestHistoryService_FindSimilar(t *testing.T) {
	h, index := newTestHistory(t)
	ids := seedHistory(t, h)
	ctx := context.Background()

	index.hits = []SimilarHit{
		{RecordID: ids[0], Score: 1},
		{RecordID: "deleted", Score: 0.9},
		{RecordID: ids[1], Score: 0.8},
	}

	similar, err := h.FindSimilar(ctx, ids[0], 5)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, ids[1], similar[0].RecordID)
	assert.Equal(t, "李四", similar[0].CandidateName)
	assert.Equal(t, float32(0.8), similar[0].Score)

	_, err = h.FindSimilar(ctx, ids[2], 5)
	assert.Equal(t, KindValidation, ErrorKind(err))

	noIndex := NewHistoryService(repositories.NewInterviewRepository(newTestStore(t)), nil)
	_, err = noIndex.FindSimilar(ctx, ids[0], 5)
	assert.Equal(t, KindValidation, ErrorKind(err))
}

func TestHistoryService_Reindex(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seeded := NewHistoryService(repositories.NewInterviewRepository(store), nil)
	ids := seedHistory(t, seeded)

	index := newFakeIndex()
	h := NewHistoryService(repositories.NewInterviewRepository(store), index)

	indexed, failed, err := h.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, indexed)
	assert.Zero(t, failed)
	assert.True(t, index.has(ids[0]))
	assert.True(t, index.has(ids[1]))
	assert.False(t, index.has(ids[2]))

	index.err = errors.New("qdrant unavailable")
	indexed, failed, err = h.Reindex(ctx)
	require.NoError(t, err)
	assert.Zero(t, indexed)
	assert.Equal(t, 2, failed)

	_, _, err = seeded.Reindex(ctx)
	assert.Equal(t, KindValidation, ErrorKind(err))
}
