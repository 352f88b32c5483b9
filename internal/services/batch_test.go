package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
)

type batchFixture struct {
	svc      *BatchService
	files    *FileManager
	analyses repositories.AnalysisRepository
	gen      *fakeGenerator
}

func newBatchFixture(t *testing.T) *batchFixture {
	t.Helper()
	store := newTestStore(t)
	gen := newFakeGenerator()
	files := NewFileManager(repositories.NewFileRepository(store), NewStorageService(t.TempDir()), NewPDFParser(), 0)
	analyses := repositories.NewAnalysisRepository(store)
	svc := NewBatchService(gen, NewPromptBuilder(), files, analyses, repositories.NewBatchRepository(store), nil)
	return &batchFixture{svc: svc, files: files, analyses: analyses, gen: gen}
}

func conversationFile(id, name, content string) models.UploadedFile {
	return models.UploadedFile{
		ID:      id,
		Name:    name,
		Type:    models.FileTypeConversation,
		Content: content,
	}
}

func threeFiles() []models.UploadedFile {
	return []models.UploadedFile{
		conversationFile("file-1", "one.txt", sampleConversation),
		conversationFile("file-2", "two.txt", "面试官："+failMarker+"\n候选人：好的"),
		conversationFile("file-3", "three.txt", sampleConversation),
	}
}

func TestBatchService_ProcessBatchSkipsErrors(t *testing.T) {
	f := newBatchFixture(t)
	ctx := context.Background()

	var progress []models.BatchProgress
	var completed []string
	summary, err := f.svc.ProcessBatch(ctx, BatchEvaluationConfig{
		Files:          threeFiles(),
		Step:           models.StepReport,
		Concurrency:    2,
		SkipErrors:     true,
		OnProgress:     func(p models.BatchProgress) { progress = append(progress, p) },
		OnFileComplete: func(r models.BatchResult) { completed = append(completed, r.FileID) },
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalFiles)
	assert.Equal(t, 2, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)
	require.Len(t, summary.Results, 3)
	for i, id := range []string{"file-1", "file-2", "file-3"} {
		assert.Equal(t, id, summary.Results[i].FileID)
	}
	assert.False(t, summary.Results[1].Success)
	assert.Contains(t, summary.Results[1].Error, "Test error")
	assert.Nil(t, summary.Results[1].Result)

	assert.Equal(t, 2, summary.Statistics.EvaluationCount)
	assert.Equal(t, 0, summary.Statistics.TopicAnalysisCount)
	require.NotNil(t, summary.Statistics.AverageRating)
	assert.Equal(t, 7.5, *summary.Statistics.AverageRating)
	assert.GreaterOrEqual(t, summary.TotalDuration, int64(0))
	assert.False(t, summary.EndTime.Before(summary.StartTime))

	assert.ElementsMatch(t, []string{"file-1", "file-2", "file-3"}, completed)
	require.Len(t, progress, 3)
	for i, p := range progress {
		assert.Equal(t, summary.BatchID, p.BatchID)
		assert.Equal(t, 3, p.Total)
		assert.Equal(t, i+1, p.Completed+p.Failed)
		if i > 0 {
			assert.GreaterOrEqual(t, p.Percentage, progress[i-1].Percentage)
		}
	}
	assert.Equal(t, 33.33, progress[0].Percentage)
	assert.Equal(t, 100.0, progress[2].Percentage)

	stored, err := f.svc.GetBatch(ctx, summary.BatchID)
	require.NoError(t, err)
	assert.Equal(t, summary.SuccessCount, stored.SuccessCount)

	assert.False(t, f.svc.GetProcessingStatus().IsProcessing)
}

func TestBatchService_StopsOnErrorWithoutSkip(t *testing.T) {
	f := newBatchFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProcessBatch(ctx, BatchEvaluationConfig{
		Files:       threeFiles(),
		Step:        models.StepReport,
		Concurrency: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "two.txt")

	batches, err := f.svc.ListBatches(ctx)
	require.NoError(t, err)
	assert.Empty(t, batches)
	assert.False(t, f.svc.GetProcessingStatus().IsProcessing)
}

func TestBatchService_AllFailedHasNoAverages(t *testing.T) {
	f := newBatchFixture(t)

	summary, err := f.svc.ProcessBatch(context.Background(), BatchEvaluationConfig{
		Files: []models.UploadedFile{
			conversationFile("f1", "bad.txt", "面试官："+failMarker),
			{ID: "f2", Name: "jd.txt", Type: models.FileTypeJD, Content: "岗位职责"},
		},
		SkipErrors: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SuccessCount)
	assert.Equal(t, 2, summary.FailureCount)
	assert.Nil(t, summary.Statistics.AverageRating)
	assert.Nil(t, summary.Statistics.AverageConfidence)

	out, err := ExportBatchSummary(summary, ExportJSON)
	require.NoError(t, err)
	assert.NotContains(t, out, "averageRating")
}

func TestBatchService_RejectsSecondBatch(t *testing.T) {
	f := newBatchFixture(t)
	f.gen.block = make(chan struct{})
	f.gen.started = make(chan struct{}, 1)

	done := make(chan error, 1)
	id, err := f.svc.StartBatch(context.Background(), BatchEvaluationConfig{
		Files: []models.UploadedFile{conversationFile("f1", "one.txt", sampleConversation)},
		Step:  models.StepReport,
	}, func(_ *models.BatchSummary, err error) { done <- err })
	require.NoError(t, err)

	<-f.gen.started
	status := f.svc.GetProcessingStatus()
	assert.True(t, status.IsProcessing)
	assert.Equal(t, id, status.CurrentBatchID)
	require.NotNil(t, status.Progress)
	assert.Equal(t, 1, status.Progress.Total)

	_, err = f.svc.ProcessBatch(context.Background(), BatchEvaluationConfig{
		Files: []models.UploadedFile{conversationFile("f2", "two.txt", sampleConversation)},
	})
	assert.ErrorIs(t, err, ErrBatchInProgress)
	assert.Equal(t, KindBatchActive, ErrorKind(err))

	close(f.gen.block)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not finish")
	}
	assert.False(t, f.svc.GetProcessingStatus().IsProcessing)
}

func TestBatchService_CancelBatch(t *testing.T) {
	f := newBatchFixture(t)
	f.gen.block = make(chan struct{})
	f.gen.started = make(chan struct{}, 1)

	assert.False(t, f.svc.CancelBatch())

	done := make(chan error, 1)
	_, err := f.svc.StartBatch(context.Background(), BatchEvaluationConfig{
		Files:       threeFiles(),
		Step:        models.StepReport,
		Concurrency: 1,
	}, func(_ *models.BatchSummary, err error) { done <- err })
	require.NoError(t, err)

	<-f.gen.started
	assert.True(t, f.svc.CancelBatch())
	assert.False(t, f.svc.GetProcessingStatus().IsProcessing)

	close(f.gen.block)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrBatchCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled batch did not return")
	}

	batches, err := f.svc.ListBatches(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestBatchService_ProcessSelection(t *testing.T) {
	f := newBatchFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProcessSelection(ctx, models.FileSelection{}, BatchEvaluationConfig{})
	assert.Equal(t, KindNoMatch, ErrorKind(err))

	jd, err := f.files.UploadFile(ctx, UploadRequest{Name: "jd.txt", Data: []byte("岗位要求：熟悉 Go"), Type: models.FileTypeJD})
	require.NoError(t, err)
	_, err = f.files.UploadFile(ctx, UploadRequest{
		Name:     "赵六_后端_transcript.txt",
		Data:     []byte(sampleConversation),
		Type:     models.FileTypeConversation,
		Metadata: map[string]string{models.MetaJDFileID: jd.ID},
	})
	require.NoError(t, err)

	summary, err := f.svc.ProcessSelection(ctx, models.FileSelection{}, BatchEvaluationConfig{
		Step:        models.StepReport,
		SaveResults: true,
	})
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)

	result := summary.Results[0].Result
	require.NotNil(t, result)
	assert.Equal(t, "赵六", result.Evaluation.CandidateName)
	assert.Equal(t, "后端", result.Evaluation.Position)

	saved, err := f.analyses.FindByID(ctx, result.ProcessID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisCompleted, saved.Status)

	calls := f.gen.userMessages()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[len(calls)-1], "岗位要求：熟悉 Go")
}

func TestBatchService_ProcessBatchValidates(t *testing.T) {
	f := newBatchFixture(t)

	_, err := f.svc.ProcessBatch(context.Background(), BatchEvaluationConfig{})
	assert.Equal(t, KindValidation, ErrorKind(err))
}

func TestBatchService_ListAndDelete(t *testing.T) {
	f := newBatchFixture(t)
	ctx := context.Background()

	first, err := f.svc.ProcessBatch(ctx, BatchEvaluationConfig{Files: threeFiles()[:1], Step: models.StepReport})
	require.NoError(t, err)
	second, err := f.svc.ProcessBatch(ctx, BatchEvaluationConfig{Files: threeFiles()[2:], Step: models.StepReport})
	require.NoError(t, err)

	list, err := f.svc.ListBatches(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.BatchID, list[0].BatchID)

	require.NoError(t, f.svc.DeleteBatch(ctx, first.BatchID))
	assert.ErrorIs(t, f.svc.DeleteBatch(ctx, first.BatchID), ErrNotFound)

	_, err = f.svc.GetBatch(ctx, first.BatchID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExportBatchSummary_CSV(t *testing.T) {
	f := newBatchFixture(t)

	summary, err := f.svc.ProcessBatch(context.Background(), BatchEvaluationConfig{
		Files:      threeFiles(),
		Step:       models.StepReport,
		SkipErrors: true,
	})
	require.NoError(t, err)

	out, err := f.svc.ExportSummary(summary, ExportCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "File Name,Success,Duration (ms),Overall Rating,Confidence,Error", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "one.txt,true,"))
	assert.Contains(t, lines[1], ",7.5,80,")
	assert.True(t, strings.HasPrefix(lines[2], "two.txt,false,"))
	assert.Contains(t, lines[2], "Test error")

	text, err := f.svc.ExportSummary(summary, ExportText)
	require.NoError(t, err)
	assert.Contains(t, text, "成功：2")
	assert.Contains(t, text, "失败：1")
	assert.Contains(t, text, "平均评分：7.5")
}
