package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
)

type workerFixture struct {
	worker   *Worker
	analyses repositories.AnalysisRepository
	history  *HistoryService
	gen      *fakeGenerator
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	store := newTestStore(t)
	gen := newFakeGenerator()
	analyses := repositories.NewAnalysisRepository(store)
	history := NewHistoryService(repositories.NewInterviewRepository(store), nil)
	return &workerFixture{
		worker:   NewWorker(analyses, history, gen, NewPromptBuilder(), 2),
		analyses: analyses,
		history:  history,
		gen:      gen,
	}
}

func TestWorker_SubmitValidates(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	_, err := f.worker.Submit(ctx, models.EvaluationRequest{})
	assert.Equal(t, KindValidation, ErrorKind(err))

	_, err = f.worker.Submit(ctx, models.EvaluationRequest{Transcript: sampleTranscript(), Stage: "3"})
	assert.Equal(t, KindValidation, ErrorKind(err))

	_, err = f.worker.Submit(ctx, models.EvaluationRequest{Transcript: sampleTranscript(), Step: "everything"})
	assert.Equal(t, KindValidation, ErrorKind(err))
}

func TestWorker_ProcessJob(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	job, err := f.worker.Submit(ctx, models.EvaluationRequest{
		Transcript:    sampleTranscript(),
		Step:          models.StepReport,
		SaveToHistory: true,
		Tags:          []string{"校招"},
		CandidateName: "张三",
		Position:      "后端工程师",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisPending, job.Status)

	stored, err := f.worker.GetJob(ctx, job.ProcessID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisPending, stored.Status)

	engine := NewEvaluationEngine(f.gen, NewPromptBuilder())
	require.NoError(t, f.worker.processJob(ctx, engine, job.ProcessID))

	done, err := f.worker.GetJob(ctx, job.ProcessID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisCompleted, done.Status)
	require.NotNil(t, done.Evaluation)
	assert.Equal(t, "张三", done.Evaluation.CandidateName)
	assert.Equal(t, "后端工程师", done.Evaluation.Position)
	require.NotNil(t, done.Request)

	records, err := f.history.GetAllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "张三", records[0].CandidateName)
	assert.Equal(t, []string{"校招"}, records[0].Tags)
	assert.Equal(t, models.RecordCompleted, records[0].Status)

	// a finished job is not evaluated again
	calls := len(f.gen.userMessages())
	require.NoError(t, f.worker.processJob(ctx, engine, job.ProcessID))
	assert.Len(t, f.gen.userMessages(), calls)
}

func TestWorker_ProcessJobFailure(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	job, err := f.worker.Submit(ctx, models.EvaluationRequest{
		Transcript: []models.ConversationMessage{
			{Role: models.RoleInterviewer, Content: failMarker, Turn: 1},
		},
		SaveToHistory: true,
	})
	require.NoError(t, err)

	engine := NewEvaluationEngine(f.gen, NewPromptBuilder())
	assert.Error(t, f.worker.processJob(ctx, engine, job.ProcessID))

	failed, err := f.worker.GetJob(ctx, job.ProcessID)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisError, failed.Status)
	assert.Contains(t, failed.Error, "Test error")

	records, err := f.history.GetAllRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.RecordFailed, records[0].Status)
}

func TestWorker_StartProcessesQueuedJobs(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	f.worker.Start(ctx)
	defer f.worker.Stop()

	job, err := f.worker.Submit(ctx, models.EvaluationRequest{Transcript: sampleTranscript()})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		got, err := f.worker.GetJob(ctx, job.ProcessID)
		return err == nil && got.Status == models.AnalysisCompleted
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWorker_StartResumesInterruptedJobs(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	job := &models.AnalysisResult{
		ProcessID: "interrupted",
		Status:    models.AnalysisRunning,
		Timestamp: time.Now().UTC(),
		Request:   &models.EvaluationRequest{Transcript: sampleTranscript(), Step: models.StepReport},
	}
	require.NoError(t, f.analyses.Save(ctx, job))

	f.worker.Start(ctx)
	defer f.worker.Stop()

	assert.Eventually(t, func() bool {
		got, err := f.worker.GetJob(ctx, job.ProcessID)
		return err == nil && got.Status == models.AnalysisCompleted
	}, 5*time.Second, 20*time.Millisecond)
}

func TestInterviewFromRequest(t *testing.T) {
	start := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)
	req := &models.EvaluationRequest{
		Transcript: []models.ConversationMessage{
			{Role: models.RoleInterviewer, Content: "a", Turn: 1, Timestamp: start.Add(time.Minute)},
			{Role: models.RoleCandidate, Content: "b", Turn: 1, Timestamp: start},
			{Role: models.RoleInterviewer, Content: "c", Turn: 2, Timestamp: start.Add(20 * time.Minute)},
		},
		CandidateName: "张三",
	}

	interview := InterviewFromRequest("id-1", req, true)
	assert.Equal(t, models.InterviewCompleted, interview.Status)
	assert.Equal(t, 2, interview.Metadata.TotalTurns)
	require.NotNil(t, interview.Metadata.StartTime)
	assert.True(t, interview.Metadata.StartTime.Equal(start))
	assert.True(t, interview.Metadata.EndTime.Equal(start.Add(20*time.Minute)))
	assert.Equal(t, "张三", interview.Metadata.CandidateName)

	assert.Equal(t, models.InterviewFailed, InterviewFromRequest("id-2", req, false).Status)
}
