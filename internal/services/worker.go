package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
)

const (
	jobQueueSize      = 100
	pendingPollPeriod = 10 * time.Second
	pendingPollLimit  = 10
)

// Worker runs submitted evaluation requests in the background. Every
// worker goroutine owns its own EvaluationEngine.
type Worker struct {
	analyses    repositories.AnalysisRepository
	history     *HistoryService
	gen         Generator
	prompts     *PromptBuilder
	validate    *validator.Validate
	jobQueue    chan string
	concurrency int
	wg          sync.WaitGroup
	stopChan    chan struct{}
	stopOnce    sync.Once

	claimedMu sync.Mutex
	claimed   map[string]bool
}

func NewWorker(
	analyses repositories.AnalysisRepository,
	history *HistoryService,
	gen Generator,
	prompts *PromptBuilder,
	concurrency int,
) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		analyses:    analyses,
		history:     history,
		gen:         gen,
		prompts:     prompts,
		validate:    validator.New(),
		jobQueue:    make(chan string, jobQueueSize),
		concurrency: concurrency,
		stopChan:    make(chan struct{}),
		claimed:     make(map[string]bool),
	}
}

// Start launches the worker goroutines and the pending poller. Jobs a
// previous process left running are put back in the queue first.
func (w *Worker) Start(ctx context.Context) {
	log.Printf("🚀 Starting worker with %d concurrent workers\n", w.concurrency)

	w.recoverInterruptedJobs(ctx)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1)
	}

	w.wg.Add(1)
	go w.pollPendingJobs(ctx)

	log.Println("✅ Worker started successfully")
}

func (w *Worker) recoverInterruptedJobs(ctx context.Context) {
	ids, err := w.analyses.ResetRunningJobs(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to recover interrupted jobs: %v\n", err)
	}
	if len(ids) == 0 {
		return
	}

	log.Printf("🔄 Recovered %d interrupted jobs\n", len(ids))
	for _, id := range ids {
		w.EnqueueJob(id)
	}
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		log.Println("🛑 Stopping worker...")
		close(w.stopChan)
		w.wg.Wait()
		log.Println("✅ Worker stopped")
	})
}

// Submit validates req, stores it as a pending job and queues it.
func (w *Worker) Submit(ctx context.Context, req models.EvaluationRequest) (*models.AnalysisResult, error) {
	if err := ValidateTranscript(req.Transcript); err != nil {
		return nil, err
	}
	if err := w.validate.Struct(req); err != nil {
		return nil, newValidationError("invalid evaluation request: %v", err)
	}

	job := &models.AnalysisResult{
		ProcessID: uuid.New().String(),
		Status:    models.AnalysisPending,
		Timestamp: time.Now().UTC(),
		Request:   &req,
	}
	if err := w.analyses.Save(ctx, job); err != nil {
		return nil, persistenceError("queue evaluation", err)
	}

	w.EnqueueJob(job.ProcessID)
	return job, nil
}

// GetJob returns the stored state of a job.
func (w *Worker) GetJob(ctx context.Context, id string) (*models.AnalysisResult, error) {
	job, err := w.analyses.FindByID(ctx, id)
	if err != nil {
		return nil, persistenceError("get evaluation", err)
	}
	return job, nil
}

// EnqueueJob queues id unless it is already queued or running. A full
// queue leaves the job to the pending poller.
func (w *Worker) EnqueueJob(id string) {
	w.claimedMu.Lock()
	if w.claimed[id] {
		w.claimedMu.Unlock()
		return
	}
	w.claimed[id] = true
	w.claimedMu.Unlock()

	select {
	case w.jobQueue <- id:
		log.Printf("📥 Job %s enqueued\n", id)
	case <-w.stopChan:
		w.release(id)
		log.Printf("⚠️  Worker stopped, cannot enqueue job %s\n", id)
	default:
		w.release(id)
		log.Printf("⚠️  Job queue full, job %s left for the poller\n", id)
	}
}

func (w *Worker) release(id string) {
	w.claimedMu.Lock()
	delete(w.claimed, id)
	w.claimedMu.Unlock()
}

func (w *Worker) processJobs(ctx context.Context, workerID int) {
	defer w.wg.Done()
	log.Printf("🚀 Worker %d started processing jobs\n", workerID)

	engine := NewEvaluationEngine(w.gen, w.prompts)

	for {
		select {
		case <-w.stopChan:
			log.Printf("👷 Worker #%d stopped\n", workerID)
			return
		case id := <-w.jobQueue:
			log.Printf("👷 Worker #%d processing job %s\n", workerID, id)
			if err := w.processJob(ctx, engine, id); err != nil {
				log.Printf("❌ Worker #%d failed to process job %s: %v\n", workerID, id, err)
			} else {
				log.Printf("✅ Worker #%d completed job %s\n", workerID, id)
			}
			w.release(id)
		}
	}
}

func (w *Worker) processJob(ctx context.Context, engine *EvaluationEngine, id string) error {
	job, err := w.analyses.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != models.AnalysisPending {
		return nil
	}
	if job.Request == nil {
		return w.analyses.UpdateError(ctx, id, "job has no request")
	}
	if err := w.analyses.UpdateStatus(ctx, id, models.AnalysisRunning); err != nil {
		return err
	}

	req := job.Request
	result, evalErr := engine.EvaluateInterview(ctx, req.Transcript, req.Context, EvaluateOptions{
		Step:            req.Step,
		Stage:           req.Stage,
		PreviousSummary: req.PreviousSummary,
	})
	if evalErr != nil {
		if err := w.analyses.UpdateError(ctx, id, evalErr.Error()); err != nil {
			return err
		}
		result = &models.AnalysisResult{Status: models.AnalysisError, Error: evalErr.Error()}
	} else if result.Evaluation != nil {
		if result.Evaluation.CandidateName == "" {
			result.Evaluation.CandidateName = req.CandidateName
		}
		if result.Evaluation.Position == "" {
			result.Evaluation.Position = req.Position
		}
	}

	result.ProcessID = id
	result.Request = req
	result.Timestamp = time.Now().UTC()
	if evalErr == nil {
		if err := w.analyses.Save(ctx, result); err != nil {
			return err
		}
	}

	if req.SaveToHistory && w.history != nil {
		interview := InterviewFromRequest(id, req, evalErr == nil)
		if _, err := w.history.SaveToHistory(ctx, interview, result, req.Tags, ""); err != nil {
			log.Printf("⚠️ Failed to save job %s to history: %v\n", id, err)
		}
	}
	return evalErr
}

// InterviewFromRequest wraps a request's transcript as a finished
// interview. Start and end times come from message timestamps when set.
func InterviewFromRequest(id string, req *models.EvaluationRequest, completed bool) *models.InterviewResult {
	interview := &models.InterviewResult{
		ID:       id,
		Messages: req.Transcript,
		Status:   models.InterviewCompleted,
		Metadata: models.InterviewMetadata{
			CandidateName: req.CandidateName,
			Position:      req.Position,
		},
	}
	if !completed {
		interview.Status = models.InterviewFailed
	}

	for _, msg := range req.Transcript {
		if msg.Turn > interview.Metadata.TotalTurns {
			interview.Metadata.TotalTurns = msg.Turn
		}
		if msg.Timestamp.IsZero() {
			continue
		}
		ts := msg.Timestamp
		if interview.Metadata.StartTime == nil || ts.Before(*interview.Metadata.StartTime) {
			interview.Metadata.StartTime = &ts
		}
		if interview.Metadata.EndTime == nil || ts.After(*interview.Metadata.EndTime) {
			interview.Metadata.EndTime = &ts
		}
	}
	if interview.Metadata.TotalTurns == 0 {
		interview.Metadata.TotalTurns = len(req.Transcript)
	}
	interview.Metadata.InterviewDate = interview.Metadata.StartTime
	return interview
}

func (w *Worker) pollPendingJobs(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(pendingPollPeriod)
	defer ticker.Stop()

	log.Println("🔄 Starting pending jobs poller")

	for {
		select {
		case <-w.stopChan:
			log.Println("🔄 Pending jobs poller stopped")
			return
		case <-ticker.C:
			pendingJobs, err := w.analyses.FindPendingJobs(ctx, pendingPollLimit)
			if err != nil {
				log.Printf("⚠️  Failed to fetch pending jobs: %v\n", err)
				continue
			}

			if len(pendingJobs) > 0 {
				log.Printf("📋 Found %d pending jobs\n", len(pendingJobs))
			}

			for _, job := range pendingJobs {
				w.EnqueueJob(job.ProcessID)
			}
		}
	}
}
