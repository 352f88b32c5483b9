package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
)

type BatchEvaluationConfig struct {
	Files           []models.UploadedFile
	Step            models.EvaluationStep
	Stage           string
	PreviousSummary string
	Concurrency     int
	SkipErrors      bool
	SaveResults     bool
	OnProgress      func(progress models.BatchProgress)
	OnFileComplete  func(result models.BatchResult)
}

// BatchService evaluates uploaded conversation files in bulk. One batch
// runs at a time per instance.
type BatchService struct {
	gen      Generator
	prompts  *PromptBuilder
	files    *FileManager
	analyses repositories.AnalysisRepository
	batches  repositories.BatchRepository
	parsers  *TranscriptParsers

	mu             sync.Mutex
	isProcessing   bool
	currentBatchID string
	progress       *models.BatchProgress
	generation     uint64
	stopDispatch   context.CancelFunc
}

func NewBatchService(
	gen Generator,
	prompts *PromptBuilder,
	files *FileManager,
	analyses repositories.AnalysisRepository,
	batches repositories.BatchRepository,
	parsers *TranscriptParsers,
) *BatchService {
	if parsers == nil {
		parsers = NewTranscriptParsers()
	}
	return &BatchService{
		gen:      gen,
		prompts:  prompts,
		files:    files,
		analyses: analyses,
		batches:  batches,
		parsers:  parsers,
	}
}

type batchRun struct {
	id         string
	generation uint64
	dispatch   context.Context
	startTime  time.Time

	recordMu sync.Mutex
	results  []models.BatchResult
	done     []bool
}

// ProcessBatch evaluates cfg.Files and persists the summary.
func (s *BatchService) ProcessBatch(ctx context.Context, cfg BatchEvaluationConfig) (*models.BatchSummary, error) {
	run, err := s.begin(cfg)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, run, cfg)
}

// StartBatch begins a batch in the background and returns its id. The
// outcome is reported through onDone and persisted like ProcessBatch.
func (s *BatchService) StartBatch(ctx context.Context, cfg BatchEvaluationConfig, onDone func(*models.BatchSummary, error)) (string, error) {
	run, err := s.begin(cfg)
	if err != nil {
		return "", err
	}

	go func() {
		summary, err := s.execute(ctx, run, cfg)
		if err != nil {
			log.Printf("❌ Batch %s failed: %v\n", run.id, err)
		}
		if onDone != nil {
			onDone(summary, err)
		}
	}()
	return run.id, nil
}

// ProcessSelection runs a batch over the files matching sel. Without an
// explicit type only conversation files are selected.
func (s *BatchService) ProcessSelection(ctx context.Context, sel models.FileSelection, cfg BatchEvaluationConfig) (*models.BatchSummary, error) {
	files, err := s.SelectFiles(ctx, sel)
	if err != nil {
		return nil, err
	}
	cfg.Files = files
	return s.ProcessBatch(ctx, cfg)
}

// SelectFiles resolves sel to the files a batch would run over. An empty
// match is a no_match error.
func (s *BatchService) SelectFiles(ctx context.Context, sel models.FileSelection) ([]models.UploadedFile, error) {
	if sel.Type == "" {
		sel.Type = models.FileTypeConversation
	}
	files, err := s.files.SelectFiles(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, newNoMatchError("no files match the selection")
	}
	return files, nil
}

func (s *BatchService) begin(cfg BatchEvaluationConfig) (*batchRun, error) {
	if len(cfg.Files) == 0 {
		return nil, newValidationError("no files to process")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isProcessing {
		return nil, ErrBatchInProgress
	}

	dispatch, stop := context.WithCancel(context.Background())

	s.generation++
	s.isProcessing = true
	s.currentBatchID = uuid.New().String()
	s.stopDispatch = stop
	s.progress = &models.BatchProgress{
		BatchID: s.currentBatchID,
		Total:   len(cfg.Files),
	}

	return &batchRun{
		id:         s.currentBatchID,
		generation: s.generation,
		dispatch:   dispatch,
		startTime:  time.Now().UTC(),
		results:    make([]models.BatchResult, len(cfg.Files)),
		done:       make([]bool, len(cfg.Files)),
	}, nil
}

func (s *BatchService) finish(run *batchRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != run.generation {
		return
	}
	if s.stopDispatch != nil {
		s.stopDispatch()
	}
	s.isProcessing = false
	s.currentBatchID = ""
	s.progress = nil
	s.stopDispatch = nil
}

func (s *BatchService) cancelled(run *batchRun) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation != run.generation
}

func (s *BatchService) execute(ctx context.Context, run *batchRun, cfg BatchEvaluationConfig) (*models.BatchSummary, error) {
	defer s.finish(run)

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	log.Printf("🔄 Batch %s started: %d files, concurrency %d\n", run.id, len(cfg.Files), concurrency)

	g, gctx := errgroup.WithContext(run.dispatch)
	g.SetLimit(concurrency)

	for i, file := range cfg.Files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			result, err := s.processFile(ctx, file, cfg)
			s.record(run, i, result, cfg)
			if err != nil && !cfg.SkipErrors {
				return fmt.Errorf("file %s: %w", file.Name, err)
			}
			return nil
		})
	}

	waitErr := g.Wait()

	if s.cancelled(run) {
		log.Printf("⚠️ Batch %s cancelled\n", run.id)
		return nil, ErrBatchCancelled
	}
	if waitErr != nil {
		log.Printf("❌ Batch %s aborted: %v\n", run.id, waitErr)
		return nil, waitErr
	}

	summary := buildBatchSummary(run, time.Now().UTC())

	if err := s.batches.Save(ctx, summary); err != nil {
		return nil, persistenceError("save batch summary", err)
	}

	log.Printf("✅ Batch %s completed: %d succeeded, %d failed\n", run.id, summary.SuccessCount, summary.FailureCount)
	return summary, nil
}

// record stores one file's outcome and reports progress. Callbacks run
// under recordMu so observers see completed+failed increase one at a time.
// Outcomes arriving after cancellation are discarded.
func (s *BatchService) record(run *batchRun, index int, result models.BatchResult, cfg BatchEvaluationConfig) {
	run.recordMu.Lock()
	defer run.recordMu.Unlock()

	s.mu.Lock()
	if s.generation != run.generation {
		s.mu.Unlock()
		return
	}
	run.results[index] = result
	run.done[index] = true

	if result.Success {
		s.progress.Completed++
	} else {
		s.progress.Failed++
	}
	processed := s.progress.Completed + s.progress.Failed
	s.progress.Percentage = math.Round(float64(processed)/float64(s.progress.Total)*10000) / 100
	s.progress.CurrentFile = result.FileName
	progress := *s.progress
	s.mu.Unlock()

	if cfg.OnFileComplete != nil {
		cfg.OnFileComplete(result)
	}
	if cfg.OnProgress != nil {
		cfg.OnProgress(progress)
	}
}

// processFile evaluates one file. The returned error is also recorded in
// the result.
func (s *BatchService) processFile(ctx context.Context, file models.UploadedFile, cfg BatchEvaluationConfig) (models.BatchResult, error) {
	start := time.Now()
	result := models.BatchResult{
		FileID:   file.ID,
		FileName: file.Name,
	}

	analysis, err := s.evaluateFile(ctx, file, cfg)
	result.Duration = time.Since(start).Milliseconds()
	if err != nil {
		log.Printf("⚠️ File %s failed: %v\n", file.Name, err)
		result.Error = err.Error()
		return result, err
	}

	result.Success = true
	result.Result = analysis
	return result, nil
}

func (s *BatchService) evaluateFile(ctx context.Context, file models.UploadedFile, cfg BatchEvaluationConfig) (*models.AnalysisResult, error) {
	if file.Type != "" && file.Type != models.FileTypeConversation {
		return nil, newValidationError("file %s is not a conversation (type %s)", file.Name, file.Type)
	}

	transcript, err := s.parsers.Parse(file.Content)
	if err != nil {
		return nil, err
	}

	ic, err := s.files.ResolveContext(ctx, file)
	if err != nil {
		return nil, err
	}

	stage := cfg.Stage
	if stage == "" {
		stage = file.Metadata[models.MetaStage]
	}
	previousSummary := cfg.PreviousSummary
	if previousSummary == "" {
		previousSummary = file.Metadata[models.MetaPrevSummary]
	}

	engine := NewEvaluationEngine(s.gen, s.prompts)
	analysis, err := engine.EvaluateInterview(ctx, transcript, ic, EvaluateOptions{
		Step:            cfg.Step,
		Stage:           stage,
		PreviousSummary: previousSummary,
	})
	if err != nil {
		return nil, err
	}

	if analysis.Evaluation != nil {
		if analysis.Evaluation.CandidateName == "" {
			analysis.Evaluation.CandidateName = file.Metadata[models.MetaCandidateName]
		}
		if analysis.Evaluation.Position == "" {
			analysis.Evaluation.Position = file.Metadata[models.MetaPosition]
		}
	}

	if cfg.SaveResults {
		if err := s.analyses.Save(ctx, analysis); err != nil {
			return nil, persistenceError("save analysis", err)
		}
	}
	return analysis, nil
}

func buildBatchSummary(run *batchRun, endTime time.Time) *models.BatchSummary {
	summary := &models.BatchSummary{
		BatchID:       run.id,
		StartTime:     run.startTime,
		EndTime:       endTime,
		TotalFiles:    len(run.results),
		Results:       make([]models.BatchResult, 0, len(run.results)),
		TotalDuration: endTime.Sub(run.startTime).Milliseconds(),
	}

	var (
		durationSum   int64
		ratingSum     float64
		confidenceSum float64
	)
	for i, result := range run.results {
		if !run.done[i] {
			continue
		}
		summary.Results = append(summary.Results, result)
		durationSum += result.Duration

		if !result.Success {
			summary.FailureCount++
			continue
		}
		summary.SuccessCount++

		if result.Result == nil {
			continue
		}
		if result.Result.TopicAnalysis != nil {
			summary.Statistics.TopicAnalysisCount++
		}
		if eval := result.Result.Evaluation; eval != nil {
			summary.Statistics.EvaluationCount++
			ratingSum += eval.OverallRating
			confidenceSum += eval.OverallConfidence
		}
	}

	if n := len(summary.Results); n > 0 {
		summary.AverageDuration = durationSum / int64(n)
	}
	if n := summary.Statistics.EvaluationCount; n > 0 {
		avgRating := ratingSum / float64(n)
		avgConfidence := confidenceSum / float64(n)
		summary.Statistics.AverageRating = &avgRating
		summary.Statistics.AverageConfidence = &avgConfidence
	}
	return summary
}

// GetProcessingStatus reports the batch in flight, if any.
func (s *BatchService) GetProcessingStatus() models.ProcessingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := models.ProcessingStatus{
		IsProcessing:   s.isProcessing,
		CurrentBatchID: s.currentBatchID,
	}
	if s.progress != nil {
		progress := *s.progress
		status.Progress = &progress
	}
	return status
}

// CancelBatch stops dispatching new files and releases the guard. Files
// already being evaluated finish, but their results are discarded.
func (s *BatchService) CancelBatch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isProcessing {
		return false
	}

	log.Printf("🛑 Cancelling batch %s\n", s.currentBatchID)
	if s.stopDispatch != nil {
		s.stopDispatch()
	}
	s.generation++
	s.isProcessing = false
	s.currentBatchID = ""
	s.progress = nil
	s.stopDispatch = nil
	return true
}

func (s *BatchService) GetBatch(ctx context.Context, id string) (*models.BatchSummary, error) {
	summary, err := s.batches.FindByID(ctx, id)
	if err != nil {
		return nil, persistenceError("get batch", err)
	}
	return summary, nil
}

// ListBatches returns persisted summaries, newest first.
func (s *BatchService) ListBatches(ctx context.Context) ([]models.BatchSummary, error) {
	summaries, err := s.batches.FindAll(ctx)
	if err != nil {
		return nil, persistenceError("list batches", err)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
	return summaries, nil
}

func (s *BatchService) DeleteBatch(ctx context.Context, id string) error {
	deleted, err := s.batches.Delete(ctx, id)
	if err != nil {
		return persistenceError("delete batch", err)
	}
	if !deleted {
		return fmt.Errorf("batch %s: %w", id, ErrNotFound)
	}
	return nil
}

// ExportSummary renders summary as json, csv or text.
func (s *BatchService) ExportSummary(summary *models.BatchSummary, format ExportFormat) (string, error) {
	return ExportBatchSummary(summary, format)
}
