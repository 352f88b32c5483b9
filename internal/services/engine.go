package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

// EngineStatus is reported through EvaluateOptions.OnStatusChange.
type EngineStatus string

const (
	StatusStarting               EngineStatus = "starting"
	StatusAnalyzingTopics        EngineStatus = "analyzing_topics"
	StatusEvaluatingCapabilities EngineStatus = "evaluating_capabilities"
	StatusCompleted              EngineStatus = "completed"
	StatusError                  EngineStatus = "error"
)

const (
	ProgressStepTopics     = "topic_analysis"
	ProgressStepEvaluation = "capability_evaluation"
)

const defaultConcurrency = 3

type EvaluateOptions struct {
	Step            models.EvaluationStep
	Stage           string
	PreviousSummary string
	OnStatusChange  func(status EngineStatus)
	OnProgress      func(step string, percent int)
}

func (o EvaluateOptions) status(s EngineStatus) {
	if o.OnStatusChange != nil {
		o.OnStatusChange(s)
	}
}

func (o EvaluateOptions) progress(step string, percent int) {
	if o.OnProgress != nil {
		o.OnProgress(step, percent)
	}
}

// EvaluationEngine runs the evaluator over a transcript. One run at a time
// per instance; callers that need parallel runs build one engine each.
type EvaluationEngine struct {
	agent    *EvaluatorAgent
	validate *validator.Validate

	mu        sync.Mutex
	isRunning bool
}

func NewEvaluationEngine(gen Generator, prompts *PromptBuilder) *EvaluationEngine {
	return &EvaluationEngine{
		agent:    NewEvaluatorAgent(gen, prompts),
		validate: validator.New(),
	}
}

// IsRunning reports whether a run is in flight.
func (e *EvaluationEngine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isRunning
}

func (e *EvaluationEngine) acquire() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.isRunning {
		return ErrConcurrentRun
	}
	e.isRunning = true
	return nil
}

func (e *EvaluationEngine) release() {
	e.mu.Lock()
	e.isRunning = false
	e.mu.Unlock()
}

// EvaluateInterview runs the steps selected by opts.Step. When both steps
// run, the evaluation sees the topic-segmented transcript.
func (e *EvaluationEngine) EvaluateInterview(ctx context.Context, transcript []models.ConversationMessage, ic models.InterviewContext, opts EvaluateOptions) (*models.AnalysisResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	return e.run(ctx, transcript, ic, opts)
}

func (e *EvaluationEngine) run(ctx context.Context, transcript []models.ConversationMessage, ic models.InterviewContext, opts EvaluateOptions) (*models.AnalysisResult, error) {
	opts.status(StatusStarting)

	fail := func(err error) (*models.AnalysisResult, error) {
		opts.status(StatusError)
		return nil, err
	}

	if err := ValidateTranscript(transcript); err != nil {
		return fail(err)
	}
	if opts.Step != "" && !opts.Step.RunsTopics() && !opts.Step.RunsReport() {
		return fail(newValidationError("unknown evaluation step: %q", opts.Step))
	}

	result := &models.AnalysisResult{
		ProcessID: uuid.New().String(),
		Status:    models.AnalysisRunning,
		Timestamp: time.Now().UTC(),
	}

	rendered := FormatTranscript(transcript)

	if opts.Step.RunsTopics() {
		opts.status(StatusAnalyzingTopics)
		opts.progress(ProgressStepTopics, 0)

		topics, err := e.analyzeTopics(ctx, rendered, ic)
		if err != nil {
			return fail(err)
		}
		result.TopicAnalysis = topics
		opts.progress(ProgressStepTopics, 100)
	}

	if opts.Step.RunsReport() {
		opts.status(StatusEvaluatingCapabilities)
		opts.progress(ProgressStepEvaluation, 0)

		input := rendered
		if result.TopicAnalysis != nil {
			input = FormatTopicTranscript(result.TopicAnalysis)
		}

		evaluation, err := e.evaluateCapabilities(ctx, input, ic, opts.Stage, opts.PreviousSummary)
		if err != nil {
			return fail(err)
		}
		result.Evaluation = evaluation
		opts.progress(ProgressStepEvaluation, 100)
	}

	result.Status = models.AnalysisCompleted
	result.Timestamp = time.Now().UTC()
	opts.status(StatusCompleted)
	return result, nil
}

// AnalyzeTopics runs topic segmentation only.
func (e *EvaluationEngine) AnalyzeTopics(ctx context.Context, transcript []models.ConversationMessage, ic models.InterviewContext) (*models.TopicAnalysisResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	if err := ValidateTranscript(transcript); err != nil {
		return nil, err
	}
	return e.analyzeTopics(ctx, FormatTranscript(transcript), ic)
}

// EvaluateCapabilities runs the six-dimension evaluation only.
func (e *EvaluationEngine) EvaluateCapabilities(ctx context.Context, transcript []models.ConversationMessage, ic models.InterviewContext, stage, previousSummary string) (*models.EvaluationResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	if err := ValidateTranscript(transcript); err != nil {
		return nil, err
	}
	return e.evaluateCapabilities(ctx, FormatTranscript(transcript), ic, stage, previousSummary)
}

func (e *EvaluationEngine) analyzeTopics(ctx context.Context, rendered string, ic models.InterviewContext) (*models.TopicAnalysisResult, error) {
	topics, err := e.agent.AnalyzeTopics(ctx, rendered, ic)
	if err != nil {
		return nil, err
	}
	if err := e.ValidateTopicAnalysis(topics); err != nil {
		return nil, err
	}
	return topics, nil
}

func (e *EvaluationEngine) evaluateCapabilities(ctx context.Context, rendered string, ic models.InterviewContext, stage, previousSummary string) (*models.EvaluationResult, error) {
	evaluation, err := e.agent.EvaluateInterview(ctx, rendered, ic, stage, previousSummary)
	if err != nil {
		return nil, err
	}
	if err := e.ValidateEvaluation(evaluation); err != nil {
		return nil, err
	}
	return evaluation, nil
}

// ValidateTranscript rejects transcripts that cannot produce a meaningful
// evaluation.
func ValidateTranscript(transcript []models.ConversationMessage) error {
	if len(transcript) == 0 {
		return newValidationError("transcript is empty")
	}

	hasContent := false
	for i, msg := range transcript {
		if !msg.Role.Valid() {
			return newValidationError("message %d has invalid role %q", i, msg.Role)
		}
		if strings.TrimSpace(msg.Content) != "" {
			hasContent = true
		}
	}
	if !hasContent {
		return newValidationError("transcript has no content")
	}
	return nil
}

// ValidateTopicAnalysis checks the shape of a parsed topic analysis.
func (e *EvaluationEngine) ValidateTopicAnalysis(result *models.TopicAnalysisResult) error {
	if result == nil {
		return &InvalidResultError{Step: "topic analysis", Reason: "empty result"}
	}
	if err := e.validate.Struct(result); err != nil {
		return &InvalidResultError{Step: "topic analysis", Reason: err.Error()}
	}
	return nil
}

// ValidateEvaluation checks the shape of a parsed evaluation. All six
// dimensions must be present with a non-empty assessment.
func (e *EvaluationEngine) ValidateEvaluation(result *models.EvaluationResult) error {
	if result == nil {
		return &InvalidResultError{Step: "evaluation", Reason: "empty result"}
	}

	var missing []string
	for _, dim := range models.Dimensions {
		if _, ok := result.Dimensions[dim]; !ok {
			missing = append(missing, string(dim))
		}
	}
	if len(missing) > 0 {
		return &InvalidResultError{Step: "evaluation", Reason: "missing dimensions: " + strings.Join(missing, ", ")}
	}
	if len(result.Dimensions) != len(models.Dimensions) {
		return &InvalidResultError{Step: "evaluation", Reason: fmt.Sprintf("expected %d dimensions, got %d", len(models.Dimensions), len(result.Dimensions))}
	}
	if err := e.validate.Struct(result); err != nil {
		return &InvalidResultError{Step: "evaluation", Reason: err.Error()}
	}
	return nil
}

// BatchItem is one transcript of a BatchEvaluate call.
type BatchItem struct {
	Transcript []models.ConversationMessage
	Context    models.InterviewContext
}

type BatchEvaluateOptions struct {
	Concurrency     int
	Step            models.EvaluationStep
	Stage           string
	PreviousSummary string
	OnItemComplete  func(index, total int, result *models.AnalysisResult, err error)
}

// BatchItemResult holds the outcome of one item. Exactly one of Result and
// Err is set.
type BatchItemResult struct {
	Index  int
	Result *models.AnalysisResult
	Err    error
}

// BatchEvaluate runs every item with at most opts.Concurrency in flight.
// An item's failure is recorded in its slot and never stops the others.
// Each in-flight item gets its own engine, so the receiver's guard only
// covers the batch as a whole.
func (e *EvaluationEngine) BatchEvaluate(ctx context.Context, items []BatchItem, opts BatchEvaluateOptions) ([]BatchItemResult, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.release()

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make([]BatchItemResult, len(items))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for i, item := range items {
		g.Go(func() error {
			engine := &EvaluationEngine{agent: e.agent, validate: e.validate}
			result, err := engine.run(ctx, item.Transcript, item.Context, EvaluateOptions{
				Step:            opts.Step,
				Stage:           opts.Stage,
				PreviousSummary: opts.PreviousSummary,
			})
			if err != nil {
				log.Printf("⚠️ Batch item %d/%d failed: %v", i+1, len(items), err)
			}

			mu.Lock()
			results[i] = BatchItemResult{Index: i, Result: result, Err: err}
			if opts.OnItemComplete != nil {
				opts.OnItemComplete(i, len(items), result, err)
			}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results, nil
}

// FormatTranscript renders turns as "label: content" lines.
func FormatTranscript(transcript []models.ConversationMessage) string {
	var b strings.Builder
	for _, msg := range transcript {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		if msg.Turn > 0 {
			fmt.Fprintf(&b, "[%d] ", msg.Turn)
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.Role.Label(), strings.TrimSpace(msg.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatTopicTranscript renders a topic analysis back into a transcript
// grouped under topic headings.
func FormatTopicTranscript(analysis *models.TopicAnalysisResult) string {
	var b strings.Builder
	for i, topic := range analysis.Topics {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## 话题 %d：%s\n", i+1, topic.TopicName)
		if topic.Summary != "" {
			fmt.Fprintf(&b, "小结：%s\n", topic.Summary)
		}
		if topic.CriticalInfo != "" {
			fmt.Fprintf(&b, "关键信息：%s\n", topic.CriticalInfo)
		}
		for _, msg := range topic.Dialogue {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role.Label(), strings.TrimSpace(msg.Content))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
