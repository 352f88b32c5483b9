package models

import "time"

// Dimension is one of the six fixed competency axes. The names are kept
// verbatim in the evaluator's working language because the LLM echoes
// them back as JSON keys.
type Dimension string

const (
	DimensionIntelligence     Dimension = "聪明"
	DimensionDiligence        Dimension = "勤奋"
	DimensionGoalOrientation  Dimension = "目标导向"
	DimensionResilience       Dimension = "皮实"
	DimensionChallengeSeeking Dimension = "爱挑战"
	DimensionCustomerFirst    Dimension = "客户第一"
)

// Dimensions lists the six dimensions in rubric order.
var Dimensions = []Dimension{
	DimensionIntelligence,
	DimensionDiligence,
	DimensionGoalOrientation,
	DimensionResilience,
	DimensionChallengeSeeking,
	DimensionCustomerFirst,
}

type HiringRecommendation string

const (
	RecommendStrongHire HiringRecommendation = "强烈推荐"
	RecommendHire       HiringRecommendation = "推荐"
	RecommendHold       HiringRecommendation = "待定"
	RecommendNoHire     HiringRecommendation = "不推荐"
)

type DimensionScore struct {
	Score                   float64 `json:"score" validate:"gte=0,lte=100"`
	Assessment              string  `json:"assessment" validate:"required"`
	MissingInfo             string  `json:"missing_info"`
	ConfidenceScore         float64 `json:"confidence_score" validate:"gte=0,lte=100"`
	ConfidenceJustification string  `json:"confidence_justification"`
}

type EvaluationResult struct {
	CandidateName              string                       `json:"candidate_name"`
	Position                   string                       `json:"position"`
	Dimensions                 map[Dimension]DimensionScore `json:"dimensions" validate:"required,dive"`
	OverallRating              float64                      `json:"overall_rating" validate:"gte=0,lte=100"`
	OverallConfidence          float64                      `json:"overall_confidence" validate:"gte=0,lte=100"`
	Strengths                  []string                     `json:"strengths"`
	Weaknesses                 []string                     `json:"weaknesses"`
	SuggestedFollowUpQuestions map[string]string            `json:"suggested_follow_up_questions"`
	Summary                    string                       `json:"summary"`
	HiringRecommendation       HiringRecommendation         `json:"hiring_recommendation"`
}

type TaggedMessage struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	Turn    int         `json:"turn,omitempty"`
}

type Topic struct {
	TopicName    string          `json:"topic_name" validate:"required"`
	Dialogue     []TaggedMessage `json:"dialogue" validate:"required,min=1"`
	Summary      string          `json:"summary" validate:"required"`
	KeyPoints    []string        `json:"key_points"`
	CriticalInfo string          `json:"critical_info"`
}

type TopicAnalysisResult struct {
	AnalysisDate   string  `json:"analysis_date"`
	Topics         []Topic `json:"topics" validate:"required,min=1,dive"`
	OverallSummary string  `json:"overall_summary"`
}

type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisRunning   AnalysisStatus = "running"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisError     AnalysisStatus = "error"
)

// Terminal reports whether no further transitions are expected.
func (s AnalysisStatus) Terminal() bool {
	return s == AnalysisCompleted || s == AnalysisError
}

type EvaluationStep string

const (
	StepAll    EvaluationStep = "all"
	StepTopic  EvaluationStep = "topic"
	StepReport EvaluationStep = "report"
)

// RunsTopics reports whether the step includes topic segmentation.
func (s EvaluationStep) RunsTopics() bool {
	return s == StepAll || s == StepTopic || s == ""
}

// RunsReport reports whether the step includes capability evaluation.
func (s EvaluationStep) RunsReport() bool {
	return s == StepAll || s == StepReport || s == ""
}

// EvaluationRequest is the persisted input of an asynchronous evaluation
// job.
type EvaluationRequest struct {
	Transcript      []ConversationMessage `json:"transcript" validate:"required,min=1,dive"`
	Context         InterviewContext      `json:"context"`
	Step            EvaluationStep        `json:"step" validate:"omitempty,oneof=all topic report"`
	Stage           string                `json:"stage" validate:"omitempty,oneof=1 2"`
	PreviousSummary string                `json:"previousSummary,omitempty"`
	SaveToHistory   bool                  `json:"saveToHistory"`
	Tags            []string              `json:"tags,omitempty"`
	CandidateName   string                `json:"candidateName,omitempty"`
	Position        string                `json:"position,omitempty"`
}

type AnalysisResult struct {
	ProcessID     string               `json:"processId"`
	Status        AnalysisStatus       `json:"status"`
	Timestamp     time.Time            `json:"timestamp"`
	TopicAnalysis *TopicAnalysisResult `json:"topicAnalysis,omitempty"`
	Evaluation    *EvaluationResult    `json:"evaluation,omitempty"`
	Error         string               `json:"error,omitempty"`
	Request       *EvaluationRequest   `json:"request,omitempty"`
}
