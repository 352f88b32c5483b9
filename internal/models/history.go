package models

import "time"

type RecordStatus string

const (
	RecordCompleted  RecordStatus = "completed"
	RecordFailed     RecordStatus = "failed"
	RecordInProgress RecordStatus = "in_progress"
)

type RecordMetadata struct {
	TotalTurns    int      `json:"totalTurns"`
	Duration      *int64   `json:"duration,omitempty"` // milliseconds
	OverallRating *float64 `json:"overallRating,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
}

type HistoryRecord struct {
	ID              string           `json:"id"`
	InterviewResult *InterviewResult `json:"interviewResult,omitempty"`
	AnalysisResult  *AnalysisResult  `json:"analysisResult,omitempty"`
	CandidateName   string           `json:"candidateName"`
	Position        string           `json:"position"`
	InterviewDate   time.Time        `json:"interviewDate"`
	Status          RecordStatus     `json:"status"`
	Tags            []string         `json:"tags"`
	Notes           string           `json:"notes,omitempty"`
	Metadata        RecordMetadata   `json:"metadata"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// HistoryFilter fields are optional; a nil or empty field does not
// constrain the result.
type HistoryFilter struct {
	SearchText    string       `json:"searchText,omitempty"`
	CandidateName string       `json:"candidateName,omitempty"`
	Position      string       `json:"position,omitempty"`
	Status        RecordStatus `json:"status,omitempty"`
	DateFrom      *time.Time   `json:"dateFrom,omitempty"`
	DateTo        *time.Time   `json:"dateTo,omitempty"`
	Tags          []string     `json:"tags,omitempty"`
	HasAnalysis   *bool        `json:"hasAnalysis,omitempty"`
	MinRating     *float64     `json:"minRating,omitempty"`
	MaxRating     *float64     `json:"maxRating,omitempty"`
}

// RecordUpdate carries the mutable fields of a HistoryRecord.
type RecordUpdate struct {
	CandidateName *string       `json:"candidateName,omitempty"`
	Position      *string       `json:"position,omitempty"`
	Notes         *string       `json:"notes,omitempty"`
	Status        *RecordStatus `json:"status,omitempty" validate:"omitempty,oneof=completed failed in_progress"`
	Tags          []string      `json:"tags,omitempty"`
}

type ComparisonResult struct {
	RecordIDs       []string                `json:"recordIds"`
	CandidateNames  []string                `json:"candidateNames"`
	Positions       []string                `json:"positions"`
	Ratings         []float64               `json:"ratings"`
	Confidences     []float64               `json:"confidences"`
	Strengths       [][]string              `json:"strengths"`
	Weaknesses      [][]string              `json:"weaknesses"`
	DimensionScores map[Dimension][]float64 `json:"dimensionScores"`
}

type CandidateRating struct {
	RecordID      string    `json:"recordId"`
	CandidateName string    `json:"candidateName"`
	Position      string    `json:"position"`
	Rating        float64   `json:"rating"`
	InterviewDate time.Time `json:"interviewDate"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type HistoryStatistics struct {
	TotalRecords      int               `json:"totalRecords"`
	CompletedRecords  int               `json:"completedRecords"`
	FailedRecords     int               `json:"failedRecords"`
	AverageRating     float64           `json:"averageRating"`
	AverageConfidence float64           `json:"averageConfidence"`
	TopCandidates     []CandidateRating `json:"topCandidates"`
	PositionCounts    map[string]int    `json:"positionCounts"`
	TagCounts         map[string]int    `json:"tagCounts"`
	DateRange         *DateRange        `json:"dateRange"`
}

type SimilarRecord struct {
	RecordID      string  `json:"recordId"`
	CandidateName string  `json:"candidateName"`
	Position      string  `json:"position"`
	Score         float32 `json:"score"`
}
