package models

import "time"

type BatchResult struct {
	FileID   string          `json:"fileId"`
	FileName string          `json:"fileName"`
	Success  bool            `json:"success"`
	Result   *AnalysisResult `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	Duration int64           `json:"duration"` // milliseconds
}

// BatchStatistics averages are nil when no file produced an evaluation.
type BatchStatistics struct {
	TopicAnalysisCount int      `json:"topicAnalysisCount"`
	EvaluationCount    int      `json:"evaluationCount"`
	AverageRating      *float64 `json:"averageRating,omitempty"`
	AverageConfidence  *float64 `json:"averageConfidence,omitempty"`
}

type BatchSummary struct {
	BatchID         string          `json:"batchId"`
	StartTime       time.Time       `json:"startTime"`
	EndTime         time.Time       `json:"endTime"`
	TotalFiles      int             `json:"totalFiles"`
	SuccessCount    int             `json:"successCount"`
	FailureCount    int             `json:"failureCount"`
	Results         []BatchResult   `json:"results"`
	TotalDuration   int64           `json:"totalDuration"`
	AverageDuration int64           `json:"averageDuration"`
	Statistics      BatchStatistics `json:"statistics"`
}

type BatchProgress struct {
	BatchID     string  `json:"batchId"`
	Total       int     `json:"total"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	Percentage  float64 `json:"percentage"`
	CurrentFile string  `json:"currentFile,omitempty"`
}

type ProcessingStatus struct {
	IsProcessing   bool           `json:"isProcessing"`
	CurrentBatchID string         `json:"currentBatchId,omitempty"`
	Progress       *BatchProgress `json:"progress,omitempty"`
}
