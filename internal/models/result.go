package models

// Request and response bodies of the HTTP API.

type UploadResponse struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Type     FileType          `json:"type"`
	Size     int64             `json:"size"`
	Metadata map[string]string `json:"metadata"`
}

type EvaluateResponse struct {
	ID     string         `json:"id"`
	Status AnalysisStatus `json:"status"`
}

// BatchStartRequest selects files either by id or by selection criteria.
// When FileIDs is empty, Selection is used.
type BatchStartRequest struct {
	FileIDs         []string       `json:"fileIds"`
	Selection       *FileSelection `json:"selection,omitempty"`
	Step            EvaluationStep `json:"step" validate:"omitempty,oneof=all topic report"`
	Stage           string         `json:"stage" validate:"omitempty,oneof=1 2"`
	PreviousSummary string         `json:"previousSummary,omitempty"`
	Concurrency     int            `json:"concurrency" validate:"gte=0,lte=16"`
	SkipErrors      *bool          `json:"skipErrors,omitempty"`
	SaveResults     *bool          `json:"saveResults,omitempty"`
}

type BatchStartResponse struct {
	BatchID string `json:"batchId"`
	Total   int    `json:"total"`
}

type SaveHistoryRequest struct {
	InterviewResult *InterviewResult `json:"interviewResult,omitempty"`
	AnalysisResult  *AnalysisResult  `json:"analysisResult,omitempty"`
	AnalysisID      string           `json:"analysisId,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
	Notes           string           `json:"notes,omitempty"`
}

type TagRequest struct {
	Tags []string `json:"tags" validate:"required,min=1,dive,required"`
}

type IDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

type DeleteRecordsResponse struct {
	Deleted int `json:"deleted"`
}

// SimTurnRequest drives one simulated interview turn.
type SimTurnRequest struct {
	Role    string                `json:"role" validate:"required,oneof=interviewer candidate"`
	Context InterviewContext      `json:"context"`
	History []ConversationMessage `json:"history" validate:"dive"`
	Stream  bool                  `json:"stream"`
}

type SimTurnResponse struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	Turn    int         `json:"turn"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
