package models

import "time"

type MessageRole string

const (
	RoleInterviewer MessageRole = "interviewer"
	RoleCandidate   MessageRole = "candidate"
)

// Valid reports whether r is one of the two transcript speakers.
func (r MessageRole) Valid() bool {
	return r == RoleInterviewer || r == RoleCandidate
}

// Label is the speaker label used when rendering transcripts for prompts.
func (r MessageRole) Label() string {
	switch r {
	case RoleInterviewer:
		return "面试官"
	case RoleCandidate:
		return "候选人"
	default:
		return string(r)
	}
}

// InterviewContext is the immutable input shared by every agent call.
// Transcript is an optional reference example, not the transcript under
// evaluation.
type InterviewContext struct {
	JD         string `json:"jd"`
	Resume     string `json:"resume"`
	Transcript string `json:"transcript,omitempty"`
}

type ConversationMessage struct {
	Role      MessageRole `json:"role" validate:"required,oneof=interviewer candidate"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Turn      int         `json:"turn"`
	Thinking  string      `json:"thinking,omitempty"`
}

type InterviewStatus string

const (
	InterviewCompleted  InterviewStatus = "completed"
	InterviewFailed     InterviewStatus = "failed"
	InterviewInProgress InterviewStatus = "in_progress"
)

type InterviewMetadata struct {
	CandidateName string     `json:"candidateName,omitempty"`
	Position      string     `json:"position,omitempty"`
	InterviewDate *time.Time `json:"interviewDate,omitempty"`
	StartTime     *time.Time `json:"startTime,omitempty"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	TotalTurns    int        `json:"totalTurns"`
}

// InterviewResult is the output of a simulated or recorded interview
// session.
type InterviewResult struct {
	ID       string                `json:"id"`
	Messages []ConversationMessage `json:"messages"`
	Status   InterviewStatus       `json:"status"`
	Metadata InterviewMetadata     `json:"metadata"`
}
