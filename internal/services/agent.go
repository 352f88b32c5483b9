package services

import (
	"context"
	"fmt"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

// BackendRole is the speaker of a message as the text backend sees it.
type BackendRole string

const (
	BackendUser  BackendRole = "user"
	BackendModel BackendRole = "model"
)

type BackendMessage struct {
	Role    BackendRole `json:"role"`
	Content string      `json:"content"`
}

// ChunkHandler receives streamed text. The final call has isComplete set
// and an empty content.
type ChunkHandler func(content string, isComplete bool)

// TextBackend is the text-generation service every agent sits on.
// Retries and timeouts are the backend's concern.
type TextBackend interface {
	Complete(ctx context.Context, messages []BackendMessage, systemPrompt string) (string, error)
	CompleteStreaming(ctx context.Context, messages []BackendMessage, systemPrompt string, onChunk ChunkHandler) error
}

// Generator is the single capability the evaluation pipeline needs from an
// agent.
type Generator interface {
	Generate(ctx context.Context, messages []BackendMessage, systemPrompt string) (string, error)
}

type AgentRole string

const (
	AgentInterviewer AgentRole = "interviewer"
	AgentCandidate   AgentRole = "candidate"
	AgentEvaluator   AgentRole = "evaluator"
)

func (r AgentRole) Valid() bool {
	switch r {
	case AgentInterviewer, AgentCandidate, AgentEvaluator:
		return true
	}
	return false
}

// Agent binds a role to a backend. The role decides how transcript history
// is presented to the backend.
type Agent struct {
	role    AgentRole
	backend TextBackend
}

func NewAgent(role AgentRole, backend TextBackend) (*Agent, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown agent role: %q", role)
	}
	if backend == nil {
		return nil, fmt.Errorf("agent %s requires a text backend", role)
	}
	return &Agent{role: role, backend: backend}, nil
}

func (a *Agent) Role() AgentRole {
	return a.role
}

// Generate implements Generator.
func (a *Agent) Generate(ctx context.Context, messages []BackendMessage, systemPrompt string) (string, error) {
	return a.backend.Complete(ctx, messages, systemPrompt)
}

// GenerateResponse converts history for this role and asks the backend for
// the next message.
func (a *Agent) GenerateResponse(ctx context.Context, history []models.ConversationMessage, systemPrompt string) (string, error) {
	return a.backend.Complete(ctx, a.ConvertHistory(history), systemPrompt)
}

func (a *Agent) GenerateStreamingResponse(ctx context.Context, history []models.ConversationMessage, systemPrompt string, onChunk ChunkHandler) error {
	return a.backend.CompleteStreaming(ctx, a.ConvertHistory(history), systemPrompt, onChunk)
}

// ConvertHistory maps transcript turns onto backend roles. The agent's own
// turns become model turns and the counterpart's become user turns. The
// evaluator is not a participant, so every turn is a labelled user turn.
func (a *Agent) ConvertHistory(history []models.ConversationMessage) []BackendMessage {
	messages := make([]BackendMessage, 0, len(history))
	for _, msg := range history {
		switch {
		case a.role == AgentEvaluator:
			messages = append(messages, BackendMessage{
				Role:    BackendUser,
				Content: fmt.Sprintf("%s: %s", msg.Role.Label(), msg.Content),
			})
		case string(msg.Role) == string(a.role):
			messages = append(messages, BackendMessage{Role: BackendModel, Content: msg.Content})
		default:
			messages = append(messages, BackendMessage{Role: BackendUser, Content: msg.Content})
		}
	}
	return messages
}

// InterviewerAgent asks questions grounded in the JD and resume.
type InterviewerAgent struct {
	agent   *Agent
	prompts *PromptBuilder
}

func NewInterviewerAgent(backend TextBackend, prompts *PromptBuilder) (*InterviewerAgent, error) {
	agent, err := NewAgent(AgentInterviewer, backend)
	if err != nil {
		return nil, err
	}
	return &InterviewerAgent{agent: agent, prompts: prompts}, nil
}

// NextQuestion produces the interviewer's next turn.
func (i *InterviewerAgent) NextQuestion(ctx context.Context, ic models.InterviewContext, history []models.ConversationMessage) (string, error) {
	return i.agent.backend.Complete(ctx, i.messages(history), i.prompts.BuildInterviewerPrompt(ic))
}

func (i *InterviewerAgent) StreamNextQuestion(ctx context.Context, ic models.InterviewContext, history []models.ConversationMessage, onChunk ChunkHandler) error {
	return i.agent.backend.CompleteStreaming(ctx, i.messages(history), i.prompts.BuildInterviewerPrompt(ic), onChunk)
}

// The backend expects the conversation to open with a user turn.
func (i *InterviewerAgent) messages(history []models.ConversationMessage) []BackendMessage {
	messages := i.agent.ConvertHistory(history)
	if len(messages) == 0 || messages[0].Role != BackendUser {
		messages = append([]BackendMessage{{Role: BackendUser, Content: "请开始面试。"}}, messages...)
	}
	return messages
}

// CandidateAgent answers as the candidate described by the resume.
type CandidateAgent struct {
	agent   *Agent
	prompts *PromptBuilder
}

func NewCandidateAgent(backend TextBackend, prompts *PromptBuilder) (*CandidateAgent, error) {
	agent, err := NewAgent(AgentCandidate, backend)
	if err != nil {
		return nil, err
	}
	return &CandidateAgent{agent: agent, prompts: prompts}, nil
}

// Answer produces the candidate's reply to the latest question.
func (c *CandidateAgent) Answer(ctx context.Context, ic models.InterviewContext, history []models.ConversationMessage) (string, error) {
	if err := requireQuestion(history); err != nil {
		return "", err
	}
	return c.agent.GenerateResponse(ctx, history, c.prompts.BuildCandidatePrompt(ic))
}

func (c *CandidateAgent) StreamAnswer(ctx context.Context, ic models.InterviewContext, history []models.ConversationMessage, onChunk ChunkHandler) error {
	if err := requireQuestion(history); err != nil {
		return err
	}
	return c.agent.GenerateStreamingResponse(ctx, history, c.prompts.BuildCandidatePrompt(ic), onChunk)
}

func requireQuestion(history []models.ConversationMessage) error {
	if len(history) == 0 || history[len(history)-1].Role != models.RoleInterviewer {
		return newValidationError("candidate can only answer after an interviewer turn")
	}
	return nil
}
