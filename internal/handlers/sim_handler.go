package handlers

import (
	"bufio"
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

// SimHandler drives simulated interviews one turn at a time. The client
// owns the transcript and sends it back with every request.
type SimHandler struct {
	interviewer *services.InterviewerAgent
	candidate   *services.CandidateAgent
	// streams are written after the handler returns
	baseCtx context.Context
}

func NewSimHandler(ctx context.Context, interviewer *services.InterviewerAgent, candidate *services.CandidateAgent) *SimHandler {
	return &SimHandler{
		interviewer: interviewer,
		candidate:   candidate,
		baseCtx:     ctx,
	}
}

// HandleTurn handles POST /sim/turn. With stream=true the reply is sent as
// "chunk" events followed by a "done" event carrying the full message.
func (h *SimHandler) HandleTurn(c *fiber.Ctx) error {
	var req models.SimTurnRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	role := models.MessageRole(req.Role)
	turn := nextTurn(role, req.History)

	if !req.Stream {
		var (
			content string
			err     error
		)
		if role == models.RoleInterviewer {
			content, err = h.interviewer.NextQuestion(c.UserContext(), req.Context, req.History)
		} else {
			content, err = h.candidate.Answer(c.UserContext(), req.Context, req.History)
		}
		if err != nil {
			return errorJSON(c, err)
		}
		return c.JSON(models.SimTurnResponse{Role: role, Content: content, Turn: turn})
	}

	setSSEHeaders(c)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		sse := &sseWriter{w: w}
		var content strings.Builder

		onChunk := func(chunk string, isComplete bool) {
			if isComplete {
				return
			}
			content.WriteString(chunk)
			sse.WriteEvent("chunk", fiber.Map{"content": chunk}) //nolint:errcheck
		}

		var err error
		if role == models.RoleInterviewer {
			err = h.interviewer.StreamNextQuestion(h.baseCtx, req.Context, req.History, onChunk)
		} else {
			err = h.candidate.StreamAnswer(h.baseCtx, req.Context, req.History, onChunk)
		}
		if err != nil {
			sse.WriteError(err.Error(), services.ErrorKind(err))
			return
		}
		sse.WriteEvent("done", models.SimTurnResponse{Role: role, Content: content.String(), Turn: turn}) //nolint:errcheck
	})
	return nil
}

// nextTurn numbers a new message. An interviewer question opens a new
// turn; a candidate answer belongs to the latest question's turn.
func nextTurn(role models.MessageRole, history []models.ConversationMessage) int {
	last := 0
	for _, msg := range history {
		if msg.Turn > last {
			last = msg.Turn
		}
	}
	if role == models.RoleInterviewer {
		return last + 1
	}
	if last == 0 {
		return 1
	}
	return last
}
