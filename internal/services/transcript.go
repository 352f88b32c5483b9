package services

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

// TranscriptParser turns raw conversation text into ordered turns.
type TranscriptParser interface {
	Name() string
	// Detect reports whether text looks like this parser's format.
	Detect(text string) bool
	Parse(text string) []models.ConversationMessage
}

// TranscriptParsers tries registered parsers in order and uses the first
// one that detects its format.
type TranscriptParsers struct {
	parsers []TranscriptParser
}

// NewTranscriptParsers registers parsers ahead of the built-in JSON,
// timestamped and speaker-label formats.
func NewTranscriptParsers(parsers ...TranscriptParser) *TranscriptParsers {
	all := append([]TranscriptParser{}, parsers...)
	all = append(all, jsonTranscriptParser{}, timestampedTranscriptParser{}, speakerLabelParser{})
	return &TranscriptParsers{parsers: all}
}

func (r *TranscriptParsers) Parse(text string) ([]models.ConversationMessage, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil, newValidationError("conversation content is empty")
	}

	for _, parser := range r.parsers {
		if !parser.Detect(text) {
			continue
		}
		messages := parser.Parse(text)
		if len(messages) == 0 {
			return nil, newValidationError("no dialogue turns found (%s format)", parser.Name())
		}
		return messages, nil
	}
	return nil, newValidationError("unrecognized transcript format")
}

var (
	interviewerLabels = []string{"面试官", "interviewer"}
	candidateLabels   = []string{"候选人", "candidate"}
)

func roleForLabel(label string) (models.MessageRole, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	for _, l := range interviewerLabels {
		if label == l {
			return models.RoleInterviewer, true
		}
	}
	for _, l := range candidateLabels {
		if label == l {
			return models.RoleCandidate, true
		}
	}
	return "", false
}

// turnCounter numbers turns so that an interviewer question and the reply
// to it share a turn.
type turnCounter struct {
	turn int
}

func (c *turnCounter) next(role models.MessageRole) int {
	if role == models.RoleInterviewer || c.turn == 0 {
		c.turn++
	}
	return c.turn
}

func appendTurn(messages []models.ConversationMessage, counter *turnCounter, role models.MessageRole, content string) []models.ConversationMessage {
	content = strings.TrimSpace(content)
	if content == "" {
		return messages
	}
	return append(messages, models.ConversationMessage{
		Role:    role,
		Content: content,
		Turn:    counter.next(role),
	})
}

// speakerLabelParser handles "面试官: ..." / "Candidate: ..." lines. Lines
// without a label continue the previous turn.
type speakerLabelParser struct{}

var speakerLabelPattern = regexp.MustCompile(`(?i)^\s*(面试官|候选人|interviewer|candidate)\s*[:：]\s*(.*)$`)

func (speakerLabelParser) Name() string { return "speaker-label" }

func (speakerLabelParser) Detect(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if speakerLabelPattern.MatchString(line) {
			return true
		}
	}
	return false
}

func (speakerLabelParser) Parse(text string) []models.ConversationMessage {
	var (
		messages []models.ConversationMessage
		counter  turnCounter
		role     models.MessageRole
		buf      []string
	)

	flush := func() {
		if role != "" {
			messages = appendTurn(messages, &counter, role, strings.Join(buf, "\n"))
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if m := speakerLabelPattern.FindStringSubmatch(line); m != nil {
			flush()
			role, _ = roleForLabel(m[1])
			buf = append(buf, m[2])
			continue
		}
		if role != "" {
			buf = append(buf, line)
		}
	}
	flush()
	return messages
}

// timestampedTranscriptParser handles meeting-export transcripts where each
// turn starts with "speaker [hh:mm:ss]". Speakers that are not a known
// label are assigned by order of appearance: the first one is the
// interviewer.
type timestampedTranscriptParser struct{}

func (timestampedTranscriptParser) Name() string { return "timestamped" }

func (timestampedTranscriptParser) Detect(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if turnStartPattern.MatchString(line) {
			return true
		}
	}
	return false
}

func (timestampedTranscriptParser) Parse(text string) []models.ConversationMessage {
	var (
		messages []models.ConversationMessage
		counter  turnCounter
		first    string
	)

	for _, line := range strings.Split(CleanTranscript(text), "\n") {
		m := turnStartPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		speaker := strings.TrimSpace(m[1])
		role, ok := roleForLabel(speaker)
		if !ok {
			if first == "" {
				first = speaker
			}
			role = models.RoleCandidate
			if speaker == first {
				role = models.RoleInterviewer
			}
		}
		messages = appendTurn(messages, &counter, role, m[3])
	}
	return messages
}

// jsonTranscriptParser accepts a JSON array of messages.
type jsonTranscriptParser struct{}

func (jsonTranscriptParser) Name() string { return "json" }

func (jsonTranscriptParser) Detect(text string) bool {
	return strings.HasPrefix(text, "[") && json.Valid([]byte(text))
}

func (jsonTranscriptParser) Parse(text string) []models.ConversationMessage {
	var raw []models.ConversationMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil
	}

	var (
		messages []models.ConversationMessage
		counter  turnCounter
	)
	for _, msg := range raw {
		if !msg.Role.Valid() || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		turn := counter.next(msg.Role)
		if msg.Turn > 0 {
			turn = msg.Turn
		}
		msg.Turn = turn
		messages = append(messages, msg)
	}
	return messages
}

// turnStartPattern matches "speaker [hh:mm(:ss)] content" in the bracket
// styles [], (), 【】 and （）.
var turnStartPattern = regexp.MustCompile(`^\s*([^\s\[(【（:：][^\[(【（:：]{0,30}?)\s*(\[\d{1,2}:\d{2}(?::\d{2})?\]|\(\d{1,2}:\d{2}(?::\d{2})?\)|【\d{1,2}:\d{2}(?::\d{2})?】|（\d{1,2}:\d{2}(?::\d{2})?）)\s*[:：]?\s*(.*)$`)

// CleanTranscript merges continuation lines into the preceding turn line.
// Blank lines are dropped; lines before the first turn are kept.
func CleanTranscript(text string) string {
	var (
		out     []string
		current string
		inTurn  bool
	)

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if turnStartPattern.MatchString(trimmed) {
			if inTurn {
				out = append(out, current)
			}
			current = trimmed
			inTurn = true
			continue
		}
		if inTurn {
			current += " " + trimmed
			continue
		}
		out = append(out, trimmed)
	}
	if inTurn {
		out = append(out, current)
	}
	return strings.Join(out, "\n")
}
