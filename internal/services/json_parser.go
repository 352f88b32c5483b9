package services

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// ParseJSONResponse cleans an LLM response down to a single JSON object.
// It strips markdown fences and surrounding prose. Trailing commas before
// closing brackets are dropped only when the text is not already valid
// JSON. The cleanup is best effort; when the result is still not an object
// a *ParseError carrying both texts is returned.
func ParseJSONResponse(raw string) (string, *ParseError) {
	cleaned := cleanJSONBlock(raw)
	cleaned = extractJSONObject(cleaned)
	if !gjson.Valid(cleaned) {
		cleaned = trailingCommaPattern.ReplaceAllString(cleaned, "$1")
	}

	if cleaned == "" {
		return "", &ParseError{Raw: raw, Cleaned: cleaned, Cause: errors.New("empty response")}
	}
	if !gjson.Valid(cleaned) {
		return "", &ParseError{Raw: raw, Cleaned: cleaned, Cause: errors.New("response is not valid JSON")}
	}
	if !gjson.Parse(cleaned).IsObject() {
		return "", &ParseError{Raw: raw, Cleaned: cleaned, Cause: errors.New("response is not a JSON object")}
	}
	return cleaned, nil
}

// decodeJSONResponse runs ParseJSONResponse and unmarshals into target.
func decodeJSONResponse(raw string, target any) error {
	cleaned, perr := ParseJSONResponse(raw)
	if perr != nil {
		return perr
	}
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		return &ParseError{Raw: raw, Cleaned: cleaned, Cause: err}
	}
	return nil
}

// cleanJSONBlock removes markdown code block wrappers.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	start := strings.Index(text, "```")
	if start == -1 {
		return text
	}

	text = text[start+3:]
	// Skip potential language identifier on first line
	if idx := strings.Index(text, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(text[:idx])
		if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// extractJSONObject keeps the outermost {...} span of text.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return strings.TrimSpace(text)
	}
	return text[start : end+1]
}
