package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

// EvaluatorAgent turns a rendered transcript into topic analyses and
// capability evaluations.
type EvaluatorAgent struct {
	gen     Generator
	prompts *PromptBuilder
}

func NewEvaluatorAgent(gen Generator, prompts *PromptBuilder) *EvaluatorAgent {
	if prompts == nil {
		prompts = NewPromptBuilder()
	}
	return &EvaluatorAgent{gen: gen, prompts: prompts}
}

// AnalyzeTopics segments the transcript into topics.
func (e *EvaluatorAgent) AnalyzeTopics(ctx context.Context, transcript string, ic models.InterviewContext) (*models.TopicAnalysisResult, error) {
	prompt := e.prompts.BuildTopicAnalysisPrompt()
	message := e.prompts.BuildEvaluatorUserMessage(transcript, ic)

	log.Printf("📝 Topic analysis prompt length: %d characters", len(prompt)+len(message))

	response, err := e.gen.Generate(ctx, []BackendMessage{{Role: BackendUser, Content: message}}, prompt)
	if err != nil {
		log.Printf("❌ Topic analysis failed: %v", err)
		return nil, fmt.Errorf("failed to generate topic analysis: %w", err)
	}

	var result models.TopicAnalysisResult
	if err := decodeJSONResponse(response, &result); err != nil {
		log.Printf("❌ Failed to parse topic analysis response: %v", err)
		return nil, err
	}

	log.Printf("✅ Topic analysis parsed: %d topics", len(result.Topics))
	return &result, nil
}

// EvaluateInterview scores the candidate on the six dimensions. A stage "2"
// evaluation with a previous summary is treated as a second round.
func (e *EvaluatorAgent) EvaluateInterview(ctx context.Context, transcript string, ic models.InterviewContext, stage, previousSummary string) (*models.EvaluationResult, error) {
	prompt := e.prompts.BuildEvaluationPrompt(stage, previousSummary)
	message := e.prompts.BuildEvaluatorUserMessage(transcript, ic)

	log.Printf("📝 Evaluation prompt length: %d characters", len(prompt)+len(message))

	response, err := e.gen.Generate(ctx, []BackendMessage{{Role: BackendUser, Content: message}}, prompt)
	if err != nil {
		log.Printf("❌ Evaluation failed: %v", err)
		return nil, fmt.Errorf("failed to generate evaluation: %w", err)
	}

	cleaned, perr := ParseJSONResponse(response)
	if perr != nil {
		log.Printf("❌ Failed to parse evaluation response: %v", perr)
		return nil, perr
	}
	if err := checkEvaluationScores(cleaned); err != nil {
		log.Printf("❌ Evaluation response is missing scores: %v", err)
		return nil, err
	}

	var result models.EvaluationResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		log.Printf("❌ Failed to decode evaluation response: %v", err)
		return nil, &ParseError{Raw: response, Cleaned: cleaned, Cause: err}
	}

	log.Printf("✅ Evaluation parsed: overall rating %.1f", result.OverallRating)
	return &result, nil
}

// checkEvaluationScores rejects evaluations whose overall or per-dimension
// scores are absent or not numbers. Decoding alone would read them as 0.
func checkEvaluationScores(cleaned string) error {
	root := gjson.Parse(cleaned)

	var missing []string
	for _, key := range []string{"overall_rating", "overall_confidence"} {
		if root.Get(key).Type != gjson.Number {
			missing = append(missing, key)
		}
	}
	root.Get("dimensions").ForEach(func(dim, value gjson.Result) bool {
		for _, key := range []string{"score", "confidence_score"} {
			if value.Get(key).Type != gjson.Number {
				missing = append(missing, dim.String()+"."+key)
			}
		}
		return true
	})

	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &InvalidResultError{Step: "evaluation", Reason: "missing numeric scores: " + strings.Join(missing, ", ")}
}
