package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

type TopicInsights struct {
	TopicCount     int      `json:"topicCount"`
	DialogueTurns  int      `json:"dialogueTurns"`
	TopicNames     []string `json:"topicNames"`
	CriticalTopics []string `json:"criticalTopics"`
	KeyPoints      []string `json:"keyPoints"`
}

type DimensionInsight struct {
	Dimension  models.Dimension `json:"dimension"`
	Score      float64          `json:"score"`
	Confidence float64          `json:"confidence"`
}

type CapabilityInsights struct {
	AverageScore      float64                     `json:"averageScore"`
	Strongest         []DimensionInsight          `json:"strongest"`
	Weakest           []DimensionInsight          `json:"weakest"`
	LowConfidence     []models.Dimension          `json:"lowConfidence"`
	MissingInfo       map[models.Dimension]string `json:"missingInfo"`
	Recommendation    models.HiringRecommendation `json:"recommendation"`
	OverallRating     float64                     `json:"overallRating"`
	OverallConfidence float64                     `json:"overallConfidence"`
}

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

const (
	highConfidenceThreshold   = 80
	mediumConfidenceThreshold = 60
	insightTopN               = 2
)

// ExtractTopicInsights counts topics and turns and collects the flagged
// topics and key points in topic order.
func ExtractTopicInsights(analysis *models.TopicAnalysisResult) TopicInsights {
	insights := TopicInsights{
		TopicNames:     []string{},
		CriticalTopics: []string{},
		KeyPoints:      []string{},
	}
	if analysis == nil {
		return insights
	}

	insights.TopicCount = len(analysis.Topics)
	for _, topic := range analysis.Topics {
		insights.DialogueTurns += len(topic.Dialogue)
		insights.TopicNames = append(insights.TopicNames, topic.TopicName)
		if strings.TrimSpace(topic.CriticalInfo) != "" {
			insights.CriticalTopics = append(insights.CriticalTopics, topic.TopicName)
		}
		insights.KeyPoints = append(insights.KeyPoints, topic.KeyPoints...)
	}
	return insights
}

// ExtractCapabilityInsights ranks the dimensions and lists the ones with
// low confidence or missing information.
func ExtractCapabilityInsights(evaluation *models.EvaluationResult) CapabilityInsights {
	insights := CapabilityInsights{
		Strongest:     []DimensionInsight{},
		Weakest:       []DimensionInsight{},
		LowConfidence: []models.Dimension{},
		MissingInfo:   map[models.Dimension]string{},
	}
	if evaluation == nil {
		return insights
	}

	insights.Recommendation = evaluation.HiringRecommendation
	insights.OverallRating = evaluation.OverallRating
	insights.OverallConfidence = evaluation.OverallConfidence

	ranked := rankDimensions(evaluation)
	if len(ranked) == 0 {
		return insights
	}

	var total float64
	for _, d := range ranked {
		total += d.Score
		if d.Confidence < mediumConfidenceThreshold {
			insights.LowConfidence = append(insights.LowConfidence, d.Dimension)
		}
		if missing := strings.TrimSpace(evaluation.Dimensions[d.Dimension].MissingInfo); missing != "" {
			insights.MissingInfo[d.Dimension] = missing
		}
	}
	insights.AverageScore = total / float64(len(ranked))

	n := min(insightTopN, len(ranked))
	insights.Strongest = append(insights.Strongest, ranked[:n]...)
	for i := len(ranked) - 1; i >= len(ranked)-n; i-- {
		insights.Weakest = append(insights.Weakest, ranked[i])
	}
	return insights
}

// rankDimensions orders present dimensions by score descending, falling
// back to rubric order on ties.
func rankDimensions(evaluation *models.EvaluationResult) []DimensionInsight {
	var ranked []DimensionInsight
	for _, dim := range models.Dimensions {
		score, ok := evaluation.Dimensions[dim]
		if !ok {
			continue
		}
		ranked = append(ranked, DimensionInsight{Dimension: dim, Score: score.Score, Confidence: score.ConfidenceScore})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// GenerateTopicSummary renders a short report of the topic analysis.
func GenerateTopicSummary(analysis *models.TopicAnalysisResult) string {
	if analysis == nil || len(analysis.Topics) == 0 {
		return "未识别到话题。"
	}

	insights := ExtractTopicInsights(analysis)

	var b strings.Builder
	fmt.Fprintf(&b, "共识别 %d 个话题，涉及 %d 轮对话。\n", insights.TopicCount, insights.DialogueTurns)
	for i, topic := range analysis.Topics {
		fmt.Fprintf(&b, "%d. %s：%s\n", i+1, topic.TopicName, topic.Summary)
	}
	if len(insights.CriticalTopics) > 0 {
		fmt.Fprintf(&b, "需要关注的话题：%s\n", strings.Join(insights.CriticalTopics, "、"))
	}
	if analysis.OverallSummary != "" {
		fmt.Fprintf(&b, "总体：%s\n", analysis.OverallSummary)
	}
	return strings.TrimRight(b.String(), "\n")
}

// GenerateCapabilitySummary renders a short report of the evaluation.
func GenerateCapabilitySummary(evaluation *models.EvaluationResult) string {
	if evaluation == nil {
		return "暂无评估结果。"
	}

	insights := ExtractCapabilityInsights(evaluation)

	var b strings.Builder
	fmt.Fprintf(&b, "综合评分 %s（置信度 %s），录用建议：%s。\n",
		formatNumber(evaluation.OverallRating), formatNumber(evaluation.OverallConfidence), evaluation.HiringRecommendation)
	if len(insights.Strongest) > 0 {
		fmt.Fprintf(&b, "突出维度：%s\n", joinInsights(insights.Strongest))
	}
	if len(insights.Weakest) > 0 {
		fmt.Fprintf(&b, "薄弱维度：%s\n", joinInsights(insights.Weakest))
	}
	if len(insights.LowConfidence) > 0 {
		names := make([]string, 0, len(insights.LowConfidence))
		for _, d := range insights.LowConfidence {
			names = append(names, string(d))
		}
		fmt.Fprintf(&b, "置信度不足：%s\n", strings.Join(names, "、"))
	}
	if evaluation.Summary != "" {
		fmt.Fprintf(&b, "总结：%s\n", evaluation.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinInsights(items []DimensionInsight) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s（%s）", item.Dimension, formatNumber(item.Score)))
	}
	return strings.Join(parts, "、")
}

// CalculateConfidenceLevels buckets each dimension's confidence score.
func CalculateConfidenceLevels(evaluation *models.EvaluationResult) map[models.Dimension]ConfidenceLevel {
	levels := make(map[models.Dimension]ConfidenceLevel)
	if evaluation == nil {
		return levels
	}
	for dim, score := range evaluation.Dimensions {
		levels[dim] = confidenceLevel(score.ConfidenceScore)
	}
	return levels
}

func confidenceLevel(score float64) ConfidenceLevel {
	switch {
	case score >= highConfidenceThreshold:
		return ConfidenceHigh
	case score >= mediumConfidenceThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// GenerateFollowUpQuestions returns the evaluator's suggested questions in
// key order, followed by one probing question for every low-confidence
// dimension not already covered.
func GenerateFollowUpQuestions(evaluation *models.EvaluationResult) []string {
	questions := []string{}
	if evaluation == nil {
		return questions
	}

	keys := make([]string, 0, len(evaluation.SuggestedFollowUpQuestions))
	for key := range evaluation.SuggestedFollowUpQuestions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	covered := make(map[models.Dimension]bool)
	for _, key := range keys {
		questions = append(questions, evaluation.SuggestedFollowUpQuestions[key])
		for _, dim := range models.Dimensions {
			if strings.Contains(key, string(dim)) {
				covered[dim] = true
			}
		}
	}

	for _, dim := range models.Dimensions {
		score, ok := evaluation.Dimensions[dim]
		if !ok || covered[dim] || score.ConfidenceScore >= mediumConfidenceThreshold {
			continue
		}
		question := fmt.Sprintf("关于「%s」，请举一个你亲身经历的具体例子，说明当时的情况、你的做法和最终结果。", dim)
		if missing := strings.TrimSpace(score.MissingInfo); missing != "" {
			question = fmt.Sprintf("关于「%s」，面试中尚未了解到：%s。请结合具体经历谈谈。", dim, strings.TrimRight(missing, "。"))
		}
		questions = append(questions, question)
	}
	return questions
}
