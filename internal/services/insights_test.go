package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

func TestExtractTopicInsights(t *testing.T) {
	analysis := &models.TopicAnalysisResult{
		Topics: []models.Topic{
			{TopicName: "项目", Dialogue: make([]models.TaggedMessage, 4), KeyPoints: []string{"支付"}, CriticalInfo: "缺少数据"},
			{TopicName: "动机", Dialogue: make([]models.TaggedMessage, 2), KeyPoints: []string{"想做基础架构"}},
		},
	}

	insights := ExtractTopicInsights(analysis)
	assert.Equal(t, 2, insights.TopicCount)
	assert.Equal(t, 6, insights.DialogueTurns)
	assert.Equal(t, []string{"项目", "动机"}, insights.TopicNames)
	assert.Equal(t, []string{"项目"}, insights.CriticalTopics)
	assert.Equal(t, []string{"支付", "想做基础架构"}, insights.KeyPoints)

	empty := ExtractTopicInsights(nil)
	assert.Equal(t, 0, empty.TopicCount)
	assert.NotNil(t, empty.TopicNames)
}

func TestExtractCapabilityInsights(t *testing.T) {
	eval := sampleEvaluation(78, 66)
	eval.Dimensions[models.DimensionResilience] = models.DimensionScore{
		Score: 40, Assessment: "没有谈到", MissingInfo: "缺少受挫经历", ConfidenceScore: 20,
	}

	insights := ExtractCapabilityInsights(eval)
	require.Len(t, insights.Strongest, 2)
	require.Len(t, insights.Weakest, 2)
	assert.Equal(t, models.DimensionCustomerFirst, insights.Strongest[0].Dimension)
	assert.Equal(t, models.DimensionChallengeSeeking, insights.Strongest[1].Dimension)
	assert.Equal(t, models.DimensionResilience, insights.Weakest[0].Dimension)
	assert.Equal(t, models.DimensionIntelligence, insights.Weakest[1].Dimension)

	assert.Equal(t, []models.Dimension{models.DimensionDiligence, models.DimensionIntelligence, models.DimensionResilience}, insights.LowConfidence)
	assert.Equal(t, map[models.Dimension]string{models.DimensionResilience: "缺少受挫经历"}, insights.MissingInfo)
	assert.InDelta(t, (60+65+70+40+80+85)/6.0, insights.AverageScore, 1e-9)
	assert.Equal(t, models.RecommendHire, insights.Recommendation)
	assert.Equal(t, 78.0, insights.OverallRating)
}

func TestCalculateConfidenceLevels(t *testing.T) {
	levels := CalculateConfidenceLevels(sampleEvaluation(70, 70))
	require.Len(t, levels, 6)
	// confidence scores are 50, 58, 66, 74, 82, 90 in rubric order
	assert.Equal(t, ConfidenceLow, levels[models.DimensionIntelligence])
	assert.Equal(t, ConfidenceLow, levels[models.DimensionDiligence])
	assert.Equal(t, ConfidenceMedium, levels[models.DimensionGoalOrientation])
	assert.Equal(t, ConfidenceMedium, levels[models.DimensionResilience])
	assert.Equal(t, ConfidenceHigh, levels[models.DimensionChallengeSeeking])
	assert.Equal(t, ConfidenceHigh, levels[models.DimensionCustomerFirst])

	assert.Empty(t, CalculateConfidenceLevels(nil))
}

func TestGenerateFollowUpQuestions(t *testing.T) {
	eval := sampleEvaluation(70, 70)
	eval.SuggestedFollowUpQuestions = map[string]string{
		"勤奋-投入": "最近一次加班是为了什么？",
		"其他":    "你为什么离职？",
	}
	score := eval.Dimensions[models.DimensionIntelligence]
	score.MissingInfo = "缺少技术深度的问题。"
	eval.Dimensions[models.DimensionIntelligence] = score

	questions := GenerateFollowUpQuestions(eval)
	require.Len(t, questions, 3)
	assert.Equal(t, "你为什么离职？", questions[0])
	assert.Equal(t, "最近一次加班是为了什么？", questions[1])
	assert.Equal(t, "关于「聪明」，面试中尚未了解到：缺少技术深度的问题。请结合具体经历谈谈。", questions[2])

	assert.Empty(t, GenerateFollowUpQuestions(nil))
}

func TestGenerateSummaries(t *testing.T) {
	var analysis models.TopicAnalysisResult
	require.NoError(t, decodeJSONResponse(topicJSON(), &analysis))

	topicSummary := GenerateTopicSummary(&analysis)
	assert.True(t, strings.HasPrefix(topicSummary, "共识别 1 个话题，涉及 2 轮对话。"))
	assert.Contains(t, topicSummary, "需要关注的话题：项目经历")
	assert.Equal(t, "未识别到话题。", GenerateTopicSummary(nil))

	capability := GenerateCapabilitySummary(sampleEvaluation(7.5, 80))
	assert.True(t, strings.HasPrefix(capability, "综合评分 7.5（置信度 80），录用建议：推荐。"))
	assert.Contains(t, capability, "突出维度：客户第一（85）、爱挑战（80）")
	assert.Contains(t, capability, "置信度不足：勤奋、聪明")
	assert.Equal(t, "暂无评估结果。", GenerateCapabilitySummary(nil))
}
