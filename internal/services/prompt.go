package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

type PromptBuilder struct {
	now func() time.Time
}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{now: time.Now}
}

// WithClock returns a builder that stamps prompts with now().
func (pb *PromptBuilder) WithClock(now func() time.Time) *PromptBuilder {
	return &PromptBuilder{now: now}
}

func (pb *PromptBuilder) today() string {
	return pb.now().Format("2006-01-02")
}

// BuildTopicAnalysisPrompt creates the system prompt for topic segmentation
func (pb *PromptBuilder) BuildTopicAnalysisPrompt() string {
	return fmt.Sprintf(`你是一名资深的面试分析专家。今天的日期是 %s。

你的任务是把一场面试的对话记录按话题进行切分。

要求：
1. 覆盖对话记录中的每一组问答，每一轮对话只能归入一个话题，不得重复，也不得遗漏。
2. 寒暄、确认收音等没有信息量的对话可以省略。
3. 每个话题内的对话保持原始的时间顺序。
4. 为每个话题写 1-2 句话的小结，列出关键要点。
5. 在 critical_info 中标出该话题暴露出的风险或亮点，没有则留空字符串。

只返回如下格式的 JSON，不要输出任何其他内容：
{
  "analysis_date": "%s",
  "topics": [
    {
      "topic_name": "<话题名称>",
      "dialogue": [
        {"role": "interviewer", "content": "<原文>", "turn": <轮次>},
        {"role": "candidate", "content": "<原文>", "turn": <轮次>}
      ],
      "summary": "<1-2 句话的小结>",
      "key_points": ["<要点>"],
      "critical_info": "<风险或亮点>"
    }
  ],
  "overall_summary": "<整场面试的概述>"
}`, pb.today(), pb.today())
}

// BuildEvaluationPrompt creates the system prompt for six-dimension scoring
func (pb *PromptBuilder) BuildEvaluationPrompt(stage, previousSummary string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `你是一名经验丰富的面试官和人才评估专家。今天的日期是 %s。

请根据职位描述、候选人简历和面试对话记录，对候选人进行能力评估。

第一步：定级
先根据简历和对话判断候选人所处的层级（初级 / 中级 / 高级 / 专家），之后的评分都相对于该层级的期望进行。

第二步：评分标准
- 60 分：及格，基本满足该层级的要求
- 70-80 分：良好
- 80-90 分：优秀
- 90-100 分：卓越，明显超出该层级的期望

第三步：按以下六个维度逐一评分，维度名称必须原样使用：
`, pb.today())

	for i, dim := range models.Dimensions {
		fmt.Fprintf(&b, "%d. %s：%s\n", i+1, dim, dimensionGuide[dim])
	}

	b.WriteString(`
每个维度需要给出：
- score：0-100 的分数
- assessment：基于对话中具体证据的评价
- missing_info：评估该维度时缺失的信息，没有则留空字符串
- confidence_score：0-100 的置信度
- confidence_justification：置信度的依据

置信度由两个因素共同决定：
- 广度：与该维度相关的问题数量、多样性和深入程度
- 相关性：候选人相关回答的长度、在整场对话中的占比以及与该维度的语义相关程度
两者都充分时置信度才高；对话几乎没有涉及某个维度时，置信度应明显偏低。

最后给出综合评分 overall_rating（0-100）、综合置信度 overall_confidence（0-100）、优势、不足、建议的追问问题、总结，以及录用建议。
录用建议只能是以下之一：强烈推荐、推荐、待定、不推荐。
`)

	if stage == "2" && strings.TrimSpace(previousSummary) != "" {
		fmt.Fprintf(&b, `
这是第二轮面试。第一轮面试的总结如下：
%s

请结合第一轮的结论进行评估：重点关注第一轮中缺失或存疑的信息是否在本轮得到验证，并在 assessment 中说明与第一轮结论的一致或差异。
`, previousSummary)
	}

	b.WriteString(`
只返回如下格式的 JSON，不要输出任何其他内容：
{
  "candidate_name": "<候选人姓名>",
  "position": "<应聘职位>",
  "dimensions": {
`)
	for i, dim := range models.Dimensions {
		sep := ","
		if i == len(models.Dimensions)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, `    "%s": {"score": <0-100>, "assessment": "<评价>", "missing_info": "<缺失信息>", "confidence_score": <0-100>, "confidence_justification": "<依据>"}%s
`, dim, sep)
	}
	b.WriteString(`  },
  "overall_rating": <0-100>,
  "overall_confidence": <0-100>,
  "strengths": ["<优势>"],
  "weaknesses": ["<不足>"],
  "suggested_follow_up_questions": {"<追问方向>": "<问题>"},
  "summary": "<总结>",
  "hiring_recommendation": "<强烈推荐|推荐|待定|不推荐>"
}`)

	return b.String()
}

var dimensionGuide = map[models.Dimension]string{
	models.DimensionIntelligence:     "学习和理解能力，分析问题的逻辑性与深度",
	models.DimensionDiligence:        "投入程度与自我驱动，是否持续打磨工作结果",
	models.DimensionGoalOrientation:  "以结果为导向，能否拆解目标并推动落地",
	models.DimensionResilience:       "抗压能力，面对挫折和批评时的心态与恢复能力",
	models.DimensionChallengeSeeking: "主动承担有难度的任务，走出舒适区的意愿",
	models.DimensionCustomerFirst:    "理解并优先考虑用户和客户的真实需求",
}

// BuildEvaluatorUserMessage embeds the context and the transcript under
// evaluation into the single user turn sent to the evaluator.
func (pb *PromptBuilder) BuildEvaluatorUserMessage(transcript string, ic models.InterviewContext) string {
	var b strings.Builder

	b.WriteString("职位描述：\n")
	b.WriteString(orPlaceholder(ic.JD))
	b.WriteString("\n\n候选人简历：\n")
	b.WriteString(orPlaceholder(ic.Resume))

	if strings.TrimSpace(ic.Transcript) != "" {
		b.WriteString("\n\n参考面试记录（仅作为格式与标准参考，不是本次评估对象）：\n")
		b.WriteString(ic.Transcript)
	}

	b.WriteString("\n\n本次面试对话记录：\n")
	b.WriteString(transcript)
	return b.String()
}

// BuildInterviewerPrompt creates the system prompt for the simulated
// interviewer
func (pb *PromptBuilder) BuildInterviewerPrompt(ic models.InterviewContext) string {
	return fmt.Sprintf(`你是一名专业的面试官，今天的日期是 %s。

职位描述：
%s

候选人简历：
%s

请围绕职位要求和简历中的经历提问。每次只提一个问题，问题要具体，必要时对候选人上一轮的回答进行追问。只输出问题本身。`,
		pb.today(), orPlaceholder(ic.JD), orPlaceholder(ic.Resume))
}

// BuildCandidatePrompt creates the system prompt for the simulated
// candidate
func (pb *PromptBuilder) BuildCandidatePrompt(ic models.InterviewContext) string {
	return fmt.Sprintf(`你正在参加一场面试，请以简历中候选人的身份回答面试官的问题。

你应聘的职位描述：
%s

你的简历：
%s

回答要真实、具体，与简历中的经历保持一致，不要编造简历中没有的经历。只输出回答本身。`,
		orPlaceholder(ic.JD), orPlaceholder(ic.Resume))
}

func orPlaceholder(text string) string {
	if strings.TrimSpace(text) == "" {
		return "（未提供）"
	}
	return text
}
