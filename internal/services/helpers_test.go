package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
)

const failMarker = "FAIL_THIS_FILE"

// fakeGenerator answers topic and evaluation prompts with canned JSON.
// Transcripts containing failMarker get an error back.
type fakeGenerator struct {
	mu         sync.Mutex
	rating     float64
	confidence float64
	topicRaw   string
	evalRaw    string
	err        error
	block      chan struct{}
	started    chan struct{}
	calls      []string
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{rating: 7.5, confidence: 80}
}

func (f *fakeGenerator) Generate(ctx context.Context, messages []BackendMessage, systemPrompt string) (string, error) {
	f.mu.Lock()
	var user string
	if len(messages) > 0 {
		user = messages[len(messages)-1].Content
	}
	f.calls = append(f.calls, user)
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if strings.Contains(user, failMarker) {
		return "", errors.New("Test error")
	}
	if f.err != nil {
		return "", f.err
	}

	if strings.Contains(systemPrompt, "按话题进行切分") {
		if f.topicRaw != "" {
			return f.topicRaw, nil
		}
		return "```json\n" + topicJSON() + "\n```", nil
	}
	if f.evalRaw != "" {
		return f.evalRaw, nil
	}
	return "以下是评估结果：\n" + evaluationJSON(f.rating, f.confidence), nil
}

func (f *fakeGenerator) userMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.calls...)
}

func topicJSON() string {
	result := models.TopicAnalysisResult{
		AnalysisDate: "2026-10-19",
		Topics: []models.Topic{
			{
				TopicName: "项目经历",
				Dialogue: []models.TaggedMessage{
					{Role: models.RoleInterviewer, Content: "介绍一下你最近的项目", Turn: 1},
					{Role: models.RoleCandidate, Content: "我负责支付系统重构", Turn: 1},
				},
				Summary:      "候选人主导了支付系统重构",
				KeyPoints:    []string{"支付系统"},
				CriticalInfo: "缺少量化结果",
			},
		},
		OverallSummary: "整体表现良好",
	}
	data, _ := json.Marshal(result)
	return string(data)
}

func sampleEvaluation(rating, confidence float64) *models.EvaluationResult {
	dims := make(map[models.Dimension]models.DimensionScore, len(models.Dimensions))
	for i, dim := range models.Dimensions {
		dims[dim] = models.DimensionScore{
			Score:                   float64(60 + i*5),
			Assessment:              string(dim) + "表现稳定",
			ConfidenceScore:         float64(50 + i*8),
			ConfidenceJustification: "证据充分",
		}
	}
	return &models.EvaluationResult{
		CandidateName:        "",
		Position:             "",
		Dimensions:           dims,
		OverallRating:        rating,
		OverallConfidence:    confidence,
		Strengths:            []string{"学习能力强"},
		Weaknesses:           []string{"缺少大型项目经验"},
		Summary:              "基础扎实",
		HiringRecommendation: models.RecommendHire,
	}
}

func evaluationJSON(rating, confidence float64) string {
	data, _ := json.Marshal(sampleEvaluation(rating, confidence))
	// trailing comma the parser has to tolerate
	return strings.TrimSuffix(string(data), "}") + ",}"
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func sampleTranscript() []models.ConversationMessage {
	return []models.ConversationMessage{
		{Role: models.RoleInterviewer, Content: "介绍一下你最近的项目", Turn: 1},
		{Role: models.RoleCandidate, Content: "我负责支付系统重构", Turn: 1},
	}
}

func newTestStore(t *testing.T) repositories.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "services.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := repositories.NewStore(db)
	require.NoError(t, store.Initialize(context.Background()))
	return store
}
