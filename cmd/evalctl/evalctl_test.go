package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GCYYfun/ai-studio-sub001/internal/config"
	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

const transcript = "面试官：请介绍一下你自己。\n候选人：我有五年 Go 开发经验。\n面试官：最难的项目是什么？\n候选人：支付网关重构。"

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, _ []services.BackendMessage, systemPrompt string) (string, error) {
	if strings.Contains(systemPrompt, "按话题进行切分") {
		data, _ := json.Marshal(models.TopicAnalysisResult{
			Topics: []models.Topic{{
				TopicName: "项目经历",
				Dialogue:  []models.TaggedMessage{{Role: models.RoleCandidate, Content: "支付网关重构。", Turn: 2}},
				Summary:   "主导支付网关重构",
			}},
		})
		return string(data), nil
	}

	dims := make(map[models.Dimension]models.DimensionScore, len(models.Dimensions))
	for _, dim := range models.Dimensions {
		dims[dim] = models.DimensionScore{Score: 80, Assessment: "良好", ConfidenceScore: 70}
	}
	data, _ := json.Marshal(models.EvaluationResult{
		Dimensions:        dims,
		OverallRating:     80,
		OverallConfidence: 70,
		Summary:           "整体良好",
	})
	return "评估如下：\n" + string(data), nil
}

// setupCLI points the store at a temp dir, stubs the model and resets
// flag state left over from earlier commands.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "evalctl.db"))
	t.Setenv("UPLOAD_PATH", filepath.Join(dir, "uploads"))

	original := newGenerator
	newGenerator = func(context.Context, *config.Config) (services.Generator, error) {
		return stubGenerator{}, nil
	}
	t.Cleanup(func() { newGenerator = original })

	evaluateSave, evaluateTags, evaluateOutputFile = false, nil, ""
	evaluateCandidate, evaluatePosition, evaluateStep = "", "", string(models.StepAll)
	batchFormat, batchOutputFile = "json", ""
	historyFormat, historyIDs, historyOutput = "csv", nil, ""
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), err
}

func writeTranscript(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(transcript), 0644))
	return path
}

func TestEvaluateCommand(t *testing.T) {
	dir := setupCLI(t)
	path := writeTranscript(t, dir, "张三_后端工程师_transcript.txt")

	out, err := execute(t, "evaluate", path, "--save", "--tag", "校招")
	require.NoError(t, err)

	var analysis models.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &analysis), out)
	assert.Equal(t, models.AnalysisCompleted, analysis.Status)
	require.NotNil(t, analysis.TopicAnalysis)
	require.NotNil(t, analysis.Evaluation)
	assert.Equal(t, "张三", analysis.Evaluation.CandidateName)
	assert.Equal(t, "后端工程师", analysis.Evaluation.Position)

	out, err = execute(t, "history", "stats")
	require.NoError(t, err)
	var stats models.HistoryStatistics
	require.NoError(t, json.Unmarshal([]byte(out), &stats), out)
	assert.Equal(t, 1, stats.TotalRecords)
	assert.Equal(t, 1, stats.TagCounts["校招"])
	assert.InDelta(t, 80, stats.AverageRating, 0.001)

	out, err = execute(t, "history", "export", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, ",张三,后端工程师,")
}

func TestEvaluateCommand_RejectsUnknownStep(t *testing.T) {
	dir := setupCLI(t)
	path := writeTranscript(t, dir, "transcript.txt")

	_, err := execute(t, "evaluate", path, "--step", "everything")
	assert.ErrorContains(t, err, "unknown step")
}

func TestBatchCommand(t *testing.T) {
	dir := setupCLI(t)
	first := writeTranscript(t, dir, "张三_后端工程师_transcript.txt")
	second := writeTranscript(t, dir, "李四_前端工程师_transcript.txt")

	out, err := execute(t, "batch", first, second, "--format", "csv", "--concurrency", "2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "File Name,Success,Duration (ms),Overall Rating,Confidence,Error"), out)
	assert.Contains(t, out, "张三_后端工程师_transcript.txt,true,")
	assert.Contains(t, out, "李四_前端工程师_transcript.txt,true,")
}

func TestBatchCommand_RejectsNonTranscript(t *testing.T) {
	dir := setupCLI(t)
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("今天天气不错"), 0644))

	_, err := execute(t, "batch", path)
	assert.ErrorContains(t, err, "Invalid content for file type: conversation")
}

func TestWriteOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, "", "hello"))
	assert.Equal(t, "hello\n", buf.String())

	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, writeOutput(&buf, path, "{}"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestReadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jd.md")
	require.NoError(t, os.WriteFile(path, []byte("岗位职责"), 0644))

	text, err := readDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "岗位职责", text)

	_, err = readDocument(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", firstNonEmpty())
}
