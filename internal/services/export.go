package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
	ExportText ExportFormat = "text"
)

// ParseExportFormat accepts json, csv and text (or txt). Empty means json.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return ExportJSON, nil
	case "csv":
		return ExportCSV, nil
	case "text", "txt":
		return ExportText, nil
	default:
		return "", newValidationError("unsupported export format: %s", s)
	}
}

// ContentType is the HTTP content type of an export.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportCSV:
		return "text/csv; charset=utf-8"
	case ExportText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

func (f ExportFormat) Extension() string {
	if f == ExportText {
		return "txt"
	}
	return string(f)
}

const exportTimeLayout = "2006-01-02 15:04:05"

var batchCSVHeader = []string{"File Name", "Success", "Duration (ms)", "Overall Rating", "Confidence", "Error"}

// ExportBatchSummary renders a batch summary in the given format.
func ExportBatchSummary(summary *models.BatchSummary, format ExportFormat) (string, error) {
	switch format {
	case ExportJSON, "":
		return marshalIndent(summary)
	case ExportCSV:
		rows := [][]string{batchCSVHeader}
		for _, r := range summary.Results {
			rating, confidence := "", ""
			if r.Result != nil && r.Result.Evaluation != nil {
				rating = formatNumber(r.Result.Evaluation.OverallRating)
				confidence = formatNumber(r.Result.Evaluation.OverallConfidence)
			}
			rows = append(rows, []string{
				r.FileName,
				strconv.FormatBool(r.Success),
				strconv.FormatInt(r.Duration, 10),
				rating,
				confidence,
				r.Error,
			})
		}
		return writeCSV(rows)
	case ExportText:
		return batchTextReport(summary), nil
	default:
		return "", newValidationError("unsupported export format: %s", format)
	}
}

func batchTextReport(summary *models.BatchSummary) string {
	var b strings.Builder

	b.WriteString("批量评估报告\n")
	b.WriteString("============\n")
	fmt.Fprintf(&b, "批次 ID：%s\n", summary.BatchID)
	fmt.Fprintf(&b, "开始时间：%s\n", summary.StartTime.Local().Format(exportTimeLayout))
	fmt.Fprintf(&b, "结束时间：%s\n", summary.EndTime.Local().Format(exportTimeLayout))
	fmt.Fprintf(&b, "文件总数：%d\n", summary.TotalFiles)
	fmt.Fprintf(&b, "成功：%d\n", summary.SuccessCount)
	fmt.Fprintf(&b, "失败：%d\n", summary.FailureCount)
	fmt.Fprintf(&b, "总耗时：%d ms\n", summary.TotalDuration)
	fmt.Fprintf(&b, "平均耗时：%d ms\n", summary.AverageDuration)

	stats := summary.Statistics
	b.WriteString("\n统计\n----\n")
	fmt.Fprintf(&b, "话题分析数：%d\n", stats.TopicAnalysisCount)
	fmt.Fprintf(&b, "能力评估数：%d\n", stats.EvaluationCount)
	fmt.Fprintf(&b, "平均评分：%s\n", formatOptional(stats.AverageRating))
	fmt.Fprintf(&b, "平均置信度：%s\n", formatOptional(stats.AverageConfidence))

	b.WriteString("\n明细\n----\n")
	for i, r := range summary.Results {
		status := "成功"
		if !r.Success {
			status = "失败"
		}
		fmt.Fprintf(&b, "%d. %s [%s] %d ms", i+1, r.FileName, status, r.Duration)
		if r.Result != nil && r.Result.Evaluation != nil {
			eval := r.Result.Evaluation
			fmt.Fprintf(&b, " 评分 %s，置信度 %s，%s",
				formatNumber(eval.OverallRating), formatNumber(eval.OverallConfidence), eval.HiringRecommendation)
		}
		if r.Error != "" {
			fmt.Fprintf(&b, " 错误：%s", r.Error)
		}
		b.WriteString("\n")
	}
	return b.String()
}

var historyCSVHeader = []string{
	"ID", "Candidate Name", "Position", "Interview Date", "Status",
	"Overall Rating", "Confidence", "Duration (min)", "Total Turns", "Tags", "Notes",
}

// ExportHistoryRecords renders history records in the given format. CSV
// durations are whole minutes.
func ExportHistoryRecords(records []models.HistoryRecord, format ExportFormat) (string, error) {
	switch format {
	case ExportJSON, "":
		if records == nil {
			records = []models.HistoryRecord{}
		}
		return marshalIndent(records)
	case ExportCSV:
		rows := [][]string{historyCSVHeader}
		for _, r := range records {
			rows = append(rows, []string{
				r.ID,
				r.CandidateName,
				r.Position,
				r.InterviewDate.Format(time.RFC3339),
				string(r.Status),
				formatOptional(r.Metadata.OverallRating),
				formatOptional(r.Metadata.Confidence),
				durationMinutes(r.Metadata.Duration),
				strconv.Itoa(r.Metadata.TotalTurns),
				strings.Join(r.Tags, ";"),
				r.Notes,
			})
		}
		return writeCSV(rows)
	case ExportText:
		return historyTextReport(records), nil
	default:
		return "", newValidationError("unsupported export format: %s", format)
	}
}

func historyTextReport(records []models.HistoryRecord) string {
	var b strings.Builder

	b.WriteString("面试历史记录\n")
	b.WriteString("============\n")
	fmt.Fprintf(&b, "记录总数：%d\n", len(records))

	for i, r := range records {
		fmt.Fprintf(&b, "\n%d. %s - %s\n", i+1, orPlaceholder(r.CandidateName), orPlaceholder(r.Position))
		fmt.Fprintf(&b, "   面试日期：%s\n", r.InterviewDate.Local().Format(exportTimeLayout))
		fmt.Fprintf(&b, "   状态：%s\n", r.Status)
		fmt.Fprintf(&b, "   综合评分：%s\n", formatOptional(r.Metadata.OverallRating))
		fmt.Fprintf(&b, "   置信度：%s\n", formatOptional(r.Metadata.Confidence))
		if m := durationMinutes(r.Metadata.Duration); m != "" {
			fmt.Fprintf(&b, "   时长：%s 分钟\n", m)
		}
		if len(r.Tags) > 0 {
			fmt.Fprintf(&b, "   标签：%s\n", strings.Join(r.Tags, "、"))
		}
		if r.AnalysisResult != nil && r.AnalysisResult.Evaluation != nil && r.AnalysisResult.Evaluation.Summary != "" {
			fmt.Fprintf(&b, "   评估总结：%s\n", r.AnalysisResult.Evaluation.Summary)
		}
		if r.Notes != "" {
			fmt.Fprintf(&b, "   备注：%s\n", r.Notes)
		}
	}
	return b.String()
}

func marshalIndent(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}
	return string(data), nil
}

func writeCSV(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.String(), nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatNumber(math.Round(*v*100) / 100)
}

func durationMinutes(ms *int64) string {
	if ms == nil {
		return ""
	}
	return strconv.FormatInt(int64(math.Round(float64(*ms)/60000)), 10)
}
