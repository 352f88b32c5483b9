package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <transcript>",
	Short: "Evaluate one interview transcript",
	Long:  "Parses a transcript file (speaker-labelled, timestamped or JSON), segments it into topics and scores the candidate on the six capability dimensions. The analysis is printed as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvaluate,
}

var (
	evaluateJDFile          string
	evaluateResumeFile      string
	evaluateStep            string
	evaluateStage           string
	evaluatePreviousSummary string
	evaluateCandidate       string
	evaluatePosition        string
	evaluateSave            bool
	evaluateTags            []string
	evaluateOutputFile      string
)

func init() {
	evaluateCmd.Flags().StringVar(&evaluateJDFile, "jd", "", "Path to the job description")
	evaluateCmd.Flags().StringVar(&evaluateResumeFile, "resume", "", "Path to the candidate resume")
	evaluateCmd.Flags().StringVar(&evaluateStep, "step", string(models.StepAll), "Evaluation step: all, topic or report")
	evaluateCmd.Flags().StringVar(&evaluateStage, "stage", "1", "Interview round: 1 or 2")
	evaluateCmd.Flags().StringVar(&evaluatePreviousSummary, "previous-summary", "", "Summary of the first round, used with --stage 2")
	evaluateCmd.Flags().StringVar(&evaluateCandidate, "candidate", "", "Candidate name (defaults to the file name)")
	evaluateCmd.Flags().StringVar(&evaluatePosition, "position", "", "Position (defaults to the file name)")
	evaluateCmd.Flags().BoolVar(&evaluateSave, "save", false, "Save the result to interview history")
	evaluateCmd.Flags().StringSliceVar(&evaluateTags, "tag", nil, "History tag, repeatable")
	evaluateCmd.Flags().StringVarP(&evaluateOutputFile, "out", "o", "", "Write the analysis to this file instead of stdout")

	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	step := models.EvaluationStep(evaluateStep)
	if !step.RunsTopics() && !step.RunsReport() {
		return fmt.Errorf("unknown step %q", evaluateStep)
	}

	text, err := readDocument(args[0])
	if err != nil {
		return err
	}
	transcript, err := services.NewTranscriptParsers().Parse(services.CleanTranscript(text))
	if err != nil {
		return err
	}

	var ic models.InterviewContext
	if evaluateJDFile != "" {
		if ic.JD, err = readDocument(evaluateJDFile); err != nil {
			return err
		}
	}
	if evaluateResumeFile != "" {
		if ic.Resume, err = readDocument(evaluateResumeFile); err != nil {
			return err
		}
	}

	app, err := newCLIApp(ctx)
	if err != nil {
		return err
	}
	gen, err := newGenerator(ctx, app.cfg)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	engine := services.NewEvaluationEngine(gen, services.NewPromptBuilder())
	analysis, err := engine.EvaluateInterview(ctx, transcript, ic, services.EvaluateOptions{
		Step:            step,
		Stage:           evaluateStage,
		PreviousSummary: evaluatePreviousSummary,
		OnProgress: func(step string, percent int) {
			fmt.Fprintf(stderr, "🔄 %s %d%%\n", step, percent)
		},
	})
	if err != nil {
		return fmt.Errorf("evaluation failed (%s): %w", services.ErrorKind(err), err)
	}

	meta := services.ExtractMetadata(models.FileTypeConversation, filepath.Base(args[0]), text)
	candidate := firstNonEmpty(evaluateCandidate, meta[models.MetaCandidateName])
	position := firstNonEmpty(evaluatePosition, meta[models.MetaPosition])
	if analysis.Evaluation != nil {
		analysis.Evaluation.CandidateName = firstNonEmpty(analysis.Evaluation.CandidateName, candidate)
		analysis.Evaluation.Position = firstNonEmpty(analysis.Evaluation.Position, position)
		fmt.Fprintln(stderr, services.GenerateCapabilitySummary(analysis.Evaluation))
	}

	if evaluateSave {
		req := &models.EvaluationRequest{
			Transcript:    transcript,
			Context:       ic,
			CandidateName: candidate,
			Position:      position,
		}
		interview := services.InterviewFromRequest(uuid.New().String(), req, true)
		id, err := app.history.SaveToHistory(ctx, interview, analysis, evaluateTags, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "💾 Saved history record %s\n", id)
	}

	out, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return writeOutput(cmd.OutOrStdout(), evaluateOutputFile, string(out))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
