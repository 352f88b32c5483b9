package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/GCYYfun/ai-studio-sub001/internal/models"
	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

var batchCmd = &cobra.Command{
	Use:   "batch <transcript>...",
	Short: "Evaluate several transcripts in one batch",
	Long:  "Uploads every transcript into the file store, evaluates them with bounded concurrency and prints the batch summary. Defaults come from BATCH_CONCURRENCY, BATCH_SKIP_ERRORS and BATCH_SAVE_RESULTS.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBatch,
}

var (
	batchConcurrency int
	batchSkipErrors  bool
	batchSaveResults bool
	batchStep        string
	batchFormat      string
	batchOutputFile  string
)

func init() {
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 0, "Files evaluated at once (default BATCH_CONCURRENCY)")
	batchCmd.Flags().BoolVar(&batchSkipErrors, "skip-errors", true, "Keep going when a file fails")
	batchCmd.Flags().BoolVar(&batchSaveResults, "save-results", true, "Store each analysis")
	batchCmd.Flags().StringVar(&batchStep, "step", string(models.StepAll), "Evaluation step: all, topic or report")
	batchCmd.Flags().StringVarP(&batchFormat, "format", "f", "json", "Output format: json, csv or txt")
	batchCmd.Flags().StringVarP(&batchOutputFile, "out", "o", "", "Write the summary to this file instead of stdout")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	format, err := services.ParseExportFormat(batchFormat)
	if err != nil {
		return err
	}

	app, err := newCLIApp(ctx)
	if err != nil {
		return err
	}
	gen, err := newGenerator(ctx, app.cfg)
	if err != nil {
		return err
	}

	storage := services.NewStorageService(app.cfg.Storage.UploadPath)
	if err := storage.EnsureUploadDir(); err != nil {
		return err
	}
	files := services.NewFileManager(repositories.NewFileRepository(app.store), storage, services.NewPDFParser(), app.cfg.Storage.MaxFileSize)

	uploaded, err := uploadTranscripts(ctx, files, args)
	if err != nil {
		return err
	}

	concurrency := batchConcurrency
	if !cmd.Flags().Changed("concurrency") {
		concurrency = app.cfg.Batch.Concurrency
	}
	skipErrors := batchSkipErrors
	if !cmd.Flags().Changed("skip-errors") {
		skipErrors = app.cfg.Batch.SkipErrors
	}
	saveResults := batchSaveResults
	if !cmd.Flags().Changed("save-results") {
		saveResults = app.cfg.Batch.SaveResults
	}

	stderr := cmd.ErrOrStderr()
	batches := services.NewBatchService(
		gen,
		services.NewPromptBuilder(),
		files,
		repositories.NewAnalysisRepository(app.store),
		repositories.NewBatchRepository(app.store),
		services.NewTranscriptParsers(),
	)
	summary, err := batches.ProcessBatch(ctx, services.BatchEvaluationConfig{
		Files:       uploaded,
		Step:        models.EvaluationStep(batchStep),
		Concurrency: concurrency,
		SkipErrors:  skipErrors,
		SaveResults: saveResults,
		OnProgress: func(p models.BatchProgress) {
			fmt.Fprintf(stderr, "🔄 %d/%d done, %d failed (%.2f%%) %s\n", p.Completed+p.Failed, p.Total, p.Failed, p.Percentage, p.CurrentFile)
		},
	})
	if err != nil {
		return fmt.Errorf("batch failed (%s): %w", services.ErrorKind(err), err)
	}

	body, err := batches.ExportSummary(summary, format)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), batchOutputFile, body)
}

// uploadTranscripts stores each path as a conversation file so the batch
// sees the same validation and metadata extraction as API uploads.
func uploadTranscripts(ctx context.Context, files *services.FileManager, paths []string) ([]models.UploadedFile, error) {
	uploaded := make([]models.UploadedFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		file, err := files.UploadFile(ctx, services.UploadRequest{
			Name:     filepath.Base(path),
			MimeType: mime.TypeByExtension(filepath.Ext(path)),
			Data:     data,
			Type:     models.FileTypeConversation,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		uploaded = append(uploaded, *file)
	}
	return uploaded, nil
}
