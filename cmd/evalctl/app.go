package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/gorm/logger"

	"github.com/GCYYfun/ai-studio-sub001/internal/config"
	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

// cliApp holds what every command needs. The Gemini backend is created
// only by commands that call the model.
type cliApp struct {
	cfg     *config.Config
	store   repositories.Store
	history *services.HistoryService
}

func newCLIApp(ctx context.Context) (*cliApp, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := config.OpenDatabase(cfg.Database.Driver, cfg.GetDatabaseDSN(), logger.Silent)
	if err != nil {
		return nil, err
	}

	store := repositories.NewStore(db)
	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return &cliApp{
		cfg:     cfg,
		store:   store,
		history: services.NewHistoryService(repositories.NewInterviewRepository(store), nil),
	}, nil
}

// newGenerator builds the evaluator agent. Tests replace it.
var newGenerator = func(ctx context.Context, cfg *config.Config) (services.Generator, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	gemini, err := services.NewGeminiService(ctx, cfg.Gemini, cfg.Worker)
	if err != nil {
		return nil, err
	}
	return services.NewAgent(services.AgentEvaluator, gemini)
}

// readDocument returns the text of a transcript, JD or resume file. PDFs
// are run through the PDF text extractor.
func readDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		content, err := services.NewPDFParser().ExtractText(data)
		if err != nil {
			return "", fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return content.Text, nil
	}
	return string(data), nil
}

// writeOutput writes body to path, or to w when path is empty.
func writeOutput(w io.Writer, path, body string) error {
	if path == "" {
		_, err := fmt.Fprintln(w, body)
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
