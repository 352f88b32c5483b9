package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"

	"github.com/GCYYfun/ai-studio-sub001/internal/config"
)

// Embedder turns text into a vector for the similarity index.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// GeminiService is the Gemini implementation of TextBackend and Embedder.
type GeminiService struct {
	client       *genai.Client
	modelName    string
	embedModel   string
	temperature  float32
	maxRetries   int
	initialDelay time.Duration
}

func NewGeminiService(ctx context.Context, cfg config.GeminiConfig, retry config.WorkerConfig) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	maxRetries := retry.RetryMaxAttempts
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &GeminiService{
		client:       client,
		modelName:    cfg.Model,
		embedModel:   cfg.EmbedModel,
		temperature:  cfg.Temperature,
		maxRetries:   maxRetries,
		initialDelay: retry.RetryInitialDelay,
	}, nil
}

// GenerateEmbedding implements Embedder.
func (g *GeminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	// Truncate text if too long (max ~10000 tokens for embedding)
	if len(text) > 40000 {
		text = text[:40000]
	}

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if result == nil || len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}

	return result.Embeddings[0].Values, nil
}

// Complete implements TextBackend. Failed calls are retried with
// exponential backoff.
func (g *GeminiService) Complete(ctx context.Context, messages []BackendMessage, systemPrompt string) (string, error) {
	contents, err := toContents(messages)
	if err != nil {
		return "", err
	}
	cfg := g.generationConfig(systemPrompt)

	var lastErr error
	delay := g.initialDelay

	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
		if err == nil {
			text, textErr := responseText(resp)
			if textErr == nil {
				log.Printf("📊 Gemini response received: %d characters\n", len(text))
				return text, nil
			}
			err = textErr
		}

		lastErr = err

		if attempt == g.maxRetries {
			break
		}

		log.Printf("⚠️ Attempt %d failed: %v. Retrying in %s...\n", attempt, err, delay)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	log.Printf("❌ Gemini API error: %v\n", lastErr)
	return "", fmt.Errorf("failed after %d attempts: %w", g.maxRetries, lastErr)
}

// CompleteStreaming implements TextBackend. Streams are not retried once
// the first chunk has been delivered.
func (g *GeminiService) CompleteStreaming(ctx context.Context, messages []BackendMessage, systemPrompt string, onChunk ChunkHandler) error {
	contents, err := toContents(messages)
	if err != nil {
		return err
	}

	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.modelName, contents, g.generationConfig(systemPrompt)) {
		if err != nil {
			log.Printf("❌ Gemini stream error: %v\n", err)
			return fmt.Errorf("failed to stream text: %w", err)
		}
		if resp == nil {
			continue
		}
		if chunk := resp.Text(); chunk != "" {
			onChunk(chunk, false)
		}
	}

	onChunk("", true)
	return nil
}

func (g *GeminiService) generationConfig(systemPrompt string) *genai.GenerateContentConfig {
	temperature := g.temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 8192,
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	return cfg
}

func toContents(messages []BackendMessage) ([]*genai.Content, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.Role(genai.RoleUser)
		if msg.Role == BackendModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response generated (nil response)")
	}

	text := resp.Text()
	if text == "" {
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
			return "", fmt.Errorf("no text content in response (finish reason: %s)", resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("no text content in response")
	}
	return text, nil
}
