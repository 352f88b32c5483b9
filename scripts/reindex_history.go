package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/GCYYfun/ai-studio-sub001/internal/config"
	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

func main() {
	log.Println("🚀 Starting history reindex...")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	if !cfg.QdrantEnabled() {
		log.Fatal("❌ QDRANT_URL is not set, nothing to reindex into")
	}

	ctx := context.Background()

	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	store := repositories.NewStore(db)
	if err := store.Initialize(ctx); err != nil {
		log.Fatalf("❌ Failed to prepare database: %v", err)
	}

	// Initialize services
	geminiService, err := services.NewGeminiService(ctx, cfg.Gemini, cfg.Worker)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	qdrantService, err := services.NewQdrantService(cfg.Qdrant, geminiService)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}
	defer qdrantService.Close()

	if err := qdrantService.InitCollection(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize collection: %v", err)
	}

	history := services.NewHistoryService(repositories.NewInterviewRepository(store), qdrantService)

	indexed, failed, err := history.Reindex(ctx)
	if err != nil {
		log.Fatalf("❌ Reindex aborted: %v", err)
	}

	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("📊 REINDEX SUMMARY")
	log.Println(strings.Repeat("=", 60))
	log.Printf("✅ Indexed: %d records", indexed)
	log.Printf("❌ Failed:  %d records", failed)
	log.Printf("📦 Collection: %s", cfg.Qdrant.Collection)
	log.Println(strings.Repeat("=", 60))

	if failed > 0 {
		os.Exit(1)
	}
	log.Println("\n🎉 History reindexed successfully!")
}
