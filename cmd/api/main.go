package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/GCYYfun/ai-studio-sub001/internal/config"
	"github.com/GCYYfun/ai-studio-sub001/internal/handlers"
	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
	"github.com/GCYYfun/ai-studio-sub001/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Println("✅ Config loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	store := repositories.NewStore(db)
	if err := store.Initialize(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize store: %v", err)
	}

	// Initialize repositories
	fileRepo := repositories.NewFileRepository(store)
	analysisRepo := repositories.NewAnalysisRepository(store)
	interviewRepo := repositories.NewInterviewRepository(store)
	batchRepo := repositories.NewBatchRepository(store)
	log.Println("✅ Repositories initialized successfully")

	// Initialize Gemini AI
	geminiService, err := services.NewGeminiService(ctx, cfg.Gemini, cfg.Worker)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini AI: %v", err)
	}
	log.Println("✅ Gemini AI initialized successfully")

	evaluator, err := services.NewAgent(services.AgentEvaluator, geminiService)
	if err != nil {
		log.Fatalf("❌ Failed to initialize evaluator agent: %v", err)
	}
	prompts := services.NewPromptBuilder()

	interviewer, err := services.NewInterviewerAgent(geminiService, prompts)
	if err != nil {
		log.Fatalf("❌ Failed to initialize interviewer agent: %v", err)
	}
	candidate, err := services.NewCandidateAgent(geminiService, prompts)
	if err != nil {
		log.Fatalf("❌ Failed to initialize candidate agent: %v", err)
	}

	// Initialize Qdrant when configured
	var index services.SimilarityIndex
	if cfg.QdrantEnabled() {
		qdrantService, err := services.NewQdrantService(cfg.Qdrant, geminiService)
		if err != nil {
			log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
		}
		defer qdrantService.Close()

		if err := qdrantService.InitCollection(ctx); err != nil {
			log.Fatalf("❌ Failed to initialize Qdrant collection: %v", err)
		}
		index = qdrantService
		log.Println("✅ Qdrant initialized successfully")
	} else {
		log.Println("⚠️  QDRANT_URL not set, similar-candidate search disabled")
	}

	// Initialize services
	storageService := services.NewStorageService(cfg.Storage.UploadPath)
	if err := storageService.EnsureUploadDir(); err != nil {
		log.Fatalf("❌ Failed to create upload directory: %v", err)
	}

	fileManager := services.NewFileManager(fileRepo, storageService, services.NewPDFParser(), cfg.Storage.MaxFileSize)
	historyService := services.NewHistoryService(interviewRepo, index)
	if err := historyService.Initialize(ctx); err != nil {
		log.Fatalf("❌ Failed to load history: %v", err)
	}
	batchService := services.NewBatchService(evaluator, prompts, fileManager, analysisRepo, batchRepo, services.NewTranscriptParsers())
	log.Println("✅ Services initialized successfully")

	// Initialize worker
	worker := services.NewWorker(
		analysisRepo,
		historyService,
		evaluator,
		prompts,
		cfg.Worker.Concurrency,
	)
	worker.Start(ctx)

	// Initialize Handlers
	routes := &handlers.Handlers{
		Upload:   handlers.NewUploadHandler(fileManager),
		Evaluate: handlers.NewEvaluationHandler(worker),
		Result:   handlers.NewResultHandler(worker),
		Batch:    handlers.NewBatchHandler(ctx, batchService, cfg.Batch),
		History:  handlers.NewHistoryHandler(historyService, worker),
		Sim:      handlers.NewSimHandler(ctx, interviewer, candidate),
	}
	log.Println("✅ Handlers initialized")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Interview Evaluation API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		BodyLimit:    int(cfg.Storage.MaxFileSize) + 1<<20,
		ErrorHandler: handlers.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := app.Group("/api/v1")
	routes.RegisterRoutes(api)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		endpoints := make([]string, 0, len(handlers.Endpoints))
		for _, e := range handlers.Endpoints {
			endpoints = append(endpoints, prefixPath(e, "/api/v1"))
		}
		return c.JSON(fiber.Map{
			"message":   "Interview Evaluation API",
			"version":   "1.0.0",
			"endpoints": endpoints,
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		batchService.CancelBatch()
		worker.Stop()
		cancel()
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)
	log.Printf("📖 API Documentation: http://localhost%s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// prefixPath turns "GET /health" into "GET /api/v1/health".
func prefixPath(endpoint, prefix string) string {
	method, path, _ := strings.Cut(endpoint, " ")
	return method + " " + prefix + path
}
