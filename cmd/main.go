package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/quiby-ai/review-compare/config"
	"github.com/quiby-ai/review-compare/internal/handler"
	"github.com/quiby-ai/review-compare/internal/llm"
	"github.com/quiby-ai/review-compare/internal/scraper"
	"github.com/quiby-ai/review-compare/internal/service"
	"github.com/quiby-ai/review-compare/internal/types"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	llmClient, err := llm.NewGeminiClient(context.Background(), cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		log.Fatalf("Failed to initialize Gemini client: %v", err)
	}

	connectors := map[types.Source]scraper.Connector{
		types.SourceGooglePlay: scraper.NewGooglePlay(scraper.Options{
			Language: cfg.Scraper.Language,
			Country:  cfg.Scraper.Country,
			MaxCount: cfg.Scraper.GooglePlayCount,
			Timeout:  cfg.Scraper.FetchTimeout,
		}),
		types.SourceAppStore: scraper.NewAppStore(scraper.Options{
			Language: cfg.Scraper.Language,
			Country:  cfg.Scraper.Country,
			MaxCount: cfg.Scraper.AppStoreCount,
			Timeout:  cfg.Scraper.FetchTimeout,
		}),
	}

	limiter := service.NewRateLimiter(cfg.Analysis.MaxModelCalls, cfg.Analysis.RateLimitWindow)
	cache := service.NewClusterCache()

	clusterer := service.NewClusterService(llmClient, limiter, cache)
	summarizer := service.NewAppSummarizer(connectors, clusterer)
	synthesis := service.NewSynthesisService(llmClient, limiter)
	pipeline := service.NewPipeline(summarizer, synthesis, cfg.Analysis.PipelineTimeout)

	analyzeHandler := handler.NewAnalyzeHandler(pipeline)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Post("/analyze", analyzeHandler.HandleAnalyze)
	router.Get("/healthz", analyzeHandler.HandleHealthCheck)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Starting competitive analysis service on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
