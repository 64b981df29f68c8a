package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"podscribe/internal/api"
	"podscribe/internal/audio"
	"podscribe/internal/config"
	"podscribe/internal/download"
	"podscribe/internal/feed"
	"podscribe/internal/pipeline"
	"podscribe/internal/storage"
	"podscribe/internal/stt"
	"podscribe/internal/worker"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode (default to release mode)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	provider, err := stt.CreateProvider(cfg)
	if err != nil {
		log.Fatalf("Failed to create STT provider: %v", err)
	}
	log.Printf("STT provider initialized: %s", provider.Name())

	for _, dir := range []string{cfg.WorkDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := storage.NewMemoryStore()
	store.StartJanitor(ctx, cfg.TaskTTL, 0)

	feeds := feed.NewClient(nil)
	runner := &pipeline.Pipeline{
		Feed:       feeds,
		Downloader: download.New(cfg.DownloadTimeout),
		Prober:     audio.NewProber(cfg.FFprobeBin),
		Splitter:   audio.NewSplitter(cfg.FFmpegBin, cfg.MaxChunkBytes()),
		Provider:   provider,
		Store:      store,
		WorkDir:    cfg.WorkDir,
		OutputDir:  cfg.OutputDir,
		Options:    stt.Options{Language: cfg.Language, Prompt: cfg.Prompt},
	}

	pool := worker.NewPool(cfg.Workers, cfg.QueueSize)
	pool.Start(context.Background())

	r := gin.Default()

	// Add CORS middleware for browser clients
	r.Use(corsMiddleware())

	// Register routes
	api.NewHandler(feeds, store, pool, runner).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("podscribe running on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Printf("Worker shutdown: %v", err)
	}
}

// corsMiddleware adds CORS headers for browser clients
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
