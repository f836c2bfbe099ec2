package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"payer-analytics/cmd"
	backend "payer-analytics/internal/api"
	"payer-analytics/internal/config"
	"payer-analytics/internal/database"
	"payer-analytics/internal/messaging"
	"payer-analytics/internal/pipeline"
	"payer-analytics/internal/worker"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"
)

// Config for the all-in-one server: API, prediction service, and an embedded
// training worker over an in-memory queue, all backed by local disk.
type Config struct {
	Root        string `env:"ROOT" envDefault:"./payer-analytics"`
	Port        int    `env:"PORT" envDefault:"8001"`
	ConfigPath  string `env:"CONFIG_PATH" envDefault:""`
	DatabaseURL string `env:"DATABASE_URL" envDefault:""`
}

func createDatabase(cfg Config) *gorm.DB {
	url := cfg.DatabaseURL
	if url == "" {
		url = filepath.Join(cfg.Root, "db", "payer-analytics.db")
	}

	db, err := database.NewDatabase(url)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return db
}

// createQueue builds the in-memory queue and requeues any runs that were
// still queued when the process last stopped.
func createQueue(db *gorm.DB) *messaging.InMemoryQueue {
	var runs []database.TrainRun
	if err := db.Where("status = ?", database.RunQueued).Find(&runs).Error; err != nil {
		log.Fatalf("Failed to fetch queued runs from database: %v", err)
	}

	queue := messaging.NewInMemoryQueue()

	for _, run := range runs {
		if err := queue.PublishTrainTask(context.Background(), messaging.TrainTaskPayload{
			RunId:   run.Id,
			ModelId: run.ModelId,
			Task:    run.Task,
		}); err != nil {
			log.Fatalf("Failed to requeue train task: %v", err)
		}
	}

	return queue
}

func createServer(db *gorm.DB, queue messaging.Publisher, artifactDir string, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := backend.NewBackendService(db, queue)
	predictHandler := backend.NewPredictionService(artifactDir)

	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
		predictHandler.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}

	pipeCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		log.Fatalf("error loading pipeline config: %v", err)
	}
	if cfg.ConfigPath == "" {
		// Keep all generated data under the server root by default.
		pipeCfg.Data.RawDir = filepath.Join(cfg.Root, "data", "raw")
		pipeCfg.Data.InterimDir = filepath.Join(cfg.Root, "data", "interim")
		pipeCfg.Data.ProcessedDir = filepath.Join(cfg.Root, "data", "processed")
		pipeCfg.Data.ArtifactDir = filepath.Join(cfg.Root, "artifacts")
	}

	slog.Info("starting server", "root", cfg.Root, "port", cfg.Port, "artifact_dir", pipeCfg.Data.ArtifactDir)

	db := createDatabase(cfg)

	queue := createQueue(db)

	runner := &pipeline.Runner{DB: db, Cfg: pipeCfg}
	proc := worker.NewTaskProcessor(runner, queue)

	server := createServer(db, queue, pipeCfg.Data.ArtifactDir, cfg.Port)

	slog.Info("starting embedded worker")
	go proc.Start()

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down worker")
		proc.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	slog.Info("server stopped")
}
