package main

import (
	"context"
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
	"payer-analytics/internal/database"
	"payer-analytics/internal/messaging"
	"payer-analytics/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// APIConfig for the standalone API tier: serves the registry, tracking, and
// prediction endpoints, and queues training work for separate workers.
type APIConfig struct {
	DatabaseURL       string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL       string `env:"RABBITMQ_URL,notEmpty,required"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION"`
	ArtifactDir       string `env:"ARTIFACT_DIR" envDefault:"./artifacts"`
	ArtifactSyncSecs  int    `env:"ARTIFACT_SYNC_SECONDS" envDefault:"60"`
	APIPort           string `env:"API_PORT" envDefault:"8001"`
}

// syncArtifacts mirrors the models bucket to the local artifact directory so
// the prediction service picks up freshly trained artifacts.
func syncArtifacts(ctx context.Context, store storage.Provider, dir string) {
	objects, err := store.ListObjects(ctx, storage.ModelBucket, "")
	if err != nil {
		slog.Warn("failed to list model artifacts", "error", err)
		return
	}

	for _, obj := range objects {
		local := filepath.Join(dir, filepath.FromSlash(obj.Name))
		if err := store.DownloadObject(ctx, storage.ModelBucket, obj.Name, local); err != nil {
			slog.Warn("failed to download artifact", "key", obj.Name, "error", err)
		}
	}
}

func main() {
	log.Println("Starting API server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	store, err := storage.NewS3Provider(storage.S3ClientConfig{
		Endpoint:        cfg.S3EndpointURL,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	syncCtx, stopSync := context.WithCancel(context.Background())
	defer stopSync()

	syncArtifacts(syncCtx, store, cfg.ArtifactDir)
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.ArtifactSyncSecs) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				syncArtifacts(syncCtx, store, cfg.ArtifactDir)
			case <-syncCtx.Done():
				return
			}
		}
	}()

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
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := backend.NewBackendService(db, publisher)
	predictHandler := backend.NewPredictionService(cfg.ArtifactDir)

	r.Route("/api/v1", func(r chi.Router) {
		apiHandler.AddRoutes(r)
		predictHandler.AddRoutes(r)
	})

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
