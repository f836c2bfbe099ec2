package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"payer-analytics/cmd"
	"payer-analytics/internal/config"
	"payer-analytics/internal/database"
	"payer-analytics/internal/messaging"
	"payer-analytics/internal/pipeline"
	"payer-analytics/internal/storage"
	"payer-analytics/internal/worker"

	"github.com/caarlos0/env/v11"
)

type WorkerConfig struct {
	DatabaseURL       string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL       string `env:"RABBITMQ_URL,notEmpty,required"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION"`
	ConfigPath        string `env:"CONFIG_PATH" envDefault:""`
}

func main() {
	log.Println("Starting worker process...")

	cmd.LoadEnvFile()

	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	pipeCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load pipeline config: %v", err)
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

	for _, bucket := range []string{storage.DatasetBucket, storage.ModelBucket} {
		if err := store.CreateBucket(context.Background(), bucket); err != nil {
			log.Fatalf("Failed to create bucket %s: %v", bucket, err)
		}
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	runner := &pipeline.Runner{DB: db, Cfg: pipeCfg, Store: store}
	proc := worker.NewTaskProcessor(runner, receiver)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutdown signal received, stopping worker")
		proc.Stop()
	}()

	slog.Info("worker started, waiting for tasks")
	proc.Start()

	slog.Info("worker stopped")
}
