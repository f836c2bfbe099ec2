package integrationtests

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	backendapi "payer-analytics/internal/api"
	"payer-analytics/internal/config"
	"payer-analytics/internal/core"
	"payer-analytics/internal/database"
	"payer-analytics/internal/messaging"
	"payer-analytics/internal/pipeline"
	"payer-analytics/internal/storage"
	"payer-analytics/internal/worker"
	"payer-analytics/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForRun(t *testing.T, router http.Handler, runId string, timeout time.Duration) api.TrainRun {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		var run api.TrainRun
		require.NoError(t, httpRequest(router, http.MethodGet, "/runs/"+runId, nil, &run))

		switch run.Status {
		case database.RunCompleted, database.RunFailed:
			return run
		}

		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for run %s, last status %s", runId, run.Status)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// TestTrainingWorkflow drives the full loop: ingest publishes interim tables
// to the object store, a training request goes through the API onto the
// queue, the worker pulls the data, trains, and publishes the artifact, and
// the prediction endpoint serves the result.
func TestTrainingWorkflow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	minioURL := setupMinioContainer(t, ctx)
	store, err := storage.NewS3Provider(storage.S3ClientConfig{
		Endpoint:        minioURL,
		Region:          "us-east-1",
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	})
	require.NoError(t, err)
	require.NoError(t, store.CreateBucket(ctx, storage.DatasetBucket))
	require.NoError(t, store.CreateBucket(ctx, storage.ModelBucket))

	db := createDB(t)

	root := t.TempDir()
	cfg := config.Default()
	cfg.Data.RawDir = filepath.Join(root, "raw")
	cfg.Data.InterimDir = filepath.Join(root, "interim")
	cfg.Data.ProcessedDir = filepath.Join(root, "processed")
	cfg.Data.ArtifactDir = filepath.Join(root, "artifacts")
	writeRawDataset(t, cfg.Data.RawDir)

	runner := &pipeline.Runner{DB: db, Cfg: cfg, Store: store}
	require.NoError(t, runner.Ingest(ctx))

	queue := messaging.NewInMemoryQueue()

	backend := backendapi.NewBackendService(db, queue)
	router := chi.NewRouter()
	backend.AddRoutes(router)

	proc := worker.NewTaskProcessor(runner, queue)
	go proc.Start()
	defer proc.Stop()

	epochs := 150
	var submitted api.TrainSubmitResponse
	require.NoError(t, httpRequest(router, http.MethodPost, "/models/churn/train",
		api.TrainRequest{Epochs: &epochs}, &submitted))

	run := waitForRun(t, router, submitted.RunId.String(), time.Minute)
	require.Equal(t, database.RunCompleted, run.Status, "run error: %s", run.Error)
	assert.NotNil(t, run.CompletionTime)
	assert.Equal(t, float64(150), run.Params["epochs"])

	auc, ok := run.Metrics["auc"]
	require.True(t, ok, "completed churn run must report auc")
	assert.GreaterOrEqual(t, auc, 0.0)
	assert.LessOrEqual(t, auc, 1.0)

	var model api.Model
	require.NoError(t, httpRequest(router, http.MethodGet, "/models/churn", nil, &model))
	assert.Equal(t, database.ModelTrained, model.Status)

	// Both artifact keys were published for the serving tier.
	_, err = store.GetObject(ctx, storage.ModelBucket, run.ArtifactPath)
	require.NoError(t, err)
	_, err = store.GetObject(ctx, storage.ModelBucket, "churn/"+core.ArtifactFile)
	require.NoError(t, err)

	// The worker's local artifact serves predictions directly.
	predictions := backendapi.NewPredictionService(cfg.Data.ArtifactDir)
	predictRouter := chi.NewRouter()
	predictions.AddRoutes(predictRouter)

	one, twelve := 1.0, 12.0
	var response api.ChurnPredictResponse
	require.NoError(t, httpRequest(predictRouter, http.MethodPost, "/predict/churn", api.ChurnPredictRequest{
		MemberId:     "M001",
		Female:       &one,
		ChronicCount: &one,
		TotalClaims:  &twelve,
		TotalSpend:   &twelve,
		HighUtilRisk: &one,
		DxVariety:    &one,
	}, &response))

	assert.Equal(t, "M001", response.MemberId)
	assert.GreaterOrEqual(t, response.ChurnProbability, 0.0)
	assert.LessOrEqual(t, response.ChurnProbability, 1.0)
}
