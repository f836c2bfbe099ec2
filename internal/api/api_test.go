package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	backend "payer-analytics/internal/api"
	"payer-analytics/internal/database"
	"payer-analytics/internal/messaging"
	"payer-analytics/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

func createRouter(db *gorm.DB, queue messaging.Publisher) chi.Router {
	service := backend.NewBackendService(db, queue)
	router := chi.NewRouter()
	service.AddRoutes(router)
	return router
}

func TestHealth(t *testing.T) {
	router := createRouter(createDB(t), messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListModels(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	db := createDB(t,
		&database.Model{Id: id1, Task: "churn", Status: database.ModelTrained, CreationTime: time.Now()},
		&database.Model{Id: id2, Task: "cost", Status: database.ModelTraining, CreationTime: time.Now()},
	)
	router := createRouter(db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var response []api.Model
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response, 2)
	assert.Equal(t, id1, response[0].Id)
	assert.Equal(t, "churn", response[0].Task)
	assert.Equal(t, database.ModelTrained, response[0].Status)
	assert.Equal(t, id2, response[1].Id)
}

func TestGetModel(t *testing.T) {
	modelId := uuid.New()
	db := createDB(t,
		&database.Model{Id: modelId, Task: "risk", Status: database.ModelTrained, CreationTime: time.Now()},
	)
	router := createRouter(db, messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/models/risk", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var response api.Model
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, modelId, response.Id)
	assert.Equal(t, "risk", response.Task)
}

func TestGetModelUnknownTask(t *testing.T) {
	router := createRouter(createDB(t), messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodGet, "/models/readmission", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitTraining(t *testing.T) {
	db := createDB(t)
	queue := messaging.NewInMemoryQueue()
	router := createRouter(db, queue)

	epochs := 25
	body, err := json.Marshal(api.TrainRequest{Epochs: &epochs})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/models/churn/train", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "received response: "+rec.Body.String())
	var response api.TrainSubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotEqual(t, uuid.Nil, response.RunId)
	assert.NotEqual(t, uuid.Nil, response.ModelId)

	// The run is recorded as queued and the task is on the queue.
	var run database.TrainRun
	require.NoError(t, db.First(&run, "id = ?", response.RunId).Error)
	assert.Equal(t, database.RunQueued, run.Status)
	assert.Equal(t, "churn", run.Task)

	select {
	case task := <-queue.Tasks():
		assert.Equal(t, messaging.TrainingQueue, task.Type())
		var payload messaging.TrainTaskPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &payload))
		assert.Equal(t, response.RunId, payload.RunId)
		require.NotNil(t, payload.Epochs)
		assert.Equal(t, 25, *payload.Epochs)
	default:
		t.Fatal("expected a task on the queue")
	}
}

func TestSubmitTrainingEmptyBody(t *testing.T) {
	router := createRouter(createDB(t), messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodPost, "/models/fraud/train", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "received response: "+rec.Body.String())
}

func TestSubmitTrainingInvalidParams(t *testing.T) {
	router := createRouter(createDB(t), messaging.NewInMemoryQueue())

	ratio := 1.5
	body, err := json.Marshal(api.TrainRequest{ValidationRatio: &ratio})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/models/churn/train", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_ratio")
}

func TestSubmitTrainingUnknownTask(t *testing.T) {
	router := createRouter(createDB(t), messaging.NewInMemoryQueue())

	req := httptest.NewRequest(http.MethodPost, "/models/readmission/train", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAndGetRuns(t *testing.T) {
	modelId, runId := uuid.New(), uuid.New()
	db := createDB(t,
		&database.Model{Id: modelId, Task: "churn", Status: database.ModelTrained, CreationTime: time.Now()},
		&database.TrainRun{
			Id: runId, ModelId: modelId, Task: "churn", Status: database.RunCompleted,
			Params:       []byte(`{"epochs":200}`),
			Metrics:      []byte(`{"auc":0.91}`),
			CreationTime: time.Now(),
		},
		&database.TrainRun{
			Id: uuid.New(), ModelId: modelId, Task: "churn", Status: database.RunFailed,
			CreationTime: time.Now().Add(-time.Hour),
		},
	)
	router := createRouter(db, messaging.NewInMemoryQueue())

	t.Run("ListAll", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/runs", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var runs []api.TrainRun
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
		assert.Len(t, runs, 2)
	})

	t.Run("FilterByStatus", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/runs?status="+database.RunCompleted+"&limit=5", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var runs []api.TrainRun
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, runId, runs[0].Id)
		assert.Equal(t, 0.91, runs[0].Metrics["auc"])
	})

	t.Run("GetRun", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/runs/"+runId.String(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var run api.TrainRun
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
		assert.Equal(t, runId, run.Id)
		assert.Equal(t, float64(200), run.Params["epochs"])
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/runs/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
