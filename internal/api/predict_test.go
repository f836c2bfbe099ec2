package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	backend "payer-analytics/internal/api"
	"payer-analytics/internal/core"
	"payer-analytics/internal/features"
	"payer-analytics/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveArtifact(t *testing.T, dir string, task core.Task, columns []string, estimator core.Estimator) {
	t.Helper()

	scaler := &core.StandardScaler{}
	rows := make([][]float64, 2)
	rows[0] = make([]float64, len(columns))
	rows[1] = make([]float64, len(columns))
	for i := range columns {
		rows[1][i] = float64(i + 1)
	}
	require.NoError(t, scaler.Fit(rows))

	pipeline := &core.Pipeline{
		Task:         task,
		RunId:        uuid.New(),
		FeatureNames: columns,
		Scaler:       scaler,
		Estimator:    estimator,
		TrainedAt:    time.Now().UTC(),
	}
	require.NoError(t, pipeline.Save(dir+"/"+string(task)+"/"+core.ArtifactFile))
}

func createPredictRouter(t *testing.T) chi.Router {
	t.Helper()

	dir := t.TempDir()
	saveArtifact(t, dir, core.TaskChurn, features.ChurnFeatures, &core.LogisticRegression{Weights: make([]float64, len(features.ChurnFeatures))})
	saveArtifact(t, dir, core.TaskFraud, features.FraudFeatures, &core.ZScoreDetector{Mean: make([]float64, 4), Std: []float64{1, 1, 1, 1}})

	service := backend.NewPredictionService(dir)
	router := chi.NewRouter()
	service.AddRoutes(router)
	return router
}

func postJSON(t *testing.T, router chi.Router, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func floatPtr(v float64) *float64 { return &v }

func churnRequest() api.ChurnPredictRequest {
	return api.ChurnPredictRequest{
		MemberId:     "M001",
		Female:       floatPtr(1),
		ChronicCount: floatPtr(2),
		TotalClaims:  floatPtr(12),
		TotalSpend:   floatPtr(4800),
		HighUtilRisk: floatPtr(1),
		DxVariety:    floatPtr(5),
	}
}

func TestPredictChurn(t *testing.T) {
	router := createPredictRouter(t)

	rec := postJSON(t, router, "/predict/churn", churnRequest())
	require.Equal(t, http.StatusOK, rec.Code, "received response: "+rec.Body.String())

	var response api.ChurnPredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "M001", response.MemberId)
	assert.GreaterOrEqual(t, response.ChurnProbability, 0.0)
	assert.LessOrEqual(t, response.ChurnProbability, 1.0)
	assert.Equal(t, response.ChurnProbability > 0.5, response.Churned)
}

func TestPredictMissingField(t *testing.T) {
	router := createPredictRouter(t)

	req := churnRequest()
	req.TotalSpend = nil

	rec := postJSON(t, router, "/predict/churn", req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "total_spend")
}

func TestPredictFraudScoreRange(t *testing.T) {
	router := createPredictRouter(t)

	rec := postJSON(t, router, "/predict/fraud", api.FraudPredictRequest{
		ClaimId:          "C100",
		MemberId:         "M001",
		PaymentAmount:    floatPtr(90000),
		Inpatient:        floatPtr(1),
		MemberClaimCount: floatPtr(3),
		AmountRatio:      floatPtr(40),
	})
	require.Equal(t, http.StatusOK, rec.Code, "received response: "+rec.Body.String())

	var response api.FraudPredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "C100", response.ClaimId)
	assert.GreaterOrEqual(t, response.AnomalyScore, 0.0)
	assert.Less(t, response.AnomalyScore, 1.0)
}

func TestPredictNoArtifact(t *testing.T) {
	router := createPredictRouter(t)

	// No cost artifact was saved.
	rec := postJSON(t, router, "/predict/cost", api.CostPredictRequest{
		MemberId:         "M001",
		Female:           floatPtr(0),
		ChronicCount:     floatPtr(0),
		InpatientClaims:  floatPtr(0),
		OutpatientClaims: floatPtr(0),
		RxCost:           floatPtr(0),
		DaysSupply:       floatPtr(0),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictUnknownTask(t *testing.T) {
	router := createPredictRouter(t)

	rec := postJSON(t, router, "/predict/readmission", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictMalformedBody(t *testing.T) {
	router := createPredictRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/predict/churn", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
