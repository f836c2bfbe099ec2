package api

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"payer-analytics/internal/core"
	"payer-analytics/pkg/api"

	"github.com/go-chi/chi/v5"
)

// PredictionService serves online predictions from the trained artifacts. An
// artifact is reloaded when its file changes, so a retrain is picked up
// without restarting the service.
type PredictionService struct {
	artifactDir string

	mu     sync.Mutex
	loaded map[core.Task]*loadedPipeline
}

type loadedPipeline struct {
	pipeline *core.Pipeline
	modTime  time.Time
}

func NewPredictionService(artifactDir string) *PredictionService {
	return &PredictionService{
		artifactDir: artifactDir,
		loaded:      make(map[core.Task]*loadedPipeline),
	}
}

func (s *PredictionService) AddRoutes(r chi.Router) {
	r.Route("/predict", func(r chi.Router) {
		r.Post("/churn", RestHandler(s.PredictChurn))
		r.Post("/cost", RestHandler(s.PredictCost))
		r.Post("/risk", RestHandler(s.PredictRisk))
		r.Post("/fraud", RestHandler(s.PredictFraud))
	})
}

func (s *PredictionService) pipeline(task core.Task) (*core.Pipeline, error) {
	path := filepath.Join(s.artifactDir, string(task), core.ArtifactFile)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, CodedErrorf(http.StatusNotFound, "no trained artifact for task '%s'", task)
		}
		slog.Error("error checking artifact", "task", task, "path", path, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error loading artifact for task '%s'", task)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.loaded[task]; ok && cached.modTime.Equal(info.ModTime()) {
		return cached.pipeline, nil
	}

	pipeline, err := core.LoadPipeline(path)
	if err != nil {
		var loadErr *core.ArtifactLoadError
		if errors.As(err, &loadErr) {
			slog.Error("artifact is unreadable", "task", task, "path", path, "error", err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "error loading artifact for task '%s'", task)
	}

	s.loaded[task] = &loadedPipeline{pipeline: pipeline, modTime: info.ModTime()}
	slog.Info("artifact loaded", "task", task, "run_id", pipeline.RunId, "trained_at", pipeline.TrainedAt)
	return pipeline, nil
}

// field pairs a request field's json name with its (possibly absent) value.
type field struct {
	name  string
	value *float64
}

// score validates that every request field is present, arranges them in the
// pipeline's feature order, and runs the estimator.
func (s *PredictionService) score(task core.Task, fields []field) (float64, error) {
	values := make(map[string]float64, len(fields))
	for _, f := range fields {
		if f.value == nil {
			return 0, CodedErrorf(http.StatusUnprocessableEntity, "missing required field: %s", f.name)
		}
		values[f.name] = *f.value
	}

	pipeline, err := s.pipeline(task)
	if err != nil {
		return 0, err
	}

	features := make([]float64, len(pipeline.FeatureNames))
	for i, name := range pipeline.FeatureNames {
		value, ok := values[name]
		if !ok {
			slog.Error("artifact feature not present in request schema", "task", task, "feature", name)
			return 0, CodedErrorf(http.StatusInternalServerError, "artifact for task '%s' is incompatible with the request schema", task)
		}
		features[i] = value
	}

	prediction, err := pipeline.Predict(features)
	if err != nil {
		slog.Error("error scoring request", "task", task, "error", err)
		return 0, CodedErrorf(http.StatusInternalServerError, "error scoring request for task '%s'", task)
	}
	return prediction, nil
}

func (s *PredictionService) PredictChurn(r *http.Request) (any, error) {
	req, err := ParseRequest[api.ChurnPredictRequest](r)
	if err != nil {
		return nil, err
	}

	probability, err := s.score(core.TaskChurn, []field{
		{"female", req.Female},
		{"chronic_count", req.ChronicCount},
		{"total_claims", req.TotalClaims},
		{"total_spend", req.TotalSpend},
		{"high_util_risk", req.HighUtilRisk},
		{"dx_variety", req.DxVariety},
	})
	if err != nil {
		return nil, err
	}

	return api.ChurnPredictResponse{
		MemberId:         req.MemberId,
		ChurnProbability: probability,
		Churned:          probability > 0.5,
	}, nil
}

func (s *PredictionService) PredictCost(r *http.Request) (any, error) {
	req, err := ParseRequest[api.CostPredictRequest](r)
	if err != nil {
		return nil, err
	}

	predicted, err := s.score(core.TaskCost, []field{
		{"female", req.Female},
		{"chronic_count", req.ChronicCount},
		{"inpatient_claims", req.InpatientClaims},
		{"outpatient_claims", req.OutpatientClaims},
		{"rx_cost", req.RxCost},
		{"days_supply", req.DaysSupply},
	})
	if err != nil {
		return nil, err
	}

	return api.CostPredictResponse{
		MemberId:      req.MemberId,
		PredictedCost: predicted,
	}, nil
}

func (s *PredictionService) PredictRisk(r *http.Request) (any, error) {
	req, err := ParseRequest[api.RiskPredictRequest](r)
	if err != nil {
		return nil, err
	}

	score, err := s.score(core.TaskRisk, []field{
		{"female", req.Female},
		{"chronic_count", req.ChronicCount},
		{"dx_variety", req.DxVariety},
		{"total_claims", req.TotalClaims},
		{"rx_cost", req.RxCost},
	})
	if err != nil {
		return nil, err
	}

	return api.RiskPredictResponse{
		MemberId:  req.MemberId,
		RiskScore: score,
		HighRisk:  score > 0.5,
	}, nil
}

func (s *PredictionService) PredictFraud(r *http.Request) (any, error) {
	req, err := ParseRequest[api.FraudPredictRequest](r)
	if err != nil {
		return nil, err
	}

	score, err := s.score(core.TaskFraud, []field{
		{"payment_amount", req.PaymentAmount},
		{"inpatient", req.Inpatient},
		{"member_claim_count", req.MemberClaimCount},
		{"amount_ratio", req.AmountRatio},
	})
	if err != nil {
		return nil, err
	}

	return api.FraudPredictResponse{
		ClaimId:      req.ClaimId,
		MemberId:     req.MemberId,
		AnomalyScore: score,
	}, nil
}
