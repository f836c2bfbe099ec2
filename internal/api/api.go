package api

import (
	"log/slog"
	"net/http"

	"payer-analytics/internal/database"
	"payer-analytics/internal/messaging"
	"payer-analytics/pkg/api"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// BackendService exposes the model registry and experiment tracking endpoints
// and submits training runs to the queue.
type BackendService struct {
	db        *gorm.DB
	publisher messaging.Publisher
}

func NewBackendService(db *gorm.DB, pub messaging.Publisher) *BackendService {
	return &BackendService{db: db, publisher: pub}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/models", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListModels))
		r.Get("/{task}", RestHandler(s.GetModel))
		r.Post("/{task}/train", RestHandler(s.SubmitTraining))
	})
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListRuns))
		r.Get("/{run_id}", RestHandler(s.GetRun))
	})
}

func (s *BackendService) ListModels(r *http.Request) (any, error) {
	var models []database.Model
	if err := s.db.WithContext(r.Context()).Order("task").Find(&models).Error; err != nil {
		slog.Error("error listing models", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving model records")
	}

	out := make([]api.Model, 0, len(models))
	for _, model := range models {
		out = append(out, convertModel(model))
	}
	return out, nil
}

func (s *BackendService) GetModel(r *http.Request) (any, error) {
	task, err := URLParamTask(r)
	if err != nil {
		return nil, err
	}

	model, err := database.GetModel(r.Context(), s.db, string(task))
	if err != nil {
		if database.IsNotFound(err) {
			return nil, CodedErrorf(http.StatusNotFound, "no model registered for task '%s'", task)
		}
		slog.Error("error getting model", "task", task, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving model record")
	}

	return convertModel(*model), nil
}

func (s *BackendService) SubmitTraining(r *http.Request) (any, error) {
	task, err := URLParamTask(r)
	if err != nil {
		return nil, err
	}

	var req api.TrainRequest
	if r.ContentLength != 0 {
		req, err = ParseRequest[api.TrainRequest](r)
		if err != nil {
			return nil, err
		}
	}

	if req.ValidationRatio != nil && (*req.ValidationRatio < 0 || *req.ValidationRatio >= 1) {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "validation_ratio must be in [0, 1)")
	}
	if req.Epochs != nil && *req.Epochs <= 0 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "epochs must be positive")
	}
	if req.LearningRate != nil && *req.LearningRate <= 0 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "learning_rate must be positive")
	}

	ctx := r.Context()

	model, err := database.EnsureModel(ctx, s.db, string(task))
	if err != nil {
		slog.Error("error creating model record", "task", task, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create model record")
	}

	run, err := database.CreateRun(ctx, s.db, model.Id, string(task))
	if err != nil {
		slog.Error("error creating run record", "task", task, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create run record")
	}

	payload := messaging.TrainTaskPayload{
		RunId:           run.Id,
		ModelId:         model.Id,
		Task:            string(task),
		Seed:            req.Seed,
		ValidationRatio: req.ValidationRatio,
		Epochs:          req.Epochs,
		LearningRate:    req.LearningRate,
	}

	if err := s.publisher.PublishTrainTask(ctx, payload); err != nil {
		slog.Error("error publishing train task", "run_id", run.Id, "error", err)
		database.FailRun(ctx, s.db, run.Id, err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to queue training task")
	}

	slog.Info("submitted training run", "task", task, "run_id", run.Id)
	return api.TrainSubmitResponse{Message: "training run submitted", RunId: run.Id, ModelId: model.Id}, nil
}

func (s *BackendService) ListRuns(r *http.Request) (any, error) {
	query, err := ParseRequestQueryParams[api.ListRunsQuery](r)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(r.Context()).Order("creation_time desc")
	if query.Task != "" {
		db = db.Where("task = ?", query.Task)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}

	var runs []database.TrainRun
	if err := db.Find(&runs).Error; err != nil {
		slog.Error("error listing runs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving run records")
	}

	out := make([]api.TrainRun, 0, len(runs))
	for _, run := range runs {
		out = append(out, convertRun(run))
	}
	return out, nil
}

func (s *BackendService) GetRun(r *http.Request) (any, error) {
	runId, err := URLParamUUID(r, "run_id")
	if err != nil {
		return nil, err
	}

	var run database.TrainRun
	if err := s.db.WithContext(r.Context()).First(&run, "id = ?", runId).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, CodedErrorf(http.StatusNotFound, "run not found")
		}
		slog.Error("error getting run", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving run record")
	}

	return convertRun(run), nil
}
