package api

import (
	"encoding/json"
	"log/slog"

	"payer-analytics/internal/database"
	"payer-analytics/pkg/api"
)

func convertModel(model database.Model) api.Model {
	return api.Model{
		Id:           model.Id,
		Task:         model.Task,
		Status:       model.Status,
		ArtifactPath: model.ArtifactPath,
		CreationTime: model.CreationTime,
	}
}

func convertRun(run database.TrainRun) api.TrainRun {
	out := api.TrainRun{
		Id:           run.Id,
		ModelId:      run.ModelId,
		Task:         run.Task,
		Status:       run.Status,
		ArtifactPath: run.ArtifactPath,
		CreationTime: run.CreationTime,
	}

	if len(run.Params) > 0 {
		if err := json.Unmarshal(run.Params, &out.Params); err != nil {
			slog.Error("error parsing stored run params", "run_id", run.Id, "error", err)
		}
	}
	if len(run.Metrics) > 0 {
		if err := json.Unmarshal(run.Metrics, &out.Metrics); err != nil {
			slog.Error("error parsing stored run metrics", "run_id", run.Id, "error", err)
		}
	}
	if run.Error.Valid {
		out.Error = run.Error.String
	}
	if run.CompletionTime.Valid {
		t := run.CompletionTime.Time
		out.CompletionTime = &t
	}

	return out
}
