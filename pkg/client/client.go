// Package client is a Go client for the payer analytics REST API.
package client

import (
	"context"
	"fmt"

	"payer-analytics/pkg/api"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

type Client struct {
	client *resty.Client
}

func New(baseURL string) *Client {
	return &Client{
		client: resty.New().SetBaseURL(baseURL),
	}
}

func checkResponse(res *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if res.IsError() {
		return fmt.Errorf("request failed with status %d: %s", res.StatusCode(), res.String())
	}
	return nil
}

func (c *Client) Health(ctx context.Context) error {
	res, err := c.client.R().SetContext(ctx).Get("/api/v1/health")
	return checkResponse(res, err)
}

func (c *Client) ListModels(ctx context.Context) ([]api.Model, error) {
	var models []api.Model
	res, err := c.client.R().SetContext(ctx).SetResult(&models).Get("/api/v1/models")
	if err := checkResponse(res, err); err != nil {
		return nil, err
	}
	return models, nil
}

func (c *Client) GetModel(ctx context.Context, task string) (api.Model, error) {
	var model api.Model
	res, err := c.client.R().SetContext(ctx).SetResult(&model).
		Get(fmt.Sprintf("/api/v1/models/%s", task))
	if err := checkResponse(res, err); err != nil {
		return api.Model{}, err
	}
	return model, nil
}

func (c *Client) SubmitTraining(ctx context.Context, task string, req api.TrainRequest) (api.TrainSubmitResponse, error) {
	var out api.TrainSubmitResponse
	res, err := c.client.R().SetContext(ctx).SetBody(req).SetResult(&out).
		Post(fmt.Sprintf("/api/v1/models/%s/train", task))
	if err := checkResponse(res, err); err != nil {
		return api.TrainSubmitResponse{}, err
	}
	return out, nil
}

func (c *Client) ListRuns(ctx context.Context, query api.ListRunsQuery) ([]api.TrainRun, error) {
	params := map[string]string{}
	if query.Task != "" {
		params["task"] = query.Task
	}
	if query.Status != "" {
		params["status"] = query.Status
	}
	if query.Limit > 0 {
		params["limit"] = fmt.Sprint(query.Limit)
	}

	var runs []api.TrainRun
	res, err := c.client.R().SetContext(ctx).SetQueryParams(params).SetResult(&runs).
		Get("/api/v1/runs")
	if err := checkResponse(res, err); err != nil {
		return nil, err
	}
	return runs, nil
}

func (c *Client) GetRun(ctx context.Context, runId uuid.UUID) (api.TrainRun, error) {
	var run api.TrainRun
	res, err := c.client.R().SetContext(ctx).SetResult(&run).
		Get(fmt.Sprintf("/api/v1/runs/%s", runId))
	if err := checkResponse(res, err); err != nil {
		return api.TrainRun{}, err
	}
	return run, nil
}

func (c *Client) PredictChurn(ctx context.Context, req api.ChurnPredictRequest) (api.ChurnPredictResponse, error) {
	var out api.ChurnPredictResponse
	res, err := c.client.R().SetContext(ctx).SetBody(req).SetResult(&out).
		Post("/api/v1/predict/churn")
	if err := checkResponse(res, err); err != nil {
		return api.ChurnPredictResponse{}, err
	}
	return out, nil
}

func (c *Client) PredictCost(ctx context.Context, req api.CostPredictRequest) (api.CostPredictResponse, error) {
	var out api.CostPredictResponse
	res, err := c.client.R().SetContext(ctx).SetBody(req).SetResult(&out).
		Post("/api/v1/predict/cost")
	if err := checkResponse(res, err); err != nil {
		return api.CostPredictResponse{}, err
	}
	return out, nil
}

func (c *Client) PredictRisk(ctx context.Context, req api.RiskPredictRequest) (api.RiskPredictResponse, error) {
	var out api.RiskPredictResponse
	res, err := c.client.R().SetContext(ctx).SetBody(req).SetResult(&out).
		Post("/api/v1/predict/risk")
	if err := checkResponse(res, err); err != nil {
		return api.RiskPredictResponse{}, err
	}
	return out, nil
}

func (c *Client) PredictFraud(ctx context.Context, req api.FraudPredictRequest) (api.FraudPredictResponse, error) {
	var out api.FraudPredictResponse
	res, err := c.client.R().SetContext(ctx).SetBody(req).SetResult(&out).
		Post("/api/v1/predict/fraud")
	if err := checkResponse(res, err); err != nil {
		return api.FraudPredictResponse{}, err
	}
	return out, nil
}
