package api

import (
	"time"

	"github.com/google/uuid"
)

type Model struct {
	Id           uuid.UUID
	Task         string
	Status       string
	ArtifactPath string `json:"ArtifactPath,omitempty"`
	CreationTime time.Time
}

type TrainRun struct {
	Id             uuid.UUID
	ModelId        uuid.UUID
	Task           string
	Status         string
	Params         map[string]any     `json:"Params,omitempty"`
	Metrics        map[string]float64 `json:"Metrics,omitempty"`
	ArtifactPath   string             `json:"ArtifactPath,omitempty"`
	Error          string             `json:"Error,omitempty"`
	CreationTime   time.Time
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`
}

type TrainRequest struct {
	Seed            *int64   `json:"seed,omitempty"`
	ValidationRatio *float64 `json:"validation_ratio,omitempty"`
	Epochs          *int     `json:"epochs,omitempty"`
	LearningRate    *float64 `json:"learning_rate,omitempty"`
}

type TrainSubmitResponse struct {
	Message string
	RunId   uuid.UUID
	ModelId uuid.UUID
}

type ListRunsQuery struct {
	Task   string `schema:"task"`
	Status string `schema:"status"`
	Limit  int    `schema:"limit"`
}

// Prediction requests use pointer fields so that an absent field can be
// distinguished from a zero value and rejected with a validation error.

type ChurnPredictRequest struct {
	MemberId     string   `json:"member_id"`
	Female       *float64 `json:"female"`
	ChronicCount *float64 `json:"chronic_count"`
	TotalClaims  *float64 `json:"total_claims"`
	TotalSpend   *float64 `json:"total_spend"`
	HighUtilRisk *float64 `json:"high_util_risk"`
	DxVariety    *float64 `json:"dx_variety"`
}

type ChurnPredictResponse struct {
	MemberId         string  `json:"member_id"`
	ChurnProbability float64 `json:"churn_probability"`
	Churned          bool    `json:"churned"`
}

type CostPredictRequest struct {
	MemberId         string   `json:"member_id"`
	Female           *float64 `json:"female"`
	ChronicCount     *float64 `json:"chronic_count"`
	InpatientClaims  *float64 `json:"inpatient_claims"`
	OutpatientClaims *float64 `json:"outpatient_claims"`
	RxCost           *float64 `json:"rx_cost"`
	DaysSupply       *float64 `json:"days_supply"`
}

type CostPredictResponse struct {
	MemberId      string  `json:"member_id"`
	PredictedCost float64 `json:"predicted_cost"`
}

type RiskPredictRequest struct {
	MemberId     string   `json:"member_id"`
	Female       *float64 `json:"female"`
	ChronicCount *float64 `json:"chronic_count"`
	DxVariety    *float64 `json:"dx_variety"`
	TotalClaims  *float64 `json:"total_claims"`
	RxCost       *float64 `json:"rx_cost"`
}

type RiskPredictResponse struct {
	MemberId  string  `json:"member_id"`
	RiskScore float64 `json:"risk_score"`
	HighRisk  bool    `json:"high_risk"`
}

type FraudPredictRequest struct {
	ClaimId          string   `json:"claim_id"`
	MemberId         string   `json:"member_id"`
	PaymentAmount    *float64 `json:"payment_amount"`
	Inpatient        *float64 `json:"inpatient"`
	MemberClaimCount *float64 `json:"member_claim_count"`
	AmountRatio      *float64 `json:"amount_ratio"`
}

type FraudPredictResponse struct {
	ClaimId      string  `json:"claim_id"`
	MemberId     string  `json:"member_id"`
	AnomalyScore float64 `json:"anomaly_score"`
}
