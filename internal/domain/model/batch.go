package model

import "time"

// TokenBudget is the estimator's answer for one prospective batch.
type TokenBudget struct {
	MaxOutputTokens       int
	PerJobEstimate        int
	SafetyMarginApplied   float64
	RecommendSmallerBatch bool
}

// ModelChoice is the selector's answer, with the reasoning surfaced so
// operators can see why a model was picked.
type ModelChoice struct {
	ModelID          string
	Reason           string
	Confidence       float64
	EstimatedQuality float64
}

// BatchAdvice is the advisor's partitioning recommendation.
type BatchAdvice struct {
	OptimalBatchSize   int
	BatchesNeeded      int
	EstimatedTotalTime time.Duration
	TokenEfficiency    float64 // useful output tokens / budgeted tokens
	Reason             string
}

// BatchAllocation is the ephemeral per-call plan assembled just before an LLM
// request. Never persisted; discarded once the call returns.
type BatchAllocation struct {
	BatchID         string
	Tier            TierID
	JobCount        int
	MaxOutputTokens int
	ModelID         string
	EstCostMicro    int64
	SecurityToken   string
	IssuedAt        time.Time
}

// ModelSpec describes a catalog entry the selector and estimator consult.
type ModelSpec struct {
	ID                    string
	Quality               float64 // 0..1 relative capability score
	OutputCeiling         int
	InputPricePerKMicros  int64
	OutputPricePerKMicros int64
}
