package model

import (
	"encoding/json"
	"time"
)

// ValidationStatus records which response checks a persisted result passed.
type ValidationStatus string

const (
	ValidationOK             ValidationStatus = "valid"
	ValidationSecurityFailed ValidationStatus = "security_validation_failed"
)

// TierResult is the persisted output of one tier's analysis for one job.
// Immutable once written; re-analysis inserts a new row, never updates.
// (job_id, tier) carries a uniqueness constraint in the store.
type TierResult struct {
	ID           string
	JobID        string
	Tier         TierID
	Payload      json.RawMessage // one of Tier1Analysis / Tier2Analysis / Tier3Analysis
	Model        string
	BatchID      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int
	Validation   ValidationStatus
	CompletedAt  time.Time
}

// Tier1Analysis is the core-extraction schema: facts stated in the posting.
type Tier1Analysis struct {
	JobID            string   `json:"job_id"`
	Skills           []string `json:"skills"`
	Compensation     string   `json:"compensation"`
	SeniorityLevel   string   `json:"seniority_level"`
	RemotePolicy     string   `json:"remote_policy"`
	ApplicationSteps []string `json:"application_steps"`
	Deadline         string   `json:"deadline,omitempty"`
}

// Tier2Analysis adds inferential reasoning: signals read between the lines,
// not facts stated outright.
type Tier2Analysis struct {
	JobID                string   `json:"job_id"`
	StressLevel          string   `json:"stress_level"` // low | moderate | high
	StressIndicators     []string `json:"stress_indicators"`
	RedFlags             []string `json:"red_flags"`
	ImplicitRequirements []string `json:"implicit_requirements"`
}

// Tier3Analysis is the strategic pass: prestige scoring and application
// positioning, grounded in the two prior tiers.
type Tier3Analysis struct {
	JobID               string         `json:"job_id"`
	PrestigeScore       float64        `json:"prestige_score"` // 0..10
	PrestigeFactors     map[string]int `json:"prestige_factors"`
	PositioningStrategy string         `json:"positioning_strategy"`
	CoverLetterAngles   []string       `json:"cover_letter_angles"`
}

// TierBatchOutcome summarizes one analyze_batch call.
type TierBatchOutcome struct {
	Tier         TierID
	BatchID      string
	Analyzed     int
	Failed       int
	PendingRetry int
	InputTokens  int
	OutputTokens int
	Latency      time.Duration
	Truncated    bool // model covered fewer jobs than requested
}
