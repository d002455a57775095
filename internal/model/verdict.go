package model

import "time"

// Decision is the three-way verdict the Decision Engine selects.
type Decision string

const (
	DecisionApproved  Decision = "approved"
	DecisionEscalated Decision = "escalated"
	DecisionDenied    Decision = "denied"
)

// WeightVector mirrors config.Weights without importing the config package,
// so model stays free of a dependency on process configuration.
type WeightVector struct {
	Infra      float64 `json:"infra"`
	Policy     float64 `json:"policy"`
	Historical float64 `json:"historical"`
	Cost       float64 `json:"cost"`
}

// ThresholdPair mirrors config.Thresholds for the same reason.
type ThresholdPair struct {
	AutoApprove float64 `json:"auto_approve"`
	HumanReview float64 `json:"human_review"`
}

// GovernanceVerdict is the output of the governance pipeline for one
// ProposedAction. It is written once to the Audit Log and never updated.
type GovernanceVerdict struct {
	ActionID   string        `json:"action_id"`
	AgentID    string        `json:"agent_id,omitempty"`
	ResourceID string        `json:"resource_id,omitempty"`
	Decision   Decision      `json:"decision"`
	SRI        SRI           `json:"sri"`
	Weights    WeightVector  `json:"weights"`
	Thresholds ThresholdPair `json:"thresholds"`
	Reason     string        `json:"reason"`
	Violations []string      `json:"violations"`
	SubResults SubResults    `json:"sub_results"`
	Timestamp  time.Time     `json:"timestamp"`
}
