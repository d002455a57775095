// Package model holds the data types shared across evaluators, the
// pipeline, and every invocation surface.
package model

import "time"

// ActionType enumerates the proposed infrastructure mutations the engine
// understands.
type ActionType string

const (
	ActionScaleUp        ActionType = "scale_up"
	ActionScaleDown      ActionType = "scale_down"
	ActionDeleteResource ActionType = "delete_resource"
	ActionRestartService ActionType = "restart_service"
	ActionModifyNSG      ActionType = "modify_nsg"
	ActionCreateResource ActionType = "create_resource"
	ActionUpdateConfig   ActionType = "update_config"
)

// IsDestructive reports whether the action type is considered destructive
// for policy predicates such as min_dependents.
func (a ActionType) IsDestructive() bool {
	switch a {
	case ActionDeleteResource, ActionScaleDown, ActionModifyNSG:
		return true
	default:
		return false
	}
}

// Urgency enumerates the caller-asserted urgency of a proposed action.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Target identifies the resource a ProposedAction would mutate, plus any
// SKU/cost hints the proposing agent already knows.
type Target struct {
	ResourceID         string   `json:"resource_id"`
	ResourceType       string   `json:"resource_type"`
	CurrentSKU         *string  `json:"current_sku,omitempty"`
	ProposedSKU        *string  `json:"proposed_sku,omitempty"`
	CurrentMonthlyCost *float64 `json:"current_monthly_cost,omitempty"`
}

// ProposedAction is the input to the governance pipeline.
type ProposedAction struct {
	ActionID                 string         `json:"action_id"`
	AgentID                  string         `json:"agent_id,omitempty"`
	ActionType               ActionType     `json:"action_type"`
	Target                   Target         `json:"target"`
	Reason                   string         `json:"reason,omitempty"`
	Urgency                  Urgency        `json:"urgency,omitempty"`
	ProjectedSavingsMonthly  *float64       `json:"projected_savings_monthly,omitempty"`
	Metadata                 map[string]any `json:"metadata,omitempty"`
	Timestamp                time.Time      `json:"timestamp"`
}

// Validate checks the invariants a ProposedAction must satisfy
// before it enters the pipeline: resource_id and action_type are required.
func (a *ProposedAction) Validate() error {
	if a.Target.ResourceID == "" {
		return errRequiredField("target.resource_id")
	}
	if a.ActionType == "" {
		return errRequiredField("action_type")
	}
	return nil
}

// Normalize fills in engine-assigned defaults: action_id, timestamp, and
// urgency.
func (a *ProposedAction) Normalize(newID func() string, now func() time.Time) {
	if a.ActionID == "" {
		a.ActionID = newID()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = now()
	}
	if a.Urgency == "" {
		a.Urgency = UrgencyMedium
	}
}
