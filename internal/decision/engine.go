// Package decision implements the Decision Engine: the deterministic
// composite and verdict rule that turns the four evaluators' sub-results
// into a GovernanceVerdict.
package decision

import (
	"fmt"
	"sort"

	"github.com/sentinel-governance/sentinel/internal/config"
	"github.com/sentinel-governance/sentinel/internal/model"
)

// Engine applies a configured WeightVector/ThresholdPair to produce a
// verdict from a SubResults bundle. It holds no state beyond config.
type Engine struct {
	weights    model.WeightVector
	thresholds model.ThresholdPair
}

// New builds a Decision Engine from process configuration.
func New(cfg *config.Config) *Engine {
	return &Engine{
		weights: model.WeightVector{
			Infra:      cfg.Weights.Infra,
			Policy:     cfg.Weights.Policy,
			Historical: cfg.Weights.Historical,
			Cost:       cfg.Weights.Cost,
		},
		thresholds: model.ThresholdPair{
			AutoApprove: cfg.Thresholds.AutoApprove,
			HumanReview: cfg.Thresholds.HumanReview,
		},
	}
}

// Decide computes the SRI composite and three-way verdict for one action's
// evaluator results.
func (e *Engine) Decide(action *model.ProposedAction, sub model.SubResults) *model.GovernanceVerdict {
	sri := model.SRI{
		Infrastructure: sub.BlastRadius.Score,
		Policy:         sub.Policy.Score,
		Historical:     sub.Historical.Score,
		Cost:           sub.Financial.Score,
	}
	sri.Composite = model.Clamp(
		e.weights.Infra*sri.Infrastructure+
			e.weights.Policy*sri.Policy+
			e.weights.Historical*sri.Historical+
			e.weights.Cost*sri.Cost,
		0, 100,
	)

	violations := sortedViolationIDs(sub.Policy.Violations)

	decision, composite := e.verdict(sri.Composite, sub.Policy)
	sri.Composite = composite

	return &model.GovernanceVerdict{
		ActionID:   action.ActionID,
		AgentID:    action.AgentID,
		ResourceID: action.Target.ResourceID,
		Decision:   decision,
		SRI:        sri,
		Weights:    e.weights,
		Thresholds: e.thresholds,
		Reason:     e.reason(decision, sri, violations),
		Violations: violations,
		SubResults: sub,
		Timestamp:  action.Timestamp,
	}
}

// verdict implements the ordered verdict rule. It returns the decision and
// the (possibly bumped) composite score to store alongside it.
func (e *Engine) verdict(composite float64, policyResult *model.PolicyResult) (model.Decision, float64) {
	if policyResult.HasCriticalViolation {
		bumped := model.Clamp(e.thresholds.HumanReview+1, 0, 100)
		if composite > bumped {
			bumped = composite
		}
		return model.DecisionDenied, bumped
	}
	if composite <= e.thresholds.AutoApprove {
		return model.DecisionApproved, composite
	}
	if composite <= e.thresholds.HumanReview {
		return model.DecisionEscalated, composite
	}
	return model.DecisionDenied, composite
}

// reason builds the one-paragraph explanation: the
// decision, the composite rounded to one decimal, the highest-scoring
// dimension, and the first violation id when present.
func (e *Engine) reason(decision model.Decision, sri model.SRI, violations []string) string {
	dim, dimScore := highestDimension(sri)
	text := fmt.Sprintf("%s: SRI composite %.1f, driven primarily by %s (%.1f)", decision, sri.Composite, dim, dimScore)
	if len(violations) > 0 {
		text += fmt.Sprintf("; leading policy violation: %s", violations[0])
	}
	return text
}

func highestDimension(sri model.SRI) (string, float64) {
	best := "infrastructure"
	bestScore := sri.Infrastructure
	if sri.Policy > bestScore {
		best, bestScore = "policy", sri.Policy
	}
	if sri.Historical > bestScore {
		best, bestScore = "historical", sri.Historical
	}
	if sri.Cost > bestScore {
		best, bestScore = "cost", sri.Cost
	}
	return best, bestScore
}

// severityRank orders policy severities from most to least severe for
// violations[] ordering.
var severityRank = map[string]int{
	"critical": 0,
	"high":     1,
	"medium":   2,
	"low":      3,
}

// sortedViolationIDs extracts policy_id values from fired violations,
// ordered by severity descending then policy_id ascending. The Policy
// Evaluator already produces its Violations slice in this order, but the
// Decision Engine re-sorts defensively since it is the contract boundary
// exposed on GovernanceVerdict.
func sortedViolationIDs(violations []model.PolicyViolation) []string {
	sorted := make([]model.PolicyViolation, len(violations))
	copy(sorted, violations)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := severityRank[sorted[i].Severity], severityRank[sorted[j].Severity]
		if ri != rj {
			return ri < rj
		}
		return sorted[i].PolicyID < sorted[j].PolicyID
	})
	ids := make([]string, len(sorted))
	for i, v := range sorted {
		ids[i] = v.PolicyID
	}
	return ids
}
