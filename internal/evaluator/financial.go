package evaluator

import (
	"context"
	"fmt"

	"github.com/sentinel-governance/sentinel/internal/model"
	"github.com/sentinel-governance/sentinel/internal/topology"
)

// actionMultiplier scales the magnitude score by how risky the action type is.
var actionMultiplier = map[model.ActionType]float64{
	model.ActionDeleteResource: 1.5,
	model.ActionScaleDown:      1.2,
	model.ActionUpdateConfig:   0.8,
	model.ActionScaleUp:        0.6,
	model.ActionCreateResource: 0.5,
	model.ActionRestartService: 0.3,
	model.ActionModifyNSG:      0.3,
}

const overOptimizationPenalty = 20
const costUncertainPenalty = 10
const recoveryCostPerUnit = 10000

// Financial is the Financial Evaluator (SRI:Cost).
type Financial struct {
	topo topology.Store
}

// NewFinancial builds a Financial Evaluator over the given Topology Store.
func NewFinancial(topo topology.Store) *Financial {
	return &Financial{topo: topo}
}

// Evaluate computes SRI:Cost in five steps: estimate the monthly change,
// score its magnitude, apply the action multiplier, add penalties, clamp.
func (f *Financial) Evaluate(ctx context.Context, action *model.ProposedAction) (*model.FinancialResult, error) {
	target, foundTarget, err := f.topo.Lookup(ctx, action.Target.ResourceID)
	if err != nil {
		return nil, err
	}

	monthlyChange, costUncertain := f.estimateChange(action, target, foundTarget)

	magnitude := magnitudeScore(abs(monthlyChange))
	multiplier := actionMultiplier[action.ActionType] // zero for unlisted action types

	overOpt := f.detectOverOptimization(ctx, action, target, foundTarget, monthlyChange)

	var penalties float64
	if overOpt.Triggered {
		penalties += overOptimizationPenalty
	}
	if costUncertain {
		penalties += costUncertainPenalty
	}

	score := model.Clamp(magnitude*multiplier+penalties, 0, 100)

	return &model.FinancialResult{
		Score:            score,
		MonthlyChange:    monthlyChange,
		Projected90d:     monthlyChange * 3,
		CostUncertain:    costUncertain,
		OverOptimization: overOpt,
		Reasoning: fmt.Sprintf(
			"estimated monthly change $%.2f (uncertain=%v); magnitude=%.0f x multiplier=%.2f + penalties=%.0f",
			monthlyChange, costUncertain, magnitude, multiplier, penalties,
		),
	}, nil
}

// estimateChange implements Step 1: resolve a signed monthly cost change in
// USD. Priority order, first match wins.
func (f *Financial) estimateChange(action *model.ProposedAction, target *model.Resource, foundTarget bool) (change float64, uncertain bool) {
	if action.ProjectedSavingsMonthly != nil {
		return -*action.ProjectedSavingsMonthly, false
	}

	switch action.ActionType {
	case model.ActionRestartService, model.ActionModifyNSG:
		return 0.0, false
	case model.ActionDeleteResource, model.ActionScaleDown, model.ActionScaleUp:
		// fall through to cost resolution below
	default:
		return 0.0, false
	}

	currentCost, known := resolveCurrentCost(action, target, foundTarget)
	if !known {
		return 0.0, true
	}

	switch action.ActionType {
	case model.ActionDeleteResource:
		return -currentCost, false
	case model.ActionScaleDown:
		return -0.30 * currentCost, true
	case model.ActionScaleUp:
		return 0.50 * currentCost, true
	default:
		return 0.0, false
	}
}

// resolveCurrentCost resolves the target's current monthly cost from the
// action's own hint, falling back to the Topology Store. 0.0 is a valid
// known value, never treated as missing.
func resolveCurrentCost(action *model.ProposedAction, target *model.Resource, foundTarget bool) (float64, bool) {
	if action.Target.CurrentMonthlyCost != nil {
		return *action.Target.CurrentMonthlyCost, true
	}
	if foundTarget && target.MonthlyCost != nil {
		return *target.MonthlyCost, true
	}
	return 0, false
}

// magnitudeScore implements Step 2's ordered threshold table.
func magnitudeScore(absChange float64) float64 {
	switch {
	case absChange >= 1000:
		return 70
	case absChange >= 600:
		return 50
	case absChange >= 300:
		return 30
	case absChange >= 100:
		return 15
	case absChange > 0:
		return 5
	default:
		return 0
	}
}

// detectOverOptimization implements the over-optimization rule: a
// cost-reducing action on a target whose failure would be expensive to
// recover from.
func (f *Financial) detectOverOptimization(ctx context.Context, action *model.ProposedAction, target *model.Resource, foundTarget bool, monthlyChange float64) model.OverOptimization {
	if monthlyChange >= 0 || !foundTarget {
		return model.OverOptimization{}
	}

	n, err := f.topo.Neighbors(ctx, action.Target.ResourceID)
	if err != nil {
		return model.OverOptimization{}
	}
	dependents := len(n.Dependents)
	services := len(n.ServicesHosted)

	critical := target.Criticality() == "critical" || dependents >= 2 || services >= 1
	if !critical {
		return model.OverOptimization{}
	}

	units := dependents + services
	if units < 1 {
		units = 1
	}
	recovery := recoveryCostPerUnit * float64(units)

	return model.OverOptimization{
		Triggered: true,
		RiskUSD:   recovery,
		Rationale: fmt.Sprintf(
			"cost reduction of $%.2f/mo on a critical resource (%d dependent(s), %d hosted service(s)) risks a $%.0f recovery if it fails",
			-monthlyChange, dependents, services, recovery,
		),
	}
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
