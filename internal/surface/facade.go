// Package surface implements the three invocation surfaces, all calling
// the same Pipeline.Evaluate. Facade is Surface C:
// a typed in-process wrapper exposing evaluate_action, get_recent_decisions,
// and get_risk_profile directly — the substrate the other two surfaces (and
// tests) build on.
package surface

import (
	"context"

	"github.com/sentinel-governance/sentinel/internal/audit"
	"github.com/sentinel-governance/sentinel/internal/model"
	"github.com/sentinel-governance/sentinel/internal/registry"
	"github.com/sentinel-governance/sentinel/internal/topology"
)

// Evaluator is the narrow Pipeline surface Facade depends on.
type Evaluator interface {
	Evaluate(ctx context.Context, action *model.ProposedAction) (*model.GovernanceVerdict, error)
}

// Facade is Surface C: the in-process façade.
type Facade struct {
	pipeline Evaluator
	auditLog audit.Store
	topo     topology.Store
	agents   registry.Registry
}

// New builds a Facade over the pipeline and its collateral stores.
func New(pipeline Evaluator, auditLog audit.Store, topo topology.Store, agents registry.Registry) *Facade {
	return &Facade{pipeline: pipeline, auditLog: auditLog, topo: topo, agents: agents}
}

// EvaluateAction runs the governance pipeline on a proposed action.
func (f *Facade) EvaluateAction(ctx context.Context, action *model.ProposedAction) (*model.GovernanceVerdict, error) {
	return f.pipeline.Evaluate(ctx, action)
}

// GetRecentDecisions returns recent verdicts from the Audit Log, optionally
// filtered to resource IDs containing resourceIDSubstring.
func (f *Facade) GetRecentDecisions(ctx context.Context, limit int, resourceIDSubstring string) ([]*model.GovernanceVerdict, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return f.auditLog.GetRecent(ctx, limit, resourceIDSubstring)
}

// RiskProfile summarizes a resource's governance-relevant posture: its
// topology neighborhood plus its verdict history from the Audit Log.
type RiskProfile struct {
	ResourceID string                      `json:"resource_id"`
	Resource   *model.Resource             `json:"resource,omitempty"`
	Neighbors  topology.Neighborhood       `json:"neighbors"`
	Recent     []*model.GovernanceVerdict  `json:"recent_decisions"`
}

// GetRiskProfile builds a RiskProfile for resourceID: its topology
// neighborhood plus its most recent governance verdicts.
func (f *Facade) GetRiskProfile(ctx context.Context, resourceID string, historyLimit int) (*RiskProfile, error) {
	resource, _, err := f.topo.Lookup(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	neighbors, err := f.topo.Neighbors(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	recent, err := f.auditLog.GetRecent(ctx, historyLimit, resourceID)
	if err != nil {
		return nil, err
	}
	return &RiskProfile{
		ResourceID: resourceID,
		Resource:   resource,
		Neighbors:  neighbors,
		Recent:     recent,
	}, nil
}
