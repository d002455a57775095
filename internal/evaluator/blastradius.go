// Package evaluator implements the four SRI scoring evaluators: blast
// radius, policy, historical, and financial. Each is a deterministic
// function of (action, stores) — no evaluator calls another, and none
// depends on the LLM narration add-on.
package evaluator

import (
	"context"
	"fmt"

	"github.com/sentinel-governance/sentinel/internal/model"
	"github.com/sentinel-governance/sentinel/internal/topology"
)

// actionBaseScore is the per-action-type base contribution to the score.
var actionBaseScore = map[model.ActionType]float64{
	model.ActionScaleUp:        10,
	model.ActionScaleDown:      15,
	model.ActionRestartService: 20,
	model.ActionModifyNSG:      30,
	model.ActionUpdateConfig:   20,
	model.ActionCreateResource: 15,
	model.ActionDeleteResource: 40,
}

// criticalityScore is the Criticality-of-target contribution table.
var criticalityScore = map[string]float64{
	"low":      0,
	"medium":   10,
	"high":     20,
	"critical": 30,
}

const (
	perDependentPoints = 5
	perServicePoints   = 5
	perSPOFPoints      = 10
)

// BlastRadius is the Blast-Radius Evaluator (SRI:Infrastructure).
type BlastRadius struct {
	topo topology.Store
}

// NewBlastRadius builds a Blast-Radius Evaluator over the given Topology Store.
func NewBlastRadius(topo topology.Store) *BlastRadius {
	return &BlastRadius{topo: topo}
}

// Evaluate computes SRI:Infrastructure via one-hop graph traversal.
func (b *BlastRadius) Evaluate(ctx context.Context, action *model.ProposedAction) (*model.BlastRadiusResult, error) {
	target, ok, err := b.topo.Lookup(ctx, action.Target.ResourceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &model.BlastRadiusResult{Score: 0, Reasoning: "unknown resource"}, nil
	}

	n, err := b.topo.Neighbors(ctx, action.Target.ResourceID)
	if err != nil {
		return nil, err
	}

	score := actionBaseScore[action.ActionType]
	score += criticalityScore[target.Criticality()]
	score += float64(len(n.Dependents)) * perDependentPoints
	score += float64(len(n.ServicesHosted)) * perServicePoints

	spof := spofResources(ctx, b.topo, n)
	score += float64(len(spof)) * perSPOFPoints

	affected := dedupeInsertionOrder(n.Dependents, n.Governs, n.AdditionalEdges)

	return &model.BlastRadiusResult{
		Score:                 model.Clamp(score, 0, 100),
		AffectedResources:     affected,
		AffectedServices:      dedupeInsertionOrder(n.ServicesHosted),
		SinglePointsOfFailure: spof,
		AffectedZones:         nil,
		Reasoning: fmt.Sprintf(
			"%s on %s (criticality=%s): %d dependents, %d hosted services, %d SPOF resource(s) reachable one hop away",
			action.ActionType, action.Target.ResourceID, orUnknown(target.Criticality()),
			len(n.Dependents), len(n.ServicesHosted), len(spof),
		),
	}, nil
}

// spofResources returns the additional critical resources reachable via
// governs/dependency_edges — i.e. single points of failure the action would
// put at risk.
func spofResources(ctx context.Context, topo topology.Store, n topology.Neighborhood) []string {
	var spof []string
	for _, id := range dedupeInsertionOrder(n.Governs, n.AdditionalEdges) {
		r, ok, err := topo.Lookup(ctx, id)
		if err != nil || !ok {
			continue
		}
		if r.Criticality() == "critical" {
			spof = append(spof, id)
		}
	}
	return spof
}

func orUnknown(s string) string {
	if s == "" {
		return "unset"
	}
	return s
}

// dedupeInsertionOrder merges zero or more string slices, deduplicating
// while retaining first-seen order.
func dedupeInsertionOrder(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
