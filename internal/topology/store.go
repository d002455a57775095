// Package topology serves the resource dependency graph the Blast-Radius and
// Financial evaluators traverse, behind a typed Store interface with
// file-backed (mock) and remote implementations so the rest of the engine
// never cares which backend is active.
package topology

import (
	"context"

	"github.com/sentinel-governance/sentinel/internal/model"
)

// Store serves the topology graph. All lookups are read-only at request
// time; hot-reload implementations swap an atomic pointer rather than
// mutating state readers may be observing.
type Store interface {
	// Lookup resolves a resource_id (or name) to its Resource record.
	Lookup(ctx context.Context, resourceID string) (*model.Resource, bool, error)

	// Neighbors returns the one-hop neighborhood of a resource: its
	// dependents, hosted services, and any resource reachable via governs
	// or an explicit dependency edge — one hop only, never transitive.
	Neighbors(ctx context.Context, resourceID string) (Neighborhood, error)
}

// Neighborhood is a target resource's one-hop reachable set, used by the
// Blast-Radius Evaluator.
type Neighborhood struct {
	Dependents        []string
	ServicesHosted    []string
	Governs           []string
	AdditionalEdges   []string // resources reachable only via dependency_edges
}

// oneHop computes the Neighborhood for a resource given the full resource
// index and the explicit edge list. FileStore uses it; RemoteStore takes the
// neighborhood the remote topology service returns.
func oneHop(resourceID string, byID map[string]*model.Resource, edges []model.DependencyEdge) Neighborhood {
	var n Neighborhood
	if r, ok := byID[resourceID]; ok {
		n.Dependents = append(n.Dependents, r.Dependents...)
		n.ServicesHosted = append(n.ServicesHosted, r.ServicesHosted...)
		n.Governs = append(n.Governs, r.Governs...)
	}
	for _, e := range edges {
		if e.From == resourceID {
			n.AdditionalEdges = append(n.AdditionalEdges, e.To)
		}
	}
	return n
}
