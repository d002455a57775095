// Package audit persists GovernanceVerdicts durably and exposes the
// read-side queries the dashboard and Agent Registry need. Two backends
// satisfy the same Store contract: a SQL-backed store (SQLite or
// PostgreSQL, with hash-chain tamper evidence) for live mode, and a
// file-per-record store for mock mode.
package audit

import (
	"context"
	"sort"

	"github.com/sentinel-governance/sentinel/internal/model"
)

// Store is the Audit Log contract. Implementations
// must be safe for concurrent use.
type Store interface {
	// Record persists a verdict durably. Identity is ActionID; verdicts are
	// immutable once written.
	Record(ctx context.Context, verdict *model.GovernanceVerdict) error

	// GetRecent returns up to limit verdicts, newest-first by Timestamp,
	// ties broken by ActionID ascending. When resourceIDSubstring is
	// non-empty, only verdicts whose ResourceID contains it are returned.
	GetRecent(ctx context.Context, limit int, resourceIDSubstring string) ([]*model.GovernanceVerdict, error)

	// GetByID returns the verdict for actionID, or a *sentinelerr.NotFoundError.
	GetByID(ctx context.Context, actionID string) (*model.GovernanceVerdict, error)

	// Aggregate summarizes the whole log: decision counts, composite
	// min/avg/max, per-dimension averages, top violations, and the
	// most-evaluated resources.
	Aggregate(ctx context.Context) (*Aggregate, error)

	Close() error
}

// ViolationCount tallies how often a policy_id fired across the log.
type ViolationCount struct {
	PolicyID string `json:"policy_id"`
	Count    int    `json:"count"`
}

// ResourceCount tallies how often a resource_id was evaluated.
type ResourceCount struct {
	ResourceID string `json:"resource_id"`
	Count      int    `json:"count"`
}

// DimensionAverages holds the mean of each SRI sub-score across the log.
type DimensionAverages struct {
	Infrastructure float64 `json:"infrastructure"`
	Policy         float64 `json:"policy"`
	Historical     float64 `json:"historical"`
	Cost           float64 `json:"cost"`
}

// Aggregate is the Audit Log's whole-log summary.
type Aggregate struct {
	DecisionCounts         map[model.Decision]int `json:"decision_counts"`
	CompositeMin           float64                `json:"composite_min"`
	CompositeAvg           float64                `json:"composite_avg"`
	CompositeMax           float64                `json:"composite_max"`
	DimensionAverages      DimensionAverages       `json:"dimension_averages"`
	TopViolations          []ViolationCount        `json:"top_violations"`
	MostEvaluatedResources []ResourceCount         `json:"most_evaluated_resources"`
	TotalEvaluations       int                     `json:"total_evaluations"`
}

// aggregateFromVerdicts computes an Aggregate over an in-memory slice of
// verdicts. Both backends funnel through this so the aggregation semantics
// never drift between SQL and file-per-record storage.
func aggregateFromVerdicts(verdicts []*model.GovernanceVerdict) *Aggregate {
	agg := &Aggregate{
		DecisionCounts: map[model.Decision]int{},
	}
	if len(verdicts) == 0 {
		return agg
	}

	violationCounts := map[string]int{}
	resourceCounts := map[string]int{}
	var sumComposite, sumInfra, sumPolicy, sumHist, sumCost float64
	agg.CompositeMin = verdicts[0].SRI.Composite
	agg.CompositeMax = verdicts[0].SRI.Composite

	for _, v := range verdicts {
		agg.DecisionCounts[v.Decision]++
		c := v.SRI.Composite
		sumComposite += c
		sumInfra += v.SRI.Infrastructure
		sumPolicy += v.SRI.Policy
		sumHist += v.SRI.Historical
		sumCost += v.SRI.Cost
		if c < agg.CompositeMin {
			agg.CompositeMin = c
		}
		if c > agg.CompositeMax {
			agg.CompositeMax = c
		}
		for _, id := range v.Violations {
			violationCounts[id]++
		}
		if v.ResourceID != "" {
			resourceCounts[v.ResourceID]++
		}
	}

	n := float64(len(verdicts))
	agg.TotalEvaluations = len(verdicts)
	agg.CompositeAvg = sumComposite / n
	agg.DimensionAverages = DimensionAverages{
		Infrastructure: sumInfra / n,
		Policy:         sumPolicy / n,
		Historical:     sumHist / n,
		Cost:           sumCost / n,
	}
	agg.TopViolations = topViolations(violationCounts, 10)
	agg.MostEvaluatedResources = topResources(resourceCounts, 10)
	return agg
}

func topViolations(counts map[string]int, n int) []ViolationCount {
	out := make([]ViolationCount, 0, len(counts))
	for id, c := range counts {
		out = append(out, ViolationCount{PolicyID: id, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].PolicyID < out[j].PolicyID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func topResources(counts map[string]int, n int) []ResourceCount {
	out := make([]ResourceCount, 0, len(counts))
	for id, c := range counts {
		out = append(out, ResourceCount{ResourceID: id, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ResourceID < out[j].ResourceID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
