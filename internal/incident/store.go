// Package incident serves past-incident records the Historical Evaluator
// compares proposed actions against. Candidate retrieval (keyword or BM25
// full-text) is the store's concern; the Historical Evaluator computes the
// weighted similarity score itself so the result is identical regardless of
// which backend returned the candidates.
package incident

import (
	"context"

	"github.com/sentinel-governance/sentinel/internal/model"
)

// Store serves incident records.
type Store interface {
	// Candidates returns incidents plausibly relevant to actionType and
	// resourceType — a coarse pre-filter. The Historical Evaluator re-scores
	// every candidate itself; a store MAY over-return (even "all incidents")
	// without changing the final result, only its cost.
	Candidates(ctx context.Context, actionType, resourceType string) ([]model.Incident, error)
}
