package evaluator

import (
	"context"

	"github.com/sentinel-governance/sentinel/internal/model"
	"github.com/sentinel-governance/sentinel/internal/policy"
)

// PolicyAdapter exposes internal/policy.Evaluator under the evaluator
// package's common shape used by the Pipeline.
type PolicyAdapter struct {
	eval *policy.Evaluator
}

// NewPolicy wraps a policy.Evaluator.
func NewPolicy(eval *policy.Evaluator) *PolicyAdapter {
	return &PolicyAdapter{eval: eval}
}

// Evaluate computes SRI:Policy.
func (p *PolicyAdapter) Evaluate(ctx context.Context, action *model.ProposedAction) (*model.PolicyResult, error) {
	return p.eval.Evaluate(ctx, action)
}
