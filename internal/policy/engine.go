package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sentinel-governance/sentinel/internal/model"
)

// severityRank orders severities for violations[] sorting: critical first.
var severityRank = map[model.Severity]int{
	model.SeverityCritical: 0,
	model.SeverityHigh:     1,
	model.SeverityMedium:   2,
	model.SeverityLow:      3,
}

// TargetLookup resolves a resource_id to its Topology Store record. The
// Policy Evaluator treats a lookup miss as "no target known" rather than an
// error — several predicates (env_requires_review, min_dependents) simply
// never fire against an unknown target.
type TargetLookup interface {
	Lookup(ctx context.Context, resourceID string) (*model.Resource, bool, error)
}

// Evaluator is the Policy Evaluator (SRI:Policy). It holds an immutable
// snapshot of the policy Store, fixed at construction; policies are not
// reloaded while it runs.
type Evaluator struct {
	store   *Store
	targets TargetLookup
}

// NewEvaluator builds a Policy Evaluator over the given policy Store and
// Topology Store lookup.
func NewEvaluator(store *Store, targets TargetLookup) *Evaluator {
	return &Evaluator{store: store, targets: targets}
}

// Evaluate scores a ProposedAction against every loaded policy and returns
// the PolicyResult: clamp(raw, 0, 100), the ordered
// violations list, and whether a critical violation fired.
func (e *Evaluator) Evaluate(ctx context.Context, action *model.ProposedAction) (*model.PolicyResult, error) {
	var target *model.Resource
	if e.targets != nil {
		if t, ok, err := e.targets.Lookup(ctx, action.Target.ResourceID); err == nil && ok {
			target = t
		}
	}

	var raw float64
	var violations []model.PolicyViolation
	var critical bool

	for _, p := range e.store.Policies() {
		fired, _ := p.Predicate.Evaluate(action, target)
		if !fired {
			continue
		}
		raw += p.Weight()
		violations = append(violations, model.PolicyViolation{
			PolicyID:    p.PolicyID,
			Severity:    string(p.Severity),
			Description: p.Description,
		})
		if p.Severity == model.SeverityCritical {
			critical = true
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		ri, rj := severityRank[model.Severity(violations[i].Severity)], severityRank[model.Severity(violations[j].Severity)]
		if ri != rj {
			return ri < rj
		}
		return violations[i].PolicyID < violations[j].PolicyID
	})

	score := model.Clamp(raw, 0, 100)
	return &model.PolicyResult{
		Score:                score,
		Violations:           violations,
		HasCriticalViolation: critical,
		Reasoning:            reasoning(violations, target),
	}, nil
}

func reasoning(violations []model.PolicyViolation, target *model.Resource) string {
	if len(violations) == 0 {
		if target == nil {
			return "no policies fired; target resource is unknown to the topology store"
		}
		return "no policies fired against the target resource"
	}
	names := make([]string, len(violations))
	for i, v := range violations {
		names[i] = fmt.Sprintf("%s(%s)", v.PolicyID, v.Severity)
	}
	return fmt.Sprintf("%d polic%s fired: %s", len(violations), plural(len(violations)), strings.Join(names, ", "))
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
