// Package policy implements the Policy Evaluator: a data-driven predicate
// engine that scores a ProposedAction against a set of governance policies
// and reports which ones fired.
package policy

import (
	"fmt"

	"github.com/sentinel-governance/sentinel/internal/model"
)

// Kind enumerates the predicate variants a policy's rule may use.
type Kind string

const (
	KindTagMatch          Kind = "tag_match"
	KindActionIn          Kind = "action_in"
	KindTimeWindow        Kind = "time_window"
	KindResourceTypeIn    Kind = "resource_type_in"
	KindEnvRequiresReview Kind = "env_requires_review"
	KindMinDependents     Kind = "min_dependents"
)

// Predicate is a typed decision function over (action, target resource,
// metadata) returning whether it fired plus an optional rationale. Each
// concrete predicate validates its own parameters at load time so a
// malformed policy file fails fast with a ConfigError rather than silently
// never firing.
type Predicate interface {
	Kind() Kind
	// Evaluate reports whether the predicate fires for the given action and
	// target resource (which may be nil if the target is unknown to the
	// Topology Store).
	Evaluate(action *model.ProposedAction, target *model.Resource) (fired bool, rationale string)
}

// Policy is one governance policy: an identifier, a severity used to weight
// its contribution to SRI:Policy, a human description, and the predicate
// that decides whether it fires. Policy values are built by loader.go from
// the on-disk policyDoc shape; Policy itself carries a concrete Predicate,
// not the raw YAML document.
type Policy struct {
	PolicyID    string
	Severity    model.Severity
	Description string
	Predicate   Predicate
}

// severityWeights is the raw-score contribution of each severity tier.
var severityWeights = map[model.Severity]float64{
	model.SeverityCritical: 100,
	model.SeverityHigh:     40,
	model.SeverityMedium:   20,
	model.SeverityLow:      10,
}

// Weight returns this policy's raw-score contribution when it fires.
func (p *Policy) Weight() float64 {
	return p.Severity.Weight(severityWeights)
}

func (p *Policy) validate() error {
	if p.PolicyID == "" {
		return fmt.Errorf("policy_id is required")
	}
	switch p.Severity {
	case model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow:
	default:
		return fmt.Errorf("policy %s: invalid severity %q", p.PolicyID, p.Severity)
	}
	if p.Predicate == nil {
		return fmt.Errorf("policy %s: predicate is required", p.PolicyID)
	}
	return nil
}

// Store is the data-driven set of governance policies loaded at startup.
// Policies that cannot be parsed raise a ConfigError; Store never mutates
// after construction and is not hot-reloaded.
type Store struct {
	policies []Policy
}

// Policies returns the loaded policy set, in file order.
func (s *Store) Policies() []Policy {
	return s.policies
}
