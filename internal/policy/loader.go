package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sentinel-governance/sentinel/internal/model"
	"github.com/sentinel-governance/sentinel/internal/sentinelerr"
)

// policyDoc mirrors Policy's on-disk shape so yaml.v3 can unmarshal the
// predicate's raw fields before buildPredicate turns them into a concrete
// Predicate implementation.
type policyDoc struct {
	PolicyID    string       `yaml:"policy_id"`
	Severity    string       `yaml:"severity"`
	Description string       `yaml:"description"`
	Predicate   predicateDoc `yaml:"predicate"`
}

// fileDoc is the top-level shape of a policies.yaml file (a bare JSON
// array of policies is also accepted; both unmarshal into the same Go shape).
type fileDoc struct {
	Policies []policyDoc `yaml:"policies"`
}

// LoadFile loads and validates a policy set from a YAML (or JSON, since JSON
// is valid YAML) file. A malformed or unparsable policy file surfaces as a
// *sentinelerr.ConfigError, which is always fatal at startup.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &sentinelerr.ConfigError{Reason: fmt.Sprintf("read policy file %s: %v", path, err)}
	}
	return Load(data)
}

// Load parses a policy set from YAML/JSON bytes. It also accepts a bare
// top-level array of policies (no "policies:" wrapper), so policy files
// exported as a plain list load unchanged.
func Load(data []byte) (*Store, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Policies) == 0 {
		var bare []policyDoc
		if err2 := yaml.Unmarshal(data, &bare); err2 == nil && len(bare) > 0 {
			doc.Policies = bare
		} else if err != nil {
			return nil, &sentinelerr.ConfigError{Reason: fmt.Sprintf("parse policy file: %v", err)}
		}
	}

	policies := make([]Policy, 0, len(doc.Policies))
	seen := make(map[string]bool, len(doc.Policies))
	for _, pd := range doc.Policies {
		pred, err := buildPredicate(pd.Predicate)
		if err != nil {
			return nil, &sentinelerr.ConfigError{Reason: fmt.Sprintf("policy %s: %v", pd.PolicyID, err)}
		}
		p := Policy{
			PolicyID:    pd.PolicyID,
			Severity:    model.Severity(pd.Severity),
			Description: pd.Description,
			Predicate:   pred,
		}
		if err := p.validate(); err != nil {
			return nil, &sentinelerr.ConfigError{Reason: err.Error()}
		}
		if seen[p.PolicyID] {
			return nil, &sentinelerr.ConfigError{Reason: fmt.Sprintf("duplicate policy_id %q", p.PolicyID)}
		}
		seen[p.PolicyID] = true
		policies = append(policies, p)
	}

	return &Store{policies: policies}, nil
}
