// Package config loads the single immutable configuration record the rest
// of the engine runs against, following agentutil.MustLoadConfig's pattern
// of env-var driven startup configuration with fatal validation.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/sentinel-governance/sentinel/internal/sentinelerr"
)

// Weights is the weight vector applied to the four sub-scores when
// composing the SRI Composite. It MUST sum to 1.0 within 1e-9.
type Weights struct {
	Infra      float64
	Policy     float64
	Historical float64
	Cost       float64
}

// Thresholds are the composite-score cut points the Decision Engine uses
// to pick a verdict.
type Thresholds struct {
	AutoApprove float64
	HumanReview float64
}

// Config is the read-only record every evaluator and surface receives.
// There is no global mutable singleton; callers pass *Config explicitly.
type Config struct {
	UseLocalMocks bool

	Weights    Weights
	Thresholds Thresholds

	EvaluatorTimeout         time.Duration
	MaxConcurrentEvaluations int

	ServerURL string

	// File-backed (mock mode) store paths.
	TopologyFile string
	PoliciesFile string
	IncidentsFile string
	AuditDir      string
	RegistryDir   string

	// Remote-mode store endpoints.
	TopologyURL string
	PoliciesURL string
	IncidentsURL string

	// Live-mode audit log DSN (sqlite path or postgres:// DSN).
	AuditDSN string

	// Optional LLM narration; empty disables it.
	AnthropicAPIKey string
	AnthropicModel  string
}

// Load builds a Config from SENTINEL_* environment variables, applying
// documented defaults and validating the configuration invariants.
// Returns a *sentinelerr.ConfigError if validation fails; callers at process
// start should treat that as fatal.
func Load() (*Config, error) {
	cfg := &Config{
		UseLocalMocks: envBool("SENTINEL_USE_LOCAL_MOCKS", true),
		Weights: Weights{
			Infra:      envFloat("SENTINEL_WEIGHT_INFRA", 0.30),
			Policy:     envFloat("SENTINEL_WEIGHT_POLICY", 0.25),
			Historical: envFloat("SENTINEL_WEIGHT_HISTORICAL", 0.25),
			Cost:       envFloat("SENTINEL_WEIGHT_COST", 0.20),
		},
		Thresholds: Thresholds{
			AutoApprove: envFloat("SENTINEL_AUTO_APPROVE_THRESHOLD", 25),
			HumanReview: envFloat("SENTINEL_HUMAN_REVIEW_THRESHOLD", 60),
		},
		EvaluatorTimeout:         time.Duration(envFloat("SENTINEL_EVALUATOR_TIMEOUT_SECONDS", 10)) * time.Second,
		MaxConcurrentEvaluations: envInt("SENTINEL_MAX_CONCURRENT_EVALUATIONS", 64),
		ServerURL:                envStr("SENTINEL_SERVER_URL", "http://localhost:8585"),

		TopologyFile:  envStr("SENTINEL_TOPOLOGY_FILE", "data/topology.json"),
		PoliciesFile:  envStr("SENTINEL_POLICIES_FILE", "data/policies.json"),
		IncidentsFile: envStr("SENTINEL_INCIDENTS_FILE", "data/incidents.json"),
		AuditDir:      envStr("SENTINEL_AUDIT_DIR", "data/verdicts"),
		RegistryDir:   envStr("SENTINEL_REGISTRY_DIR", "data/agents"),

		TopologyURL:  os.Getenv("SENTINEL_TOPOLOGY_URL"),
		PoliciesURL:  os.Getenv("SENTINEL_POLICIES_URL"),
		IncidentsURL: os.Getenv("SENTINEL_INCIDENTS_URL"),

		AuditDSN: envStr("SENTINEL_AUDIT_DSN", "data/sentinel-audit.db"),

		AnthropicAPIKey: os.Getenv("SENTINEL_ANTHROPIC_API_KEY"),
		AnthropicModel:  envStr("SENTINEL_ANTHROPIC_MODEL", "claude-sonnet-4-5"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	sum := c.Weights.Infra + c.Weights.Policy + c.Weights.Historical + c.Weights.Cost
	if math.Abs(sum-1.0) > 1e-9 {
		return &sentinelerr.ConfigError{Reason: fmt.Sprintf("weights must sum to 1.0, got %v", sum)}
	}
	if c.Thresholds.AutoApprove > c.Thresholds.HumanReview {
		return &sentinelerr.ConfigError{Reason: "auto_approve_threshold must be <= human_review_threshold"}
	}
	if c.Thresholds.HumanReview > 100 {
		return &sentinelerr.ConfigError{Reason: "human_review_threshold must be <= 100"}
	}
	if c.MaxConcurrentEvaluations <= 0 {
		return &sentinelerr.ConfigError{Reason: "max_concurrent_evaluations must be positive"}
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
