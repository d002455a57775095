package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-governance/sentinel/internal/sentinelerr"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.UseLocalMocks)
	assert.Equal(t, Weights{Infra: 0.30, Policy: 0.25, Historical: 0.25, Cost: 0.20}, cfg.Weights)
	assert.Equal(t, Thresholds{AutoApprove: 25, HumanReview: 60}, cfg.Thresholds)
	assert.Equal(t, 10*time.Second, cfg.EvaluatorTimeout)
	assert.Equal(t, 64, cfg.MaxConcurrentEvaluations)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SENTINEL_AUTO_APPROVE_THRESHOLD", "10")
	t.Setenv("SENTINEL_HUMAN_REVIEW_THRESHOLD", "50")
	t.Setenv("SENTINEL_MAX_CONCURRENT_EVALUATIONS", "8")
	t.Setenv("SENTINEL_SERVER_URL", "https://sentinel.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Thresholds{AutoApprove: 10, HumanReview: 50}, cfg.Thresholds)
	assert.Equal(t, 8, cfg.MaxConcurrentEvaluations)
	assert.Equal(t, "https://sentinel.example.com", cfg.ServerURL)
}

func TestLoad_WeightsMustSumToOne(t *testing.T) {
	t.Setenv("SENTINEL_WEIGHT_INFRA", "0.50")

	_, err := Load()
	require.Error(t, err)
	var cfgErr *sentinelerr.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "sum to 1.0")
}

func TestLoad_ThresholdOrderingEnforced(t *testing.T) {
	t.Setenv("SENTINEL_AUTO_APPROVE_THRESHOLD", "70")
	t.Setenv("SENTINEL_HUMAN_REVIEW_THRESHOLD", "60")

	_, err := Load()
	require.Error(t, err)
	var cfgErr *sentinelerr.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
