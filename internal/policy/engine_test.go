package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-governance/sentinel/internal/model"
)

type staticLookup struct {
	resources map[string]*model.Resource
}

func (s staticLookup) Lookup(ctx context.Context, id string) (*model.Resource, bool, error) {
	r, ok := s.resources[id]
	return r, ok, nil
}

func actionAt(t time.Time, typ model.ActionType, resourceID string) *model.ProposedAction {
	return &model.ProposedAction{
		ActionID:   "a-1",
		ActionType: typ,
		Target:     model.Target{ResourceID: resourceID, ResourceType: "Microsoft.Compute/virtualMachines"},
		Timestamp:  t,
	}
}

func TestTimeWindow_SameDayBoundaries(t *testing.T) {
	store, err := Load([]byte(`
policies:
  - policy_id: POL-CHANGE-WINDOW
    severity: medium
    description: no deploys during business hours
    predicate:
      kind: time_window
      start_day: monday
      start_time: "17:00:00"
      end_time: "20:00:00"
`))
	require.NoError(t, err)
	ev := NewEvaluator(store, nil)

	cases := []struct {
		hhmmss string
		want   bool
	}{
		{"16:59:59", false},
		{"17:00:00", true},
		{"19:59:59", true},
		{"20:00:00", false},
	}
	for _, c := range cases {
		d, err := time.Parse("15:04:05", c.hhmmss)
		require.NoError(t, err)
		// 2024-01-01 is a Monday.
		ts := time.Date(2024, 1, 1, d.Hour(), d.Minute(), d.Second(), 0, time.UTC)
		action := actionAt(ts, model.ActionUpdateConfig, "r1")
		res, err := ev.Evaluate(context.Background(), action)
		require.NoError(t, err)
		fired := len(res.Violations) == 1
		assert.Equalf(t, c.want, fired, "at %s", c.hhmmss)
	}
}

func TestTimeWindow_WrapAcrossWeekBoundary(t *testing.T) {
	store, err := Load([]byte(`
policies:
  - policy_id: POL-WEEKEND
    severity: low
    description: weekend freeze
    predicate:
      kind: time_window
      start_day: friday
      start_time: "18:00:00"
      end_day: monday
      end_time: "08:00:00"
`))
	require.NoError(t, err)
	ev := NewEvaluator(store, nil)

	sat := time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC) // Saturday
	res, err := ev.Evaluate(context.Background(), actionAt(sat, model.ActionRestartService, "r1"))
	require.NoError(t, err)
	assert.Len(t, res.Violations, 1)

	wed := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC) // Wednesday
	res, err = ev.Evaluate(context.Background(), actionAt(wed, model.ActionRestartService, "r1"))
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
}

func TestEvaluate_Scenario1_CriticalDRViolation(t *testing.T) {
	store, err := Load([]byte(`
policies:
  - policy_id: POL-DR-001
    severity: critical
    description: do not delete disaster-recovery resources
    predicate:
      kind: tag_match
      key: disaster-recovery
      value: "true"
      actions: [delete_resource]
`))
	require.NoError(t, err)

	lookup := staticLookup{resources: map[string]*model.Resource{
		"vm-dr-01": {
			Name: "vm-dr-01",
			Tags: map[string]string{"disaster-recovery": "true", "environment": "production"},
			Dependents: []string{"dr-failover-service", "backup-coordinator"},
		},
	}}
	ev := NewEvaluator(store, lookup)

	action := &model.ProposedAction{
		ActionID:   "a-1",
		AgentID:    "cost-optimization-agent",
		ActionType: model.ActionDeleteResource,
		Target:     model.Target{ResourceID: "vm-dr-01", ResourceType: "Microsoft.Compute/virtualMachines"},
		Timestamp:  time.Now(),
	}
	res, err := ev.Evaluate(context.Background(), action)
	require.NoError(t, err)

	assert.True(t, res.HasCriticalViolation)
	assert.GreaterOrEqual(t, res.Score, 90.0)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "POL-DR-001", res.Violations[0].PolicyID)
}

func TestEvaluate_MinDependents_OnlyFiresForDestructiveActions(t *testing.T) {
	store, err := Load([]byte(`
policies:
  - policy_id: POL-BLAST-RADIUS
    severity: high
    description: destructive action on a widely depended-on resource
    predicate:
      kind: min_dependents
      min_dependents: 2
`))
	require.NoError(t, err)

	lookup := staticLookup{resources: map[string]*model.Resource{
		"nsg-1": {Name: "nsg-1", Dependents: []string{"vm-a", "vm-b"}},
	}}
	ev := NewEvaluator(store, lookup)

	nonDestructive := actionAt(time.Now(), model.ActionScaleUp, "nsg-1")
	res, err := ev.Evaluate(context.Background(), nonDestructive)
	require.NoError(t, err)
	assert.Empty(t, res.Violations)

	destructive := actionAt(time.Now(), model.ActionModifyNSG, "nsg-1")
	res, err = ev.Evaluate(context.Background(), destructive)
	require.NoError(t, err)
	assert.Len(t, res.Violations, 1)
}

func TestEvaluate_UnknownTarget(t *testing.T) {
	store, err := Load([]byte(`
policies:
  - policy_id: POL-ENV
    severity: medium
    description: production changes need review
    predicate:
      kind: env_requires_review
`))
	require.NoError(t, err)
	ev := NewEvaluator(store, staticLookup{resources: map[string]*model.Resource{}})

	res, err := ev.Evaluate(context.Background(), actionAt(time.Now(), model.ActionScaleUp, "unknown"))
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
	assert.False(t, res.HasCriticalViolation)
}

func TestLoad_RejectsUnknownPredicateKind(t *testing.T) {
	_, err := Load([]byte(`
policies:
  - policy_id: POL-X
    severity: low
    description: bogus
    predicate:
      kind: made_up
`))
	require.Error(t, err)
}

func TestLoad_RejectsDuplicatePolicyID(t *testing.T) {
	_, err := Load([]byte(`
policies:
  - policy_id: POL-X
    severity: low
    description: a
    predicate: {kind: action_in, actions: [scale_up]}
  - policy_id: POL-X
    severity: low
    description: b
    predicate: {kind: action_in, actions: [scale_down]}
`))
	require.Error(t, err)
}
