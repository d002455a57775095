package evaluator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-governance/sentinel/internal/model"
	"github.com/sentinel-governance/sentinel/internal/topology"
)

func TestBlastRadius_UnknownResourceScoresZero(t *testing.T) {
	topo := newFakeTopo(nil, nil)
	b := NewBlastRadius(topo)

	action := &model.ProposedAction{ActionType: model.ActionScaleUp, Target: model.Target{ResourceID: "ghost"}}
	res, err := b.Evaluate(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, "unknown resource", res.Reasoning)
}

func TestBlastRadius_CriticalDRVMWithDependents(t *testing.T) {
	resources := map[string]*model.Resource{
		"vm-dr-01": {Name: "vm-dr-01", Tags: map[string]string{"criticality": "high"}},
	}
	neighbors := map[string]topology.Neighborhood{
		"vm-dr-01": {Dependents: []string{"dr-failover-service", "backup-coordinator"}},
	}
	topo := newFakeTopo(resources, neighbors)
	b := NewBlastRadius(topo)

	action := &model.ProposedAction{ActionType: model.ActionDeleteResource, Target: model.Target{ResourceID: "vm-dr-01"}}
	res, err := b.Evaluate(context.Background(), action)
	require.NoError(t, err)
	// delete(40) + criticality high(20) + 2 dependents*5(10) = 70
	assert.Equal(t, 70.0, res.Score)
	assert.Equal(t, []string{"dr-failover-service", "backup-coordinator"}, res.AffectedResources)
}

func TestBlastRadius_SafeScaleUpLowScore(t *testing.T) {
	resources := map[string]*model.Resource{
		"vm-web-01": {Name: "vm-web-01", Tags: map[string]string{"tier": "web"}},
	}
	topo := newFakeTopo(resources, nil)
	b := NewBlastRadius(topo)

	action := &model.ProposedAction{ActionType: model.ActionScaleUp, Target: model.Target{ResourceID: "vm-web-01"}}
	res, err := b.Evaluate(context.Background(), action)
	require.NoError(t, err)
	// scale_up(10) + criticality unset(0)
	assert.Equal(t, 10.0, res.Score)
}

func TestBlastRadius_SinglePointOfFailureViaGoverns(t *testing.T) {
	resources := map[string]*model.Resource{
		"nsg-east-prod": {Name: "nsg-east-prod", Tags: map[string]string{"criticality": "medium"}},
		"db-orders-01":  {Name: "db-orders-01", Tags: map[string]string{"criticality": "critical"}},
	}
	neighbors := map[string]topology.Neighborhood{
		"nsg-east-prod": {Governs: []string{"db-orders-01"}},
	}
	topo := newFakeTopo(resources, neighbors)
	b := NewBlastRadius(topo)

	action := &model.ProposedAction{ActionType: model.ActionModifyNSG, Target: model.Target{ResourceID: "nsg-east-prod"}}
	res, err := b.Evaluate(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, []string{"db-orders-01"}, res.SinglePointsOfFailure)
	// modify_nsg(30) + criticality medium(10) + 0 dependents + 1 spof(10) = 50
	assert.Equal(t, 50.0, res.Score)
}

func TestBlastRadius_ScoreClampedAt100(t *testing.T) {
	resources := map[string]*model.Resource{
		"vm-1": {Name: "vm-1", Tags: map[string]string{"criticality": "critical"}},
	}
	var many []string
	for i := 0; i < 40; i++ {
		many = append(many, "dep")
	}
	neighbors := map[string]topology.Neighborhood{"vm-1": {Dependents: many}}
	topo := newFakeTopo(resources, neighbors)
	b := NewBlastRadius(topo)

	action := &model.ProposedAction{ActionType: model.ActionDeleteResource, Target: model.Target{ResourceID: "vm-1"}}
	res, err := b.Evaluate(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Score)
}
