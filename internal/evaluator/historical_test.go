package evaluator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-governance/sentinel/internal/model"
)

type stubIncidentStore struct {
	incidents []model.Incident
}

func (s stubIncidentStore) Candidates(ctx context.Context, actionType, resourceType string) ([]model.Incident, error) {
	return s.incidents, nil
}

func TestHistorical_NoCandidatesScoresZero(t *testing.T) {
	h := NewHistorical(stubIncidentStore{})
	action := &model.ProposedAction{ActionType: model.ActionScaleUp, Target: model.Target{ResourceID: "vm-web-01", ResourceType: "Microsoft.Compute/virtualMachines"}}

	res, err := h.Evaluate(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Score)
	assert.Empty(t, res.SimilarIncidents)
}

func TestHistorical_MatchingIncidentPushesScoreUp(t *testing.T) {
	store := stubIncidentStore{incidents: []model.Incident{
		{
			IncidentID:   "INC-1",
			ActionType:   "scale_up",
			ResourceType: "Microsoft.Compute/virtualMachines",
			ResourceName: "vm-web-01",
			Severity:     model.SeverityHigh,
		},
	}}
	h := NewHistorical(store)
	action := &model.ProposedAction{ActionType: model.ActionScaleUp, Target: model.Target{ResourceID: "vm-web-01", ResourceType: "Microsoft.Compute/virtualMachines"}}

	res, err := h.Evaluate(context.Background(), action)
	require.NoError(t, err)
	// action_type(0.40) + resource_type(0.30) + name match(0.20) = 0.90 similarity, severity high weight 75
	assert.InDelta(t, 0.90*75, res.Score, 0.001)
	require.Len(t, res.SimilarIncidents, 1)
	assert.Equal(t, "INC-1", res.MostRelevantIncident.IncidentID)
}

func TestHistorical_BelowThresholdIncidentExcluded(t *testing.T) {
	store := stubIncidentStore{incidents: []model.Incident{
		{IncidentID: "INC-2", ActionType: "restart_service", ResourceType: "Microsoft.Network/networkSecurityGroups", Severity: model.SeverityLow},
	}}
	h := NewHistorical(store)
	action := &model.ProposedAction{ActionType: model.ActionScaleUp, Target: model.Target{ResourceID: "vm-web-01", ResourceType: "Microsoft.Compute/virtualMachines"}}

	res, err := h.Evaluate(context.Background(), action)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Score)
}

func TestHistorical_SecondaryIncidentsContributePartially(t *testing.T) {
	store := stubIncidentStore{incidents: []model.Incident{
		{IncidentID: "INC-A", ActionType: "delete_resource", ResourceType: "Microsoft.Compute/virtualMachines", ResourceName: "vm-dr-01", Severity: model.SeverityCritical},
		{IncidentID: "INC-B", ActionType: "delete_resource", ResourceType: "Microsoft.Compute/virtualMachines", Severity: model.SeverityHigh},
	}}
	h := NewHistorical(store)
	action := &model.ProposedAction{ActionType: model.ActionDeleteResource, Target: model.Target{ResourceID: "vm-dr-01", ResourceType: "Microsoft.Compute/virtualMachines"}}

	res, err := h.Evaluate(context.Background(), action)
	require.NoError(t, err)
	require.Len(t, res.SimilarIncidents, 2)
	assert.Equal(t, "INC-A", res.SimilarIncidents[0].IncidentID)
	// best: 0.90*100 = 90; secondary: 0.70*75*0.20 = 10.5 -> clamped at 100
	assert.Equal(t, 100.0, res.Score)
}
