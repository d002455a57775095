package surface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-governance/sentinel/internal/model"
)

func TestDashboard_Evaluations(t *testing.T) {
	facade := buildTestFacade(t, &fakePipeline{})
	require.NoError(t, facade.auditLog.Record(context.Background(), &model.GovernanceVerdict{
		ActionID: "a-1", ResourceID: "vm-1", Decision: model.DecisionApproved, Timestamp: time.Now(),
	}))

	ts := httptest.NewServer(NewDashboard(facade).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/evaluations")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var verdicts []*model.GovernanceVerdict
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verdicts))
	require.Len(t, verdicts, 1)
	assert.Equal(t, "a-1", verdicts[0].ActionID)
}

func TestDashboard_EvaluationByID_NotFound(t *testing.T) {
	facade := buildTestFacade(t, &fakePipeline{})
	ts := httptest.NewServer(NewDashboard(facade).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/evaluations/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDashboard_Metrics(t *testing.T) {
	facade := buildTestFacade(t, &fakePipeline{})
	require.NoError(t, facade.auditLog.Record(context.Background(), &model.GovernanceVerdict{
		ActionID: "a-1", ResourceID: "vm-1", Decision: model.DecisionApproved, Timestamp: time.Now(),
	}))

	ts := httptest.NewServer(NewDashboard(facade).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(1), body["total_evaluations"])
}

func TestDashboard_ResourceRisk(t *testing.T) {
	facade := buildTestFacade(t, &fakePipeline{})
	ts := httptest.NewServer(NewDashboard(facade).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/resources/vm-1/risk")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "vm-1", body["resource_id"])
}

func TestDashboard_Agents_And_AgentHistory(t *testing.T) {
	facade := buildTestFacade(t, &fakePipeline{})
	require.NoError(t, facade.agents.Register(context.Background(), "agent-a", ""))
	require.NoError(t, facade.agents.UpdateStats(context.Background(), "agent-a", model.DecisionApproved, time.Now()))
	require.NoError(t, facade.auditLog.Record(context.Background(), &model.GovernanceVerdict{
		ActionID: "a-1", AgentID: "agent-a", Decision: model.DecisionApproved, Timestamp: time.Now(),
	}))

	ts := httptest.NewServer(NewDashboard(facade).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/agents")
	require.NoError(t, err)
	defer resp.Body.Close()
	var agents []*model.AgentRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&agents))
	require.Len(t, agents, 1)

	resp2, err := http.Get(ts.URL + "/api/agents/agent-a/history")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	var hist []*model.GovernanceVerdict
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&hist))
	require.Len(t, hist, 1)
}

func TestDashboard_LimitOutOfRangeFallsBackToDefault(t *testing.T) {
	assert.Equal(t, 20, parseLimit(""))
	assert.Equal(t, 20, parseLimit("0"))
	assert.Equal(t, 20, parseLimit("101"))
	assert.Equal(t, 50, parseLimit("50"))
}
