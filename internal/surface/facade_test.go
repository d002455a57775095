package surface

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-governance/sentinel/internal/audit"
	"github.com/sentinel-governance/sentinel/internal/model"
	"github.com/sentinel-governance/sentinel/internal/registry"
	"github.com/sentinel-governance/sentinel/internal/topology"
)

type fakePipeline struct {
	verdict *model.GovernanceVerdict
	err     error
}

func (f *fakePipeline) Evaluate(ctx context.Context, action *model.ProposedAction) (*model.GovernanceVerdict, error) {
	return f.verdict, f.err
}

func TestFacade_EvaluateAction(t *testing.T) {
	want := &model.GovernanceVerdict{ActionID: "a-1", Decision: model.DecisionApproved}
	auditLog, err := audit.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg, err := registry.NewFileRegistry(t.TempDir(), auditLog)
	require.NoError(t, err)

	topoPath := writeTopologyFixture(t)
	topo, err := topology.NewFileStore(topoPath)
	require.NoError(t, err)

	f := New(&fakePipeline{verdict: want}, auditLog, topo, reg)
	got, err := f.EvaluateAction(context.Background(), &model.ProposedAction{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFacade_GetRecentDecisions_ClampsLimit(t *testing.T) {
	auditLog, err := audit.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg, err := registry.NewFileRegistry(t.TempDir(), auditLog)
	require.NoError(t, err)
	topoPath := writeTopologyFixture(t)
	topo, err := topology.NewFileStore(topoPath)
	require.NoError(t, err)

	require.NoError(t, auditLog.Record(context.Background(), &model.GovernanceVerdict{
		ActionID: "a-1", ResourceID: "vm-1", Timestamp: time.Now(),
	}))

	f := New(&fakePipeline{}, auditLog, topo, reg)
	results, err := f.GetRecentDecisions(context.Background(), 0, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestFacade_GetRiskProfile(t *testing.T) {
	auditLog, err := audit.NewFileStore(t.TempDir())
	require.NoError(t, err)
	reg, err := registry.NewFileRegistry(t.TempDir(), auditLog)
	require.NoError(t, err)
	topoPath := writeTopologyFixture(t)
	topo, err := topology.NewFileStore(topoPath)
	require.NoError(t, err)

	require.NoError(t, auditLog.Record(context.Background(), &model.GovernanceVerdict{
		ActionID: "a-1", ResourceID: "vm-1", Timestamp: time.Now(),
	}))

	f := New(&fakePipeline{}, auditLog, topo, reg)
	profile, err := f.GetRiskProfile(context.Background(), "vm-1", 10)
	require.NoError(t, err)
	require.NotNil(t, profile.Resource)
	assert.Len(t, profile.Recent, 1)
}

func writeTopologyFixture(t *testing.T) string {
	t.Helper()
	path := t.TempDir() + "/topology.json"
	const doc = `{"resources":[{"id":"vm-1","name":"vm-1","type":"Microsoft.Compute/virtualMachines","tags":{"criticality":"high"},"dependents":["svc-a"]}]}`
	require.NoError(t, writeFile(path, doc))
	return path
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}
