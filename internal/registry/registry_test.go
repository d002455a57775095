package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-governance/sentinel/internal/audit"
	"github.com/sentinel-governance/sentinel/internal/model"
)

func TestFileRegistry_RegisterIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	auditDir := t.TempDir()
	auditLog, err := audit.NewFileStore(auditDir)
	require.NoError(t, err)

	reg, err := NewFileRegistry(dir, auditLog)
	require.NoError(t, err)

	require.NoError(t, reg.Register(context.Background(), "agent-a", "https://a.example/card.json"))
	agents, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	first := agents[0].RegisteredAt

	time.Sleep(time.Millisecond)
	require.NoError(t, reg.Register(context.Background(), "agent-a", "https://a.example/card.json"))
	agents, err = reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, first, agents[0].RegisteredAt)
}

func TestFileRegistry_UpdateStats_Invariant(t *testing.T) {
	dir := t.TempDir()
	auditDir := t.TempDir()
	auditLog, err := audit.NewFileStore(auditDir)
	require.NoError(t, err)

	reg, err := NewFileRegistry(dir, auditLog)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, reg.UpdateStats(context.Background(), "agent-b", model.DecisionApproved, now))
	require.NoError(t, reg.UpdateStats(context.Background(), "agent-b", model.DecisionDenied, now.Add(time.Minute)))
	require.NoError(t, reg.UpdateStats(context.Background(), "agent-b", model.DecisionEscalated, now.Add(2*time.Minute)))

	agents, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	rec := agents[0]
	assert.Equal(t, 3, rec.TotalProposed)
	assert.Equal(t, rec.Approved+rec.Escalated+rec.Denied, rec.TotalProposed)
	assert.Equal(t, now.Add(2*time.Minute), rec.LastSeen)
}

func TestFileRegistry_List_NewestLastSeenFirst(t *testing.T) {
	dir := t.TempDir()
	auditDir := t.TempDir()
	auditLog, err := audit.NewFileStore(auditDir)
	require.NoError(t, err)
	reg, err := NewFileRegistry(dir, auditLog)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, reg.UpdateStats(context.Background(), "agent-old", model.DecisionApproved, now))
	require.NoError(t, reg.UpdateStats(context.Background(), "agent-new", model.DecisionApproved, now.Add(time.Hour)))

	agents, err := reg.List(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "agent-new", agents[0].Name)
}

func TestFileRegistry_History_JoinsAuditLogByAgent(t *testing.T) {
	dir := t.TempDir()
	auditDir := t.TempDir()
	auditLog, err := audit.NewFileStore(auditDir)
	require.NoError(t, err)
	reg, err := NewFileRegistry(dir, auditLog)
	require.NoError(t, err)

	now := time.Now().UTC()
	v1 := &model.GovernanceVerdict{ActionID: "a-1", AgentID: "agent-c", Decision: model.DecisionApproved, Timestamp: now}
	v2 := &model.GovernanceVerdict{ActionID: "a-2", AgentID: "agent-other", Decision: model.DecisionApproved, Timestamp: now}
	require.NoError(t, auditLog.Record(context.Background(), v1))
	require.NoError(t, auditLog.Record(context.Background(), v2))

	hist, err := reg.History(context.Background(), "agent-c", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "a-1", hist[0].ActionID)
}
