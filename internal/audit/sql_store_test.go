package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-governance/sentinel/internal/model"
	"github.com/sentinel-governance/sentinel/internal/sentinelerr"
)

func TestSQLStore_RecordAndGetByID(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLStore(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	v := sampleVerdict("a-1", "vm-1", 40, time.Now())
	require.NoError(t, store.Record(context.Background(), v))

	got, err := store.GetByID(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, "vm-1", got.ResourceID)

	_, err = store.GetByID(context.Background(), "missing")
	assert.True(t, sentinelerr.IsNotFound(err))
}

func TestSQLStore_Record_IdempotentByActionID(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLStore(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	v := sampleVerdict("a-1", "vm-1", 40, time.Now())
	require.NoError(t, store.Record(context.Background(), v))
	require.NoError(t, store.Record(context.Background(), v))

	recent, err := store.GetRecent(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestSQLStore_GetRecent_OrderingAndTiebreak(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLStore(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(context.Background(), sampleVerdict("a-2", "vm-1", 10, ts)))
	require.NoError(t, store.Record(context.Background(), sampleVerdict("a-1", "vm-1", 10, ts)))

	recent, err := store.GetRecent(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Same timestamp: tie broken by action_id ascending.
	assert.Equal(t, "a-1", recent[0].ActionID)
	assert.Equal(t, "a-2", recent[1].ActionID)
}

func TestSQLStore_VerifyIntegrity_DetectsTamper(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLStore(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Record(context.Background(), sampleVerdict("a-1", "vm-1", 10, time.Now())))
	require.NoError(t, store.Record(context.Background(), sampleVerdict("a-2", "vm-2", 20, time.Now())))

	status, err := store.VerifyIntegrity(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Valid)

	_, err = store.db.Exec(`UPDATE verdicts SET event_hash = 'tampered' WHERE action_id = 'a-1'`)
	require.NoError(t, err)

	status, err = store.VerifyIntegrity(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Valid)
	assert.Equal(t, 0, status.BrokenAt)
}

func TestSQLStore_Aggregate(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSQLStore(filepath.Join(dir, "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	v1 := sampleVerdict("a-1", "vm-1", 10, time.Now())
	v1.Decision = model.DecisionApproved
	v2 := sampleVerdict("a-2", "vm-1", 80, time.Now())
	v2.Decision = model.DecisionDenied
	require.NoError(t, store.Record(context.Background(), v1))
	require.NoError(t, store.Record(context.Background(), v2))

	agg, err := store.Aggregate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, agg.TotalEvaluations)
	assert.InDelta(t, 45.0, agg.CompositeAvg, 0.001)
}
