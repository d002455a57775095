package topology

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTopology = `{
  "resources": [
    {"name": "vm-web-01", "type": "Microsoft.Compute/virtualMachines", "tags": {"tier": "web"}, "dependents": ["lb-1"], "services_hosted": ["checkout"]},
    {"name": "nsg-east-prod", "type": "Microsoft.Network/networkSecurityGroups", "governs": ["vm-web-01", "vm-api-01"]}
  ],
  "dependency_edges": [
    {"from": "nsg-east-prod", "to": "vm-api-01"}
  ]
}`

func writeTopology(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "topology.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleTopology), 0644))
	return path
}

func TestFileStore_LookupAndNeighbors(t *testing.T) {
	store, err := NewFileStore(writeTopology(t))
	require.NoError(t, err)

	r, ok, err := store.Lookup(context.Background(), "vm-web-01")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "web", r.Tags["tier"])

	_, ok, err = store.Lookup(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.Neighbors(context.Background(), "nsg-east-prod")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"vm-web-01", "vm-api-01"}, n.Governs)
	assert.ElementsMatch(t, []string{"vm-api-01"}, n.AdditionalEdges)
}

func TestFileStore_Reload(t *testing.T) {
	path := writeTopology(t)
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"resources":[{"name":"only-one","type":"x"}]}`), 0644))
	require.NoError(t, store.reload())

	_, ok, err := store.Lookup(context.Background(), "vm-web-01")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Lookup(context.Background(), "only-one")
	require.NoError(t, err)
	assert.True(t, ok)
}
