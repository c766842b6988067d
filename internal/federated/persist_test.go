package federated

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_SaveAndLoad_RoundTrips(t *testing.T) {
	c, err := NewCoordinator(CoordinatorConfig{Dimension: 2})
	require.NoError(t, err)

	h, err := c.BeginSession("agent-1", false, 0)
	require.NoError(t, err)
	require.NoError(t, h.RecordTrajectory([]float32{1, 0}, 0.7, "greet"))
	_, err = h.EndSession()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "coordinator.json")
	require.NoError(t, c.Save(path))

	loaded, err := NewCoordinator(CoordinatorConfig{Dimension: 2})
	require.NoError(t, err)
	require.NoError(t, loaded.Load(path))

	assert.Len(t, loaded.Patterns(), 1)
	assert.Equal(t, "default", loaded.activeAdapter)
}

func TestCoordinator_Load_MissingFileIsNotFatal(t *testing.T) {
	c, err := NewCoordinator(CoordinatorConfig{Dimension: 2})
	require.NoError(t, err)
	assert.NoError(t, c.Load(filepath.Join(t.TempDir(), "missing.json")))
}
