package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(step int) Checkpoint {
	return Checkpoint{
		RunID:           "run-1",
		Step:            step,
		Reason:          ReasonEvaluation,
		Robot:           "panda_arm",
		Metrics:         map[string]float64{"l2_error": 0.01},
		Hyperparameters: map[string]any{"nb_nodes": float64(6)},
		State:           []byte{1, 2, 3},
		CreatedAt:       time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	path, err := store.Save(context.Background(), sample(250))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-1", "step-250.json"), path)

	got, err := store.Load("run-1", 250)
	require.NoError(t, err)
	if diff := cmp.Diff(sample(250), got); diff != "" {
		t.Errorf("loaded checkpoint mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "run-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files may remain")
}

func TestSave_SetsCreatedAt(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	c := sample(0)
	c.CreatedAt = time.Time{}
	_, err = store.Save(context.Background(), c)
	require.NoError(t, err)

	got, err := store.Load("run-1", 0)
	require.NoError(t, err)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSave_RejectsInvalid(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	bad := Checkpoint{RunID: "../escape", Step: -1, Reason: "whim"}
	_, err = store.Save(context.Background(), bad)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "not a valid directory name")
	assert.Contains(t, msg, "step must be >= 0")
	assert.Contains(t, msg, `invalid reason "whim"`)
	assert.Contains(t, msg, "state is required")
}

func TestSteps(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	steps, err := store.Steps("run-1")
	require.NoError(t, err)
	assert.Empty(t, steps)

	for _, step := range []int{1000, 250, 500} {
		_, err := store.Save(context.Background(), sample(step))
		require.NoError(t, err)
	}
	steps, err = store.Steps("run-1")
	require.NoError(t, err)
	assert.Equal(t, []int{250, 500, 1000}, steps)
}

func TestNewStore_RequiresDir(t *testing.T) {
	_, err := NewStore(" ")
	assert.Error(t, err)
}
