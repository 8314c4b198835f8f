package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `
panda_tpm:
  model_weights_url: https://storage.googleapis.com/ikflow_models/panda_tpm.pkl
  robot_name: panda_arm
  nb_nodes: 12
  dim_latent_space: 7
  coupling_layer: glow
  softflow_enabled: true
  rnvp_clamp: 2.5

robot_x:
  model_weights_url: https://host/robot_x-v1.bin
  robot_name: robot_x
  nb_nodes: 6
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidDocument(t *testing.T) {
	path := writeFile(t, t.TempDir(), "model_descriptions.yaml", validDoc)

	reg, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"panda_tpm", "robot_x"}, reg.Names())

	e, err := reg.Lookup("panda_tpm")
	require.NoError(t, err)
	assert.Equal(t, "panda_tpm", e.Name)
	assert.Equal(t, "https://storage.googleapis.com/ikflow_models/panda_tpm.pkl", e.SourceURL)
	assert.Equal(t, "panda_arm", e.RobotName)
	assert.Equal(t, map[string]any{
		"nb_nodes":         12,
		"dim_latent_space": 7,
		"coupling_layer":   "glow",
		"softflow_enabled": true,
		"rnvp_clamp":       2.5,
	}, e.HyperparameterFields())
}

func TestLookup_NotFound(t *testing.T) {
	reg, err := New(nil)
	require.NoError(t, err)

	_, err = reg.Lookup("missing")
	var nf NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.Name)
}

func TestEntry_FieldsAreCopied(t *testing.T) {
	reg, err := New(map[string]map[string]any{
		"m": {"model_weights_url": "https://h/m.pkl", "robot_name": "fetch", "nb_nodes": 3},
	})
	require.NoError(t, err)

	e, err := reg.Lookup("m")
	require.NoError(t, err)
	fields := e.HyperparameterFields()
	fields["nb_nodes"] = 100

	again, _ := reg.Lookup("m")
	assert.Equal(t, 3, again.HyperparameterFields()["nb_nodes"])
}

func TestLoad_ReportsEveryMalformedEntry(t *testing.T) {
	doc := `
no_url:
  robot_name: panda_arm
empty_robot:
  model_weights_url: https://h/a.pkl
  robot_name: ""
wrong_type:
  model_weights_url: 42
  robot_name: fetch
nested:
  model_weights_url: https://h/b.pkl
  robot_name: fetch
  layers: [1, 2, 3]
scalar: just-a-string
good:
  model_weights_url: https://h/c.pkl
  robot_name: fetch
`
	path := writeFile(t, t.TempDir(), "bad.yaml", doc)

	_, err := Load(context.Background(), path)
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Problems, 5)
	msg := err.Error()
	assert.Contains(t, msg, "model 'no_url': missing required key 'model_weights_url'")
	assert.Contains(t, msg, "model 'empty_robot': key 'robot_name' must not be empty")
	assert.Contains(t, msg, "model 'wrong_type': key 'model_weights_url' must be a string, got int")
	assert.Contains(t, msg, "model 'nested': hyperparameter 'layers' must be a string, number or bool")
	assert.Contains(t, msg, "model 'scalar': descriptor must be a mapping")
}

func TestLoad_DirectoryMergesAndRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "m1:\n  model_weights_url: https://h/m1.pkl\n  robot_name: fetch\n")
	writeFile(t, dir, "nested/b.yml", "m2:\n  model_weights_url: https://h/m2.pkl\n  robot_name: baxter\n")

	reg, err := Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, reg.Names())

	writeFile(t, dir, "c.yaml", "m1:\n  model_weights_url: https://h/other.pkl\n  robot_name: fetch\n")
	_, err = Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model 'm1': declared more than once")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yaml", "m1: [unclosed\n")
	_, err := Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse registry document")
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
