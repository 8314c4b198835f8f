package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/ikflowgo/internal/testutil"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	out := &bytes.Buffer{}
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"-h"}, noEnv)

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"train", "--this-is-not-a-valid-flag"}, noEnv)

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_Resolve(t *testing.T) {
	t.Parallel()

	srv := testutil.NewArtifactServer(t, map[string]string{"/robot_x-v1.bin": "robot_x weights"})
	dir := testutil.WriteFiles(t, map[string]string{
		"models.yaml": fmt.Sprintf("robot_x:\n  model_weights_url: %s/robot_x-v1.bin\n  robot_name: robot_x\n", srv.URL),
	})
	args := []string{"resolve", "--registry", filepath.Join(dir, "models.yaml"), "--cache-dir", t.TempDir(), "robot_x"}

	out, logs := &bytes.Buffer{}, &bytes.Buffer{}
	require.NoError(t, run(context.Background(), out, logs, args, noEnv))
	require.Contains(t, out.String(), "robot:        robot_x")
	require.Contains(t, logs.String(), `"msg":"Model resolved."`)
}

func TestRun_TrainSmokeTest(t *testing.T) {
	t.Parallel()

	args := []string{"train", "--model_type", "ikflow", "--smoke_test", "--n_epochs", "1", "--log-level", "warn",
		"--checkpoint_dir", filepath.Join(t.TempDir(), "ckpt")}

	out := &bytes.Buffer{}
	require.NoError(t, run(context.Background(), out, &bytes.Buffer{}, args, noEnv))
	require.Contains(t, out.String(), "steps:       391")
}

func TestRun_TrainFailure(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"train", "--model_type", "mdn"}, noEnv)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mdn")
}
