package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestNewConfig(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "train needs no registry", cfg: Config{Command: CommandTrain}},
		{name: "resolve", cfg: Config{Command: CommandResolve, Model: "m", RegistryPath: "r.yaml", CacheDir: "c"}},
		{name: "resolve without model", cfg: Config{Command: CommandResolve, RegistryPath: "r.yaml", CacheDir: "c"}, wantErr: "resolve requires a model name"},
		{name: "unknown command", cfg: Config{Command: "serve"}, wantErr: `unknown command "serve"`},
		{name: "bad port", cfg: Config{Command: CommandTrain, HealthcheckPort: 70000}, wantErr: "out of range"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(tc.cfg)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.cfg, *cfg)
		})
	}
}

func TestNewConfig_InitModelNeedsRegistry(t *testing.T) {
	cfg := Config{Command: CommandTrain}
	cfg.Run.InitModel = "panda_tpm"
	_, err := NewConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry path is required")
	assert.Contains(t, err.Error(), "cache directory is required")
}

func TestRegistryPathFromEnv(t *testing.T) {
	assert.Equal(t, DefaultRegistryPath, RegistryPathFromEnv(env(nil)))
	assert.Equal(t, "/etc/ikflow.yaml", RegistryPathFromEnv(env(map[string]string{EnvRegistry: "/etc/ikflow.yaml"})))
}

func TestCacheDirFromEnv(t *testing.T) {
	dir, err := CacheDirFromEnv(env(map[string]string{EnvModelsDir: "/scratch/models"}))
	require.NoError(t, err)
	assert.Equal(t, "/scratch/models", dir)

	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	t.Setenv("HOME", "/tmp/home")
	dir, err = CacheDirFromEnv(env(nil))
	require.NoError(t, err)
	assert.Equal(t, "models", filepath.Base(dir))
	assert.Equal(t, "ikflow", filepath.Base(filepath.Dir(dir)))
}
