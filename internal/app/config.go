package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/ikflowgo/internal/runconfig"
)

// Command selects what Run does.
type Command string

const (
	CommandTrain   Command = "train"
	CommandResolve Command = "resolve"
)

// Environment variables consulted for defaults.
const (
	EnvRegistry  = "IKFLOW_REGISTRY"
	EnvModelsDir = "IKFLOW_MODELS_DIR"
)

// DefaultRegistryPath is used when neither a flag nor EnvRegistry names one.
const DefaultRegistryPath = "model_descriptions.yaml"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command Command
	// Model is the registry name resolved by the resolve command.
	Model string

	RegistryPath string
	CacheDir     string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// Run holds the training flags, already layered over any run file.
	Run runconfig.Flags
}

// NewConfig validates cfg.
func NewConfig(cfg Config) (*Config, error) {
	var errs []string
	switch cfg.Command {
	case CommandTrain:
	case CommandResolve:
		if strings.TrimSpace(cfg.Model) == "" {
			errs = append(errs, "resolve requires a model name")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown command %q", cfg.Command))
	}
	if cfg.RegistryPath == "" && (cfg.Command == CommandResolve || cfg.Run.InitModel != "") {
		errs = append(errs, "registry path is required")
	}
	if cfg.CacheDir == "" && (cfg.Command == CommandResolve || cfg.Run.InitModel != "") {
		errs = append(errs, "cache directory is required")
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		errs = append(errs, fmt.Sprintf("healthcheck port %d is out of range", cfg.HealthcheckPort))
	}
	if len(errs) > 0 {
		return nil, errors.New(strings.Join(errs, "; "))
	}
	return &cfg, nil
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// RegistryPathFromEnv returns the registry location named by the
// environment, or DefaultRegistryPath.
func RegistryPathFromEnv(lookup LookupFunc) string {
	if p, ok := lookup(EnvRegistry); ok && p != "" {
		return p
	}
	return DefaultRegistryPath
}

// CacheDirFromEnv returns the artifact cache location named by the
// environment, or ikflow/models under the user cache directory.
func CacheDirFromEnv(lookup LookupFunc) (string, error) {
	if p, ok := lookup(EnvModelsDir); ok && p != "" {
		return p, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine cache directory: %w", err)
	}
	return filepath.Join(base, "ikflow", "models"), nil
}
