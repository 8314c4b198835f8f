package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/ikflowgo/internal/app"
	"github.com/specialistvlad/ikflowgo/internal/runconfig"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

const usage = `
ikflow - Train and resolve normalizing-flow inverse kinematics solvers.

Usage:
  ikflow train [options]
  ikflow resolve [options] MODEL

Commands:
  train     Train a solver. Options may be read from an HCL run file (--config).
  resolve   Look MODEL up in the registry, fetch its weights and print a summary.

Environment:
  IKFLOW_REGISTRY       Default model registry (file or directory).
  IKFLOW_MODELS_DIR     Default weight cache directory.
  SLURM_ARRAY_TASK_ID   Job array index; delays startup by 5s per index.

Run 'ikflow <command> -h' for the options of a command.
`

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// lookup supplies environment defaults.
func Parse(args []string, output io.Writer, lookup app.LookupFunc) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	if len(args) == 0 {
		fmt.Fprint(output, usage)
		return nil, true, nil
	}

	var (
		cfg *app.Config
		err error
	)
	switch args[0] {
	case "-h", "-help", "--help", "help":
		fmt.Fprint(output, usage)
		return nil, true, nil
	case string(app.CommandTrain):
		cfg, err = parseTrain(args[1:], output, lookup)
	case string(app.CommandResolve):
		cfg, err = parseResolve(args[1:], output, lookup)
	default:
		return nil, false, usageError("unknown command %q; expected 'train' or 'resolve'", args[0])
	}

	if errors.Is(err, flag.ErrHelp) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	slog.Debug("CLI parser finished successfully.", "command", cfg.Command)
	return cfg, false, nil
}

// commonFlags are accepted by every command.
type commonFlags struct {
	registry   string
	cacheDir   string
	logFormat  string
	logLevel   string
	healthPort int
}

func defaultCommonFlags(lookup app.LookupFunc) commonFlags {
	c := commonFlags{
		registry:  app.RegistryPathFromEnv(lookup),
		logFormat: "json",
		logLevel:  "info",
	}
	// Without a usable cache directory, NewConfig reports it if one is needed.
	if dir, err := app.CacheDirFromEnv(lookup); err == nil {
		c.cacheDir = dir
	}
	return c
}

func (c *commonFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.registry, "registry", c.registry, "Model registry: a YAML file or a directory of them.")
	fs.StringVar(&c.cacheDir, "cache-dir", c.cacheDir, "Directory downloaded model weights are cached in.")
	fs.IntVar(&c.healthPort, "healthcheck-port", c.healthPort, "Port for the HTTP health check server. 0 is disabled.")
	fs.StringVar(&c.logFormat, "log-format", c.logFormat, "Log output format. Options: 'text' or 'json'.")
	fs.StringVar(&c.logLevel, "log-level", c.logLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
}

// apply validates the common flags and copies them into cfg.
func (c *commonFlags) apply(cfg *app.Config) error {
	logFormat := strings.ToLower(c.logFormat)
	if logFormat != "text" && logFormat != "json" {
		return usageError("invalid log-format: must be 'text' or 'json'")
	}

	logLevel := strings.ToLower(c.logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}

	cfg.RegistryPath = c.registry
	cfg.CacheDir = c.cacheDir
	cfg.HealthcheckPort = c.healthPort
	cfg.LogFormat = logFormat
	cfg.LogLevel = logLevel
	return nil
}

func newFlagSet(name, synopsis string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("ikflow "+name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "\nUsage:\n  %s\n\nOptions:\n", synopsis)
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError("%s", err.Error())
	}
	return nil
}

// parseTrain parses the arguments twice. The first pass only finds the run
// file. The second binds the flags over the file's values so explicit flags
// win.
func parseTrain(args []string, output io.Writer, lookup app.LookupFunc) (*app.Config, error) {
	const synopsis = "ikflow train [--config RUN_FILE] [options]"

	bindAll := func(fs *flag.FlagSet, run *runconfig.Flags, common *commonFlags, configPath *string) {
		fs.StringVar(configPath, "config", *configPath, "HCL run file with training options.")
		common.bind(fs)
		run.Bind(fs)
	}

	var configPath string
	run := runconfig.DefaultFlags()
	common := defaultCommonFlags(lookup)
	fs := newFlagSet("train", synopsis, output)
	bindAll(fs, &run, &common, &configPath)
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, usageError("train takes no positional arguments, got %q", fs.Args())
	}

	if configPath != "" {
		run = runconfig.DefaultFlags()
		if err := runconfig.LoadFile(context.Background(), configPath, &run); err != nil {
			return nil, usageError("%s", err.Error())
		}
		common = defaultCommonFlags(lookup)
		fs = newFlagSet("train", synopsis, io.Discard)
		bindAll(fs, &run, &common, &configPath)
		if err := parseFlags(fs, args); err != nil {
			return nil, err
		}
	}

	cfg := app.Config{Command: app.CommandTrain, Run: run}
	if err := common.apply(&cfg); err != nil {
		return nil, err
	}
	validated, err := app.NewConfig(cfg)
	if err != nil {
		return nil, usageError("%s", err.Error())
	}
	return validated, nil
}

func parseResolve(args []string, output io.Writer, lookup app.LookupFunc) (*app.Config, error) {
	common := defaultCommonFlags(lookup)
	fs := newFlagSet("resolve", "ikflow resolve [options] MODEL", output)
	common.bind(fs)
	if err := parseFlags(fs, args); err != nil {
		return nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, usageError("resolve requires a MODEL argument")
	}

	// Options may also follow the model name.
	model := fs.Arg(0)
	if err := parseFlags(fs, fs.Args()[1:]); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, usageError("resolve takes exactly one MODEL argument, got extra %q", fs.Args())
	}
	slog.Debug("Model name determined.", "model", model)

	cfg := app.Config{Command: app.CommandResolve, Model: model}
	if err := common.apply(&cfg); err != nil {
		return nil, err
	}
	validated, err := app.NewConfig(cfg)
	if err != nil {
		return nil, usageError("%s", err.Error())
	}
	return validated, nil
}
