package app

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/ikflowgo/internal/artifact"
	"github.com/specialistvlad/ikflowgo/internal/checkpoint"
	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
	"github.com/specialistvlad/ikflowgo/internal/hparams"
	"github.com/specialistvlad/ikflowgo/internal/model"
	"github.com/specialistvlad/ikflowgo/internal/registry"
	"github.com/specialistvlad/ikflowgo/internal/resolver"
	"github.com/specialistvlad/ikflowgo/internal/robot"
	"github.com/specialistvlad/ikflowgo/internal/runconfig"
	"github.com/specialistvlad/ikflowgo/internal/stagger"
	"github.com/specialistvlad/ikflowgo/internal/tracking"
	"github.com/specialistvlad/ikflowgo/internal/trainer"
)

// Run executes the configured command.
func (a *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "command", a.config.Command)

	if a.config.HealthcheckPort > 0 {
		if _, err := a.startHealthcheckServer(ctx, a.config.HealthcheckPort); err != nil {
			return err
		}
		defer func() {
			if cerr := a.closeHealthcheckServer(ctx); err == nil {
				err = cerr
			}
		}()
	}

	switch a.config.Command {
	case CommandTrain:
		err = a.train(ctx)
	case CommandResolve:
		err = a.resolve(ctx)
	default:
		err = fmt.Errorf("unknown command %q", a.config.Command)
	}

	a.logger.Debug("App.Run method finished.")
	return err
}

// waitForTurn waits out the job array startup delay. It runs before anything
// that may download.
func (a *App) waitForTurn(ctx context.Context) error {
	return stagger.Apply(ctx, stagger.LookupFunc(a.lookupEnv))
}

func (a *App) newResolver(ctx context.Context) (*resolver.Resolver, error) {
	reg, err := registry.Load(ctx, a.config.RegistryPath)
	if err != nil {
		return nil, err
	}
	cache := artifact.New(a.config.CacheDir, a.cacheOpts...)
	a.logger.Debug("Resolver ready.", "models", reg.Len(), "cache_dir", cache.Dir())
	return resolver.New(reg, cache), nil
}

func (a *App) resolve(ctx context.Context) error {
	if err := a.waitForTurn(ctx); err != nil {
		return err
	}
	res, err := a.newResolver(ctx)
	if err != nil {
		return err
	}
	solver, hp, err := res.Resolve(ctx, a.config.Model)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.outW, "model:        %s\n", a.config.Model)
	fmt.Fprintf(a.outW, "robot:        %s\n", solver.Robot().Name)
	fmt.Fprintf(a.outW, "n_parameters: %d\n", solver.NParameters())
	fmt.Fprintf(a.outW, "sha256:       %s\n", solver.Digest())
	fmt.Fprintf(a.outW, "%s\n", hp)
	return nil
}

func (a *App) train(ctx context.Context) error {
	cfg, err := runconfig.Build(a.config.Run)
	if err != nil {
		return err
	}

	if err := a.waitForTurn(ctx); err != nil {
		return err
	}

	rb, err := robot.Lookup(cfg.Training.Robot)
	if err != nil {
		return err
	}

	solver, hp, err := a.initialSolver(ctx, cfg, rb)
	if err != nil {
		return err
	}
	cfg.Hyperparameters = hp
	a.logger.Info("Model built.",
		"robot", rb.Name,
		"n_parameters", solver.NParameters(),
		"hyperparameters", cfg.Hyperparameters.String(),
	)

	runID := fmt.Sprintf("%s-%s-seed%d", rb.Name, time.Now().UTC().Format("20060102T150405"), cfg.Training.Seed)
	ctx, logger := ctxlog.With(ctx, "run_id", runID)

	sink, err := a.openSink(ctx, cfg, runID)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(ctx); err != nil {
			logger.Warn("Closing tracking sink failed.", "error", err)
		}
	}()

	var store *checkpoint.Store
	if cfg.Save.Enabled {
		if store, err = checkpoint.NewStore(cfg.Training.CheckpointDir); err != nil {
			return err
		}
	}

	total := cfg.Training.TotalSteps(cfg.Hyperparameters)
	stepper := trainer.NewSimulated(cfg.Training.Seed, solver.State(), float64(max(total/5, 1)))
	loop, err := trainer.New(trainer.Options{
		RunID:       runID,
		Config:      cfg,
		Stepper:     stepper,
		Sink:        sink,
		Checkpoints: store,
		Extra:       map[string]any{"n_parameters": solver.NParameters(), "init_model": cfg.Training.InitModel},
	})
	if err != nil {
		return err
	}

	progress, err := loop.Run(ctx)
	if err != nil {
		return fmt.Errorf("training run %s failed at step %d: %w", runID, progress.Step, err)
	}
	if err := solver.LoadState(stepper.State()); err != nil {
		return fmt.Errorf("loading trained state: %w", err)
	}

	fmt.Fprintf(a.outW, "run:         %s\n", runID)
	fmt.Fprintf(a.outW, "steps:       %d\n", progress.Step)
	fmt.Fprintf(a.outW, "evaluations: %d\n", progress.Evaluations)
	fmt.Fprintf(a.outW, "checkpoints: %d\n", progress.Saves)
	fmt.Fprintf(a.outW, "sha256:      %s\n", solver.Digest())
	return nil
}

// initialSolver builds an untrained solver, or resolves the pretrained model
// named by init_model. It returns the hyperparameters to train with: a
// pretrained model keeps its architecture and takes the run's training
// settings.
func (a *App) initialSolver(ctx context.Context, cfg runconfig.Config, rb robot.Robot) (*model.Solver, hparams.Record, error) {
	if cfg.Training.InitModel == "" {
		solver, err := model.Build(cfg.Hyperparameters, rb)
		return solver, cfg.Hyperparameters, err
	}

	res, err := a.newResolver(ctx)
	if err != nil {
		return nil, hparams.Record{}, err
	}
	solver, pretrained, err := res.Resolve(ctx, cfg.Training.InitModel)
	if err != nil {
		return nil, hparams.Record{}, err
	}
	if solver.Robot().Name != rb.Name {
		return nil, hparams.Record{}, fmt.Errorf("init_model %q was trained for robot %q, not %q", cfg.Training.InitModel, solver.Robot().Name, rb.Name)
	}
	hp, err := pretrained.With(cfg.Hyperparameters.TrainingFields())
	if err != nil {
		return nil, hparams.Record{}, fmt.Errorf("init_model %q: %w", cfg.Training.InitModel, err)
	}
	a.logger.Info("Training from pretrained model.", "init_model", cfg.Training.InitModel, "hyperparameters", hp.String())
	return solver, hp, nil
}

func (a *App) openSink(ctx context.Context, cfg runconfig.Config, runID string) (tracking.Sink, error) {
	sinks := tracking.Multi{tracking.LogSink{}}
	if cfg.Training.TrackingURL != "" {
		remote, err := a.dialSink(ctx, cfg.Training.TrackingURL, runID)
		if err != nil {
			return nil, fmt.Errorf("connecting to experiment tracker: %w", err)
		}
		sinks = append(sinks, remote)
	}
	return sinks, nil
}
