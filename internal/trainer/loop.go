package trainer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/specialistvlad/ikflowgo/internal/checkpoint"
	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
	"github.com/specialistvlad/ikflowgo/internal/policy"
	"github.com/specialistvlad/ikflowgo/internal/runconfig"
	"github.com/specialistvlad/ikflowgo/internal/scheduler"
	"github.com/specialistvlad/ikflowgo/internal/tracking"
)

// Progress is the mutable state of a run. Only the loop writes it.
type Progress struct {
	Step       int
	TotalSteps int
	Epoch      int
	LastLoss   float64

	LastEvaluation Evaluation
	Evaluations    int

	// BestSavedL2Error is informational. The save gate never consults it.
	BestSavedL2Error float64
	Saves            int
	SavedPaths       []string

	// LastFired holds the last step each action fired at.
	LastFired map[scheduler.Kind]int
}

// Options configures a Loop.
type Options struct {
	RunID   string
	Config  runconfig.Config
	Stepper Stepper
	Sink    tracking.Sink
	// Checkpoints is required when saving is enabled.
	Checkpoints *checkpoint.Store
	// Extra is merged into the hyperparameters reported to the sink.
	Extra map[string]any
}

// Loop runs one training job.
type Loop struct {
	o Options
}

// New validates o and returns a loop.
func New(o Options) (*Loop, error) {
	var errs []error
	if o.RunID == "" {
		errs = append(errs, errors.New("run ID is required"))
	}
	if o.Stepper == nil {
		errs = append(errs, errors.New("stepper is required"))
	}
	if o.Sink == nil {
		errs = append(errs, errors.New("tracking sink is required"))
	}
	if o.Config.Save.Enabled && o.Checkpoints == nil {
		errs = append(errs, errors.New("checkpoint store is required when saving is enabled"))
	}
	if o.Config.Training.StepsPerEpoch < 1 {
		errs = append(errs, fmt.Errorf("steps per epoch must be at least 1, got %d", o.Config.Training.StepsPerEpoch))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Loop{o: o}, nil
}

// LearningRate returns the step-decayed learning rate at step.
func LearningRate(cfg runconfig.Config, step int) float64 {
	hp := cfg.Hyperparameters
	return hp.LearningRate() * math.Pow(hp.Gamma(), float64(step/hp.StepLREveryK()))
}

// Run trains for n_epochs x steps_per_epoch steps and returns the final
// progress. On error the progress up to the failure is returned with it.
func (l *Loop) Run(ctx context.Context) (Progress, error) {
	ctx, logger := ctxlog.With(ctx, "run_id", l.o.RunID)
	cfg := l.o.Config
	total := cfg.Training.TotalSteps(cfg.Hyperparameters)

	p := Progress{
		TotalSteps:       total,
		BestSavedL2Error: math.Inf(1),
		LastFired:        make(map[scheduler.Kind]int),
	}

	sched := scheduler.New()
	if err := l.register(sched, &p); err != nil {
		return p, err
	}

	if err := l.o.Sink.LogHyperparameters(ctx, l.reportedHyperparameters()); err != nil {
		return p, fmt.Errorf("logging hyperparameters: %w", err)
	}

	logger.Info("Training started.",
		"total_steps", total,
		"steps_per_epoch", cfg.Training.StepsPerEpoch,
		"log_every", cfg.Logging.PeriodSteps,
		"eval_every", cfg.Evaluation.PeriodSteps,
		"dist_plots", cfg.Logging.DistPlotsEnabled,
		"save_enabled", cfg.Save.Enabled,
	)
	start := time.Now()

	// Tick receives the number of completed steps, 0..total.
	if err := sched.Tick(ctx, 0); err != nil {
		return p, err
	}
	for step := 0; step < total; step++ {
		loss, err := l.o.Stepper.Step(ctx, step)
		if err != nil {
			return p, fmt.Errorf("training step %d: %w", step, err)
		}
		p.Step = step + 1
		p.Epoch = step / cfg.Training.StepsPerEpoch
		p.LastLoss = loss

		if err := sched.Tick(ctx, p.Step); err != nil {
			return p, err
		}
		if p.Step%cfg.Training.StepsPerEpoch == 0 {
			logger.Debug("Epoch complete.", "epoch", p.Epoch, "step", p.Step, "loss", loss)
		}
	}

	logger.Info("Training complete.",
		"steps", p.Step,
		"evaluations", p.Evaluations,
		"saves", p.Saves,
		"duration", time.Since(start),
	)
	return p, nil
}

func (l *Loop) register(sched *scheduler.Scheduler, p *Progress) error {
	cfg := l.o.Config

	if err := sched.Register(scheduler.Log, cfg.Logging.PeriodSteps, func(ctx context.Context, step int) error {
		p.LastFired[scheduler.Log] = step
		scalars := map[string]float64{
			"learning_rate": LearningRate(cfg, step),
			"epoch":         float64(p.Epoch),
		}
		// No loss exists before the first step.
		if step > 0 {
			scalars["loss"] = p.LastLoss
		}
		return l.o.Sink.LogScalars(ctx, step, scalars)
	}); err != nil {
		return err
	}

	if cfg.Logging.DistPlotsEnabled {
		if err := sched.Register(scheduler.DistPlot, cfg.Logging.DistPlotPeriodSteps, func(ctx context.Context, step int) error {
			p.LastFired[scheduler.DistPlot] = step
			errs, err := l.o.Stepper.Sample(ctx, step, max(cfg.Evaluation.SamplesPerPose, 1))
			if err != nil {
				return err
			}
			return l.o.Sink.LogScalars(ctx, step, summarize("dist_l2_error", errs))
		}); err != nil {
			return err
		}
	}

	if err := sched.Register(scheduler.Eval, cfg.Evaluation.PeriodSteps, func(ctx context.Context, step int) error {
		p.LastFired[scheduler.Eval] = step
		ev, err := l.o.Stepper.Evaluate(ctx, step, cfg.Evaluation)
		if err != nil {
			return err
		}
		p.LastEvaluation = ev
		p.Evaluations++

		metrics := map[string]float64{"l2_error": ev.L2Error, "angular_error": ev.AngularError}
		if err := l.o.Sink.LogScalars(ctx, step, metrics); err != nil {
			return err
		}
		if !policy.ShouldSave(ev.L2Error, ev.AngularError, cfg.Save) {
			return nil
		}
		if err := l.save(ctx, p, step, checkpoint.ReasonEvaluation, metrics); err != nil {
			return err
		}
		p.BestSavedL2Error = math.Min(p.BestSavedL2Error, ev.L2Error)
		return nil
	}); err != nil {
		return err
	}

	if cfg.Save.Enabled && cfg.Save.CheckpointEverySteps > 0 {
		if err := sched.Register(scheduler.Save, cfg.Save.CheckpointEverySteps, func(ctx context.Context, step int) error {
			p.LastFired[scheduler.Save] = step
			// Nothing has been trained yet at step 0.
			if step == 0 {
				return nil
			}
			return l.save(ctx, p, step, checkpoint.ReasonPeriodic, nil)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) save(ctx context.Context, p *Progress, step int, reason checkpoint.Reason, metrics map[string]float64) error {
	state := l.o.Stepper.State()
	sum := sha256.Sum256(state)

	path, err := l.o.Checkpoints.Save(ctx, checkpoint.Checkpoint{
		RunID:           l.o.RunID,
		Step:            step,
		Reason:          reason,
		Robot:           l.o.Config.Training.Robot,
		Metrics:         metrics,
		Hyperparameters: l.o.Config.Hyperparameters.Fields(),
		WeightsDigest:   hex.EncodeToString(sum[:]),
		State:           state,
	})
	if err != nil {
		return err
	}
	p.Saves++
	p.SavedPaths = append(p.SavedPaths, path)
	return nil
}

func (l *Loop) reportedHyperparameters() map[string]any {
	cfg := l.o.Config
	out := cfg.Hyperparameters.Fields()
	out["robot"] = cfg.Training.Robot
	out["model_type"] = string(cfg.ModelType)
	out["seed"] = cfg.Training.Seed
	out["smoke_test"] = cfg.SmokeTest
	out["dataset_tag"] = cfg.Training.DatasetTag
	out["test_description"] = cfg.Training.TestDescription
	out["use_small_dataset"] = cfg.Training.UseSmallDataset
	out["log_dist_plots"] = cfg.Logging.DistPlotsEnabled
	out["n_poses_per_evaluation"] = cfg.Evaluation.PosesPerEval
	out["n_samples_per_pose"] = cfg.Evaluation.SamplesPerPose
	for k, v := range l.o.Extra {
		out[k] = v
	}
	return out
}
