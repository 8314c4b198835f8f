package runconfig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/ikflowgo/internal/hparams"
	"github.com/specialistvlad/ikflowgo/internal/policy"
)

// ModelType selects the model family being trained.
type ModelType string

const (
	ModelIKFlow ModelType = "ikflow"
	// ModelMDN is reserved. Selecting it fails with NotImplementedError.
	ModelMDN ModelType = "mdn"
)

// Dataset sizes in samples.
const (
	FullDatasetSize  = 2_500_000
	SmallDatasetSize = 25_000
)

// Smoke-test cadences and evaluation sizes.
const (
	smokeLogEvery      = 50
	smokeEvalEvery     = 250
	smokeDistPlotEvery = 100
	smokePoses         = 50
	smokeSamples       = 25

	fullPoses   = 750
	fullSamples = 250
)

// NotImplementedError is returned for a recognised but unsupported option.
type NotImplementedError struct {
	Feature string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("%s is not implemented", e.Feature)
}

// ValidationError lists every invalid run flag.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid run configuration:\n- %s", strings.Join(e.Problems, "\n- "))
}

// Training holds the run settings that are neither policies nor hyperparameters.
type Training struct {
	Robot           string
	TestDescription string
	DatasetTag      string
	InitModel       string
	Seed            int64
	UseSmallDataset bool
	StepsPerEpoch   int
	CheckpointDir   string
	TrackingURL     string
}

// TotalSteps is the number of optimisation steps the run performs.
func (t Training) TotalSteps(hp hparams.Record) int {
	return hp.NEpochs() * t.StepsPerEpoch
}

// Config is everything a training run is driven by. It is built once and
// not modified afterwards.
type Config struct {
	ModelType       ModelType
	SmokeTest       bool
	Logging         policy.LoggingPolicy
	Evaluation      policy.EvaluationPolicy
	Save            policy.SavePolicy
	Hyperparameters hparams.Record
	Training        Training
}

// ParseModelType maps a model type flag to its variant. mdn is recognised
// and rejected; it never falls back to ikflow.
func ParseModelType(s string) (ModelType, error) {
	switch ModelType(strings.ToLower(strings.TrimSpace(s))) {
	case ModelIKFlow:
		return ModelIKFlow, nil
	case ModelMDN:
		return "", &NotImplementedError{Feature: `training with model_type "mdn"`}
	case "":
		return "", fmt.Errorf("model_type is required: must be one of %q or %q", ModelIKFlow, ModelMDN)
	default:
		return "", fmt.Errorf("unknown model_type %q: must be one of %q or %q", s, ModelIKFlow, ModelMDN)
	}
}

// Build validates f and derives the run configuration.
func Build(f Flags) (Config, error) {
	modelType, err := ParseModelType(f.ModelType)
	if err != nil {
		return Config{}, err
	}

	var problems []string
	if strings.TrimSpace(f.Robot) == "" {
		problems = append(problems, "robot must not be empty")
	}
	if f.CheckpointEvery < 0 {
		problems = append(problems, fmt.Sprintf("checkpoint_every must not be negative, got %d", f.CheckpointEvery))
	}

	cfg := Config{ModelType: modelType, SmokeTest: f.SmokeTest}
	if f.SmokeTest {
		cfg.Logging = policy.LoggingPolicy{
			PeriodSteps:         smokeLogEvery,
			DistPlotPeriodSteps: smokeDistPlotEvery,
			DistPlotsEnabled:    f.LogDistPlots,
		}
		cfg.Evaluation = policy.EvaluationPolicy{
			PeriodSteps:    smokeEvalEvery,
			PosesPerEval:   smokePoses,
			SamplesPerPose: smokeSamples,
		}
		cfg.Save = policy.SavePolicy{Enabled: false}
	} else {
		periods := []struct {
			name string
			val  int
		}{
			{"log_training_stats_every", f.LogTrainingStatsEvery},
			{"eval_every_k", f.EvalEveryK},
			{"log_dist_plot_every", f.LogDistPlotEvery},
		}
		for _, p := range periods {
			if p.val < 1 {
				problems = append(problems, fmt.Sprintf("%s must be at least 1, got %d", p.name, p.val))
			}
		}
		cfg.Logging = policy.LoggingPolicy{
			PeriodSteps:         f.LogTrainingStatsEvery,
			DistPlotPeriodSteps: f.LogDistPlotEvery,
			DistPlotsEnabled:    f.LogDistPlots,
		}
		cfg.Evaluation = policy.EvaluationPolicy{
			PeriodSteps:    f.EvalEveryK,
			PosesPerEval:   fullPoses,
			SamplesPerPose: fullSamples,
		}
		cfg.Save = policy.SavePolicy{
			Enabled:               true,
			L2ErrorThreshold:      f.SaveIfMeanL2ErrorBelow,
			AngularErrorThreshold: f.SaveIfMeanAngularErrorBelow,
			CheckpointEverySteps:  f.CheckpointEvery,
		}
	}

	hp, err := hparams.Build(f.hyperparameterFields())
	if err != nil {
		var verr *hparams.ValidationError
		if !errors.As(err, &verr) {
			return Config{}, err
		}
		for _, p := range verr.Problems {
			problems = append(problems, p.String())
		}
	}

	if len(problems) > 0 {
		return Config{}, &ValidationError{Problems: problems}
	}
	cfg.Hyperparameters = hp

	datasetSize := FullDatasetSize
	if f.SmokeTest {
		datasetSize = SmallDatasetSize
	}
	cfg.Training = Training{
		Robot:           f.Robot,
		TestDescription: f.TestDescription,
		DatasetTag:      f.DatasetTag,
		InitModel:       f.InitModel,
		Seed:            f.Seed,
		UseSmallDataset: f.SmokeTest,
		StepsPerEpoch:   (datasetSize + hp.BatchSize() - 1) / hp.BatchSize(),
		CheckpointDir:   f.CheckpointDir,
		TrackingURL:     f.TrackingURL,
	}
	return cfg, nil
}

// hyperparameterFields projects the flags onto hyperparameter record fields.
func (f Flags) hyperparameterFields() map[string]any {
	return map[string]any{
		"coupling_layer":         f.CouplingLayer,
		"rnvp_clamp":             f.RNVPClamp,
		"softflow_noise_scale":   f.SoftflowNoiseScale,
		"softflow_enabled":       f.SoftflowEnabled,
		"nb_nodes":               f.NbNodes,
		"dim_latent_space":       f.DimLatentSpace,
		"coeff_fn_config":        f.CoeffFnConfig,
		"coeff_fn_internal_size": f.CoeffFnInternalSize,
		"y_noise_scale":          f.YNoiseScale,
		"zeros_noise_scale":      f.ZerosNoiseScale,
		"batch_size":             f.BatchSize,
		"gamma":                  f.Gamma,
		"learning_rate":          f.LearningRate,
		"gradient_clamp":         f.GradientClamp,
		"n_epochs":               f.NEpochs,
		"step_lr_every_k":        f.StepLREveryK,
	}
}
