package runconfig

import (
	"flag"
	"strings"

	"github.com/specialistvlad/ikflowgo/internal/hparams"
	"github.com/specialistvlad/ikflowgo/internal/robot"
)

// Flags is the raw, unvalidated input of a training run. Field names in the
// hcl tags double as command-line flag names.
type Flags struct {
	Robot           string `hcl:"robot,optional"`
	TestDescription string `hcl:"test_description,optional"`
	ModelType       string `hcl:"model_type,optional"`
	DatasetTag      string `hcl:"dataset_tag,optional"`
	InitModel       string `hcl:"init_model,optional"`
	Seed            int64  `hcl:"seed,optional"`
	CheckpointDir   string `hcl:"checkpoint_dir,optional"`
	TrackingURL     string `hcl:"tracking_url,optional"`

	// Model hyperparameters.
	CouplingLayer       string  `hcl:"coupling_layer,optional"`
	RNVPClamp           float64 `hcl:"rnvp_clamp,optional"`
	SoftflowNoiseScale  float64 `hcl:"softflow_noise_scale,optional"`
	SoftflowEnabled     bool    `hcl:"softflow_enabled,optional"`
	NbNodes             int     `hcl:"nb_nodes,optional"`
	DimLatentSpace      int     `hcl:"dim_latent_space,optional"`
	CoeffFnConfig       int     `hcl:"coeff_fn_config,optional"`
	CoeffFnInternalSize int     `hcl:"coeff_fn_internal_size,optional"`
	YNoiseScale         float64 `hcl:"y_noise_scale,optional"`
	ZerosNoiseScale     float64 `hcl:"zeros_noise_scale,optional"`

	// Training hyperparameters.
	BatchSize     int     `hcl:"batch_size,optional"`
	Gamma         float64 `hcl:"gamma,optional"`
	LearningRate  float64 `hcl:"learning_rate,optional"`
	GradientClamp float64 `hcl:"gradient_clamp,optional"`
	NEpochs       int     `hcl:"n_epochs,optional"`
	StepLREveryK  int     `hcl:"step_lr_every_k,optional"`

	// Logging, evaluation and saving.
	SaveIfMeanL2ErrorBelow      float64 `hcl:"save_if_mean_l2_error_below,optional"`
	SaveIfMeanAngularErrorBelow float64 `hcl:"save_if_mean_angular_error_below,optional"`
	EvalEveryK                  int     `hcl:"eval_every_k,optional"`
	LogTrainingStatsEvery       int     `hcl:"log_training_stats_every,optional"`
	LogDistPlotEvery            int     `hcl:"log_dist_plot_every,optional"`
	LogDistPlots                bool    `hcl:"log_dist_plots,optional"`
	CheckpointEvery             int     `hcl:"checkpoint_every,optional"`
	SmokeTest                   bool    `hcl:"smoke_test,optional"`
}

// DefaultFlags returns the command-line defaults. Several model defaults
// differ from the hyperparameter record defaults.
func DefaultFlags() Flags {
	return Flags{
		Robot:           "panda_arm",
		TestDescription: "not-set",
		CheckpointDir:   "checkpoints",

		CouplingLayer:       hparams.CouplingGlow,
		RNVPClamp:           2.5,
		SoftflowNoiseScale:  0.001,
		SoftflowEnabled:     true,
		NbNodes:             6,
		DimLatentSpace:      8,
		CoeffFnConfig:       3,
		CoeffFnInternalSize: 256,
		YNoiseScale:         1e-7,
		ZerosNoiseScale:     1e-3,

		BatchSize:     64,
		Gamma:         0.9794578299341784,
		LearningRate:  2.5e-4,
		GradientClamp: 5.0,
		NEpochs:       100,
		StepLREveryK:  FullDatasetSize / 64,

		SaveIfMeanL2ErrorBelow:      0.1,
		SaveIfMeanAngularErrorBelow: 3.141592,
		EvalEveryK:                  25000,
		LogTrainingStatsEvery:       20000,
		LogDistPlotEvery:            FullDatasetSize / 64,
		CheckpointEvery:             100000,
	}
}

// Bind registers every field of f on fs. The current values of f become the
// flag defaults, so binding a Flags loaded from a run file makes explicit
// command-line flags override the file.
func (f *Flags) Bind(fs *flag.FlagSet) {
	fs.StringVar(&f.Robot, "robot", f.Robot, "Robot to train a solver for. One of: "+strings.Join(robot.Names(), ", ")+".")
	fs.StringVar(&f.TestDescription, "test_description", f.TestDescription, "Free-form description attached to the run.")
	fs.StringVar(&f.ModelType, "model_type", f.ModelType, "Model type. One of 'ikflow' or 'mdn'. Required.")
	fs.StringVar(&f.DatasetTag, "dataset_tag", f.DatasetTag, "Tag of the training dataset.")
	fs.StringVar(&f.InitModel, "init_model", f.InitModel, "Registry name of a pretrained model to start from.")
	fs.Int64Var(&f.Seed, "seed", f.Seed, "Seed for every source of randomness in the run.")
	fs.StringVar(&f.CheckpointDir, "checkpoint_dir", f.CheckpointDir, "Directory checkpoints are written to.")
	fs.StringVar(&f.TrackingURL, "tracking_url", f.TrackingURL, "socket.io endpoint of the experiment tracker. Empty disables it.")

	fs.StringVar(&f.CouplingLayer, "coupling_layer", f.CouplingLayer, "Coupling layer kind: 'glow' or 'rnvp'.")
	fs.Float64Var(&f.RNVPClamp, "rnvp_clamp", f.RNVPClamp, "Clamp of the rnvp coupling scale.")
	fs.Float64Var(&f.SoftflowNoiseScale, "softflow_noise_scale", f.SoftflowNoiseScale, "Softflow noise scale.")
	fs.BoolVar(&f.SoftflowEnabled, "softflow_enabled", f.SoftflowEnabled, "Enable softflow.")
	fs.IntVar(&f.NbNodes, "nb_nodes", f.NbNodes, "Number of coupling nodes.")
	fs.IntVar(&f.DimLatentSpace, "dim_latent_space", f.DimLatentSpace, "Latent space dimension.")
	fs.IntVar(&f.CoeffFnConfig, "coeff_fn_config", f.CoeffFnConfig, "Depth of the coefficient networks.")
	fs.IntVar(&f.CoeffFnInternalSize, "coeff_fn_internal_size", f.CoeffFnInternalSize, "Width of the coefficient networks.")
	fs.Float64Var(&f.YNoiseScale, "y_noise_scale", f.YNoiseScale, "Noise added to target poses.")
	fs.Float64Var(&f.ZerosNoiseScale, "zeros_noise_scale", f.ZerosNoiseScale, "Noise added to latent padding.")

	fs.IntVar(&f.BatchSize, "batch_size", f.BatchSize, "Training batch size.")
	fs.Float64Var(&f.Gamma, "gamma", f.Gamma, "Learning rate decay factor.")
	fs.Float64Var(&f.LearningRate, "learning_rate", f.LearningRate, "Initial learning rate.")
	fs.Float64Var(&f.GradientClamp, "gradient_clamp", f.GradientClamp, "Gradient clamp.")
	fs.IntVar(&f.NEpochs, "n_epochs", f.NEpochs, "Number of training epochs.")
	fs.IntVar(&f.StepLREveryK, "step_lr_every_k", f.StepLREveryK, "Decay the learning rate every k steps.")

	fs.Float64Var(&f.SaveIfMeanL2ErrorBelow, "save_if_mean_l2_error_below", f.SaveIfMeanL2ErrorBelow, "Save only when the mean L2 error is below this.")
	fs.Float64Var(&f.SaveIfMeanAngularErrorBelow, "save_if_mean_angular_error_below", f.SaveIfMeanAngularErrorBelow, "Save only when the mean angular error is below this.")
	fs.IntVar(&f.EvalEveryK, "eval_every_k", f.EvalEveryK, "Evaluate every k steps.")
	fs.IntVar(&f.LogTrainingStatsEvery, "log_training_stats_every", f.LogTrainingStatsEvery, "Log training statistics every k steps.")
	fs.IntVar(&f.LogDistPlotEvery, "log_dist_plot_every", f.LogDistPlotEvery, "Log distribution plots every k steps.")
	fs.BoolVar(&f.LogDistPlots, "log_dist_plots", f.LogDistPlots, "Generate distribution plots.")
	fs.IntVar(&f.CheckpointEvery, "checkpoint_every", f.CheckpointEvery, "Save a checkpoint every k steps regardless of errors. 0 disables it.")
	fs.BoolVar(&f.SmokeTest, "smoke_test", f.SmokeTest, "Run as a smoke test.")
}
