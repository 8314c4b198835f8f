package trainer

import (
	"context"
	"errors"
	"testing"

	"github.com/specialistvlad/ikflowgo/internal/checkpoint"
	"github.com/specialistvlad/ikflowgo/internal/hparams"
	"github.com/specialistvlad/ikflowgo/internal/policy"
	"github.com/specialistvlad/ikflowgo/internal/runconfig"
	"github.com/specialistvlad/ikflowgo/internal/scheduler"
	"github.com/specialistvlad/ikflowgo/internal/testutil"
	"github.com/specialistvlad/ikflowgo/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted returns fixed evaluations per step and counts calls.
type scripted struct {
	evals   map[int]Evaluation
	failAt  int
	stepped int
}

func (s *scripted) Step(_ context.Context, step int) (float64, error) {
	if s.failAt > 0 && step == s.failAt {
		return 0, errors.New("diverged")
	}
	s.stepped++
	return float64(step), nil
}

func (s *scripted) Evaluate(_ context.Context, step int, _ policy.EvaluationPolicy) (Evaluation, error) {
	ev, ok := s.evals[step]
	if !ok {
		return Evaluation{L2Error: 1, AngularError: 1}, nil
	}
	return ev, nil
}

func (s *scripted) Sample(_ context.Context, step, n int) ([]float64, error) {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out, nil
}

func (s *scripted) State() []byte { return []byte("state") }

func smallConfig(t *testing.T, stepsPerEpoch int) runconfig.Config {
	t.Helper()
	hp, err := hparams.Default().With(map[string]any{"n_epochs": 1, "step_lr_every_k": 50})
	require.NoError(t, err)
	return runconfig.Config{
		ModelType:       runconfig.ModelIKFlow,
		Logging:         policy.LoggingPolicy{PeriodSteps: 10},
		Evaluation:      policy.EvaluationPolicy{PeriodSteps: 20, PosesPerEval: 2, SamplesPerPose: 3},
		Save:            policy.SavePolicy{Enabled: true, L2ErrorThreshold: 0.1, AngularErrorThreshold: 1.0},
		Hyperparameters: hp,
		Training:        runconfig.Training{Robot: "panda_arm", StepsPerEpoch: stepsPerEpoch},
	}
}

func newStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestRun_SmokeTestCadences(t *testing.T) {
	f := runconfig.DefaultFlags()
	f.ModelType = "ikflow"
	f.SmokeTest = true
	f.NEpochs = 1
	cfg, err := runconfig.Build(f)
	require.NoError(t, err)
	require.Equal(t, 391, cfg.Training.TotalSteps(cfg.Hyperparameters))

	sink := &tracking.MemorySink{}
	loop, err := New(Options{RunID: "smoke", Config: cfg, Stepper: NewSimulated(1, nil, 100), Sink: sink})
	require.NoError(t, err)

	ctx, _ := testutil.LogContext(t)
	progress, err := loop.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 391, progress.Step)
	assert.Equal(t, []int{0, 50, 100, 150, 200, 250, 300, 350}, sink.Steps("learning_rate"))
	assert.Equal(t, []int{50, 100, 150, 200, 250, 300, 350}, sink.Steps("loss"), "no loss before the first step")
	assert.Empty(t, sink.Steps("dist_l2_error_p50"), "distribution plots are off by default")
	assert.Equal(t, []int{0, 250}, sink.Steps("l2_error"))
	assert.Equal(t, 2, progress.Evaluations)
	assert.Equal(t, 0, progress.Saves, "smoke tests never save")
	assert.Equal(t, 350, progress.LastFired[scheduler.Log])
	assert.Equal(t, 250, progress.LastFired[scheduler.Eval])

	params := sink.Hyperparameters()
	require.Len(t, params, 1)
	assert.Equal(t, true, params[0]["smoke_test"])
	assert.Equal(t, 6, params[0]["nb_nodes"])
}

func TestRun_SavesOnlyWhenGatePasses(t *testing.T) {
	cfg := smallConfig(t, 100)
	store := newStore(t)
	stepper := &scripted{evals: map[int]Evaluation{
		0:  {L2Error: 0.5, AngularError: 0.5},
		20: {L2Error: 0.05, AngularError: 0.5},
		40: {L2Error: 0.1, AngularError: 0.5},
		60: {L2Error: 0.05, AngularError: 1.0},
		80: {L2Error: 0.01, AngularError: 0.2},
		// The fully trained model is evaluated and gated too.
		100: {L2Error: 0.02, AngularError: 0.3},
	}}
	sink := &tracking.MemorySink{}

	loop, err := New(Options{RunID: "gate", Config: cfg, Stepper: stepper, Sink: sink, Checkpoints: store})
	require.NoError(t, err)
	progress, err := loop.Run(context.Background())
	require.NoError(t, err)

	steps, err := store.Steps("gate")
	require.NoError(t, err)
	assert.Equal(t, []int{20, 80, 100}, steps)
	assert.Equal(t, 3, progress.Saves)
	assert.Equal(t, 0.01, progress.BestSavedL2Error)
	assert.Equal(t, 6, progress.Evaluations)
	assert.Equal(t, 100, progress.LastFired[scheduler.Eval])

	saved, err := store.Load("gate", 80)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.ReasonEvaluation, saved.Reason)
	assert.Equal(t, []byte("state"), saved.State)
	assert.Equal(t, 0.01, saved.Metrics["l2_error"])
	assert.NotEmpty(t, saved.WeightsDigest)
}

func TestRun_FireCountsCoverFinalStep(t *testing.T) {
	testCases := []struct {
		name          string
		stepsPerEpoch int
		wantEvalSteps []int
		wantLogFires  int
	}{
		{"period divides total", 100, []int{0, 20, 40, 60, 80, 100}, 11},
		{"period does not divide total", 95, []int{0, 20, 40, 60, 80}, 10},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := smallConfig(t, tc.stepsPerEpoch)
			cfg.Save.Enabled = false
			sink := &tracking.MemorySink{}
			loop, err := New(Options{RunID: "counts", Config: cfg, Stepper: &scripted{}, Sink: sink})
			require.NoError(t, err)

			progress, err := loop.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.stepsPerEpoch, progress.Step)
			assert.Equal(t, tc.wantEvalSteps, sink.Steps("l2_error"))
			assert.Len(t, sink.Steps("learning_rate"), tc.wantLogFires)
			assert.Equal(t, len(tc.wantEvalSteps), progress.Evaluations)
		})
	}
}

func TestRun_DistributionPlots(t *testing.T) {
	f := runconfig.DefaultFlags()
	f.ModelType = "ikflow"
	f.SmokeTest = true
	f.NEpochs = 1
	f.LogDistPlots = true
	cfg, err := runconfig.Build(f)
	require.NoError(t, err)

	sink := &tracking.MemorySink{}
	loop, err := New(Options{RunID: "dist", Config: cfg, Stepper: &scripted{}, Sink: sink})
	require.NoError(t, err)
	progress, err := loop.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 100, 200, 300}, sink.Steps("dist_l2_error_p50"))
	assert.Equal(t, 300, progress.LastFired[scheduler.DistPlot])

	var record map[string]float64
	for _, r := range sink.Scalars() {
		if r.Step == 100 {
			if _, ok := r.Scalars["dist_l2_error_max"]; ok {
				record = r.Scalars
			}
		}
	}
	require.NotNil(t, record)
	// Smoke mode draws 25 samples per pose; scripted samples are 1..25.
	assert.Equal(t, 1.0, record["dist_l2_error_min"])
	assert.Equal(t, 13.0, record["dist_l2_error_p50"])
	assert.Equal(t, 25.0, record["dist_l2_error_max"])
}

func TestSummarize(t *testing.T) {
	got := summarize("x", []float64{4, 1, 3, 2, 10, 9, 8, 7, 6, 5})
	assert.Equal(t, map[string]float64{
		"x_min": 1, "x_p50": 5, "x_p90": 9, "x_max": 10, "x_mean": 5.5,
	}, got)
	assert.Empty(t, summarize("x", nil))
}

func TestRun_PeriodicCheckpoints(t *testing.T) {
	cfg := smallConfig(t, 100)
	cfg.Save.L2ErrorThreshold = 0
	cfg.Save.CheckpointEverySteps = 30
	store := newStore(t)

	loop, err := New(Options{RunID: "periodic", Config: cfg, Stepper: &scripted{}, Sink: &tracking.MemorySink{}, Checkpoints: store})
	require.NoError(t, err)
	progress, err := loop.Run(context.Background())
	require.NoError(t, err)

	steps, err := store.Steps("periodic")
	require.NoError(t, err)
	assert.Equal(t, []int{30, 60, 90}, steps)
	assert.Equal(t, 90, progress.LastFired[scheduler.Save])

	saved, err := store.Load("periodic", 60)
	require.NoError(t, err)
	assert.Equal(t, checkpoint.ReasonPeriodic, saved.Reason)
}

func TestRun_IsDeterministicForASeed(t *testing.T) {
	run := func(seed int64) []tracking.ScalarRecord {
		cfg := smallConfig(t, 200)
		cfg.Save.Enabled = false
		sink := &tracking.MemorySink{}
		loop, err := New(Options{RunID: "det", Config: cfg, Stepper: NewSimulated(seed, nil, 50), Sink: sink})
		require.NoError(t, err)
		_, err = loop.Run(context.Background())
		require.NoError(t, err)
		return sink.Scalars()
	}

	assert.Equal(t, run(7), run(7))
	assert.NotEqual(t, run(7), run(8))
}

func TestRun_LearningRateDecays(t *testing.T) {
	cfg := smallConfig(t, 100)
	assert.Equal(t, cfg.Hyperparameters.LearningRate(), LearningRate(cfg, 49))
	assert.InDelta(t, cfg.Hyperparameters.LearningRate()*cfg.Hyperparameters.Gamma(), LearningRate(cfg, 50), 1e-15)
}

func TestRun_StepperErrorStopsRun(t *testing.T) {
	cfg := smallConfig(t, 100)
	stepper := &scripted{failAt: 42}
	loop, err := New(Options{RunID: "fail", Config: cfg, Stepper: stepper, Sink: &tracking.MemorySink{}, Checkpoints: newStore(t)})
	require.NoError(t, err)

	progress, err := loop.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "training step 42: diverged")
	assert.Equal(t, 42, progress.Step)
}

func TestRun_Cancelled(t *testing.T) {
	cfg := smallConfig(t, 100)
	cfg.Save.Enabled = false
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loop, err := New(Options{RunID: "cancel", Config: cfg, Stepper: NewSimulated(0, nil, 10), Sink: &tracking.MemorySink{}})
	require.NoError(t, err)
	_, err = loop.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	cfg := smallConfig(t, 0)
	_, err := New(Options{Config: cfg})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "run ID is required")
	assert.Contains(t, msg, "stepper is required")
	assert.Contains(t, msg, "tracking sink is required")
	assert.Contains(t, msg, "checkpoint store is required")
	assert.Contains(t, msg, "steps per epoch must be at least 1")
}

func TestSimulated_StateEvolves(t *testing.T) {
	s := NewSimulated(3, []byte("pretrained-weights"), 10)
	before := s.State()
	assert.Equal(t, []byte("pretrained-weights"), before)

	_, err := s.Step(context.Background(), 0)
	require.NoError(t, err)
	assert.NotEqual(t, before, s.State())

	early, err := s.Evaluate(context.Background(), 0, policy.EvaluationPolicy{PosesPerEval: 10, SamplesPerPose: 10})
	require.NoError(t, err)
	late, err := s.Evaluate(context.Background(), 100, policy.EvaluationPolicy{PosesPerEval: 10, SamplesPerPose: 10})
	require.NoError(t, err)
	assert.Less(t, late.L2Error, early.L2Error)
	assert.Less(t, late.AngularError, early.AngularError)
}
