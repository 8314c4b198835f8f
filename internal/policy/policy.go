// Package policy holds the run policies derived from a run configuration
// and the gate that decides whether an evaluated model is worth saving.
package policy

// LoggingPolicy controls how often training metrics are reported.
type LoggingPolicy struct {
	PeriodSteps         int
	DistPlotPeriodSteps int
	DistPlotsEnabled    bool
}

// EvaluationPolicy controls how often, and how thoroughly, the model is evaluated.
type EvaluationPolicy struct {
	PeriodSteps    int
	PosesPerEval   int
	SamplesPerPose int
}

// SavePolicy controls checkpointing. A model is saved after an evaluation
// only when both errors are strictly below their thresholds.
// CheckpointEverySteps adds an unconditional periodic save; zero disables it.
type SavePolicy struct {
	Enabled               bool
	L2ErrorThreshold      float64
	AngularErrorThreshold float64
	CheckpointEverySteps  int
}

// ShouldSave reports whether an evaluation with the given mean errors passes p.
// NaN errors never pass.
func ShouldSave(l2Error, angularError float64, p SavePolicy) bool {
	return p.Enabled && l2Error < p.L2ErrorThreshold && angularError < p.AngularErrorThreshold
}
