package hparams

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
)

// Coupling layer kinds understood by the model.
const (
	CouplingGlow = "glow"
	CouplingRNVP = "rnvp"
)

// values is the declared schema. The cty tag is the external field name.
type values struct {
	// Architecture shape.
	CouplingLayer        string  `cty:"coupling_layer"`
	NbNodes              int     `cty:"nb_nodes"`
	DimLatentSpace       int     `cty:"dim_latent_space"`
	CoeffFnConfig        int     `cty:"coeff_fn_config"`
	CoeffFnInternalSize  int     `cty:"coeff_fn_internal_size"`
	PermuteRandomEnabled bool    `cty:"permute_random_enabled"`
	LambdPredict         float64 `cty:"lambd_predict"`
	InitScale            float64 `cty:"init_scale"`
	RNVPClamp            float64 `cty:"rnvp_clamp"`
	YNoiseScale          float64 `cty:"y_noise_scale"`
	ZerosNoiseScale      float64 `cty:"zeros_noise_scale"`
	SoftflowNoiseScale   float64 `cty:"softflow_noise_scale"`
	SoftflowEnabled      bool    `cty:"softflow_enabled"`

	// Training shape.
	LearningRate  float64 `cty:"learning_rate"`
	BatchSize     int     `cty:"batch_size"`
	NEpochs       int     `cty:"n_epochs"`
	GradientClamp float64 `cty:"gradient_clamp"`
	Gamma         float64 `cty:"gamma"`
	StepLREveryK  int     `cty:"step_lr_every_k"`
	Optimizer     string  `cty:"optimizer"`
}

func defaults() values {
	return values{
		CouplingLayer:        CouplingGlow,
		NbNodes:              12,
		DimLatentSpace:       9,
		CoeffFnConfig:        3,
		CoeffFnInternalSize:  1024,
		PermuteRandomEnabled: true,
		LambdPredict:         1.0,
		InitScale:            0.04473500291638653,
		RNVPClamp:            2.5,
		YNoiseScale:          1e-7,
		ZerosNoiseScale:      1e-3,
		SoftflowNoiseScale:   0.01,
		SoftflowEnabled:      true,

		LearningRate:  2.5e-4,
		BatchSize:     64,
		NEpochs:       100,
		GradientClamp: 5.0,
		Gamma:         0.9794578299341784,
		StepLREveryK:  int(2.5e6) / 64,
		Optimizer:     "ranger",
	}
}

// fieldIndex maps an external field name to its index in values.
var fieldIndex = func() map[string]int {
	idx := make(map[string]int)
	t := reflect.TypeOf(values{})
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("cty"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		idx[name] = i
	}
	return idx
}()

// Record is an immutable hyperparameter set. The zero Record is not valid;
// obtain one from Default, Build or a Builder. Records are comparable with ==.
type Record struct {
	v values
}

// Default returns the record with every field at its default value.
func Default() Record {
	return Record{v: defaults()}
}

// Names returns all declared field names, sorted.
func Names() []string {
	names := make([]string, 0, len(fieldIndex))
	for name := range fieldIndex {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Architecture getters. These fix the shape of the weights, so a pretrained
// model keeps them.

// CouplingLayer is the coupling block kind, CouplingGlow or CouplingRNVP.
func (r Record) CouplingLayer() string { return r.v.CouplingLayer }
func (r Record) NbNodes() int { return r.v.NbNodes }
func (r Record) DimLatentSpace() int { return r.v.DimLatentSpace }
func (r Record) CoeffFnConfig() int { return r.v.CoeffFnConfig }
func (r Record) CoeffFnInternalSize() int { return r.v.CoeffFnInternalSize }
func (r Record) PermuteRandomEnabled() bool { return r.v.PermuteRandomEnabled }
func (r Record) LambdPredict() float64 { return r.v.LambdPredict }
func (r Record) InitScale() float64 { return r.v.InitScale }
func (r Record) RNVPClamp() float64 { return r.v.RNVPClamp }
func (r Record) YNoiseScale() float64 { return r.v.YNoiseScale }
func (r Record) ZerosNoiseScale() float64 { return r.v.ZerosNoiseScale }
func (r Record) SoftflowNoiseScale() float64 { return r.v.SoftflowNoiseScale }
func (r Record) SoftflowEnabled() bool { return r.v.SoftflowEnabled }
// Training getters. These only steer optimisation and may change between
// runs of the same architecture.

// LearningRate is the initial learning rate before step decay.
func (r Record) LearningRate() float64 { return r.v.LearningRate }
func (r Record) BatchSize() int { return r.v.BatchSize }
func (r Record) NEpochs() int { return r.v.NEpochs }
func (r Record) GradientClamp() float64 { return r.v.GradientClamp }
func (r Record) Gamma() float64 { return r.v.Gamma }
// StepLREveryK is the number of steps between learning rate decays by Gamma.
func (r Record) StepLREveryK() int { return r.v.StepLREveryK }
func (r Record) Optimizer() string { return r.v.Optimizer }

// Fields returns a fresh map of every field name to its value. Mutating the
// map has no effect on the record.
func (r Record) Fields() map[string]any {
	out := make(map[string]any, len(fieldIndex))
	rv := reflect.ValueOf(r.v)
	for name, i := range fieldIndex {
		out[name] = rv.Field(i).Interface()
	}
	return out
}

// trainingFields are the fields of the training shape.
var trainingFields = []string{"learning_rate", "batch_size", "n_epochs", "gradient_clamp", "gamma", "step_lr_every_k", "optimizer"}

// TrainingFields returns the training-shape fields of r. Layering them over a
// pretrained model's record keeps its architecture and takes r's optimisation
// settings.
func (r Record) TrainingFields() map[string]any {
	all := r.Fields()
	out := make(map[string]any, len(trainingFields))
	for _, name := range trainingFields {
		out[name] = all[name]
	}
	return out
}

// With returns a new record with the given fields layered over r.
func (r Record) With(fields map[string]any) (Record, error) {
	return build(r.v, fields)
}

// String renders the record as sorted name=value pairs.
func (r Record) String() string {
	fields := r.Fields()
	parts := make([]string, 0, len(fields))
	for _, name := range Names() {
		parts = append(parts, fmt.Sprintf("%s=%v", name, fields[name]))
	}
	return "Hyperparameters{" + strings.Join(parts, ", ") + "}"
}

// check returns range problems for an already type-correct set of values.
func (v values) check() []FieldError {
	var problems []FieldError
	add := func(field, format string, args ...any) {
		problems = append(problems, FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	switch v.CouplingLayer {
	case CouplingGlow, CouplingRNVP:
	default:
		add("coupling_layer", "must be one of %q or %q, got %q", CouplingGlow, CouplingRNVP, v.CouplingLayer)
	}

	positiveInts := []struct {
		name string
		val  int
	}{
		{"nb_nodes", v.NbNodes},
		{"dim_latent_space", v.DimLatentSpace},
		{"coeff_fn_config", v.CoeffFnConfig},
		{"coeff_fn_internal_size", v.CoeffFnInternalSize},
		{"batch_size", v.BatchSize},
		{"n_epochs", v.NEpochs},
		{"step_lr_every_k", v.StepLREveryK},
	}
	for _, f := range positiveInts {
		if f.val < 1 {
			add(f.name, "must be at least 1, got %d", f.val)
		}
	}

	finite := []struct {
		name string
		val  float64
	}{
		{"lambd_predict", v.LambdPredict},
		{"init_scale", v.InitScale},
		{"rnvp_clamp", v.RNVPClamp},
		{"y_noise_scale", v.YNoiseScale},
		{"zeros_noise_scale", v.ZerosNoiseScale},
		{"softflow_noise_scale", v.SoftflowNoiseScale},
		{"learning_rate", v.LearningRate},
		{"gradient_clamp", v.GradientClamp},
		{"gamma", v.Gamma},
	}
	nonFinite := make(map[string]bool)
	for _, f := range finite {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			add(f.name, "must be a finite number, got %g", f.val)
			nonFinite[f.name] = true
		}
	}

	positiveFloats := []struct {
		name string
		val  float64
	}{
		{"rnvp_clamp", v.RNVPClamp},
		{"learning_rate", v.LearningRate},
		{"gradient_clamp", v.GradientClamp},
	}
	for _, f := range positiveFloats {
		if !nonFinite[f.name] && !(f.val > 0) {
			add(f.name, "must be greater than 0, got %g", f.val)
		}
	}

	nonNegative := []struct {
		name string
		val  float64
	}{
		{"y_noise_scale", v.YNoiseScale},
		{"zeros_noise_scale", v.ZerosNoiseScale},
		{"softflow_noise_scale", v.SoftflowNoiseScale},
	}
	for _, f := range nonNegative {
		if !nonFinite[f.name] && !(f.val >= 0) {
			add(f.name, "must not be negative, got %g", f.val)
		}
	}

	if !nonFinite["gamma"] && !(v.Gamma > 0 && v.Gamma <= 1) {
		add("gamma", "must be in (0, 1], got %g", v.Gamma)
	}
	if strings.TrimSpace(v.Optimizer) == "" {
		add("optimizer", "must not be empty")
	}
	return problems
}
