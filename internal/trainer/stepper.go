package trainer

import (
	"context"
	"encoding/binary"
	"math"
	"math/rand/v2"

	"github.com/specialistvlad/ikflowgo/internal/policy"
)

// Evaluation is the mean error of a solver over an evaluation batch.
type Evaluation struct {
	L2Error      float64
	AngularError float64
}

// Stepper performs optimisation steps and evaluations.
type Stepper interface {
	// Step runs optimisation step number step and returns its loss.
	Step(ctx context.Context, step int) (float64, error)
	// Evaluate measures the current model as configured by p.
	Evaluate(ctx context.Context, step int, p policy.EvaluationPolicy) (Evaluation, error)
	// Sample returns the L2 errors of n solutions drawn for a single target
	// pose.
	Sample(ctx context.Context, step, n int) ([]float64, error)
	// State returns the current model state.
	State() []byte
}

// Simulated is a Stepper whose loss and errors decay exponentially with
// seeded noise. It exercises the orchestration without a network to train.
type Simulated struct {
	rng   *rand.Rand
	decay float64
	state []byte
}

const simulatedStateSize = 64

// NewSimulated returns a stepper seeded with seed. initial is the starting
// state, e.g. pretrained weights; when empty a seeded state is generated.
// decaySteps is the e-folding time of the simulated errors.
func NewSimulated(seed int64, initial []byte, decaySteps float64) *Simulated {
	rng := rand.New(rand.NewPCG(uint64(seed), 0x1f2e3d4c))
	state := append([]byte(nil), initial...)
	if len(state) == 0 {
		state = make([]byte, simulatedStateSize)
		for i := range state {
			state[i] = byte(rng.UintN(256))
		}
	}
	if decaySteps <= 0 {
		decaySteps = 1
	}
	return &Simulated{rng: rng, decay: decaySteps, state: state}
}

func (s *Simulated) envelope(step int) float64 {
	return math.Exp(-float64(step) / s.decay)
}

// Step perturbs the state and returns a decaying noisy loss.
func (s *Simulated) Step(ctx context.Context, step int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// Perturb one word of the state so saved checkpoints differ over time.
	if words := len(s.state) / 8; words > 0 {
		off := (step % words) * 8
		w := binary.LittleEndian.Uint64(s.state[off:]) ^ s.rng.Uint64()
		binary.LittleEndian.PutUint64(s.state[off:], w)
	}
	loss := 10*s.envelope(step) - 5 + 0.05*s.rng.NormFloat64()
	return loss, nil
}

// Evaluate averages simulated errors over PosesPerEval x SamplesPerPose draws.
func (s *Simulated) Evaluate(ctx context.Context, step int, p policy.EvaluationPolicy) (Evaluation, error) {
	n := p.PosesPerEval * p.SamplesPerPose
	if n < 1 {
		n = 1
	}
	env := s.envelope(step)
	var l2, ang float64
	for i := 0; i < n; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return Evaluation{}, err
			}
		}
		l2 += (0.5*env + 0.005) * math.Abs(1+0.1*s.rng.NormFloat64())
		ang += (3.0*env + 0.02) * math.Abs(1+0.1*s.rng.NormFloat64())
	}
	return Evaluation{L2Error: l2 / float64(n), AngularError: ang / float64(n)}, nil
}

// Sample draws n simulated L2 errors around the current error level.
func (s *Simulated) Sample(ctx context.Context, step, n int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := s.envelope(step)
	out := make([]float64, n)
	for i := range out {
		out[i] = (0.5*env + 0.005) * math.Abs(1+0.3*s.rng.NormFloat64())
	}
	return out, nil
}

// State returns a copy of the current state.
func (s *Simulated) State() []byte {
	return append([]byte(nil), s.state...)
}
