package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/specialistvlad/ikflowgo/internal/hparams"
	"github.com/specialistvlad/ikflowgo/internal/robot"
)

// poseDim is the size of the conditioning pose: xyz position plus a quaternion.
const poseDim = 7

// Handle is what callers need from a built model.
type Handle interface {
	NParameters() int
	LoadWeights(path string) error
	State() []byte
}

// Solver is an IK flow model for one robot.
type Solver struct {
	hp    hparams.Record
	robot robot.Robot

	weights []byte
	digest  string
}

// Build constructs an untrained solver.
func Build(hp hparams.Record, r robot.Robot) (*Solver, error) {
	if r.NDofs < 1 {
		return nil, fmt.Errorf("robot '%s' has no degrees of freedom", r.Name)
	}
	if hp.NbNodes() < 1 {
		return nil, fmt.Errorf("hyperparameters are not initialised")
	}
	return &Solver{hp: hp, robot: r}, nil
}

// Hyperparameters returns the record the solver was built from.
func (s *Solver) Hyperparameters() hparams.Record { return s.hp }

// Robot returns the robot the solver solves for.
func (s *Solver) Robot() robot.Robot { return s.robot }

// Dim returns the width of the flow: the joint vector padded up to the
// latent space dimension.
func (s *Solver) Dim() int {
	return max(s.robot.NDofs, s.hp.DimLatentSpace())
}

// NParameters counts the trainable parameters of the coupling stack. Every
// node splits the flow in two halves, each transformed by fully connected
// coefficient networks conditioned on the target pose.
func (s *Solver) NParameters() int {
	dim := s.Dim()
	split1 := dim / 2
	split2 := dim - split1

	cond := poseDim
	if s.hp.SoftflowEnabled() {
		cond++
	}

	var perNode int
	switch s.hp.CouplingLayer() {
	case hparams.CouplingRNVP:
		// Separate scale and translation networks per half.
		perNode = 2*subnetParams(split1+cond, split2, s.hp) + 2*subnetParams(split2+cond, split1, s.hp)
	default:
		perNode = subnetParams(split1+cond, 2*split2, s.hp) + subnetParams(split2+cond, 2*split1, s.hp)
	}
	return s.hp.NbNodes() * perNode
}

func subnetParams(in, out int, hp hparams.Record) int {
	w := hp.CoeffFnInternalSize()
	n := in*w + w
	for i := 1; i < hp.CoeffFnConfig(); i++ {
		n += w*w + w
	}
	return n + w*out + out
}

// LoadWeights reads the weight file at path into the solver.
func (s *Solver) LoadWeights(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read weights: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("weights file %s is empty", path)
	}
	s.setState(data)
	return nil
}

// LoadState replaces the solver's weights with state.
func (s *Solver) LoadState(state []byte) error {
	if len(state) == 0 {
		return fmt.Errorf("state is empty")
	}
	s.setState(append([]byte(nil), state...))
	return nil
}

func (s *Solver) setState(data []byte) {
	sum := sha256.Sum256(data)
	s.weights = data
	s.digest = hex.EncodeToString(sum[:])
}

// State returns a copy of the current weights, or nil for an untrained solver.
func (s *Solver) State() []byte {
	if s.weights == nil {
		return nil
	}
	return append([]byte(nil), s.weights...)
}

// Digest returns the hex SHA-256 of the current weights, or "" when none are loaded.
func (s *Solver) Digest() string { return s.digest }
