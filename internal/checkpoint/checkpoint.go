// Package checkpoint persists model state during a training run under
//
//	<dir>/<run-id>/step-<n>.json
//
// Every write goes to a temporary file that is renamed into place, so a
// checkpoint file is either absent or complete.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
	"github.com/specialistvlad/ikflowgo/internal/fsutil"
)

// Reason records why a checkpoint was taken.
type Reason string

const (
	// ReasonEvaluation marks a save that passed the error thresholds.
	ReasonEvaluation Reason = "evaluation"
	// ReasonPeriodic marks an unconditional save every N steps.
	ReasonPeriodic Reason = "periodic"
)

// Checkpoint is one saved model state with the context needed to reload it.
type Checkpoint struct {
	RunID           string             `json:"run_id"`
	Step            int                `json:"step"`
	Reason          Reason             `json:"reason"`
	Robot           string             `json:"robot"`
	Metrics         map[string]float64 `json:"metrics,omitempty"`
	Hyperparameters map[string]any     `json:"hyperparameters"`
	WeightsDigest   string             `json:"weights_digest,omitempty"`
	State           []byte             `json:"state"`
	CreatedAt       time.Time          `json:"created_at"`
}

// Validate reports every structural problem with c.
func (c Checkpoint) Validate() error {
	var errs []error
	if err := validRunID(c.RunID); err != nil {
		errs = append(errs, err)
	}
	if c.Step < 0 {
		errs = append(errs, fmt.Errorf("step must be >= 0, got %d", c.Step))
	}
	switch c.Reason {
	case ReasonEvaluation, ReasonPeriodic:
	default:
		errs = append(errs, fmt.Errorf("invalid reason %q", c.Reason))
	}
	if len(c.State) == 0 {
		errs = append(errs, errors.New("state is required"))
	}
	return errors.Join(errs...)
}

func validRunID(runID string) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("run_id is required")
	}
	if runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return fmt.Errorf("run_id %q is not a valid directory name", runID)
	}
	return nil
}

// Store reads and writes checkpoints below a base directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created on the
// first save.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("checkpoint directory is required")
	}
	return &Store{dir: dir}, nil
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.dir, runID)
}

// Path returns where the checkpoint of runID at step lives.
func (s *Store) Path(runID string, step int) string {
	return filepath.Join(s.runDir(runID), fmt.Sprintf("step-%d.json", step))
}

// Save writes c and returns its path. A checkpoint already saved for the
// same step is replaced.
func (s *Store) Save(ctx context.Context, c Checkpoint) (string, error) {
	if err := c.Validate(); err != nil {
		return "", fmt.Errorf("invalid checkpoint: %w", err)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.MkdirAll(s.runDir(c.RunID), 0755); err != nil {
		return "", fmt.Errorf("ensure run dir: %w", err)
	}
	path := s.Path(c.RunID, c.Step)
	if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("write checkpoint: %w", err)
	}

	ctxlog.FromContext(ctx).Info("Checkpoint saved.", "path", path, "step", c.Step, "reason", c.Reason, "bytes", len(data))
	return path, nil
}

// Load reads the checkpoint of runID at step.
func (s *Store) Load(runID string, step int) (Checkpoint, error) {
	data, err := os.ReadFile(s.Path(runID, step))
	if err != nil {
		return Checkpoint{}, err
	}
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return Checkpoint{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	return c, nil
}

// Steps returns the steps with a saved checkpoint for runID, ascending. A
// run without checkpoints yields an empty list.
func (s *Store) Steps(runID string) ([]int, error) {
	if err := validRunID(runID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.runDir(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var steps []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "step-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "step-"), ".json"))
		if err != nil {
			continue
		}
		steps = append(steps, n)
	}
	sort.Ints(steps)
	return steps, nil
}
