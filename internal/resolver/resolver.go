// Package resolver turns a registry model name into a solver with its
// pretrained weights loaded.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/ikflowgo/internal/ctxlog"
	"github.com/specialistvlad/ikflowgo/internal/hparams"
	"github.com/specialistvlad/ikflowgo/internal/model"
	"github.com/specialistvlad/ikflowgo/internal/registry"
	"github.com/specialistvlad/ikflowgo/internal/robot"
)

// Stage names the resolution step that failed.
type Stage string

const (
	StageLookup          Stage = "registry lookup"
	StageDownload        Stage = "artifact download"
	StageHyperparameters Stage = "hyperparameter reconstruction"
	StageRobot           Stage = "robot lookup"
	StageBuild           Stage = "model construction"
	StageWeights         Stage = "weight loading"
)

// ModelResolutionError wraps whatever went wrong while resolving Model.
type ModelResolutionError struct {
	Model string
	Stage Stage
	Err   error
}

func (e *ModelResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve model %q during %s: %v", e.Model, e.Stage, e.Err)
}

func (e *ModelResolutionError) Unwrap() error {
	return e.Err
}

// Registry looks up model descriptors.
type Registry interface {
	Lookup(name string) (registry.Entry, error)
}

// ArtifactCache maps a source URL to a local file.
type ArtifactCache interface {
	Resolve(ctx context.Context, sourceURL string) (string, error)
}

// RobotLookup finds a robot by name.
type RobotLookup func(name string) (robot.Robot, error)

// Resolver composes the registry, the artifact cache and the robot catalog.
type Resolver struct {
	registry Registry
	cache    ArtifactCache
	robots   RobotLookup
}

// New returns a resolver backed by the built-in robot catalog.
func New(reg Registry, cache ArtifactCache) *Resolver {
	return &Resolver{registry: reg, cache: cache, robots: robot.Lookup}
}

// withRobots returns a copy of r that looks robots up with lookup.
func (r *Resolver) withRobots(lookup RobotLookup) *Resolver {
	cp := *r
	cp.robots = lookup
	return &cp
}

// Resolve returns a solver for name with its weights loaded, together with
// the hyperparameters it was built from. It may download the weights.
func (r *Resolver) Resolve(ctx context.Context, name string) (*model.Solver, hparams.Record, error) {
	ctx, logger := ctxlog.With(ctx, "model", name)
	start := time.Now()
	fail := func(stage Stage, err error) (*model.Solver, hparams.Record, error) {
		logger.Error("Model resolution failed.", "stage", stage, "error", err)
		return nil, hparams.Record{}, &ModelResolutionError{Model: name, Stage: stage, Err: err}
	}

	entry, err := r.registry.Lookup(name)
	if err != nil {
		return fail(StageLookup, err)
	}
	logger.Debug("Descriptor found.", "url", entry.SourceURL, "robot", entry.RobotName)

	path, err := r.cache.Resolve(ctx, entry.SourceURL)
	if err != nil {
		return fail(StageDownload, err)
	}

	hp, err := hparams.Build(entry.HyperparameterFields())
	if err != nil {
		return fail(StageHyperparameters, err)
	}
	logger.Debug("Hyperparameters reconstructed.", "hyperparameters", hp.String())

	rb, err := r.robots(entry.RobotName)
	if err != nil {
		return fail(StageRobot, err)
	}

	solver, err := model.Build(hp, rb)
	if err != nil {
		return fail(StageBuild, err)
	}
	if err := solver.LoadWeights(path); err != nil {
		return fail(StageWeights, err)
	}

	logger.Info("Model resolved.",
		"robot", rb.Name,
		"weights", path,
		"n_parameters", solver.NParameters(),
		"duration", time.Since(start),
	)
	return solver, hp, nil
}
