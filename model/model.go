// Package model provides the trivial trainable models the simulated
// clients and the server-side evaluator run. Models are constructed
// from configuration through an enumerated registry; there is no
// reflection-based instantiation.
package model

import (
	"errors"
	"fmt"

	"github.com/fedbench/fedsim/config"
	"github.com/fedbench/fedsim/dataset"
	"github.com/fedbench/fedsim/pkg/fl"
)

var (
	ErrUnknownModel  = errors.New("unknown model name")
	ErrShapeMismatch = errors.New("parameter shape mismatch")
)

// TrainOptions drive one epoch of local SGD. Correction, when non-nil,
// is added to every gradient (the SCAFFOLD c - c_i term) and must have
// the model's parameter shape.
type TrainOptions struct {
	LearningRate float64
	Momentum     float64
	WeightDecay  float64
	Correction   fl.Parameters
	ShuffleSeed  int64
}

// Model is a trainable classifier over flat feature vectors.
type Model interface {
	Parameters() fl.Parameters
	SetParameters(params fl.Parameters) error
	// TrainEpoch runs one pass of mini-batch SGD and returns the number
	// of optimizer steps taken.
	TrainEpoch(loader *dataset.Loader, opts TrainOptions) (int, error)
	// Evaluate returns mean cross-entropy loss and accuracy. It does
	// not mutate the model.
	Evaluate(loader *dataset.Loader) (loss, accuracy float64, err error)
}

type builder func(cfg config.ModelConfig) (Model, error)

var builders = map[string]builder{
	"logreg": newLogReg,
	"mlp":    newMLP,
}

// New constructs the model named by cfg.Name.
func New(cfg config.ModelConfig) (Model, error) {
	build, ok := builders[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, cfg.Name)
	}

	return build(cfg)
}
