// Package server builds the server-side evaluation closure injected
// into the aggregation strategy.
package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/fedbench/fedsim/config"
	"github.com/fedbench/fedsim/dataset"
	"github.com/fedbench/fedsim/model"
	"github.com/fedbench/fedsim/pkg/fl"
	"github.com/fedbench/fedsim/strategy"
)

var ErrUnsupportedDevice = errors.New("only cpu evaluation is supported")

// GenEvaluateFn returns the function the strategy calls after each
// aggregation round to score the global model on the shared test set.
// The returned function performs inference only: for fixed parameters
// and round number it always yields the same loss and metrics.
func GenEvaluateFn(testLoader *dataset.Loader, device string, modelCfg config.ModelConfig) (strategy.EvaluateFn, error) {
	if device != "cpu" {
		return nil, fmt.Errorf("%w, got %q", ErrUnsupportedDevice, device)
	}

	return func(ctx context.Context, round int, params fl.Parameters) (float64, map[string]float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}

		m, err := model.New(modelCfg)
		if err != nil {
			return 0, nil, err
		}
		if err := m.SetParameters(params); err != nil {
			return 0, nil, err
		}

		loss, accuracy, err := m.Evaluate(testLoader)
		if err != nil {
			return 0, nil, err
		}

		return loss, map[string]float64{"accuracy": accuracy}, nil
	}, nil
}
