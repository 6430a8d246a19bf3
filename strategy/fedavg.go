package strategy

import (
	"context"
	"math/rand"

	"github.com/fedbench/fedsim/config"
	"github.com/fedbench/fedsim/pkg/fl"
)

// fedAvg replaces the global model with the sample-count-weighted
// average of the clients' local models.
type fedAvg struct {
	fractionFit   float64
	minFitClients int
	evaluateFn    EvaluateFn
}

func newFedAvg(cfg config.StrategyConfig, evaluateFn EvaluateFn) (Strategy, error) {
	return &fedAvg{
		fractionFit:   cfg.FractionFit,
		minFitClients: cfg.MinFitClients,
		evaluateFn:    evaluateFn,
	}, nil
}

func (s *fedAvg) Name() string { return "fedavg" }

func (s *fedAvg) Sample(rng *rand.Rand, numClients int) []int {
	return sampleClients(rng, numClients, s.fractionFit, s.minFitClients)
}

func (s *fedAvg) ConfigureFit(round int, global fl.Parameters) FitInstructions {
	return FitInstructions{Params: global.Clone()}
}

func (s *fedAvg) Aggregate(round int, global fl.Parameters, updates []fl.Update) (fl.Parameters, error) {
	return weightedAverage(updates)
}

func (s *fedAvg) Evaluate(ctx context.Context, round int, params fl.Parameters) (float64, map[string]float64, error) {
	return s.evaluateFn(ctx, round, params)
}
