package strategy

import (
	"context"
	"math/rand"

	"github.com/fedbench/fedsim/config"
	"github.com/fedbench/fedsim/pkg/fl"
)

// scaffold applies SCAFFOLD's server step: the global model moves by
// the server learning rate times the uniform mean of the clients'
// model deltas, and the server control variate absorbs the scaled mean
// of the clients' control-variate deltas,
//
//	x ← x + eta_g * mean(y_i - x)
//	c ← c + (|S| / N) * mean(delta_c_i)
//
// The server control variate is long-lived state owned by the strategy
// instance.
type scaffold struct {
	fractionFit   float64
	minFitClients int
	etaG          float64
	evaluateFn    EvaluateFn

	numClients int
	serverCV   fl.Parameters
}

func newScaffold(cfg config.StrategyConfig, evaluateFn EvaluateFn) (Strategy, error) {
	etaG := cfg.ServerLearningRate
	if etaG <= 0 {
		etaG = 1.0
	}

	return &scaffold{
		fractionFit:   cfg.FractionFit,
		minFitClients: cfg.MinFitClients,
		etaG:          etaG,
		evaluateFn:    evaluateFn,
	}, nil
}

func (s *scaffold) Name() string { return "scaffold" }

func (s *scaffold) Sample(rng *rand.Rand, numClients int) []int {
	s.numClients = numClients

	return sampleClients(rng, numClients, s.fractionFit, s.minFitClients)
}

func (s *scaffold) ConfigureFit(round int, global fl.Parameters) FitInstructions {
	if s.serverCV == nil {
		s.serverCV = fl.ZerosLike(global)
	}

	return FitInstructions{
		Params:   global.Clone(),
		ServerCV: s.serverCV.Clone(),
	}
}

func (s *scaffold) Aggregate(round int, global fl.Parameters, updates []fl.Update) (fl.Parameters, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}
	if s.numClients < len(updates) {
		s.numClients = len(updates)
	}

	modelDeltas := make([]fl.Parameters, len(updates))
	cvDeltas := make([]fl.Parameters, len(updates))
	for i, u := range updates {
		if !fl.SameShape(u.Params, global) || !fl.SameShape(u.DeltaCV, global) {
			return nil, ErrShapeMismatch
		}
		modelDeltas[i] = fl.Sub(u.Params, global)
		cvDeltas[i] = u.DeltaCV
	}

	meanDelta, err := uniformMean(modelDeltas)
	if err != nil {
		return nil, err
	}
	next := fl.Add(global, fl.Scale(meanDelta, s.etaG))

	meanCVDelta, err := uniformMean(cvDeltas)
	if err != nil {
		return nil, err
	}
	frac := float64(len(updates)) / float64(s.numClients)
	s.serverCV = fl.Add(s.serverCV, fl.Scale(meanCVDelta, frac))

	return next, nil
}

func (s *scaffold) Evaluate(ctx context.Context, round int, params fl.Parameters) (float64, map[string]float64, error) {
	return s.evaluateFn(ctx, round, params)
}
