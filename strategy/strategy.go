// Package strategy holds the server-side aggregation algorithms and
// the registry that instantiates them from configuration. The registry
// is a finite, enumerated map of constructors; no reflective
// instantiation is involved.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/fedbench/fedsim/config"
	"github.com/fedbench/fedsim/pkg/fl"
)

var (
	ErrUnknownStrategy = errors.New("unknown strategy name")
	ErrNilEvaluateFn   = errors.New("strategy requires an evaluate function")
	ErrNoUpdates       = errors.New("no updates to aggregate")
	ErrZeroSamples     = errors.New("cannot aggregate: total samples is zero")
	ErrShapeMismatch   = errors.New("cannot aggregate: mismatched parameter shapes")
)

// EvaluateFn scores the global model after a round: the server calls
// it with the round number and the then-current global parameters.
type EvaluateFn func(ctx context.Context, round int, params fl.Parameters) (loss float64, metrics map[string]float64, err error)

// FitInstructions is what a sampled client receives for one round.
// ServerCV is nil for strategies without control variates.
type FitInstructions struct {
	Params   fl.Parameters
	ServerCV fl.Parameters
}

// Strategy is a long-lived server-side aggregation algorithm; one
// instance drives the whole simulation.
type Strategy interface {
	Name() string
	// Sample picks the participants for a round.
	Sample(rng *rand.Rand, numClients int) []int
	// ConfigureFit prepares the instructions sent to every participant.
	ConfigureFit(round int, global fl.Parameters) FitInstructions
	// Aggregate folds the round's client updates into new global
	// parameters.
	Aggregate(round int, global fl.Parameters, updates []fl.Update) (fl.Parameters, error)
	// Evaluate scores the global model via the injected EvaluateFn.
	Evaluate(ctx context.Context, round int, params fl.Parameters) (float64, map[string]float64, error)
}

type builder func(cfg config.StrategyConfig, evaluateFn EvaluateFn) (Strategy, error)

var builders = map[string]builder{
	"fedavg":   newFedAvg,
	"scaffold": newScaffold,
}

// New instantiates the strategy named by cfg.Name, injecting the
// evaluation function.
func New(cfg config.StrategyConfig, evaluateFn EvaluateFn) (Strategy, error) {
	build, ok := builders[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Name)
	}
	if evaluateFn == nil {
		return nil, ErrNilEvaluateFn
	}

	return build(cfg, evaluateFn)
}

// sampleClients draws max(min_fit_clients, fraction*n) distinct client
// ids, clamped to n, in ascending order.
func sampleClients(rng *rand.Rand, n int, fraction float64, minClients int) []int {
	k := int(fraction * float64(n))
	if k < minClients {
		k = minClients
	}
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil
	}

	picked := rng.Perm(n)[:k]
	sort.Ints(picked)

	return picked
}

// weightedAverage is sample-count-weighted parameter averaging over
// client updates.
func weightedAverage(updates []fl.Update) (fl.Parameters, error) {
	if len(updates) == 0 {
		return nil, ErrNoUpdates
	}

	total := 0
	for _, u := range updates {
		total += u.NumSamples
	}
	if total == 0 {
		return nil, ErrZeroSamples
	}

	agg := fl.ZerosLike(updates[0].Params)
	for _, u := range updates {
		if !fl.SameShape(u.Params, agg) {
			return nil, ErrShapeMismatch
		}
		w := float64(u.NumSamples) / float64(total)
		for i := range agg {
			for j := range agg[i] {
				agg[i][j] += w * u.Params[i][j]
			}
		}
	}

	return agg, nil
}

// uniformMean averages a list of parameter deltas with equal weight.
func uniformMean(deltas []fl.Parameters) (fl.Parameters, error) {
	if len(deltas) == 0 {
		return nil, ErrNoUpdates
	}

	agg := fl.ZerosLike(deltas[0])
	inv := 1.0 / float64(len(deltas))
	for _, d := range deltas {
		if !fl.SameShape(d, agg) {
			return nil, ErrShapeMismatch
		}
		for i := range agg {
			for j := range agg[i] {
				agg[i][j] += inv * d[i][j]
			}
		}
	}

	return agg, nil
}
