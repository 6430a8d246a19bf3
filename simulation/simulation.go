// Package simulation schedules client training rounds and server
// aggregation steps. It drives N rounds of client sampling, local
// training, and aggregation over the closures the orchestration layer
// hands it, and returns the accumulated history.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/fedbench/fedsim/client"
	"github.com/fedbench/fedsim/config"
	"github.com/fedbench/fedsim/pkg/events"
	"github.com/fedbench/fedsim/pkg/fl"
	"github.com/fedbench/fedsim/pkg/metrics"
	"github.com/fedbench/fedsim/strategy"
)

var (
	ErrNoClients         = errors.New("simulation requires at least one client")
	ErrNilClientFn       = errors.New("simulation requires a client function")
	ErrNilStrategy       = errors.New("simulation requires a strategy")
	ErrNilInitialParams  = errors.New("simulation requires initial parameters")
	ErrNegativeRounds    = errors.New("num_rounds must not be negative")
	ErrNoGPUsInSimulator = errors.New("client_resources.num_gpus must be zero: gpu execution is not simulated")
)

// Tracker observes run progress; the monitor service implements it.
type Tracker interface {
	RunStarted(runID, strategyName string, numRounds, numClients int)
	ObserveRound(round int, participants []int, loss float64, metrics map[string]float64)
	RunFinished(err error)
}

type noopTracker struct{}

func (noopTracker) RunStarted(string, string, int, int)                  {}
func (noopTracker) ObserveRound(int, []int, float64, map[string]float64) {}
func (noopTracker) RunFinished(error)                                    {}

// Params collects everything a run needs. ClientFn, Strategy, and
// InitialParams are required; Emitter and Tracker default to no-ops.
type Params struct {
	RunID           string
	ClientFn        client.Fn
	NumClients      int
	NumRounds       int
	InitialParams   fl.Parameters
	Strategy        strategy.Strategy
	ClientResources config.ResourceConfig
	Seed            int64
	Logger          *slog.Logger
	Emitter         events.Emitter
	Tracker         Tracker
}

func (p *Params) validate() error {
	if p.ClientFn == nil {
		return ErrNilClientFn
	}
	if p.Strategy == nil {
		return ErrNilStrategy
	}
	if p.InitialParams == nil {
		return ErrNilInitialParams
	}
	if p.NumClients <= 0 {
		return ErrNoClients
	}
	if p.NumRounds < 0 {
		return ErrNegativeRounds
	}
	if p.ClientResources.NumGPUs > 0 {
		return ErrNoGPUsInSimulator
	}

	return nil
}

// Start runs the simulation to completion and returns its history.
// There are no retries and no partial-result salvage: the first client
// or aggregation failure aborts the run and propagates. NumRounds zero
// short-circuits to an empty history.
func Start(ctx context.Context, p Params) (*fl.History, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Emitter == nil {
		p.Emitter = events.NewNoopEmitter()
	}
	if p.Tracker == nil {
		p.Tracker = noopTracker{}
	}

	history := fl.NewHistory()
	if p.NumRounds == 0 {
		return history, nil
	}

	stratName := p.Strategy.Name()
	p.Tracker.RunStarted(p.RunID, stratName, p.NumRounds, p.NumClients)

	rng := rand.New(rand.NewSource(p.Seed))
	sem := newFitSemaphore(p.ClientResources)

	global := p.InitialParams.Clone()

	// Round 0 is the untrained global model's baseline.
	loss, evalMetrics, err := p.Strategy.Evaluate(ctx, 0, global)
	if err != nil {
		p.Tracker.RunFinished(err)

		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}
	history.AddCentralized(0, loss, evalMetrics)
	p.Tracker.ObserveRound(0, nil, loss, evalMetrics)

	for round := 1; round <= p.NumRounds; round++ {
		roundStart := time.Now()

		participants := p.Strategy.Sample(rng, p.NumClients)
		metrics.ParticipantsSampled.WithLabelValues(stratName).Set(float64(len(participants)))

		p.Logger.InfoContext(ctx, "Round started",
			"round", round,
			"strategy", stratName,
			"participants", len(participants))
		emit(ctx, p.Logger, func() error {
			return p.Emitter.EmitRoundStarted(ctx, events.RoundEvent{
				RunID:        p.RunID,
				Round:        round,
				Strategy:     stratName,
				Participants: participants,
				Timestamp:    time.Now(),
			})
		})

		updates, err := runFits(ctx, p, round, global, participants, sem)
		if err != nil {
			return nil, failRound(ctx, p, history, round, stratName, err)
		}

		next, err := p.Strategy.Aggregate(round, global, updates)
		if err != nil {
			return nil, failRound(ctx, p, history, round, stratName, fmt.Errorf("aggregation failed: %w", err))
		}
		metrics.AggregationTotal.WithLabelValues(stratName).Inc()
		global = next

		loss, evalMetrics, err := p.Strategy.Evaluate(ctx, round, global)
		if err != nil {
			return nil, failRound(ctx, p, history, round, stratName, fmt.Errorf("evaluation failed: %w", err))
		}

		history.AddCentralized(round, loss, evalMetrics)
		history.AddDistributedFit(round, averageFitMetrics(updates))
		metrics.CentralLoss.WithLabelValues(stratName).Set(loss)
		metrics.RoundTotal.WithLabelValues(stratName, "completed").Inc()
		metrics.RoundDuration.WithLabelValues(stratName).Observe(time.Since(roundStart).Seconds())
		p.Tracker.ObserveRound(round, participants, loss, evalMetrics)

		p.Logger.InfoContext(ctx, "Round completed",
			"round", round,
			"loss", loss,
			"duration", time.Since(roundStart).String())
		emit(ctx, p.Logger, func() error {
			return p.Emitter.EmitRoundCompleted(ctx, events.RoundEvent{
				RunID:        p.RunID,
				Round:        round,
				Strategy:     stratName,
				Participants: participants,
				Loss:         loss,
				Timestamp:    time.Now(),
			})
		})
	}

	finalLoss := history.LossesCentralized[len(history.LossesCentralized)-1].Value
	emit(ctx, p.Logger, func() error {
		return p.Emitter.EmitRunCompleted(ctx, events.RunEvent{
			RunID:     p.RunID,
			Strategy:  stratName,
			NumRounds: p.NumRounds,
			FinalLoss: finalLoss,
			Timestamp: time.Now(),
		})
	})
	p.Tracker.RunFinished(nil)

	return history, nil
}

// runFits executes the sampled clients' local training concurrently,
// bounded by the resource semaphore.
func runFits(ctx context.Context, p Params, round int, global fl.Parameters, participants []int, sem *fitSemaphore) ([]fl.Update, error) {
	ins := p.Strategy.ConfigureFit(round, global)
	stratName := p.Strategy.Name()

	g, gctx := errgroup.WithContext(ctx)
	updates := make([]fl.Update, len(participants))

	for i, clientID := range participants {
		g.Go(func() error {
			if err := sem.acquire(gctx); err != nil {
				return err
			}
			defer sem.release()

			start := time.Now()
			cl := p.ClientFn(clientID)
			update, err := cl.Fit(gctx, round, ins.Params, ins.ServerCV)
			if err != nil {
				metrics.ClientFitTotal.WithLabelValues(stratName, "failed").Inc()

				return err
			}

			metrics.ClientFitTotal.WithLabelValues(stratName, "completed").Inc()
			metrics.ClientFitDuration.WithLabelValues(stratName).Observe(time.Since(start).Seconds())
			updates[i] = update

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return updates, nil
}

func failRound(ctx context.Context, p Params, history *fl.History, round int, stratName string, err error) error {
	metrics.RoundTotal.WithLabelValues(stratName, "failed").Inc()
	p.Logger.ErrorContext(ctx, "Round failed", "round", round, "error", err)
	emit(ctx, p.Logger, func() error {
		return p.Emitter.EmitRoundFailed(ctx, events.RoundEvent{
			RunID:     p.RunID,
			Round:     round,
			Strategy:  stratName,
			Error:     err.Error(),
			Timestamp: time.Now(),
		})
	})
	p.Tracker.RunFinished(err)

	return fmt.Errorf("round %d: %w", round, err)
}

// emit publishes an event without letting emission failures affect the
// run.
func emit(ctx context.Context, logger *slog.Logger, fn func() error) {
	if err := fn(); err != nil {
		logger.WarnContext(ctx, "Event emission failed", "error", err)
	}
}

// fitSemaphore turns the per-client CPU quota into a bound on how many
// clients train at once: host CPUs divided by the quota, at least one.
type fitSemaphore struct {
	sem    *semaphore.Weighted
	weight int64
}

func newFitSemaphore(res config.ResourceConfig) *fitSemaphore {
	perClient := res.NumCPUs
	if perClient <= 0 {
		perClient = 1
	}

	capacity := int64(runtime.NumCPU())
	weight := int64(math.Ceil(perClient))
	if weight > capacity {
		weight = capacity
	}

	return &fitSemaphore{
		sem:    semaphore.NewWeighted(capacity),
		weight: weight,
	}
}

func (s *fitSemaphore) acquire(ctx context.Context) error {
	return s.sem.Acquire(ctx, s.weight)
}

func (s *fitSemaphore) release() {
	s.sem.Release(s.weight)
}

// averageFitMetrics folds the clients' reported metrics into per-round
// means for the history's distributed-fit series.
func averageFitMetrics(updates []fl.Update) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, u := range updates {
		for name, value := range u.Metrics {
			sums[name] += value
			counts[name]++
		}
	}

	out := make(map[string]float64, len(sums))
	for name, sum := range sums {
		out[name] = sum / float64(counts[name])
	}

	return out
}
