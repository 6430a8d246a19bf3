// Package client builds the simulated participants. GenClientFn is the
// client-factory handed to the simulation runner: each call constructs
// a fresh, ephemeral client bound to the data partitions at the given
// index. Clients share no mutable state beyond the injected
// control-variate store.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/fedbench/fedsim/config"
	"github.com/fedbench/fedsim/cvstore"
	"github.com/fedbench/fedsim/dataset"
	"github.com/fedbench/fedsim/model"
	"github.com/fedbench/fedsim/pkg/fl"
)

var ErrNoSteps = errors.New("local training took no optimizer steps")

// Options is the hyperparameter bundle shared by every client a
// factory produces.
type Options struct {
	Epochs       int
	LearningRate float64
	Momentum     float64
	WeightDecay  float64
	Model        config.ModelConfig
	CVs          cvstore.Store
}

// Fn maps a client identifier to a runnable client. An out-of-range
// identifier is a caller bug; the factory does not check it.
type Fn func(clientID int) *Client

// GenClientFn returns a factory over the fixed per-client loader lists.
func GenClientFn(trainLoaders, valLoaders []*dataset.Loader, opts Options) Fn {
	return func(clientID int) *Client {
		return &Client{
			ID:    clientID,
			Train: trainLoaders[clientID],
			Val:   valLoaders[clientID],
			opts:  opts,
		}
	}
}

// Client is one simulated participant. It lives for a single round's
// work; its control variate outlives it through the store.
type Client struct {
	ID    int
	Train *dataset.Loader
	Val   *dataset.Loader

	opts Options
}

// Fit trains the global parameters on the client's partition. When
// serverCV is non-nil the update follows SCAFFOLD: gradients are
// corrected by (c - c_i), and the client's new control variate
//
//	c_i' = c_i - c + (x - y_i) / (K * lr)
//
// is persisted before returning, with delta_c = c_i' - c_i reported in
// the update.
func (c *Client) Fit(ctx context.Context, round int, global fl.Parameters, serverCV fl.Parameters) (fl.Update, error) {
	m, err := model.New(c.opts.Model)
	if err != nil {
		return fl.Update{}, err
	}
	if err := m.SetParameters(global); err != nil {
		return fl.Update{}, fmt.Errorf("client %d: %w", c.ID, err)
	}

	var clientCV fl.Parameters
	if serverCV != nil {
		cv, ok, err := c.opts.CVs.Load(ctx, c.ID)
		if err != nil {
			return fl.Update{}, fmt.Errorf("client %d: %w", c.ID, err)
		}
		if !ok {
			cv = fl.ZerosLike(global)
		}
		clientCV = cv
	}

	var correction fl.Parameters
	if serverCV != nil {
		correction = fl.Sub(serverCV, clientCV)
	}

	steps := 0
	for epoch := 0; epoch < c.opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return fl.Update{}, err
		}

		s, err := m.TrainEpoch(c.Train, model.TrainOptions{
			LearningRate: c.opts.LearningRate,
			Momentum:     c.opts.Momentum,
			WeightDecay:  c.opts.WeightDecay,
			Correction:   correction,
			ShuffleSeed:  shuffleSeed(c.ID, round, epoch),
		})
		if err != nil {
			return fl.Update{}, fmt.Errorf("client %d: %w", c.ID, err)
		}
		steps += s
	}

	newParams := m.Parameters()

	update := fl.Update{
		ClientID:   c.ID,
		NumSamples: c.Train.Len(),
		Params:     newParams,
		Metrics:    map[string]float64{},
	}

	if c.Val.Len() > 0 {
		valLoss, valAcc, err := m.Evaluate(c.Val)
		if err != nil {
			return fl.Update{}, fmt.Errorf("client %d: %w", c.ID, err)
		}
		update.Metrics["val_loss"] = valLoss
		update.Metrics["val_accuracy"] = valAcc
	}

	if serverCV != nil {
		if steps == 0 {
			return fl.Update{}, fmt.Errorf("client %d: %w", c.ID, ErrNoSteps)
		}

		drift := fl.Scale(fl.Sub(global, newParams), 1.0/(float64(steps)*c.opts.LearningRate))
		newCV := fl.Add(fl.Sub(clientCV, serverCV), drift)

		if err := c.opts.CVs.Save(ctx, c.ID, newCV); err != nil {
			return fl.Update{}, fmt.Errorf("client %d: %w", c.ID, err)
		}

		update.DeltaCV = fl.Sub(newCV, clientCV)
	}

	return update, nil
}

// shuffleSeed gives each (client, round, epoch) its own deterministic
// batch order. Zero is reserved for "no shuffle".
func shuffleSeed(clientID, round, epoch int) int64 {
	return int64(clientID+1)*1_000_000 + int64(round)*1_000 + int64(epoch) + 1
}
