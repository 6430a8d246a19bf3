package dataset

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/fedbench/fedsim/config"
)

var (
	ErrUnknownDataset     = errors.New("unknown dataset name")
	ErrUnknownPartitioner = errors.New("unknown dataset partitioning")
	ErrNoClients          = errors.New("num_clients must be positive")
)

// Load builds per-client train/validation loaders plus the shared test
// loader. The same configuration and seed always yield identical
// partitions.
func Load(cfg config.DatasetConfig, numClients int, valRatio float64, seed int64, batchSize int) ([]*Loader, []*Loader, *Loader, error) {
	if cfg.Name != "synthetic" {
		return nil, nil, nil, fmt.Errorf("%w: %q", ErrUnknownDataset, cfg.Name)
	}
	if numClients <= 0 {
		return nil, nil, nil, ErrNoClients
	}

	rng := rand.New(rand.NewSource(seed))

	trainTotal := cfg.SamplesPerClient * numClients
	testTotal := cfg.SamplesPerClient

	x, y := synthesize(rng, trainTotal+testTotal, cfg.NumFeatures, cfg.NumClasses)

	testX, testY := x[trainTotal:], y[trainTotal:]
	x, y = x[:trainTotal], y[:trainTotal]

	parts, err := partition(rng, cfg, y, numClients)
	if err != nil {
		return nil, nil, nil, err
	}

	trainLoaders := make([]*Loader, numClients)
	valLoaders := make([]*Loader, numClients)
	for c, idxs := range parts {
		nVal := int(float64(len(idxs)) * valRatio)
		valIdx, trainIdx := idxs[:nVal], idxs[nVal:]

		trainLoaders[c] = newLoader(gather(x, trainIdx), gatherLabels(y, trainIdx), batchSize)
		valLoaders[c] = newLoader(gather(x, valIdx), gatherLabels(y, valIdx), batchSize)
	}

	return trainLoaders, valLoaders, newLoader(testX, testY, batchSize), nil
}

// synthesize draws points from per-class Gaussian blobs. Class means
// are sampled once so classes stay linearly separable enough for the
// trivial models to make progress.
func synthesize(rng *rand.Rand, n, numFeatures, numClasses int) ([][]float64, []int) {
	means := make([][]float64, numClasses)
	for c := range means {
		means[c] = make([]float64, numFeatures)
		for j := range means[c] {
			means[c][j] = rng.NormFloat64() * 2.0
		}
	}

	x := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		c := rng.Intn(numClasses)
		row := make([]float64, numFeatures)
		for j := range row {
			row[j] = means[c][j] + rng.NormFloat64()*0.5
		}
		x[i] = row
		y[i] = c
	}

	return x, y
}

func gather(x [][]float64, idxs []int) [][]float64 {
	out := make([][]float64, len(idxs))
	for i, idx := range idxs {
		out[i] = x[idx]
	}

	return out
}

func gatherLabels(y []int, idxs []int) []int {
	out := make([]int, len(idxs))
	for i, idx := range idxs {
		out[i] = y[idx]
	}

	return out
}
