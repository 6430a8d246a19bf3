package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/fedbench/fedsim/config"
)

// partition assigns every training sample index to exactly one client
// according to the configured scheme.
func partition(rng *rand.Rand, cfg config.DatasetConfig, labels []int, numClients int) ([][]int, error) {
	switch cfg.Partitioning {
	case "iid":
		return partitionIID(rng, len(labels), numClients), nil
	case "label-skew":
		return partitionLabelSkew(rng, labels, numClients), nil
	case "dirichlet":
		return partitionDirichlet(rng, labels, cfg.NumClasses, cfg.Alpha, numClients), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPartitioner, cfg.Partitioning)
	}
}

func partitionIID(rng *rand.Rand, n, numClients int) [][]int {
	idxs := rng.Perm(n)
	per := n / numClients

	parts := make([][]int, numClients)
	for c := 0; c < numClients; c++ {
		start := c * per
		end := start + per
		if c == numClients-1 {
			end = n
		}
		parts[c] = idxs[start:end]
	}

	return parts
}

// partitionLabelSkew splits the label-sorted index space into
// 2*numClients shards and hands each client two shards, so every client
// sees at most a few labels.
func partitionLabelSkew(rng *rand.Rand, labels []int, numClients int) [][]int {
	n := len(labels)
	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return labels[idxs[a]] < labels[idxs[b]] })

	numShards := numClients * 2
	shardSize := n / numShards
	if shardSize == 0 {
		shardSize = 1
	}

	shards := make([][]int, 0, numShards)
	for start := 0; start < n && len(shards) < numShards; start += shardSize {
		end := start + shardSize
		if len(shards) == numShards-1 || end > n {
			end = n
		}
		shards = append(shards, idxs[start:end])
	}

	order := rng.Perm(len(shards))
	parts := make([][]int, numClients)
	for i, shardIdx := range order {
		c := i % numClients
		parts[c] = append(parts[c], shards[shardIdx]...)
	}

	return parts
}

// partitionDirichlet draws each sample's owner from a per-class
// client distribution sampled from Dir(alpha).
func partitionDirichlet(rng *rand.Rand, labels []int, numClasses int, alpha float64, numClients int) [][]int {
	if alpha <= 0 {
		alpha = 0.5
	}

	// Per class, a distribution over clients.
	classDist := make([][]float64, numClasses)
	for c := range classDist {
		classDist[c] = dirichlet(rng, alpha, numClients)
	}

	parts := make([][]int, numClients)
	for i, label := range labels {
		client := sampleCategorical(rng, classDist[label])
		parts[client] = append(parts[client], i)
	}

	return parts
}

func dirichlet(rng *rand.Rand, alpha float64, k int) []float64 {
	out := make([]float64, k)
	sum := 0.0
	for i := range out {
		out[i] = gammaSample(rng, alpha)
		sum += out[i]
	}
	if sum == 0 {
		for i := range out {
			out[i] = 1.0 / float64(k)
		}

		return out
	}
	for i := range out {
		out[i] /= sum
	}

	return out
}

// gammaSample draws from Gamma(shape, 1) via Marsaglia-Tsang, with the
// usual boost for shape < 1.
func gammaSample(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		if u == 0 {
			u = math.SmallestNonzeroFloat64
		}

		return gammaSample(rng, shape+1) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		x := rng.NormFloat64()
		v := 1 + c*x
		if v <= 0 {
			continue
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if u > 0 && math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

func sampleCategorical(rng *rand.Rand, probs []float64) int {
	u := rng.Float64()
	acc := 0.0
	for i, p := range probs {
		acc += p
		if u < acc {
			return i
		}
	}

	return len(probs) - 1
}
