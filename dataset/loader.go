// Package dataset produces per-client data partitions for simulated
// federated training plus one shared test set. Partitions are built
// once, up front, and are immutable afterwards.
package dataset

import "math/rand"

// Loader is an immutable handle on one data partition.
type Loader struct {
	x         [][]float64
	y         []int
	batchSize int
}

// Batch is one mini-batch view into a loader.
type Batch struct {
	X [][]float64
	Y []int
}

func newLoader(x [][]float64, y []int, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = 32
	}

	return &Loader{x: x, y: y, batchSize: batchSize}
}

func (l *Loader) Len() int { return len(l.x) }

func (l *Loader) BatchSize() int { return l.batchSize }

// Batches returns mini-batches over the partition. A non-zero seed
// shuffles the visiting order deterministically; seed zero keeps the
// natural order. The loader itself is never mutated.
func (l *Loader) Batches(seed int64) []Batch {
	n := len(l.x)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if seed != 0 {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(n, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	batches := make([]Batch, 0, (n+l.batchSize-1)/l.batchSize)
	for start := 0; start < n; start += l.batchSize {
		end := start + l.batchSize
		if end > n {
			end = n
		}

		bx := make([][]float64, 0, end-start)
		by := make([]int, 0, end-start)
		for _, idx := range order[start:end] {
			bx = append(bx, l.x[idx])
			by = append(by, l.y[idx])
		}
		batches = append(batches, Batch{X: bx, Y: by})
	}

	return batches
}

// Labels returns a copy of the partition's labels.
func (l *Loader) Labels() []int {
	out := make([]int, len(l.y))
	copy(out, l.y)

	return out
}
