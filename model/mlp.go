package model

import (
	"math"
	"math/rand"

	"github.com/fedbench/fedsim/config"
	"github.com/fedbench/fedsim/dataset"
	"github.com/fedbench/fedsim/pkg/fl"
)

// mlp is a one-hidden-layer tanh network with a softmax output.
// Parameters are four layers: w1 (hidden x features), b1, w2
// (classes x hidden), b2. Initial weights are drawn from the
// configured seed so two constructions are identical.
type mlp struct {
	numFeatures int
	hidden      int
	numClasses  int

	w1, b1, w2, b2   []float64
	v1, vb1, v2, vb2 []float64
}

func newMLP(cfg config.ModelConfig) (Model, error) {
	hidden := cfg.HiddenDim
	if hidden <= 0 {
		hidden = 32
	}

	m := &mlp{
		numFeatures: cfg.NumFeatures,
		hidden:      hidden,
		numClasses:  cfg.NumClasses,
		w1:          make([]float64, hidden*cfg.NumFeatures),
		b1:          make([]float64, hidden),
		w2:          make([]float64, cfg.NumClasses*hidden),
		b2:          make([]float64, cfg.NumClasses),
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	scale1 := math.Sqrt(1.0 / float64(cfg.NumFeatures))
	for i := range m.w1 {
		m.w1[i] = rng.NormFloat64() * scale1
	}
	scale2 := math.Sqrt(1.0 / float64(hidden))
	for i := range m.w2 {
		m.w2[i] = rng.NormFloat64() * scale2
	}
	m.resetVelocity()

	return m, nil
}

func (m *mlp) resetVelocity() {
	m.v1 = make([]float64, len(m.w1))
	m.vb1 = make([]float64, len(m.b1))
	m.v2 = make([]float64, len(m.w2))
	m.vb2 = make([]float64, len(m.b2))
}

func (m *mlp) Parameters() fl.Parameters {
	return fl.Parameters{m.w1, m.b1, m.w2, m.b2}.Clone()
}

func (m *mlp) SetParameters(params fl.Parameters) error {
	if !fl.SameShape(params, fl.Parameters{m.w1, m.b1, m.w2, m.b2}) {
		return ErrShapeMismatch
	}
	copy(m.w1, params[0])
	copy(m.b1, params[1])
	copy(m.w2, params[2])
	copy(m.b2, params[3])
	m.resetVelocity()

	return nil
}

func (m *mlp) forward(x []float64) (hidden, logits []float64) {
	hidden = make([]float64, m.hidden)
	for h := 0; h < m.hidden; h++ {
		sum := m.b1[h]
		row := m.w1[h*m.numFeatures : (h+1)*m.numFeatures]
		for j, v := range x {
			sum += row[j] * v
		}
		hidden[h] = math.Tanh(sum)
	}

	logits = make([]float64, m.numClasses)
	for c := 0; c < m.numClasses; c++ {
		sum := m.b2[c]
		row := m.w2[c*m.hidden : (c+1)*m.hidden]
		for h, v := range hidden {
			sum += row[h] * v
		}
		logits[c] = sum
	}

	return hidden, logits
}

func (m *mlp) TrainEpoch(loader *dataset.Loader, opts TrainOptions) (int, error) {
	shape := fl.Parameters{m.w1, m.b1, m.w2, m.b2}
	if opts.Correction != nil && !fl.SameShape(opts.Correction, shape) {
		return 0, ErrShapeMismatch
	}

	steps := 0
	for _, batch := range loader.Batches(opts.ShuffleSeed) {
		g1 := make([]float64, len(m.w1))
		gb1 := make([]float64, len(m.b1))
		g2 := make([]float64, len(m.w2))
		gb2 := make([]float64, len(m.b2))

		for i, x := range batch.X {
			hidden, logits := m.forward(x)
			probs := softmax(logits)

			// output layer
			dOut := make([]float64, m.numClasses)
			for c := range dOut {
				dOut[c] = probs[c]
				if c == batch.Y[i] {
					dOut[c] -= 1.0
				}
				gb2[c] += dOut[c]
				row := g2[c*m.hidden : (c+1)*m.hidden]
				for h, v := range hidden {
					row[h] += dOut[c] * v
				}
			}

			// hidden layer through tanh'
			for h := 0; h < m.hidden; h++ {
				var back float64
				for c := 0; c < m.numClasses; c++ {
					back += dOut[c] * m.w2[c*m.hidden+h]
				}
				dh := back * (1 - hidden[h]*hidden[h])
				gb1[h] += dh
				row := g1[h*m.numFeatures : (h+1)*m.numFeatures]
				for j, v := range x {
					row[j] += dh * v
				}
			}
		}

		inv := 1.0 / float64(len(batch.X))
		grads := [][]float64{g1, gb1, g2, gb2}
		weights := [][]float64{m.w1, m.b1, m.w2, m.b2}
		for li := range grads {
			for j := range grads[li] {
				grads[li][j] = grads[li][j]*inv + opts.WeightDecay*weights[li][j]
				if opts.Correction != nil {
					grads[li][j] += opts.Correction[li][j]
				}
			}
		}

		sgdStep(m.w1, m.v1, g1, opts)
		sgdStep(m.b1, m.vb1, gb1, opts)
		sgdStep(m.w2, m.v2, g2, opts)
		sgdStep(m.b2, m.vb2, gb2, opts)
		steps++
	}

	return steps, nil
}

func (m *mlp) Evaluate(loader *dataset.Loader) (float64, float64, error) {
	return evaluateSoftmax(loader, func(x []float64) []float64 {
		_, logits := m.forward(x)

		return logits
	})
}
