package model

import (
	"math"

	"github.com/fedbench/fedsim/config"
	"github.com/fedbench/fedsim/dataset"
	"github.com/fedbench/fedsim/pkg/fl"
)

// logReg is a multinomial logistic regression: a single linear layer
// followed by softmax cross-entropy. Parameters are two layers: the
// flattened weight matrix (classes x features) and the bias vector.
type logReg struct {
	numFeatures int
	numClasses  int
	w           []float64 // row-major, classes x features
	b           []float64

	// momentum buffers, reset whenever parameters are replaced
	vw []float64
	vb []float64
}

func newLogReg(cfg config.ModelConfig) (Model, error) {
	m := &logReg{
		numFeatures: cfg.NumFeatures,
		numClasses:  cfg.NumClasses,
		w:           make([]float64, cfg.NumClasses*cfg.NumFeatures),
		b:           make([]float64, cfg.NumClasses),
	}
	m.resetVelocity()

	return m, nil
}

func (m *logReg) resetVelocity() {
	m.vw = make([]float64, len(m.w))
	m.vb = make([]float64, len(m.b))
}

func (m *logReg) Parameters() fl.Parameters {
	return fl.Parameters{m.w, m.b}.Clone()
}

func (m *logReg) SetParameters(params fl.Parameters) error {
	if len(params) != 2 || len(params[0]) != len(m.w) || len(params[1]) != len(m.b) {
		return ErrShapeMismatch
	}
	copy(m.w, params[0])
	copy(m.b, params[1])
	m.resetVelocity()

	return nil
}

func (m *logReg) logits(x []float64) []float64 {
	out := make([]float64, m.numClasses)
	for c := 0; c < m.numClasses; c++ {
		sum := m.b[c]
		row := m.w[c*m.numFeatures : (c+1)*m.numFeatures]
		for j, v := range x {
			sum += row[j] * v
		}
		out[c] = sum
	}

	return out
}

func (m *logReg) TrainEpoch(loader *dataset.Loader, opts TrainOptions) (int, error) {
	if opts.Correction != nil && !fl.SameShape(opts.Correction, fl.Parameters{m.w, m.b}) {
		return 0, ErrShapeMismatch
	}

	steps := 0
	for _, batch := range loader.Batches(opts.ShuffleSeed) {
		gw := make([]float64, len(m.w))
		gb := make([]float64, len(m.b))

		for i, x := range batch.X {
			probs := softmax(m.logits(x))
			for c := 0; c < m.numClasses; c++ {
				diff := probs[c]
				if c == batch.Y[i] {
					diff -= 1.0
				}
				gb[c] += diff
				row := gw[c*m.numFeatures : (c+1)*m.numFeatures]
				for j, v := range x {
					row[j] += diff * v
				}
			}
		}

		inv := 1.0 / float64(len(batch.X))
		for j := range gw {
			gw[j] = gw[j]*inv + opts.WeightDecay*m.w[j]
			if opts.Correction != nil {
				gw[j] += opts.Correction[0][j]
			}
		}
		for j := range gb {
			gb[j] = gb[j]*inv + opts.WeightDecay*m.b[j]
			if opts.Correction != nil {
				gb[j] += opts.Correction[1][j]
			}
		}

		sgdStep(m.w, m.vw, gw, opts)
		sgdStep(m.b, m.vb, gb, opts)
		steps++
	}

	return steps, nil
}

func (m *logReg) Evaluate(loader *dataset.Loader) (float64, float64, error) {
	return evaluateSoftmax(loader, m.logits)
}

func sgdStep(w, v, g []float64, opts TrainOptions) {
	for j := range w {
		v[j] = opts.Momentum*v[j] + g[j]
		w[j] -= opts.LearningRate * v[j]
	}
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}

	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}

	return out
}

// evaluateSoftmax computes mean cross-entropy and accuracy for any
// model exposing a logits function.
func evaluateSoftmax(loader *dataset.Loader, logits func([]float64) []float64) (float64, float64, error) {
	total := 0
	correct := 0
	lossSum := 0.0

	for _, batch := range loader.Batches(0) {
		for i, x := range batch.X {
			probs := softmax(logits(x))

			p := probs[batch.Y[i]]
			if p < 1e-12 {
				p = 1e-12
			}
			lossSum += -math.Log(p)

			best := 0
			for c := 1; c < len(probs); c++ {
				if probs[c] > probs[best] {
					best = c
				}
			}
			if best == batch.Y[i] {
				correct++
			}
			total++
		}
	}

	if total == 0 {
		return 0, 0, nil
	}

	return lossSum / float64(total), float64(correct) / float64(total), nil
}
