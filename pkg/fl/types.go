// Package fl holds the value types exchanged between the simulation
// runner, clients, and aggregation strategies.
package fl

// Parameters is a model's trainable state as a list of flat layers.
type Parameters [][]float64

// Update is the result of one client's local training in one round.
type Update struct {
	ClientID   int                `json:"client_id"`
	NumSamples int                `json:"num_samples"`
	Params     Parameters         `json:"-"`
	DeltaCV    Parameters         `json:"-"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Clone returns a deep copy of p.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	out := make(Parameters, len(p))
	for i, layer := range p {
		out[i] = make([]float64, len(layer))
		copy(out[i], layer)
	}

	return out
}

// ZerosLike returns parameters with p's shape and all values zero.
func ZerosLike(p Parameters) Parameters {
	out := make(Parameters, len(p))
	for i, layer := range p {
		out[i] = make([]float64, len(layer))
	}

	return out
}

// Add returns a + b. Shapes must match.
func Add(a, b Parameters) Parameters {
	out := a.Clone()
	for i := range out {
		for j := range out[i] {
			out[i][j] += b[i][j]
		}
	}

	return out
}

// Sub returns a - b. Shapes must match.
func Sub(a, b Parameters) Parameters {
	out := a.Clone()
	for i := range out {
		for j := range out[i] {
			out[i][j] -= b[i][j]
		}
	}

	return out
}

// Scale returns p scaled by f.
func Scale(p Parameters, f float64) Parameters {
	out := p.Clone()
	for i := range out {
		for j := range out[i] {
			out[i][j] *= f
		}
	}

	return out
}

// SameShape reports whether a and b have identical layer dimensions.
func SameShape(a, b Parameters) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
	}

	return true
}
