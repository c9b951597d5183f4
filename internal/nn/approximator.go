package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Approximator maps batches of states (one per row) to per-action values.
// Any regressor with these operations can back the agent.
type Approximator interface {
	// Predict returns a rows x actions matrix of value estimates
	Predict(states mat.Matrix) *mat.Dense
	// Train takes one gradient step on the mean squared error between the
	// prediction and targets over every action column, returning the loss
	Train(states, targets mat.Matrix) float64
	// SyncFrom copies every trainable parameter from src
	SyncFrom(src Approximator) error
	// Params returns a deep copy of the trainable parameters
	Params() Params
	// SetParams replaces the trainable parameters
	SetParams(p Params) error
}

// Params is the persisted form of a layered network
type Params struct {
	Sizes  []int         `json:"sizes"`
	Layers []LayerParams `json:"layers"`
}

// LayerParams holds one dense layer; Weights is row-major in x out
type LayerParams struct {
	Weights []float64 `json:"weights"`
	Bias    []float64 `json:"bias"`
}

// Validate checks that the layer shapes agree with Sizes
func (p Params) Validate() error {
	if len(p.Sizes) < 2 {
		return fmt.Errorf("params need at least 2 layer sizes (got %d)", len(p.Sizes))
	}
	if len(p.Layers) != len(p.Sizes)-1 {
		return fmt.Errorf("params have %d layers for %d sizes", len(p.Layers), len(p.Sizes))
	}
	for i, l := range p.Layers {
		in, out := p.Sizes[i], p.Sizes[i+1]
		if len(l.Weights) != in*out {
			return fmt.Errorf("layer %d: %d weights, want %d", i, len(l.Weights), in*out)
		}
		if len(l.Bias) != out {
			return fmt.Errorf("layer %d: %d biases, want %d", i, len(l.Bias), out)
		}
	}
	return nil
}

// Clone makes a deep copy
func (p Params) Clone() Params {
	out := Params{
		Sizes:  append([]int(nil), p.Sizes...),
		Layers: make([]LayerParams, len(p.Layers)),
	}
	for i, l := range p.Layers {
		out.Layers[i] = LayerParams{
			Weights: append([]float64(nil), l.Weights...),
			Bias:    append([]float64(nil), l.Bias...),
		}
	}
	return out
}

// Equal reports whether both sets are bit-for-bit identical
func (p Params) Equal(q Params) bool {
	if len(p.Sizes) != len(q.Sizes) || len(p.Layers) != len(q.Layers) {
		return false
	}
	for i := range p.Sizes {
		if p.Sizes[i] != q.Sizes[i] {
			return false
		}
	}
	for i := range p.Layers {
		if !equalFloats(p.Layers[i].Weights, q.Layers[i].Weights) || !equalFloats(p.Layers[i].Bias, q.Layers[i].Bias) {
			return false
		}
	}
	return true
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Argmax returns the index of the largest value; ties go to the first index
func Argmax(vals []float64) int {
	maxIdx := 0
	maxVal := vals[0]
	for i := 1; i < len(vals); i++ {
		if vals[i] > maxVal {
			maxVal = vals[i]
			maxIdx = i
		}
	}
	return maxIdx
}
