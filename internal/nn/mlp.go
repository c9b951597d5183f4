package nn

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// DefaultHidden is the hidden layer layout used when none is configured
var DefaultHidden = []int{32, 18, 10}

// Adam defaults
const (
	DefaultLearningRate = 0.01
	adamBeta1           = 0.9
	adamBeta2           = 0.999
	adamEpsilon         = 1e-7
)

// Sizes assembles the full layer layout
func Sizes(input int, hidden []int, output int) []int {
	sizes := make([]int, 0, len(hidden)+2)
	sizes = append(sizes, input)
	sizes = append(sizes, hidden...)
	return append(sizes, output)
}

// MLP is a feedforward network with ReLU hidden layers and a linear output,
// trained with Adam on the mean squared error
type MLP struct {
	sizes  []int
	layers []*dense
	lr     float64
	step   int
}

type dense struct {
	w *mat.Dense // in x out
	b []float64

	// Adam moments
	mw, vw []float64
	mb, vb []float64
}

var _ Approximator = (*MLP)(nil)

// NewMLP creates a network with Glorot-uniform weights and zero biases
func NewMLP(sizes []int, learningRate float64, rng *rand.Rand) (*MLP, error) {
	if len(sizes) < 2 {
		return nil, fmt.Errorf("mlp needs at least input and output sizes (got %v)", sizes)
	}
	for _, s := range sizes {
		if s <= 0 {
			return nil, fmt.Errorf("mlp layer sizes must be positive (got %v)", sizes)
		}
	}
	if learningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive (got %v)", learningRate)
	}
	if rng == nil {
		return nil, errors.New("mlp requires a random source")
	}

	m := &MLP{
		sizes: append([]int(nil), sizes...),
		lr:    learningRate,
	}
	for i := 0; i+1 < len(sizes); i++ {
		in, out := sizes[i], sizes[i+1]
		limit := math.Sqrt(6.0 / float64(in+out))
		w := make([]float64, in*out)
		for j := range w {
			w[j] = (2*rng.Float64() - 1) * limit
		}
		m.layers = append(m.layers, &dense{
			w:  mat.NewDense(in, out, w),
			b:  make([]float64, out),
			mw: make([]float64, in*out),
			vw: make([]float64, in*out),
			mb: make([]float64, out),
			vb: make([]float64, out),
		})
	}
	return m, nil
}

// NewMLPFromParams builds a network holding p with fresh optimizer state
func NewMLPFromParams(p Params, learningRate float64) (*MLP, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m, err := NewMLP(p.Sizes, learningRate, rand.New(rand.NewSource(0)))
	if err != nil {
		return nil, err
	}
	if err := m.SetParams(p); err != nil {
		return nil, err
	}
	return m, nil
}

// InputSize returns the expected number of state features
func (m *MLP) InputSize() int {
	return m.sizes[0]
}

// OutputSize returns the number of action values produced
func (m *MLP) OutputSize() int {
	return m.sizes[len(m.sizes)-1]
}

// forward returns the activations of every layer, input first
func (m *MLP) forward(x mat.Matrix) []*mat.Dense {
	if _, c := x.Dims(); c != m.sizes[0] {
		panic(fmt.Sprintf("nn: input has %d features, network expects %d", c, m.sizes[0]))
	}
	acts := make([]*mat.Dense, len(m.layers)+1)
	acts[0] = mat.DenseCopyOf(x)
	last := len(m.layers) - 1
	for i, l := range m.layers {
		z := new(mat.Dense)
		z.Mul(acts[i], l.w)
		relu := i != last
		z.Apply(func(_, j int, v float64) float64 {
			v += l.b[j]
			if relu && v < 0 {
				return 0
			}
			return v
		}, z)
		acts[i+1] = z
	}
	return acts
}

// Predict returns the action values for every row of states
func (m *MLP) Predict(states mat.Matrix) *mat.Dense {
	acts := m.forward(states)
	return acts[len(acts)-1]
}

// Train performs one Adam step and returns the pre-update loss
func (m *MLP) Train(states, targets mat.Matrix) float64 {
	acts := m.forward(states)
	out := acts[len(acts)-1]
	n, k := out.Dims()
	if tr, tc := targets.Dims(); tr != n || tc != k {
		panic(fmt.Sprintf("nn: targets are %dx%d, predictions are %dx%d", tr, tc, n, k))
	}

	delta := new(mat.Dense)
	delta.Sub(out, targets)
	var loss float64
	for _, v := range delta.RawMatrix().Data {
		loss += v * v
	}
	scale := float64(n * k)
	loss /= scale
	delta.Scale(2/scale, delta)

	m.step++
	for i := len(m.layers) - 1; i >= 0; i-- {
		l := m.layers[i]

		gw := new(mat.Dense)
		gw.Mul(acts[i].T(), delta)
		gb := make([]float64, len(l.b))
		for r := 0; r < n; r++ {
			for j := range gb {
				gb[j] += delta.At(r, j)
			}
		}

		// propagate before the weights change
		var prev *mat.Dense
		if i > 0 {
			prev = new(mat.Dense)
			prev.Mul(delta, l.w.T())
			a := acts[i]
			prev.Apply(func(r, j int, v float64) float64 {
				if a.At(r, j) <= 0 {
					return 0
				}
				return v
			}, prev)
		}

		m.adam(l.w.RawMatrix().Data, gw.RawMatrix().Data, l.mw, l.vw)
		m.adam(l.b, gb, l.mb, l.vb)
		delta = prev
	}
	return loss
}

func (m *MLP) adam(params, grads, first, second []float64) {
	t := float64(m.step)
	lr := m.lr * math.Sqrt(1-math.Pow(adamBeta2, t)) / (1 - math.Pow(adamBeta1, t))
	for i, g := range grads {
		first[i] = adamBeta1*first[i] + (1-adamBeta1)*g
		second[i] = adamBeta2*second[i] + (1-adamBeta2)*g*g
		params[i] -= lr * first[i] / (math.Sqrt(second[i]) + adamEpsilon)
	}
}

// Params returns a deep copy of the weights and biases
func (m *MLP) Params() Params {
	p := Params{
		Sizes:  append([]int(nil), m.sizes...),
		Layers: make([]LayerParams, len(m.layers)),
	}
	for i, l := range m.layers {
		p.Layers[i] = LayerParams{
			Weights: append([]float64(nil), l.w.RawMatrix().Data...),
			Bias:    append([]float64(nil), l.b...),
		}
	}
	return p
}

// SetParams copies p into the network. Optimizer state is left untouched.
func (m *MLP) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if len(p.Sizes) != len(m.sizes) {
		return fmt.Errorf("params layout %v does not match network %v", p.Sizes, m.sizes)
	}
	for i := range m.sizes {
		if p.Sizes[i] != m.sizes[i] {
			return fmt.Errorf("params layout %v does not match network %v", p.Sizes, m.sizes)
		}
	}
	for i, l := range m.layers {
		copy(l.w.RawMatrix().Data, p.Layers[i].Weights)
		copy(l.b, p.Layers[i].Bias)
	}
	return nil
}

// SyncFrom hard-copies the parameters of src
func (m *MLP) SyncFrom(src Approximator) error {
	if src == Approximator(m) {
		return nil
	}
	return m.SetParams(src.Params())
}
