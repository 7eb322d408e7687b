package ml

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Scorer turns measurements into per-class scores.
type Scorer interface {
	Run(features Features) Scores
}

// Scores holds one score in [0,1] per class, indexed by Class. The scores come
// from independent sigmoid outputs and need not sum to 1.
type Scores [NumClasses]float64

// Map returns the class-name to score mapping.
func (s Scores) Map() map[string]float64 {
	m := make(map[string]float64, NumClasses)
	for _, c := range Classes() {
		m[c.String()] = s[c]
	}
	return m
}

type layer struct {
	weights *mat.Dense    // outputs x inputs
	biases  *mat.VecDense // outputs
	act     activation
}

func newLayer(inputs, outputs int, act activation, rnd *rand.Rand) layer {
	w := make([]float64, inputs*outputs)
	for i := range w {
		w[i] = randomWeight(rnd)
	}
	b := make([]float64, outputs)
	for i := range b {
		b[i] = randomWeight(rnd)
	}
	return layer{
		weights: mat.NewDense(outputs, inputs, w),
		biases:  mat.NewVecDense(outputs, b),
		act:     act,
	}
}

func randomWeight(rnd *rand.Rand) float64 {
	return rnd.Float64()*0.4 - 0.2
}

func (l layer) forward(in mat.Vector) *mat.VecDense {
	out := mat.NewVecDense(l.biases.Len(), nil)
	out.MulVec(l.weights, in)
	out.AddVec(out, l.biases)
	for i := 0; i < out.Len(); i++ {
		out.SetVec(i, l.act.apply(out.AtVec(i)))
	}
	return out
}

// Model is a trained feed-forward network. It is never mutated after Train
// returns, so Run may be called from many goroutines.
type Model struct {
	layers []layer
}

func newModel(sizes []int, hidden activation, rnd *rand.Rand) *Model {
	m := &Model{layers: make([]layer, 0, len(sizes)-1)}
	for i := 1; i < len(sizes); i++ {
		act := hidden
		if i == len(sizes)-1 {
			act = sigmoid
		}
		m.layers = append(m.layers, newLayer(sizes[i-1], sizes[i], act, rnd))
	}
	return m
}

// activations returns the input followed by each layer's output.
func (m *Model) activations(input []float64) []*mat.VecDense {
	acts := make([]*mat.VecDense, 0, len(m.layers)+1)
	acts = append(acts, mat.NewVecDense(len(input), append([]float64(nil), input...)))
	for _, l := range m.layers {
		acts = append(acts, l.forward(acts[len(acts)-1]))
	}
	return acts
}

func (m *Model) Run(features Features) Scores {
	acts := m.activations(features.Vector())
	out := acts[len(acts)-1]
	var s Scores
	for i := range s {
		s[i] = out.AtVec(i)
	}
	return s
}

// Shape returns the layer sizes from input to output.
func (m *Model) Shape() []int {
	if len(m.layers) == 0 {
		return nil
	}
	_, in := m.layers[0].weights.Dims()
	shape := []int{in}
	for _, l := range m.layers {
		shape = append(shape, l.biases.Len())
	}
	return shape
}
