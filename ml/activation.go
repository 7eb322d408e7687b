package ml

import (
	"fmt"
	"math"
)

// activation is applied element-wise. derivative is expressed in terms of the
// activated output, which is all backpropagation keeps around.
type activation struct {
	name       string
	apply      func(x float64) float64
	derivative func(y float64) float64
}

var (
	sigmoid = activation{
		name:       "sigmoid",
		apply:      func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
		derivative: func(y float64) float64 { return y * (1 - y) },
	}
	relu = activation{
		name: "relu",
		apply: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return 0
		},
		derivative: func(y float64) float64 {
			if y > 0 {
				return 1
			}
			return 0
		},
	}
	leakyReLU = activation{
		name: "leaky-relu",
		apply: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return 0.01 * x
		},
		derivative: func(y float64) float64 {
			if y > 0 {
				return 1
			}
			return 0.01
		},
	}
	tanh = activation{
		name:       "tanh",
		apply:      math.Tanh,
		derivative: func(y float64) float64 { return 1 - y*y },
	}
)

func activationByName(name string) (activation, error) {
	switch name {
	case "", "sigmoid":
		return sigmoid, nil
	case "relu":
		return relu, nil
	case "leaky-relu":
		return leakyReLU, nil
	case "tanh":
		return tanh, nil
	default:
		return activation{}, fmt.Errorf("unsupported activation %q", name)
	}
}
