package tensor

import (
	"fmt"
	"math"
)

// Add adds src to dst element-wise.
func Add(dst, src []float32) {
	for i := range dst {
		dst[i] += src[i]
	}
}

// Mul multiplies dst by src element-wise.
func Mul(dst, src []float32) {
	for i := range dst {
		dst[i] *= src[i]
	}
}

// Argmax returns the index of the largest element, or -1 for an empty slice.
func Argmax(x []float32) int {
	if len(x) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}

// Activation transforms a vector in place.
type Activation func(x []float32)

// ActivationByName resolves a Keras activation name.
func ActivationByName(name string) (Activation, error) {
	switch name {
	case "", "linear":
		return Linear, nil
	case "tanh":
		return Tanh, nil
	case "sigmoid":
		return Sigmoid, nil
	case "hard_sigmoid":
		return HardSigmoid, nil
	case "relu":
		return ReLU, nil
	case "softmax":
		return Softmax, nil
	default:
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
}

func Linear([]float32) {}

func Tanh(x []float32) {
	for i, v := range x {
		x[i] = float32(math.Tanh(float64(v)))
	}
}

func Sigmoid(x []float32) {
	for i, v := range x {
		x[i] = float32(1.0 / (1.0 + math.Exp(-float64(v))))
	}
}

// HardSigmoid is the piecewise-linear clip(0.2x+0.5, 0, 1) used by Keras.
func HardSigmoid(x []float32) {
	for i, v := range x {
		y := 0.2*v + 0.5
		switch {
		case y < 0:
			y = 0
		case y > 1:
			y = 1
		}
		x[i] = y
	}
}

func ReLU(x []float32) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

// Softmax applies the softmax function to x.
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	maxv := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > maxv {
			maxv = x[i]
		}
	}
	var sum float64
	for i := range x {
		v := math.Exp(float64(x[i] - maxv))
		x[i] = float32(v)
		sum += v
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / sum)
	for i := range x {
		x[i] *= inv
	}
}
