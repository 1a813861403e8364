package model

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/sensibility/internal/safetensors"
)

// tinyArchitecture mirrors the shape of the forwards JavaScript model: a
// Keras 1 Sequential LSTM over one-hot vectors followed by a softmax Dense.
const tinyArchitecture = `{
	"class_name": "Sequential",
	"keras_version": "1.2.2",
	"backend": "theano",
	"config": [
		{"class_name": "LSTM", "config": {
			"name": "lstm_1", "output_dim": 4, "batch_input_shape": [null, 3, 5],
			"activation": "tanh", "inner_activation": "hard_sigmoid",
			"return_sequences": false, "go_backwards": false, "dropout_W": 0.0
		}},
		{"class_name": "Dense", "config": {"name": "dense_1", "output_dim": 5, "activation": "linear", "bias": true}},
		{"class_name": "Activation", "config": {"name": "activation_1", "activation": "softmax"}}
	]
}`

func randTensor(rng *rand.Rand, shape ...int) safetensors.Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = (rng.Float32() - 0.5) * 0.5
	}
	return safetensors.Tensor{Shape: shape, Data: data}
}

func tinyWeights() map[string]safetensors.Tensor {
	rng := rand.New(rand.NewSource(7))
	return map[string]safetensors.Tensor{
		"lstm_1/kernel":           randTensor(rng, 5, 16),
		"lstm_1/recurrent_kernel": randTensor(rng, 4, 16),
		"lstm_1/bias":             randTensor(rng, 16),
		"dense_1/kernel":          randTensor(rng, 4, 5),
		"dense_1/bias":            randTensor(rng, 5),
	}
}

// writeFixture writes an architecture/weights pair into a temp dir.
func writeFixture(t *testing.T, arch string, weights map[string]safetensors.Tensor) (string, string) {
	t.Helper()
	dir := t.TempDir()
	archPath := filepath.Join(dir, "model-architecture.json")
	if err := os.WriteFile(archPath, []byte(arch), 0o644); err != nil {
		t.Fatalf("write architecture: %v", err)
	}
	weightsPath := filepath.Join(dir, "weights.safetensors")
	if err := safetensors.WriteFile(weightsPath, weights, nil); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	return archPath, weightsPath
}

func tensor1(shape []int, data ...float32) safetensors.Tensor {
	return safetensors.Tensor{Shape: shape, Data: data}
}

func randTensorSeeded(shape ...int) safetensors.Tensor {
	return randTensor(rand.New(rand.NewSource(99)), shape...)
}
