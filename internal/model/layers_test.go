package model

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/samcharles93/sensibility/internal/safetensors"
)

func buildModel(t *testing.T, archJSON string, weights map[string]safetensors.Tensor) *Model {
	t.Helper()
	arch, err := ParseArchitecture([]byte(archJSON))
	if err != nil {
		t.Fatalf("ParseArchitecture: %v", err)
	}
	var buf bytes.Buffer
	if err := safetensors.Write(&buf, weights, nil); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	src, err := safetensors.OpenBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	m, err := Build(arch, src)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

func predictOne(t *testing.T, m *Model, seq ...int) []float32 {
	t.Helper()
	out, err := m.Predict(seq)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	return out
}

func assertClose(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-5 {
		t.Fatalf("got %.7f, want %.7f", got, want)
	}
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func TestSimpleRNNLinear(t *testing.T) {
	t.Parallel()

	m := buildModel(t, `{"class_name": "Sequential", "config": [
		{"class_name": "SimpleRNN", "config": {"name": "rnn", "units": 1, "activation": "linear", "batch_input_shape": [null, null, 2]}}
	]}`, map[string]safetensors.Tensor{
		"rnn/kernel":           tensor1([]int{2, 1}, 1, 2),
		"rnn/recurrent_kernel": tensor1([]int{1, 1}, 0.5),
		"rnn/bias":             tensor1([]int{1}, 0),
	})

	// h0 = 1; h1 = 2 + 0.5*1
	assertClose(t, float64(predictOne(t, m, 0, 1)[0]), 2.5)
	// Variable-length input accepts any length.
	assertClose(t, float64(predictOne(t, m, 0)[0]), 1)
}

func TestSimpleRNNGoBackwardsAndSequences(t *testing.T) {
	t.Parallel()

	m := buildModel(t, `{"class_name": "Sequential", "config": [
		{"class_name": "SimpleRNN", "config": {"name": "rnn", "units": 1, "activation": "linear", "go_backwards": true, "return_sequences": true, "use_bias": false, "batch_input_shape": [null, null, 2]}},
		{"class_name": "TimeDistributed", "config": {"name": "td", "layer": {"class_name": "Dense", "config": {"name": "d", "units": 1}}}}
	]}`, map[string]safetensors.Tensor{
		"rnn/kernel":           tensor1([]int{2, 1}, 1, 2),
		"rnn/recurrent_kernel": tensor1([]int{1, 1}, 0.5),
		"td/kernel":            tensor1([]int{1, 1}, 10),
		"td/bias":              tensor1([]int{1}, 1),
	})

	// Reversed input [1, 0]: h0 = 2, h1 = 1 + 0.5*2 = 2; dense => 10*2 + 1.
	assertClose(t, float64(predictOne(t, m, 0, 1)[0]), 21)
	if got := m.Summary()[1].Class; got != "TimeDistributed(Dense)" {
		t.Fatalf("unexpected class %q", got)
	}
}

func TestLSTMCell(t *testing.T) {
	t.Parallel()

	m := buildModel(t, `{"class_name": "Sequential", "config": [
		{"class_name": "LSTM", "config": {"name": "lstm", "units": 1, "recurrent_activation": "sigmoid", "batch_input_shape": [null, 2, 1]}}
	]}`, map[string]safetensors.Tensor{
		// Gate order i, f, c, o: only the candidate sees the input.
		"lstm/kernel":           tensor1([]int{1, 4}, 0, 0, 1, 0),
		"lstm/recurrent_kernel": tensor1([]int{1, 4}, 0, 0, 0, 0),
		"lstm/bias":             tensor1([]int{4}, 0, 0, 0, 0),
	})

	c1 := 0.5 * math.Tanh(1)
	c2 := 0.5*c1 + 0.5*math.Tanh(1)
	assertClose(t, float64(predictOne(t, m, 0, 0)[0]), 0.5*math.Tanh(c2))
}

func TestGRUCell(t *testing.T) {
	t.Parallel()

	weights := func(bias safetensors.Tensor) map[string]safetensors.Tensor {
		return map[string]safetensors.Tensor{
			"gru/kernel":           tensor1([]int{1, 3}, 0, 0, 1),
			"gru/recurrent_kernel": tensor1([]int{1, 3}, 0, 0, 1),
			"gru/bias":             bias,
		}
	}
	h1 := 0.5 * math.Tanh(1)
	want := 0.5*h1 + 0.5*math.Tanh(1+0.5*h1)

	t.Run("classic", func(t *testing.T) {
		t.Parallel()
		m := buildModel(t, `{"class_name": "Sequential", "config": [
			{"class_name": "GRU", "config": {"name": "gru", "units": 1, "recurrent_activation": "sigmoid", "batch_input_shape": [null, null, 1]}}
		]}`, weights(tensor1([]int{3}, 0, 0, 0)))
		assertClose(t, float64(predictOne(t, m, 0, 0)[0]), want)
	})

	t.Run("reset after", func(t *testing.T) {
		t.Parallel()
		m := buildModel(t, `{"class_name": "Sequential", "config": [
			{"class_name": "GRU", "config": {"name": "gru", "units": 1, "reset_after": true, "recurrent_activation": "sigmoid", "batch_input_shape": [null, null, 1]}}
		]}`, weights(tensor1([]int{2, 3}, 0, 0, 0, 0, 0, 0)))
		assertClose(t, float64(predictOne(t, m, 0, 0)[0]), want)
	})

	t.Run("reset after bias shape", func(t *testing.T) {
		t.Parallel()
		arch, err := ParseArchitecture([]byte(`{"class_name": "Sequential", "config": [
			{"class_name": "GRU", "config": {"name": "gru", "units": 1, "batch_input_shape": [null, null, 1]}}
		]}`))
		if err != nil {
			t.Fatalf("ParseArchitecture: %v", err)
		}
		var buf bytes.Buffer
		if err := safetensors.Write(&buf, weights(tensor1([]int{2, 3}, 0, 0, 0, 0, 0, 0)), nil); err != nil {
			t.Fatalf("Write: %v", err)
		}
		src, err := safetensors.OpenBytes(buf.Bytes())
		if err != nil {
			t.Fatalf("OpenBytes: %v", err)
		}
		if _, err := Build(arch, src); !errors.Is(err, ErrIncompatibleWeights) {
			t.Fatalf("expected two-row bias to be rejected without reset_after, got %v", err)
		}
	})
}

func TestGRUGateMath(t *testing.T) {
	t.Parallel()

	// Non-zero update and reset gates with the default hard_sigmoid.
	m := buildModel(t, `{"class_name": "Sequential", "config": [
		{"class_name": "GRU", "config": {"name": "gru", "units": 1, "batch_input_shape": [null, null, 1]}}
	]}`, map[string]safetensors.Tensor{
		"gru/kernel":           tensor1([]int{1, 3}, 1, -1, 2),
		"gru/recurrent_kernel": tensor1([]int{1, 3}, 0.5, 0.5, 0.5),
		"gru/bias":             tensor1([]int{3}, 0, 0, 0),
	})

	hard := func(x float64) float64 { return math.Max(0, math.Min(1, 0.2*x+0.5)) }
	h := 0.0
	for range 2 {
		z := hard(1 + 0.5*h)
		r := hard(-1 + 0.5*h)
		hh := math.Tanh(2 + 0.5*r*h)
		h = z*h + (1-z)*hh
	}
	assertClose(t, float64(predictOne(t, m, 0, 0)[0]), h)
}

func TestEmbeddingDenseSoftmax(t *testing.T) {
	t.Parallel()

	m := buildModel(t, `{"class_name": "Sequential", "config": {"layers": [
		{"class_name": "Embedding", "config": {"name": "emb", "input_dim": 3, "output_dim": 2}},
		{"class_name": "Dropout", "config": {"name": "drop", "rate": 0.5}},
		{"class_name": "Dense", "config": {"name": "out", "units": 2, "activation": "softmax", "use_bias": false}}
	]}}`, map[string]safetensors.Tensor{
		"emb/embeddings": tensor1([]int{3, 2}, 0, 0, 1, 0, 0, 1),
		"out/kernel":     tensor1([]int{2, 2}, 1, 0, 0, 1),
	})

	got := predictOne(t, m, 2, 1)
	// Last embedding row [1, 0] through identity then softmax.
	e := math.E
	assertClose(t, float64(got[0]), e/(e+1))
	assertClose(t, float64(got[1]), 1/(e+1))

	_, vocab := m.InputShape()
	if vocab != 3 {
		t.Fatalf("expected vocabulary 3, got %d", vocab)
	}
	if _, err := m.Predict([]int{3}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for index past the embedding table, got %v", err)
	}
	if m.Summary()[0].Class != "Embedding" || m.Summary()[1].Params != 0 {
		t.Fatalf("unexpected summary: %+v", m.Summary())
	}
}

func TestLayerForwardDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	a := &activation{name: "act", width: 2, act: func(x []float32) {
		for i := range x {
			x[i] = 0
		}
	}}
	in := [][]float32{{1, 2}}
	a.Forward(in)
	if in[0][0] != 1 || in[0][1] != 2 {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestSigmoidHelper(t *testing.T) {
	t.Parallel()
	assertClose(t, sigmoid(0), 0.5)
}
