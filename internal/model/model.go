package model

import (
	"fmt"
	"slices"
)

// Model is a loaded recurrent language model. It is immutable after Build
// and safe for concurrent use.
type Model struct {
	arch        *Architecture
	embedding   *embedding
	layers      []Layer
	timesteps   int
	inputWidth  int
	outputSize  int
	tensorsUsed int
}

// LayerSummary describes one layer for inspection output.
type LayerSummary struct {
	Name       string `json:"name"`
	Class      string `json:"class"`
	OutputSize int    `json:"output_size"`
	Params     int    `json:"params"`
}

func (m *Model) Architecture() *Architecture { return m.arch }

// InputShape returns the fixed sequence length (0 when variable) and the
// number of distinct input indices the model accepts.
func (m *Model) InputShape() (timesteps, vocabulary int) {
	return m.timesteps, m.inputWidth
}

// OutputSize is the width of the vector returned by Predict.
func (m *Model) OutputSize() int { return m.outputSize }

// Summary lists the layers in order, the embedding first when present.
func (m *Model) Summary() []LayerSummary {
	out := make([]LayerSummary, 0, len(m.layers)+1)
	if m.embedding != nil {
		out = append(out, LayerSummary{
			Name:       m.embedding.name,
			Class:      "Embedding",
			OutputSize: m.embedding.table.C,
			Params:     len(m.embedding.table.Data),
		})
	}
	for _, l := range m.layers {
		out = append(out, LayerSummary{
			Name:       l.Name(),
			Class:      l.Class(),
			OutputSize: l.OutputSize(),
			Params:     l.ParamCount(),
		})
	}
	return out
}

// ParamCount is the total number of loaded parameters.
func (m *Model) ParamCount() int {
	n := 0
	for _, s := range m.Summary() {
		n += s.Params
	}
	return n
}

// Predict runs the model over seq and returns the output vector of the last
// timestep. Indices are embedded, or one-hot encoded when the model has no
// Embedding layer.
func (m *Model) Predict(seq []int) ([]float32, error) {
	if len(seq) == 0 {
		return nil, fmt.Errorf("%w: empty sequence", ErrInvalidInput)
	}
	if m.timesteps > 0 && len(seq) != m.timesteps {
		return nil, fmt.Errorf("%w: sequence length %d, model expects %d", ErrInvalidInput, len(seq), m.timesteps)
	}

	var x [][]float32
	if m.embedding != nil {
		var err error
		if x, err = m.embedding.lookup(seq); err != nil {
			return nil, err
		}
	} else {
		x = make([][]float32, len(seq))
		for t, id := range seq {
			if id < 0 || id >= m.inputWidth {
				return nil, fmt.Errorf("%w: index %d at position %d outside vocabulary of %d", ErrInvalidInput, id, t, m.inputWidth)
			}
			x[t] = make([]float32, m.inputWidth)
			x[t][id] = 1
		}
	}

	for _, l := range m.layers {
		x = l.Forward(x)
	}
	return slices.Clone(x[len(x)-1]), nil
}
