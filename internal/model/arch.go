package model

import (
	"bytes"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Architecture is a parsed Keras model description. Only linear stacks are
// supported: Sequential models, or functional models whose layers form a chain.
type Architecture struct {
	ClassName    string
	Name         string
	KerasVersion string
	Backend      string
	Layers       []LayerConfig

	// Timesteps is 0 when the sequence length is not fixed.
	Timesteps int
	// Features is the per-timestep input width for models without an
	// Embedding layer, or 0 when the first layer embeds indices.
	Features int
}

// LayerConfig is one layer entry of the architecture.
type LayerConfig struct {
	ClassName string
	Name      string
	Params    LayerParams
	// Inner holds the wrapped layer of a TimeDistributed wrapper.
	Inner *LayerConfig
}

// LayerParams covers the config keys of the supported layers across
// Keras 1 and Keras 2 naming.
type LayerParams struct {
	Name                string          `json:"name"`
	Units               *int            `json:"units"`
	OutputDim           *int            `json:"output_dim"`
	InputDim            *int            `json:"input_dim"`
	InputLength         *int            `json:"input_length"`
	BatchInputShape     []*int          `json:"batch_input_shape"`
	BatchShape          []*int          `json:"batch_shape"`
	Activation          string          `json:"activation"`
	RecurrentActivation string          `json:"recurrent_activation"`
	InnerActivation     string          `json:"inner_activation"`
	ReturnSequences     bool            `json:"return_sequences"`
	GoBackwards         bool            `json:"go_backwards"`
	UseBias             *bool           `json:"use_bias"`
	Bias                *bool           `json:"bias"`
	ResetAfter          bool            `json:"reset_after"`
	Layer               json.RawMessage `json:"layer"`
}

// units returns the layer width: "units" in Keras 2, "output_dim" in Keras 1.
func (p LayerParams) units() (int, bool) {
	switch {
	case p.Units != nil:
		return *p.Units, true
	case p.OutputDim != nil:
		return *p.OutputDim, true
	default:
		return 0, false
	}
}

func (p LayerParams) useBias() bool {
	switch {
	case p.UseBias != nil:
		return *p.UseBias
	case p.Bias != nil:
		return *p.Bias
	default:
		return true
	}
}

func (p LayerParams) recurrentActivation() string {
	switch {
	case p.RecurrentActivation != "":
		return p.RecurrentActivation
	case p.InnerActivation != "":
		return p.InnerActivation
	default:
		return "hard_sigmoid"
	}
}

func (p LayerParams) inputShape() []*int {
	if len(p.BatchInputShape) > 0 {
		return p.BatchInputShape
	}
	return p.BatchShape
}

type rawModel struct {
	ClassName    string          `json:"class_name"`
	Config       json.RawMessage `json:"config"`
	KerasVersion string          `json:"keras_version"`
	Backend      string          `json:"backend"`
}

type rawLayer struct {
	ClassName string          `json:"class_name"`
	Name      string          `json:"name"`
	Config    json.RawMessage `json:"config"`
}

type rawContainer struct {
	Name   string     `json:"name"`
	Layers []rawLayer `json:"layers"`
}

// ReadArchitecture parses the architecture file at path.
func ReadArchitecture(path string) (*Architecture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	arch, err := ParseArchitecture(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return arch, nil
}

// ParseArchitecture parses a Keras model_to_json document.
func ParseArchitecture(data []byte) (*Architecture, error) {
	var rm rawModel
	if err := json.Unmarshal(data, &rm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchitecture, err)
	}
	if rm.ClassName == "" {
		return nil, fmt.Errorf("%w: missing class_name", ErrInvalidArchitecture)
	}
	arch := &Architecture{
		ClassName:    rm.ClassName,
		KerasVersion: rm.KerasVersion,
		Backend:      rm.Backend,
	}

	var raws []rawLayer
	cfg := bytes.TrimSpace(rm.Config)
	switch {
	case len(cfg) == 0:
		return nil, fmt.Errorf("%w: missing config", ErrInvalidArchitecture)
	case cfg[0] == '[':
		// Keras 1 and early Keras 2 Sequential: config is the layer list.
		if err := json.Unmarshal(cfg, &raws); err != nil {
			return nil, fmt.Errorf("%w: layers: %v", ErrInvalidArchitecture, err)
		}
	default:
		var c rawContainer
		if err := json.Unmarshal(cfg, &c); err != nil {
			return nil, fmt.Errorf("%w: config: %v", ErrInvalidArchitecture, err)
		}
		arch.Name = c.Name
		raws = c.Layers
	}

	var inputShape []*int
	for i, rl := range raws {
		lc, err := parseLayer(rl)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		if inputShape == nil {
			inputShape = lc.Params.inputShape()
		}
		if lc.ClassName == "InputLayer" {
			continue
		}
		if len(arch.Layers) == 0 && inputShape == nil && lc.Params.InputDim != nil && lc.ClassName != "Embedding" {
			// Keras 1 allowed input_dim/input_length in place of batch_input_shape.
			inputShape = []*int{nil, lc.Params.InputLength, lc.Params.InputDim}
		}
		arch.Layers = append(arch.Layers, lc)
	}
	if len(arch.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalidArchitecture)
	}

	first := arch.Layers[0]
	if first.ClassName == "Embedding" {
		if first.Params.InputLength != nil {
			arch.Timesteps = *first.Params.InputLength
		} else if len(inputShape) >= 2 && inputShape[1] != nil {
			arch.Timesteps = *inputShape[1]
		}
		return arch, nil
	}
	if len(inputShape) != 3 || inputShape[2] == nil {
		return nil, fmt.Errorf("%w: first layer %q needs a batch_input_shape of [batch, timesteps, features]", ErrInvalidArchitecture, first.Name)
	}
	if inputShape[1] != nil {
		arch.Timesteps = *inputShape[1]
	}
	arch.Features = *inputShape[2]
	return arch, nil
}

func parseLayer(rl rawLayer) (LayerConfig, error) {
	lc := LayerConfig{ClassName: rl.ClassName, Name: rl.Name}
	if rl.ClassName == "" {
		return lc, fmt.Errorf("%w: layer without class_name", ErrInvalidArchitecture)
	}
	if len(rl.Config) > 0 {
		if err := json.Unmarshal(rl.Config, &lc.Params); err != nil {
			return lc, fmt.Errorf("%w: %s config: %v", ErrInvalidArchitecture, rl.ClassName, err)
		}
	}
	if lc.Name == "" {
		lc.Name = lc.Params.Name
	}
	if lc.ClassName == "TimeDistributed" {
		if len(lc.Params.Layer) == 0 {
			return lc, fmt.Errorf("%w: TimeDistributed %q has no wrapped layer", ErrInvalidArchitecture, lc.Name)
		}
		var inner rawLayer
		if err := json.Unmarshal(lc.Params.Layer, &inner); err != nil {
			return lc, fmt.Errorf("%w: TimeDistributed %q: %v", ErrInvalidArchitecture, lc.Name, err)
		}
		il, err := parseLayer(inner)
		if err != nil {
			return lc, err
		}
		lc.Inner = &il
	}
	return lc, nil
}
