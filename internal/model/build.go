package model

import (
	"fmt"

	"github.com/samcharles93/sensibility/internal/tensor"
)

// Build assembles a model from an architecture and its weights. Every
// parameter is copied out of src, so src may be closed afterwards.
func Build(arch *Architecture, src weightSource) (*Model, error) {
	if arch == nil || len(arch.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrInvalidArchitecture)
	}
	b := newBinder(src)
	m := &Model{arch: arch, timesteps: arch.Timesteps}

	layers := arch.Layers
	width := arch.Features
	if layers[0].ClassName == "Embedding" {
		emb, err := buildEmbedding(layers[0], b)
		if err != nil {
			return nil, err
		}
		m.embedding = emb
		m.inputWidth = emb.table.R
		width = emb.table.C
		layers = layers[1:]
	} else {
		if width <= 0 {
			return nil, fmt.Errorf("%w: unknown input width", ErrInvalidArchitecture)
		}
		m.inputWidth = width
	}

	for _, lc := range layers {
		l, err := buildLayer(lc, width, b)
		if err != nil {
			return nil, err
		}
		m.layers = append(m.layers, l)
		width = l.OutputSize()
	}
	m.outputSize = width
	m.tensorsUsed = b.usedCount()
	return m, nil
}

func buildEmbedding(lc LayerConfig, b *binder) (*embedding, error) {
	if lc.Params.InputDim == nil || lc.Params.OutputDim == nil {
		return nil, fmt.Errorf("%w: embedding %q needs input_dim and output_dim", ErrInvalidArchitecture, lc.Name)
	}
	vocab, dim := *lc.Params.InputDim, *lc.Params.OutputDim
	data, _, err := b.param(lc.Name, "embeddings", []int{vocab, dim})
	if err != nil {
		return nil, err
	}
	table, err := tensor.NewMatFromData(vocab, dim, data)
	if err != nil {
		return nil, err
	}
	return &embedding{name: lc.Name, table: table}, nil
}

func buildLayer(lc LayerConfig, in int, b *binder) (Layer, error) {
	switch lc.ClassName {
	case "Dense":
		return buildDense(lc, lc.Name, "Dense", in, b)
	case "TimeDistributed":
		if lc.Inner == nil || lc.Inner.ClassName != "Dense" {
			inner := ""
			if lc.Inner != nil {
				inner = lc.Inner.ClassName
			}
			return nil, &UnsupportedLayerError{Class: "TimeDistributed(" + inner + ")", Name: lc.Name}
		}
		// Keras stores wrapped weights under the wrapper's name; Keras 1
		// prefixes them with the wrapped layer's name.
		if lc.Inner.Name != "" {
			b.inner[lc.Name] = lc.Inner.Name
		}
		return buildDense(*lc.Inner, lc.Name, "TimeDistributed(Dense)", in, b)
	case "Activation":
		act, err := tensor.ActivationByName(lc.Params.Activation)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", lc.Name, err)
		}
		return &activation{name: lc.Name, width: in, act: act}, nil
	case "Dropout":
		return &dropout{name: lc.Name, width: in}, nil
	case "SimpleRNN", "LSTM", "GRU":
		return buildRecurrent(lc, in, b)
	default:
		return nil, &UnsupportedLayerError{Class: lc.ClassName, Name: lc.Name}
	}
}

func buildDense(lc LayerConfig, weightName, class string, in int, b *binder) (Layer, error) {
	units, ok := lc.Params.units()
	if !ok || units <= 0 {
		return nil, fmt.Errorf("%w: %s %q has no units", ErrInvalidArchitecture, class, weightName)
	}
	act, err := tensor.ActivationByName(lc.Params.Activation)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", weightName, err)
	}
	kdata, _, err := b.param(weightName, "kernel", []int{in, units})
	if err != nil {
		return nil, err
	}
	kernel, err := tensor.NewMatFromData(in, units, kdata)
	if err != nil {
		return nil, err
	}
	d := &dense{name: weightName, class: class, kernel: kernel, act: act}
	if lc.Params.useBias() {
		if d.bias, _, err = b.param(weightName, "bias", []int{units}); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// recurrentGates lists the gates in the order Keras concatenates them.
var recurrentGates = map[string][]string{
	"LSTM": {"i", "f", "c", "o"},
	"GRU":  {"z", "r", "h"},
}

func buildRecurrent(lc LayerConfig, in int, b *binder) (Layer, error) {
	units, ok := lc.Params.units()
	if !ok || units <= 0 {
		return nil, fmt.Errorf("%w: %s %q has no units", ErrInvalidArchitecture, lc.ClassName, lc.Name)
	}
	actName := lc.Params.Activation
	if actName == "" {
		actName = "tanh"
	}
	act, err := tensor.ActivationByName(actName)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", lc.Name, err)
	}

	gateNames := recurrentGates[lc.ClassName]
	gates := max(len(gateNames), 1)
	kdata, err := b.gatedParam(lc.Name, "kernel", gateNames, []int{in, gates * units})
	if err != nil {
		return nil, err
	}
	rdata, err := b.gatedParam(lc.Name, "recurrent_kernel", gateNames, []int{units, gates * units})
	if err != nil {
		return nil, err
	}
	kernel, _ := tensor.NewMatFromData(in, gates*units, kdata)
	rec, _ := tensor.NewMatFromData(units, gates*units, rdata)

	twoRowBias := lc.ClassName == "GRU" && lc.Params.ResetAfter
	var bias []float32
	if lc.Params.useBias() {
		if twoRowBias {
			bias, _, err = b.param(lc.Name, "bias", []int{2, gates * units})
		} else {
			bias, err = b.gatedParam(lc.Name, "bias", gateNames, []int{gates * units})
		}
		if err != nil {
			return nil, err
		}
	}

	r := &recurrent{
		name:      lc.Name,
		class:     lc.ClassName,
		units:     units,
		returnSeq: lc.Params.ReturnSequences,
		backwards: lc.Params.GoBackwards,
	}
	switch lc.ClassName {
	case "SimpleRNN":
		r.cell = &simpleCell{kernel: kernel, recurrent: rec, bias: bias, act: act}
	case "LSTM", "GRU":
		recAct, err := tensor.ActivationByName(lc.Params.recurrentActivation())
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", lc.Name, err)
		}
		if lc.ClassName == "LSTM" {
			r.cell = &lstmCell{units: units, kernel: kernel, recurrent: rec, bias: bias, act: act, recAct: recAct}
			break
		}
		g := &gruCell{
			units:      units,
			kernel:     kernel,
			recurrent:  rec,
			resetAfter: lc.Params.ResetAfter,
			act:        act,
			recAct:     recAct,
		}
		if twoRowBias && bias != nil {
			g.inBias, g.recBias = bias[:gates*units], bias[gates*units:]
		} else {
			g.inBias = bias
		}
		if !g.resetAfter {
			g.recZR = rec.Cols(0, 2*units)
			g.recH = rec.Cols(2*units, 3*units)
		}
		r.cell = g
	}
	return r, nil
}
