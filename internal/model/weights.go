package model

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/samcharles93/sensibility/internal/safetensors"
)

var hdf5Signature = []byte("\x89HDF\r\n\x1a\n")

// openSafetensors is a seam for tests.
var openSafetensors = safetensors.Open

// OpenWeights opens a safetensors weights container. HDF5 files written by
// Keras' save_weights are recognised and rejected with a conversion hint.
func OpenWeights(path string) (*safetensors.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var sig [8]byte
	n, err := io.ReadFull(f, sig[:])
	_ = f.Close()
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	if n == len(sig) && bytes.Equal(sig[:], hdf5Signature) {
		return nil, fmt.Errorf("%w: %s is HDF5; export it to safetensors (tensor names <layer>/<param>)", ErrUnsupportedWeightsFormat, path)
	}
	sf, err := openSafetensors(path)
	if errors.Is(err, safetensors.ErrCorruptFile) {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedWeightsFormat, path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("open weights %s: %w", path, err)
	}
	return sf, nil
}

type weightSource interface {
	Tensor(name string) (safetensors.TensorInfo, bool)
	ReadTensorF32(name string) ([]float32, safetensors.TensorInfo, error)
}

// keras1Params maps parameter names to the Keras 1 weight suffixes.
var keras1Params = map[string]string{
	"kernel":           "W",
	"recurrent_kernel": "U",
	"bias":             "b",
	"embeddings":       "W",
}

// binder resolves layer parameters from a weight source and checks shapes.
type binder struct {
	src  weightSource
	used map[string]struct{}
	// inner maps a wrapper layer to the wrapped layer whose name prefixes
	// Keras 1 weights.
	inner map[string]string
}

func newBinder(src weightSource) *binder {
	return &binder{
		src:   src,
		used:  make(map[string]struct{}),
		inner: make(map[string]string),
	}
}

// tensorNames lists the accepted spellings of a parameter: plain
// "<layer>/<param>", the HDF5 export form "<layer>/<layer>/<param>:0" and
// the Keras 1 form "<layer>/<layer>_W".
func (b *binder) tensorNames(layer, param string) []string {
	names := []string{
		layer + "/" + param,
		layer + "/" + param + ":0",
		layer + "/" + layer + "/" + param + ":0",
	}
	if suffix, ok := keras1Params[param]; ok {
		names = append(names, b.keras1Names(layer, suffix)...)
	}
	return names
}

func (b *binder) keras1Names(layer, suffix string) []string {
	prefix := layer
	if inner, ok := b.inner[layer]; ok {
		prefix = inner
	}
	w := prefix + "_" + suffix
	return []string{layer + "/" + w, layer + "/" + w + ":0", w}
}

func (b *binder) find(names []string) (string, safetensors.TensorInfo, bool) {
	for _, name := range names {
		if info, ok := b.src.Tensor(name); ok {
			return name, info, true
		}
	}
	return "", safetensors.TensorInfo{}, false
}

// param loads a parameter whose shape must be one of shapes, returning the
// shape that matched.
func (b *binder) param(layer, param string, shapes ...[]int) ([]float32, []int, error) {
	name, info, ok := b.find(b.tensorNames(layer, param))
	if !ok {
		return nil, nil, &IncompatibleWeightsError{Layer: layer, Param: param, Want: shapes[0], Reason: "missing from weights file"}
	}
	match := -1
	for i, s := range shapes {
		if slices.Equal(info.Shape, s) {
			match = i
			break
		}
	}
	if match < 0 {
		return nil, nil, &IncompatibleWeightsError{Layer: layer, Param: param, Want: shapes[0], Got: info.Shape}
	}
	data, err := b.read(layer, param, name, info)
	if err != nil {
		return nil, nil, err
	}
	return data, shapes[match], nil
}

// gatedParam is param for recurrent weights. Keras 1.0 and 1.1 store one
// tensor per gate ("<layer>_W_i", "<layer>_W_f", ...); those are joined
// along the last axis in gate order to give shape.
func (b *binder) gatedParam(layer, param string, gates []string, shape []int) ([]float32, error) {
	suffix, ok := keras1Params[param]
	split := false
	if ok && len(gates) > 1 {
		_, _, whole := b.find(b.tensorNames(layer, param))
		_, _, first := b.find(b.keras1Names(layer, suffix+"_"+gates[0]))
		split = !whole && first
	}
	if !split {
		data, _, err := b.param(layer, param, shape)
		return data, err
	}

	last := len(shape) - 1
	if shape[last]%len(gates) != 0 {
		return nil, &IncompatibleWeightsError{Layer: layer, Param: param, Want: shape, Reason: "width does not split into gates"}
	}
	part := slices.Clone(shape)
	part[last] /= len(gates)
	width := part[last]
	rows := 1
	for _, d := range part[:last] {
		rows *= d
	}

	out := make([]float32, rows*shape[last])
	for g, gate := range gates {
		gparam := param + "_" + gate
		name, info, ok := b.find(b.keras1Names(layer, suffix+"_"+gate))
		if !ok {
			return nil, &IncompatibleWeightsError{Layer: layer, Param: gparam, Want: part, Reason: "missing from weights file"}
		}
		if !slices.Equal(info.Shape, part) {
			return nil, &IncompatibleWeightsError{Layer: layer, Param: gparam, Want: part, Got: info.Shape}
		}
		data, err := b.read(layer, gparam, name, info)
		if err != nil {
			return nil, err
		}
		for r := 0; r < rows; r++ {
			copy(out[r*shape[last]+g*width:], data[r*width:(r+1)*width])
		}
	}
	return out, nil
}

func (b *binder) read(layer, param, name string, info safetensors.TensorInfo) ([]float32, error) {
	data, _, err := b.src.ReadTensorF32(name)
	if err != nil {
		return nil, &IncompatibleWeightsError{Layer: layer, Param: param, Got: info.Shape, Reason: err.Error()}
	}
	b.used[name] = struct{}{}
	return data, nil
}

func (b *binder) usedCount() int {
	return len(b.used)
}
