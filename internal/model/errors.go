package model

import (
	"errors"
	"fmt"
)

var (
	ErrFileNotFound             = errors.New("model file not found")
	ErrIncompatibleWeights      = errors.New("incompatible weights")
	ErrUnsupportedWeightsFormat = errors.New("unsupported weights format")
	ErrUnsupportedLayer         = errors.New("unsupported layer")
	ErrInvalidArchitecture      = errors.New("invalid architecture")
	ErrInvalidInput             = errors.New("invalid model input")
)

// MissingFileError reports an architecture or weights path that does not exist.
// It matches both ErrFileNotFound and fs.ErrNotExist.
type MissingFileError struct {
	Role string
	Path string
	Err  error
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%s file not found: %s", e.Role, e.Path)
}

func (e *MissingFileError) Is(target error) bool {
	return target == ErrFileNotFound
}

func (e *MissingFileError) Unwrap() error {
	return e.Err
}

// IncompatibleWeightsError reports a parameter that is missing from the
// weights file or whose shape differs from what the architecture expects.
type IncompatibleWeightsError struct {
	Layer  string
	Param  string
	Want   []int
	Got    []int
	Reason string
}

func (e *IncompatibleWeightsError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: layer %q param %q: %s", ErrIncompatibleWeights, e.Layer, e.Param, e.Reason)
	}
	return fmt.Sprintf("%s: layer %q param %q: want shape %v, got %v", ErrIncompatibleWeights, e.Layer, e.Param, e.Want, e.Got)
}

func (e *IncompatibleWeightsError) Is(target error) bool {
	return target == ErrIncompatibleWeights
}

type UnsupportedLayerError struct {
	Class string
	Name  string
}

func (e *UnsupportedLayerError) Error() string {
	return fmt.Sprintf("%s %s (%q)", ErrUnsupportedLayer, e.Class, e.Name)
}

func (e *UnsupportedLayerError) Is(target error) bool {
	return target == ErrUnsupportedLayer
}
