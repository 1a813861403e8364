package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/samcharles93/sensibility/internal/logger"
)

// CheckFiles verifies that the architecture and weights paths exist.
func CheckFiles(architecturePath, weightsPath string) error {
	for _, f := range []struct{ role, path string }{
		{"architecture", architecturePath},
		{"weights", weightsPath},
	} {
		st, err := os.Stat(f.path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return &MissingFileError{Role: f.role, Path: f.path, Err: err}
			}
			return fmt.Errorf("%s file: %w", f.role, err)
		}
		if st.IsDir() {
			return fmt.Errorf("%s file %s is a directory", f.role, f.path)
		}
	}
	return nil
}

// LoadModel loads a model from an architecture JSON file and a weights file.
func LoadModel(architecturePath, weightsPath string) (*Model, error) {
	return Load(context.Background(), architecturePath, weightsPath)
}

// Load is LoadModel with the context's logger. Both files are checked for
// existence before either is read.
func Load(ctx context.Context, architecturePath, weightsPath string) (*Model, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	if err := CheckFiles(architecturePath, weightsPath); err != nil {
		return nil, err
	}

	arch, err := ReadArchitecture(architecturePath)
	if err != nil {
		return nil, err
	}
	log.Debug("parsed architecture",
		"class", arch.ClassName,
		"layers", len(arch.Layers),
		"keras_version", arch.KerasVersion,
	)

	weights, err := OpenWeights(weightsPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = weights.Close() }()

	m, err := Build(arch, weights)
	if err != nil {
		return nil, fmt.Errorf("load weights %s: %w", weightsPath, err)
	}
	if extra := len(weights.Tensors) - m.tensorsUsed; extra > 0 {
		log.Warn("weights file has tensors not used by the architecture", "unused", extra)
	}
	log.Info("loaded model",
		"architecture", architecturePath,
		"weights", weightsPath,
		"params", m.ParamCount(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return m, nil
}
