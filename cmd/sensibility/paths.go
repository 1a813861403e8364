package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/sensibility/internal/tokenizer"
)

const (
	defaultArchitectureName = "model-architecture.json"
	defaultWeightsName      = "javascript-tiny.5.h5"
	envTokenizerName        = tokenizer.EnvTokenizer
)

// executableDir is a seam for tests.
var executableDir = func() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// resolveModelPaths fills in the bundled model files next to the executable
// for any path left empty.
func resolveModelPaths(arch, weights, dir string) (string, string) {
	arch = strings.TrimSpace(arch)
	if arch == "" {
		arch = filepath.Join(dir, defaultArchitectureName)
	}
	weights = strings.TrimSpace(weights)
	if weights == "" {
		weights = filepath.Join(dir, defaultWeightsName)
	}
	return filepath.Clean(arch), filepath.Clean(weights)
}

// resolveTokenizer returns the command from line, falling back to the
// environment and then to node tokenize-js in dir.
func resolveTokenizer(line, dir string) (tokenizer.Command, error) {
	if strings.TrimSpace(line) != "" {
		return tokenizer.ParseCommand(line)
	}
	return tokenizer.DefaultCommand(dir), nil
}
