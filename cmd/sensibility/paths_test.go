package main

import (
	"path/filepath"
	"testing"

	"github.com/samcharles93/sensibility/internal/tokenizer"
)

func TestResolveModelPaths(t *testing.T) {
	t.Parallel()

	dir := filepath.Join("opt", "sensibility")

	t.Run("defaults live next to the executable", func(t *testing.T) {
		arch, weights := resolveModelPaths("", "  ", dir)
		if want := filepath.Join(dir, "model-architecture.json"); arch != want {
			t.Fatalf("architecture: got %q want %q", arch, want)
		}
		if want := filepath.Join(dir, "javascript-tiny.5.h5"); weights != want {
			t.Fatalf("weights: got %q want %q", weights, want)
		}
	})

	t.Run("explicit paths win", func(t *testing.T) {
		arch, weights := resolveModelPaths("models/../arch.json", "w.safetensors", dir)
		if arch != "arch.json" || weights != "w.safetensors" {
			t.Fatalf("unexpected paths %q %q", arch, weights)
		}
	})
}

func TestResolveTokenizer(t *testing.T) {
	t.Run("flag value is split into argv", func(t *testing.T) {
		cmd, err := resolveTokenizer("node ./bin/tokenize-js --tokens", "/x")
		if err != nil {
			t.Fatalf("resolveTokenizer: %v", err)
		}
		if cmd.Path != "node" || len(cmd.Args) != 2 || cmd.Args[1] != "--tokens" {
			t.Fatalf("unexpected command %+v", cmd)
		}
	})

	t.Run("environment overrides the bundled tokenizer", func(t *testing.T) {
		t.Setenv(tokenizer.EnvTokenizer, "esprima-tokens")
		cmd, err := resolveTokenizer("", "/x")
		if err != nil {
			t.Fatalf("resolveTokenizer: %v", err)
		}
		if cmd.String() != "esprima-tokens" {
			t.Fatalf("unexpected command %q", cmd.String())
		}
	})

	t.Run("default runs tokenize-js with node", func(t *testing.T) {
		t.Setenv(tokenizer.EnvTokenizer, "")
		cmd, err := resolveTokenizer("", "/x")
		if err != nil {
			t.Fatalf("resolveTokenizer: %v", err)
		}
		if want := "node " + filepath.Join("/x", "tokenize-js"); cmd.String() != want {
			t.Fatalf("got %q want %q", cmd.String(), want)
		}
	})
}

func TestBuildConfigUsesExecutableDir(t *testing.T) {
	dir := t.TempDir()
	prev := executableDir
	executableDir = func() string { return dir }
	t.Cleanup(func() { executableDir = prev })
	t.Setenv(tokenizer.EnvTokenizer, "")

	architecturePath, weightsPath, tokenizerLine = "", "", ""
	cfg, err := buildConfig("script.js")
	if err != nil {
		t.Fatalf("buildConfig: %v", err)
	}
	if cfg.Filename != "script.js" {
		t.Fatalf("unexpected filename %q", cfg.Filename)
	}
	if cfg.Architecture != filepath.Join(dir, "model-architecture.json") {
		t.Fatalf("unexpected architecture %q", cfg.Architecture)
	}
	if cfg.Tokenizer.Args[0] != filepath.Join(dir, "tokenize-js") {
		t.Fatalf("unexpected tokenizer %+v", cfg.Tokenizer)
	}
}
