package main

import (
	"context"
	"fmt"

	"github.com/samcharles93/sensibility/internal/detect"
	"github.com/urfave/cli/v3"
)

func detectAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 1 {
		return fmt.Errorf("expected at most one filename, got %d", cmd.Args().Len())
	}
	cfg, err := buildConfig(cmd.Args().First())
	if err != nil {
		return err
	}
	_, err = detect.Run(ctx, cfg, detect.Deps{})
	return err
}

// buildConfig resolves the flag variables into a run configuration.
func buildConfig(filename string) (detect.Config, error) {
	dir := executableDir()
	arch, weights := resolveModelPaths(architecturePath, weightsPath, dir)
	tok, err := resolveTokenizer(tokenizerLine, dir)
	if err != nil {
		return detect.Config{}, err
	}
	return detect.Config{
		Filename:        filename,
		Architecture:    arch,
		WeightsForwards: weights,
		Tokenizer:       tok,
	}, nil
}
