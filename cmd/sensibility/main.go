package main

import (
	"context"
	"fmt"
	"os"

	"github.com/samcharles93/sensibility/internal/logger"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:      "sensibility",
		Usage:     "Check a JavaScript file against a recurrent language model",
		ArgsUsage: "[filename]",
		Flags:     rootFlags(),
		Before:    setup,
		Action:    detectAction,
		Commands: []*cli.Command{
			tokenizeCmd(),
			inspectCmd(),
			serveCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config file and installs the logger on the context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := readConfig(configPath())
	if err != nil {
		return ctx, err
	}
	fileConfig = cfg
	applyConfig(cmd, cfg)

	level := logLevel
	if debug {
		level = "debug"
	}
	log, err := logger.Setup(os.Stderr, logFormat, level)
	if err != nil {
		return ctx, err
	}
	return logger.WithContext(ctx, log), nil
}
