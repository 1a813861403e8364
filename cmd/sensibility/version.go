package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/samcharles93/sensibility/internal/version"

	"github.com/urfave/cli/v3"
)

func versionCmd() *cli.Command {
	var asJSON bool

	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print as JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return printVersion(os.Stdout, version.Resolve(), asJSON)
		},
	}
}

func printVersion(w io.Writer, info version.Info, asJSON bool) error {
	if asJSON {
		b, err := json.Marshal(map[string]string{
			"version":    info.Version,
			"commit":     info.Commit,
			"build_time": info.BuildTime,
			"go":         info.GoVersion,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	_, _ = fmt.Fprintf(w, "version:    %s\n", info.Version)
	if info.Commit != "" {
		_, _ = fmt.Fprintf(w, "commit:     %s\n", info.Commit)
	}
	if info.BuildTime != "" {
		_, _ = fmt.Fprintf(w, "build time: %s\n", info.BuildTime)
	}
	if info.GoVersion != "" {
		_, _ = fmt.Fprintf(w, "go:         %s\n", info.GoVersion)
	}
	return nil
}
