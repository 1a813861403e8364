package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/samcharles93/sensibility/internal/model"
	"github.com/samcharles93/sensibility/internal/safetensors"
	"github.com/urfave/cli/v3"
)

func inspectCmd() *cli.Command {
	var (
		showTensors  bool
		asJSON       bool
		tensorFilter string
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Load the forwards model and print its layers",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "tensors", Usage: "list the tensors of the weights file", Destination: &showTensors},
			&cli.StringFlag{Name: "tensor-filter", Usage: "substring filter for tensor listing", Destination: &tensorFilter},
			&cli.BoolFlag{Name: "json", Usage: "print the summary as JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			arch, weights := resolveModelPaths(architecturePath, weightsPath, executableDir())
			m, err := model.Load(ctx, arch, weights)
			if err != nil {
				return err
			}

			if asJSON {
				return printSummaryJSON(os.Stdout, m)
			}
			printSummary(os.Stdout, arch, weights, m)

			if showTensors {
				st, err := model.OpenWeights(weights)
				if err != nil {
					return err
				}
				defer func() { _ = st.Close() }()
				printTensorIndex(os.Stdout, st, tensorFilter)
			}
			return nil
		},
	}
}

func printSummary(w io.Writer, arch, weights string, m *model.Model) {
	a := m.Architecture()
	timesteps, vocab := m.InputShape()
	steps := "variable"
	if timesteps > 0 {
		steps = fmt.Sprint(timesteps)
	}

	_, _ = fmt.Fprintf(w, "Architecture: %s\n", arch)
	_, _ = fmt.Fprintf(w, "Weights:      %s\n", weights)
	_, _ = fmt.Fprintf(w, "Model:        %s", a.ClassName)
	if a.KerasVersion != "" {
		_, _ = fmt.Fprintf(w, " (keras %s)", a.KerasVersion)
	}
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Input:        %s timesteps x %d\n", steps, vocab)
	_, _ = fmt.Fprintf(w, "Output:       %d\n\n", m.OutputSize())

	_, _ = fmt.Fprintf(w, "%-24s %-24s %8s %10s\n", "LAYER", "CLASS", "OUTPUT", "PARAMS")
	for _, l := range m.Summary() {
		_, _ = fmt.Fprintf(w, "%-24s %-24s %8d %10d\n", l.Name, l.Class, l.OutputSize, l.Params)
	}
	_, _ = fmt.Fprintf(w, "\nTotal params: %d\n", m.ParamCount())
}

func printSummaryJSON(w io.Writer, m *model.Model) error {
	timesteps, vocab := m.InputShape()
	out := map[string]any{
		"class_name":  m.Architecture().ClassName,
		"timesteps":   timesteps,
		"vocabulary":  vocab,
		"output_size": m.OutputSize(),
		"params":      m.ParamCount(),
		"layers":      m.Summary(),
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func printTensorIndex(w io.Writer, st *safetensors.File, filter string) {
	_, _ = fmt.Fprintf(w, "\nTensors:\n")
	for _, name := range st.Names() {
		if filter != "" && !strings.Contains(name, filter) {
			continue
		}
		info, _ := st.Tensor(name)
		_, _ = fmt.Fprintf(w, "  %-48s %-5s %v\n", name, info.DType, info.Shape)
	}
}
