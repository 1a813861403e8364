package main

import "github.com/urfave/cli/v3"

var (
	architecturePath string
	weightsPath      string
	tokenizerLine    string
	logLevel         string
	logFormat        string
	debug            bool
)

func modelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "architecture",
			Usage:       "path to the model architecture JSON (default: model-architecture.json next to the executable)",
			Destination: &architecturePath,
		},
		&cli.StringFlag{
			Name:        "weights-forwards",
			Aliases:     []string{"weights"},
			Usage:       "path to the forwards model weights (default: javascript-tiny.5.h5 next to the executable)",
			Destination: &weightsPath,
		},
	}
}

func tokenizerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tokenizer",
			Usage:       "tokenizer command line (default: node tokenize-js next to the executable, or $" + envTokenizerName + ")",
			Destination: &tokenizerLine,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func rootFlags() []cli.Flag {
	flags := modelFlags()
	flags = append(flags, tokenizerFlags()...)
	return append(flags, loggingFlags()...)
}
