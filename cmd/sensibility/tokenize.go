package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/samcharles93/sensibility/internal/tokenizer"
	"github.com/urfave/cli/v3"
)

func tokenizeCmd() *cli.Command {
	var lines bool

	return &cli.Command{
		Name:      "tokenize",
		Usage:     "Run the tokenizer on a file and print the token stream",
		ArgsUsage: "[filename]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "lines", Usage: "print one token value per line instead of JSON", Destination: &lines},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			tokCmd, err := resolveTokenizer(tokenizerLine, executableDir())
			if err != nil {
				return err
			}
			tok := tokenizer.New(tokCmd)

			var tokens []tokenizer.Token
			switch name := cmd.Args().First(); name {
			case "", "-":
				tokens, err = tok.Tokenize(ctx, os.Stdin)
			default:
				tokens, err = tok.TokenizeFile(ctx, name)
			}
			if err != nil {
				return err
			}
			return printTokens(os.Stdout, tokens, lines)
		},
	}
}

func printTokens(w io.Writer, tokens []tokenizer.Token, lines bool) error {
	if lines {
		for _, t := range tokens {
			if _, err := fmt.Fprintln(w, t.String()); err != nil {
				return err
			}
		}
		return nil
	}
	b, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
