package tokenizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/samcharles93/sensibility/internal/logger"
)

// EnvTokenizer overrides the default tokenizer command line.
const EnvTokenizer = "SENSIBILITY_TOKENIZER"

// Command describes how to launch the external tokenizer.
// The tokenizer reads source text on stdin and writes one JSON document on stdout.
type Command struct {
	Path string
	Args []string
	// Env is appended to the current process environment.
	Env []string
	Dir string
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Path)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// ParseCommand splits a whitespace separated command line.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, errors.New("tokenizer command is empty")
	}
	return Command{Path: fields[0], Args: fields[1:]}, nil
}

// DefaultCommand returns `node <dir>/tokenize-js`, or the command from
// SENSIBILITY_TOKENIZER when set.
func DefaultCommand(dir string) Command {
	if line := strings.TrimSpace(os.Getenv(EnvTokenizer)); line != "" {
		if cmd, err := ParseCommand(line); err == nil {
			return cmd
		}
	}
	return Command{
		Path: "node",
		Args: []string{filepath.Join(dir, "tokenize-js")},
	}
}

// Tokenizer runs the external tokenizer once per call.
type Tokenizer struct {
	cmd Command
}

// New returns a Tokenizer for the given command.
func New(cmd Command) *Tokenizer {
	return &Tokenizer{cmd: cmd}
}

// Command returns the configured command.
func (t *Tokenizer) Command() Command {
	return t.cmd
}

// Tokenize feeds r to the tokenizer process and decodes its token stream.
// It blocks until the process exits. A non-zero exit is reported as an
// ExternalToolError, malformed output as a DecodeError.
func (t *Tokenizer) Tokenize(ctx context.Context, r io.Reader) ([]Token, error) {
	log := logger.FromContext(ctx)

	c := exec.CommandContext(ctx, t.cmd.Path, t.cmd.Args...)
	c.Stdin = r
	c.Dir = t.cmd.Dir
	if len(t.cmd.Env) > 0 {
		c.Env = append(os.Environ(), t.cmd.Env...)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	log.Debug("running tokenizer", "command", t.cmd.String())
	if err := c.Run(); err != nil {
		toolErr := &ExternalToolError{
			Command:  t.cmd.String(),
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			toolErr.ExitCode = exitErr.ExitCode()
		}
		return nil, toolErr
	}

	tokens, err := Decode(stdout.Bytes())
	if err != nil {
		return nil, err
	}
	log.Debug("tokenized input", "tokens", len(tokens), "bytes", stdout.Len())
	return tokens, nil
}

// TokenizeString tokenizes an in-memory script.
func (t *Tokenizer) TokenizeString(ctx context.Context, src string) ([]Token, error) {
	return t.Tokenize(ctx, strings.NewReader(src))
}

// TokenizeFile tokenizes the file at path.
func (t *Tokenizer) TokenizeFile(ctx context.Context, path string) ([]Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return t.Tokenize(ctx, f)
}
