package tokenizer

import (
	"errors"
	"fmt"
)

var (
	ErrExternalTool = errors.New("external tool failed")
	ErrDecode       = errors.New("decode tokenizer output")
)

// ExternalToolError reports a tokenizer process that could not start or
// exited with a non-zero status. ExitCode is -1 when the process never ran.
type ExternalToolError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("tokenizer %q", e.Command)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" exited with status %d", e.ExitCode)
	} else {
		msg += fmt.Sprintf(" failed: %v", e.Err)
	}
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExternalToolError) Is(target error) bool {
	return target == ErrExternalTool
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// DecodeError reports tokenizer output that is not UTF-8 or not a JSON array.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrDecode, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrDecode, e.Reason)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
