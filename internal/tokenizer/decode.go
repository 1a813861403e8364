package tokenizer

import (
	"bytes"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// Decode parses tokenizer output: UTF-8 text holding a single JSON array.
func Decode(out []byte) ([]Token, error) {
	if !utf8.Valid(out) {
		return nil, &DecodeError{Reason: "output is not valid UTF-8"}
	}
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return nil, &DecodeError{Reason: "output is empty"}
	}
	if trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, &DecodeError{Reason: "output is not JSON", Err: errSnippet(trimmed)}
		}
		return nil, &DecodeError{Reason: "output is not a JSON array"}
	}
	var tokens []Token
	if err := json.Unmarshal(trimmed, &tokens); err != nil {
		return nil, &DecodeError{Reason: "output is not JSON", Err: err}
	}
	if tokens == nil {
		tokens = []Token{}
	}
	return tokens, nil
}

type snippetError string

func (e snippetError) Error() string { return "got " + string(e) }

func errSnippet(b []byte) error {
	const max = 64
	if len(b) > max {
		b = append(b[:max:max], "..."...)
	}
	return snippetError(b)
}
