package tokenizer

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Position is a 1-based line and 0-based column, as esprima reports them.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type Location struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Token is one record of the tokenizer's output. The record schema belongs to
// the external tool, so Raw always holds the verbatim JSON value; Type, Value
// and Loc are filled in when the record has the usual esprima shape.
type Token struct {
	Type  string
	Value string
	Loc   *Location
	Raw   json.RawMessage
}

type tokenRecord struct {
	Type  *string   `json:"type"`
	Value any       `json:"value"`
	Loc   *Location `json:"loc"`
}

func (t *Token) UnmarshalJSON(b []byte) error {
	raw := bytes.TrimSpace(b)
	*t = Token{Raw: append(json.RawMessage(nil), raw...)}
	if len(raw) == 0 {
		return nil
	}
	switch raw[0] {
	case '"':
		return json.Unmarshal(raw, &t.Value)
	case '{':
		var rec tokenRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		if rec.Type != nil {
			t.Type = *rec.Type
		}
		if s, ok := rec.Value.(string); ok {
			t.Value = s
		}
		t.Loc = rec.Loc
	}
	return nil
}

func (t Token) MarshalJSON() ([]byte, error) {
	if len(t.Raw) > 0 {
		return t.Raw, nil
	}
	return json.Marshal(tokenRecord{Type: &t.Type, Value: t.Value, Loc: t.Loc})
}

// String returns the token's source text when known, otherwise its raw JSON.
func (t Token) String() string {
	if t.Value != "" {
		return t.Value
	}
	return string(t.Raw)
}
