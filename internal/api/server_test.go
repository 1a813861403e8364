package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"
	"github.com/samcharles93/sensibility/internal/model"
	"github.com/samcharles93/sensibility/internal/tokenizer"
)

type testTokenizer struct {
	err error
}

func (t testTokenizer) Tokenize(ctx context.Context, r io.Reader) ([]tokenizer.Token, error) {
	if t.err != nil {
		return nil, t.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(string(b))
	out := make([]tokenizer.Token, len(fields))
	for i, f := range fields {
		out[i] = tokenizer.Token{Type: "Identifier", Value: f, Raw: []byte(fmt.Sprintf(`{"type":"Identifier","value":%q}`, f))}
	}
	return out, nil
}

// testModel echoes the last index as a one-hot vector of width 3.
type testModel struct{}

func (testModel) Predict(seq []int) ([]float32, error) {
	if len(seq) != 2 {
		return nil, fmt.Errorf("%w: sequence length %d, model expects 2", model.ErrInvalidInput, len(seq))
	}
	last := seq[len(seq)-1]
	if last < 0 || last >= 3 {
		return nil, fmt.Errorf("%w: index %d outside vocabulary of 3", model.ErrInvalidInput, last)
	}
	out := make([]float32, 3)
	out[last] = 1
	return out, nil
}

func (m testModel) PredictBatch(seqs [][]int) ([][]float32, error) {
	out := make([][]float32, len(seqs))
	for i, seq := range seqs {
		y, err := m.Predict(seq)
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
		out[i] = y
	}
	return out, nil
}

func (testModel) Summary() []model.LayerSummary {
	return []model.LayerSummary{
		{Name: "lstm_1", Class: "LSTM", OutputSize: 4, Params: 128},
		{Name: "dense_1", Class: "Dense", OutputSize: 3, Params: 15},
	}
}

func (testModel) InputShape() (int, int) { return 2, 3 }
func (testModel) OutputSize() int        { return 3 }

func newTestEcho(tok Tokenizer, m Model) *echo.Echo {
	e := echo.New()
	NewServer(tok, m, nil).Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ResponseError {
	t.Helper()
	var body struct {
		Error ResponseError `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := doJSON(t, newTestEcho(nil, nil), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var got HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "ok" {
		t.Fatalf("unexpected status %q", got.Status)
	}
}

func TestModelSummary(t *testing.T) {
	t.Parallel()

	rec := doJSON(t, newTestEcho(nil, testModel{}), http.MethodGet, "/v1/model", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var got ModelResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Timesteps != 2 || got.Vocabulary != 3 || got.OutputSize != 3 {
		t.Fatalf("unexpected shape: %+v", got)
	}
	if got.Params != 143 || len(got.Layers) != 2 || got.Layers[0].Class != "LSTM" {
		t.Fatalf("unexpected layers: %+v", got)
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	rec := doJSON(t, newTestEcho(testTokenizer{}, nil), http.MethodPost, "/v1/tokenize", `{"source":"var x"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var got struct {
		ID     string            `json:"id"`
		Count  int               `json:"count"`
		Tokens []json.RawMessage `json:"tokens"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(got.ID, "tok_") {
		t.Fatalf("unexpected id %q", got.ID)
	}
	if got.Count != 2 || len(got.Tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %+v", got)
	}
	if string(got.Tokens[0]) != `{"type":"Identifier","value":"var"}` {
		t.Fatalf("token not passed through verbatim: %s", got.Tokens[0])
	}
}

func TestTokenizeErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		tok    Tokenizer
		body   string
		status int
		code   string
	}{
		{"bad json", testTokenizer{}, `{"source":`, http.StatusBadRequest, ""},
		{"unknown field", testTokenizer{}, `{"src":"x"}`, http.StatusBadRequest, ""},
		{"tool failure", testTokenizer{err: &tokenizer.ExternalToolError{Command: "node tokenize-js", ExitCode: 1}}, `{"source":"x"}`, http.StatusBadGateway, "external_tool"},
		{"bad output", testTokenizer{err: &tokenizer.DecodeError{Reason: "not JSON"}}, `{"source":"x"}`, http.StatusBadGateway, "decode"},
		{"not configured", nil, `{"source":"x"}`, http.StatusServiceUnavailable, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := doJSON(t, newTestEcho(tc.tok, nil), http.MethodPost, "/v1/tokenize", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status: got %d want %d body=%s", rec.Code, tc.status, rec.Body.String())
			}
			if got := decodeError(t, rec); got.Code != tc.code || got.Message == "" {
				t.Fatalf("unexpected error envelope: %+v", got)
			}
		})
	}
}

func TestPredict(t *testing.T) {
	t.Parallel()

	rec := doJSON(t, newTestEcho(nil, testModel{}), http.MethodPost, "/v1/predict", `{"inputs":[[0,1],[2,2]]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var got PredictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(got.ID, "pred_") || got.Object != "prediction" {
		t.Fatalf("unexpected response header: %+v", got)
	}
	if len(got.Outputs) != 2 || got.Outputs[0][1] != 1 || got.Outputs[1][2] != 1 {
		t.Fatalf("unexpected outputs: %v", got.Outputs)
	}
	if len(got.Predicted) != 2 || got.Predicted[0] != 1 || got.Predicted[1] != 2 {
		t.Fatalf("unexpected predicted indices: %v", got.Predicted)
	}
}

func TestPredictErrors(t *testing.T) {
	t.Parallel()

	e := newTestEcho(nil, testModel{})
	cases := []struct {
		name string
		body string
		code string
	}{
		{"empty", `{"inputs":[]}`, ""},
		{"wrong length", `{"inputs":[[1]]}`, "invalid_input"},
		{"out of range", `{"inputs":[[0,1],[0,9]]}`, "invalid_input"},
	}
	for _, tc := range cases {
		rec := doJSON(t, e, http.MethodPost, "/v1/predict", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status %d body=%s", tc.name, rec.Code, rec.Body.String())
		}
		got := decodeError(t, rec)
		if got.Type != "invalid_request_error" || got.Code != tc.code || got.Param != "inputs" {
			t.Fatalf("%s: unexpected error envelope: %+v", tc.name, got)
		}
	}

	big := "[" + strings.Repeat("[0,1],", MaxBatch) + "[0,1]]"
	rec := doJSON(t, e, http.MethodPost, "/v1/predict", `{"inputs":`+big+`}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized batch: status %d", rec.Code)
	}

	rec = doJSON(t, newTestEcho(nil, nil), http.MethodPost, "/v1/predict", `{"inputs":[[0,1]]}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("no model: status %d", rec.Code)
	}
}
