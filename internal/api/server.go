// Package api serves the tokenizer and the forwards model over HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
	"github.com/samcharles93/sensibility/internal/logger"
	"github.com/samcharles93/sensibility/internal/model"
	"github.com/samcharles93/sensibility/internal/tensor"
	"github.com/samcharles93/sensibility/internal/tokenizer"
)

// MaxBatch caps the number of sequences in one predict request.
const MaxBatch = 256

type Tokenizer interface {
	Tokenize(ctx context.Context, r io.Reader) ([]tokenizer.Token, error)
}

// Model is the part of *model.Model the server needs.
type Model interface {
	PredictBatch(seqs [][]int) ([][]float32, error)
	Summary() []model.LayerSummary
	InputShape() (timesteps, vocabulary int)
	OutputSize() int
}

type Server struct {
	tokenizer Tokenizer
	model     Model
	log       logger.Logger
}

// NewServer returns a server for tok and m. Either may be nil, in which case
// the endpoints that need it answer 503.
func NewServer(tok Tokenizer, m Model, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{tokenizer: tok, model: m, log: log}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/model", s.handleModel)
	e.POST("/v1/tokenize", s.handleTokenize)
	e.POST("/v1/predict", s.handlePredict)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleModel(c *echo.Context) error {
	if s.model == nil {
		return writeError(c, http.StatusServiceUnavailable, "server_error", "model not loaded", "", "")
	}
	layers := s.model.Summary()
	params := 0
	for _, l := range layers {
		params += l.Params
	}
	timesteps, vocab := s.model.InputShape()
	return c.JSON(http.StatusOK, ModelResponse{
		Object:     "model",
		Timesteps:  timesteps,
		Vocabulary: vocab,
		OutputSize: s.model.OutputSize(),
		Params:     params,
		Layers:     layers,
	})
}

func (s *Server) handleTokenize(c *echo.Context) error {
	if s.tokenizer == nil {
		return writeError(c, http.StatusServiceUnavailable, "server_error", "tokenizer not configured", "", "")
	}
	req, err := decodeJSON[TokenizeRequest](c.Request().Body)
	if err != nil {
		return writeFailure(c, err)
	}

	id := newRequestID("tok")
	tokens, err := s.tokenizer.Tokenize(c.Request().Context(), strings.NewReader(req.Source))
	if err != nil {
		s.log.Warn("tokenize failed", "id", id, "error", err)
		return writeFailure(c, err)
	}
	s.log.Debug("tokenized", "id", id, "tokens", len(tokens))
	return c.JSON(http.StatusOK, TokenizeResponse{
		ID:     id,
		Object: "tokens",
		Count:  len(tokens),
		Tokens: tokens,
	})
}

func (s *Server) handlePredict(c *echo.Context) error {
	if s.model == nil {
		return writeError(c, http.StatusServiceUnavailable, "server_error", "model not loaded", "", "")
	}
	req, err := decodeJSON[PredictRequest](c.Request().Body)
	if err != nil {
		return writeFailure(c, err)
	}
	if len(req.Inputs) == 0 {
		return writeFailure(c, newInvalidRequest("inputs", "must contain at least one sequence"))
	}
	if len(req.Inputs) > MaxBatch {
		return writeFailure(c, newInvalidRequest("inputs", fmt.Sprintf("%d sequences, at most %d allowed", len(req.Inputs), MaxBatch)))
	}

	id := newRequestID("pred")
	outputs, err := s.model.PredictBatch(req.Inputs)
	if err != nil {
		return writeFailure(c, err)
	}
	predicted := make([]int, len(outputs))
	for i, y := range outputs {
		predicted[i] = tensor.Argmax(y)
	}
	s.log.Debug("predicted", "id", id, "sequences", len(outputs))
	return c.JSON(http.StatusOK, PredictResponse{
		ID:        id,
		Object:    "prediction",
		Outputs:   outputs,
		Predicted: predicted,
	})
}
