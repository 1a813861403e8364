package api

import (
	"github.com/samcharles93/sensibility/internal/model"
	"github.com/samcharles93/sensibility/internal/tokenizer"
)

type TokenizeRequest struct {
	Source string `json:"source"`
}

type TokenizeResponse struct {
	ID     string            `json:"id"`
	Object string            `json:"object"`
	Count  int               `json:"count"`
	Tokens []tokenizer.Token `json:"tokens"`
}

type PredictRequest struct {
	Inputs [][]int `json:"inputs"`
}

type PredictResponse struct {
	ID      string      `json:"id"`
	Object  string      `json:"object"`
	Outputs [][]float32 `json:"outputs"`
	// Predicted holds the argmax of each output, the most likely next index.
	Predicted []int `json:"predicted"`
}

type ModelResponse struct {
	Object     string               `json:"object"`
	Timesteps  int                  `json:"timesteps"`
	Vocabulary int                  `json:"vocabulary"`
	OutputSize int                  `json:"output_size"`
	Params     int                  `json:"params"`
	Layers     []model.LayerSummary `json:"layers"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
