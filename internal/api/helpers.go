package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/samcharles93/sensibility/internal/model"
	"github.com/samcharles93/sensibility/internal/tokenizer"
)

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

// writeFailure maps pipeline errors onto HTTP statuses. Tokenizer failures
// are upstream failures; bad indices are the caller's fault.
func writeFailure(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error(), requestParam(err), "")
	case errors.Is(err, model.ErrInvalidInput):
		return writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error(), "inputs", "invalid_input")
	case errors.Is(err, tokenizer.ErrExternalTool):
		return writeError(c, http.StatusBadGateway, "tokenizer_error", err.Error(), "", "external_tool")
	case errors.Is(err, tokenizer.ErrDecode):
		return writeError(c, http.StatusBadGateway, "tokenizer_error", err.Error(), "", "decode")
	default:
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, newInvalidRequest("", "invalid JSON body: "+err.Error())
	}
	return out, nil
}

func newRequestID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}
