package api

import "errors"

var ErrInvalidRequest = errors.New("invalid_request")

// invalidRequestError is a client mistake; param names the offending field
// for the error envelope.
type invalidRequestError struct {
	param string
	msg   string
}

func (e invalidRequestError) Error() string {
	if e.param == "" {
		return e.msg
	}
	return e.param + ": " + e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(param, msg string) error {
	return invalidRequestError{param: param, msg: msg}
}

// requestParam returns the field an invalid request error points at.
func requestParam(err error) string {
	var ire invalidRequestError
	if errors.As(err, &ire) {
		return ire.param
	}
	return ""
}
