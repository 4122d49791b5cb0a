package web

import (
	"net/http"
	"strings"
)

// Error is used to pass an error during the request through the application
// with web specific context.
type Error struct {
	Err    error
	Status int
	Kind   string
	Fields map[string]interface{}
}

// NewRequestError wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewRequestError(err error, status int) error {
	return &Error{Err: err, Status: status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// kind falls back to the status text when no explicit kind was set.
func (e *Error) kind() string {
	if e.Kind != "" {
		return e.Kind
	}
	if e.Status == http.StatusBadRequest {
		return "ValidationError"
	}
	return strings.ReplaceAll(http.StatusText(e.Status), " ", "")
}

// Classified is implemented by domain errors that carry their own response
// status and kind.
type Classified interface {
	error
	HTTPStatus() int
	Code() string
	Details() map[string]interface{}
}

// ErrorResponse is the form used for API responses from failures in the API.
type ErrorResponse struct {
	Status  bool                   `json:"status"`
	Error   string                 `json:"error"`
	Kind    string                 `json:"kind"`
	Details map[string]interface{} `json:"details,omitempty"`
}
