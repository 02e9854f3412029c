package apperr

import (
	"errors"
	"fmt"
)

// Error is the only error shape that crosses the use-case boundary: a short
// machine-readable code, a human message, an HTTP-equivalent status, and
// optional structured detail. Upstream failure reasons go into Detail, never
// into Message.
type Error struct {
	Code    string
	Message string
	Status  int
	Detail  map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func New(code, message string, status int) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// Wrap attaches the upstream failure reason as detail.
func Wrap(code, message string, status int, cause error) *Error {
	e := New(code, message, status)
	if cause != nil {
		e.Detail = map[string]any{"reason": cause.Error()}
	}
	return e
}

// WithDetail returns a copy of e with one extra detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	clone := &Error{Code: e.Code, Message: e.Message, Status: e.Status}
	clone.Detail = make(map[string]any, len(e.Detail)+1)
	for k, v := range e.Detail {
		clone.Detail[k] = v
	}
	clone.Detail[key] = value
	return clone
}

// From extracts an *Error from err's chain.
func From(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeIs reports whether err carries the given code.
func CodeIs(err error, code string) bool {
	appErr, ok := From(err)
	return ok && appErr.Code == code
}
