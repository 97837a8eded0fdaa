package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized   = errors.New("gateway: unauthorized")
	ErrValidation     = errors.New("gateway: request rejected")
	ErrNotFound       = errors.New("gateway: resource not found")
	ErrRequest        = errors.New("gateway: request failed")
	ErrTransport      = errors.New("gateway: transport failure")
	ErrTimeout        = errors.New("gateway: request timed out")
	ErrInvalidBaseURL = errors.New("gateway: invalid base URL")
)

// Error describes a failed call. StatusCode is zero when no response was
// received; Err then holds the transport error.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
	RequestID  string
	Err        error

	timeout bool
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		if e.timeout {
			return fmt.Sprintf("%s %s: timed out: %v", e.Method, e.Path, e.Err)
		}
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap exposes the transport error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is maps the error onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrValidation:
		switch e.StatusCode {
		case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
			return true
		}
		return false
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrRequest:
		return e.StatusCode != http.StatusUnauthorized
	case ErrTransport:
		return e.StatusCode == 0
	case ErrTimeout:
		return e.timeout
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
