// Package api provides error types for locker API responses.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/document-locker/locker/internal/models"
)

var (
	// ErrNetwork marks failures where no response was received.
	ErrNetwork = errors.New("network error")

	// ErrMalformedResponse marks a 2xx response whose body could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrFileAlreadyExists indicates the server already holds an object with that key.
	ErrFileAlreadyExists = errors.New("file already exists")

	// ErrNotLoggedIn is returned when an endpoint needs a token and none is set.
	ErrNotLoggedIn = errors.New("not logged in")
)

// NetworkError wraps a transport failure.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNetwork) match any NetworkError.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// HTTPError is a non-2xx response.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s failed: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is maps 409 and the server's "already exists" message to ErrFileAlreadyExists.
func (e *HTTPError) Is(target error) bool {
	if target != ErrFileAlreadyExists {
		return false
	}
	return e.StatusCode == nethttp.StatusConflict || containsConflict(e.Message)
}

// newHTTPError builds an HTTPError from a response body, preferring the
// JSON message/error field, then raw text, then the status text.
func newHTTPError(method, path string, status int, body []byte) *HTTPError {
	var msg string
	var m models.MessageResponse
	if err := json.Unmarshal(body, &m); err == nil {
		msg = m.Text()
	} else {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = nethttp.StatusText(status)
	}
	return &HTTPError{Method: method, Path: path, StatusCode: status, Message: msg}
}

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsMalformed reports whether err is an undecodable response.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

// AsHTTPError extracts an HTTPError from err's chain.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if he, ok := AsHTTPError(err); ok {
		return he.StatusCode
	}
	return 0
}

// IsNotFound reports a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == nethttp.StatusNotFound
}

// IsUnauthorized reports a 401 or 403 response.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == nethttp.StatusUnauthorized || code == nethttp.StatusForbidden
}

// IsFileExistsError checks if an error indicates a duplicate file, either
// through the sentinel, a 409, or a message naming the conflict.
func IsFileExistsError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrFileAlreadyExists) {
		return true
	}
	return containsConflict(err.Error())
}

func containsConflict(s string) bool {
	s = strings.ToLower(s)
	for _, indicator := range []string{"already exists", "duplicate", "conflict", "file exists"} {
		if strings.Contains(s, indicator) {
			return true
		}
	}
	return false
}

// Describe returns a short user-facing explanation of err.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case IsNetworkError(err):
		return "server unreachable"
	case IsMalformed(err):
		return "unexpected response from server"
	}
	if he, ok := AsHTTPError(err); ok {
		return he.Message
	}
	return err.Error()
}
