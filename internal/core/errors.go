package core

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a client error (4xx)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeNotFound indicates a not found error (404)
	ErrorTypeNotFound ErrorType = "not_found_error"
	// ErrorTypeAuthentication indicates an authentication error (401)
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeUpstream indicates a card database API failure (502)
	ErrorTypeUpstream ErrorType = "upstream_error"
	// ErrorTypeStorage indicates a database failure (500)
	ErrorTypeStorage ErrorType = "storage_error"
	// ErrorTypeUnavailable indicates that no data source could serve the request (503)
	ErrorTypeUnavailable ErrorType = "unavailable_error"
)

// Error is the base error type for API-facing errors.
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Source     string    `json:"source,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Source, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to a JSON-compatible map
func (e *Error) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    e.Type,
			"message": e.Message,
		},
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *Error {
	return &Error{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewUpstreamError creates an error for a failed card database API call.
// Upstream 5xx and transport failures map to 502; 4xx keep their status.
func NewUpstreamError(source string, statusCode int, message string, err error) *Error {
	if statusCode == 0 || statusCode >= 500 {
		statusCode = http.StatusBadGateway
	}
	return &Error{
		Type:       ErrorTypeUpstream,
		Message:    message,
		StatusCode: statusCode,
		Source:     source,
		Err:        err,
	}
}

// NewStorageError creates a new storage error (500)
func NewStorageError(message string, err error) *Error {
	return &Error{
		Type:       ErrorTypeStorage,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnavailableError creates a new unavailable error (503)
func NewUnavailableError(message string, err error) *Error {
	return &Error{
		Type:       ErrorTypeUnavailable,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// ParseUpstreamError builds an Error from a non-2xx card API response.
// The APIs disagree on error shape, so the message is looked up in the
// common locations before falling back to the raw body.
func ParseUpstreamError(source string, statusCode int, body []byte, originalErr error) *Error {
	message := strings.TrimSpace(string(body))
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "details", "message", "error"} {
			if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
				message = v.Str
				break
			}
		}
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		err := NewAuthenticationError(message)
		err.Source = source
		err.Err = originalErr
		return err
	case statusCode == http.StatusNotFound:
		return &Error{
			Type:       ErrorTypeNotFound,
			Message:    message,
			StatusCode: http.StatusNotFound,
			Source:     source,
			Err:        originalErr,
		}
	default:
		return NewUpstreamError(source, statusCode, message, originalErr)
	}
}
