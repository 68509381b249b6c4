// Package errors provides custom error types for the studychat client.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Sentinel errors for common cases
var (
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrSendInFlight    = errors.New("a reply is already streaming for this topic")
	ErrNoActiveTopic   = errors.New("no active topic")
	ErrEmptyStream     = errors.New("stream ended before any reply was received")
	ErrInvalidResponse = errors.New("invalid response format")
	ErrFrameTooLarge   = errors.New("frame exceeds maximum size")
)

// ValidationError is returned synchronously, before any network activity,
// when a send is rejected.
type ValidationError struct {
	TopicID string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.TopicID == "" {
		return fmt.Sprintf("send rejected: %v", e.Err)
	}
	return fmt.Sprintf("send rejected for topic %s: %v", e.TopicID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError
func NewValidationError(topicID string, err error) *ValidationError {
	return &ValidationError{TopicID: topicID, Err: err}
}

// APIError represents a non-success HTTP response
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("API error [%d] at %s: %s", e.StatusCode, e.Endpoint, e.Message)
	}
	return fmt.Sprintf("API error at %s: %s", e.Endpoint, e.Message)
}

// NewAPIError creates a new APIError
func NewAPIError(statusCode int, endpoint, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
	}
}

// NewAPIErrorWithBody creates an APIError carrying the response body.
// FastAPI style {"detail": "..."} bodies replace the generic message.
func NewAPIErrorWithBody(statusCode int, endpoint, message, body string) *APIError {
	if detail := gjson.Get(body, "detail"); detail.Exists() && detail.Type == gjson.String {
		message = detail.String()
	}
	return &APIError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Message:    message,
		Body:       body,
	}
}

// NetworkError represents a transport failure (connection refused, reset, DNS)
type NetworkError struct {
	Operation string
	Endpoint  string
	Err       error
}

func (e *NetworkError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("network error during %s at %s: %v", e.Operation, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkErrorWithEndpoint creates a new NetworkError
func NewNetworkErrorWithEndpoint(operation, endpoint string, err error) *NetworkError {
	return &NetworkError{Operation: operation, Endpoint: endpoint, Err: err}
}

// TimeoutError represents a request timeout
type TimeoutError struct {
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "request timed out"
	}
	return fmt.Sprintf("request timed out: %s", e.Message)
}

// Is matches context.DeadlineExceeded so callers can use either form.
func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// NewTimeoutError creates a new TimeoutError
func NewTimeoutError(message string) *TimeoutError {
	return &TimeoutError{Message: message}
}

// ParseError represents a frame that could not be decoded into an event
type ParseError struct {
	Message string
	Frame   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s", e.Message)
}

// NewParseError creates a new ParseError
func NewParseError(message, frame string) *ParseError {
	return &ParseError{Message: message, Frame: frame}
}

// Is allows comparison with sentinel errors
func (e *ParseError) Is(target error) bool {
	if target == ErrInvalidResponse {
		return true
	}
	_, ok := target.(*ParseError)
	return ok
}

// StreamError is a protocol-level error event reported by the server.
// Partial holds whatever reply text arrived before it.
type StreamError struct {
	Message string
	Partial string
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %s", len(e.Partial), e.Message)
	}
	return fmt.Sprintf("stream error: %s", e.Message)
}

// NewStreamError creates a new StreamError
func NewStreamError(message, partial string) *StreamError {
	return &StreamError{Message: message, Partial: partial}
}

// GetHTTPStatus returns the HTTP status carried by err, or 0.
func GetHTTPStatus(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// GetEndpoint returns the endpoint carried by err, or "".
func GetEndpoint(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Endpoint
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Endpoint
	}
	return ""
}

// GetResponseBody returns the response body carried by err, or "".
func GetResponseBody(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}

// IsNetworkError reports whether err is a transport failure
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsTimeoutError reports whether err is a timeout
func IsTimeoutError(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr) || errors.Is(err, context.DeadlineExceeded)
}

// IsValidationError reports whether err is a rejected send
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// IsStreamError reports whether err is a server-sent error event
func IsStreamError(err error) bool {
	var streamErr *StreamError
	return errors.As(err, &streamErr)
}

// IsNotFound reports whether err is a 404 response
func IsNotFound(err error) bool {
	return GetHTTPStatus(err) == 404
}

// UserMessage returns the text shown to the user in place of a reply.
// Server-sent error events are shown verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return streamErr.Message
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode > 0 {
			return fmt.Sprintf("Server returned %d: %s", apiErr.StatusCode, strings.TrimSpace(apiErr.Message))
		}
		return apiErr.Message
	}

	switch {
	case errors.Is(err, ErrEmptyStream):
		return "The server closed the stream without sending a reply."
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	case IsTimeoutError(err):
		return "The request timed out."
	case IsNetworkError(err):
		return "Could not reach the server. Check that it is running."
	}

	return err.Error()
}
