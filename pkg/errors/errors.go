// Package errors defines the closed error taxonomy the ingestion core
// reports to its callers.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Error codes
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeResourceNotFound   = "RESOURCE_NOT_FOUND"
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeAPIConfig          = "API_CONFIG_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout            = "TIMEOUT"
	CodeInternal           = "INTERNAL"
)

// IngestError carries a taxonomy code, an HTTP status for the transport
// layer, and an optional retry hint in seconds.
type IngestError struct {
	Message    string
	Code       string
	StatusCode int
	RetryAfter int
	Context    map[string]any
	Cause      error
}

func (e *IngestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *IngestError) Unwrap() error {
	return e.Cause
}

func (e *IngestError) WithCause(cause error) *IngestError {
	e.Cause = cause
	return e
}

func (e *IngestError) WithContext(key string, value any) *IngestError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func NewInvalidInput(message string) *IngestError {
	return &IngestError{Message: message, Code: CodeInvalidInput, StatusCode: 400}
}

func NewResourceNotFound(message string) *IngestError {
	return &IngestError{Message: message, Code: CodeResourceNotFound, StatusCode: 404}
}

func NewQuotaExceeded(message string) *IngestError {
	return &IngestError{Message: message, Code: CodeQuotaExceeded, StatusCode: 403, RetryAfter: 3600}
}

func NewAPIConfigError(message string) *IngestError {
	return &IngestError{Message: message, Code: CodeAPIConfig, StatusCode: 503}
}

func NewServiceUnavailable(message string) *IngestError {
	return &IngestError{Message: message, Code: CodeServiceUnavailable, StatusCode: 503, RetryAfter: 60}
}

func NewTimeout(message string) *IngestError {
	return &IngestError{Message: message, Code: CodeTimeout, StatusCode: 504, RetryAfter: 10}
}

func NewInternal(message string) *IngestError {
	return &IngestError{Message: message, Code: CodeInternal, StatusCode: 500}
}

// AsIngestError extracts an *IngestError from an error chain.
func AsIngestError(err error) (*IngestError, bool) {
	var ie *IngestError
	if stderrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// CodeOf maps any error to a taxonomy code. Context deadline errors map
// to Timeout; everything unrecognized maps to Internal.
func CodeOf(err error) string {
	if ie, ok := AsIngestError(err); ok {
		return ie.Code
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeInternal
}

// Wrap promotes an arbitrary error to an IngestError, preserving an
// existing taxonomy classification.
func Wrap(err error, message string) *IngestError {
	if ie, ok := AsIngestError(err); ok {
		return ie
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(message).WithCause(err)
	}
	return NewInternal(message).WithCause(err)
}
