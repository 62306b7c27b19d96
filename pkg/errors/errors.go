package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of transport errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeClient      ErrorType = "client"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// ErrorTypeForStatus maps an HTTP status code onto an ErrorType
func ErrorTypeForStatus(statusCode int) ErrorType {
	switch {
	case statusCode == 0:
		return ErrorTypeNetwork
	case statusCode == 404:
		return ErrorTypeNotFound
	case statusCode >= 500:
		return ErrorTypeServerError
	case statusCode >= 400:
		return ErrorTypeClient
	default:
		return ErrorTypeUnknown
	}
}

// ValidationError is returned synchronously when a request is rejected
// before any network work starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StartupNetworkError aborts a job or page state before polling begins.
type StartupNetworkError struct {
	Op  string
	Err error
}

func (e *StartupNetworkError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StartupNetworkError) Unwrap() error { return e.Err }

// ItemNetworkError is an isolated mid-flight failure of a single item or
// page fetch. It never corrupts existing state.
type ItemNetworkError struct {
	Op  string
	Err error
}

func (e *ItemNetworkError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ItemNetworkError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return stderrors.As(err, &v)
}

// IsStartup reports whether err is or wraps a StartupNetworkError
func IsStartup(err error) bool {
	var s *StartupNetworkError
	return stderrors.As(err, &s)
}

// IsItem reports whether err is or wraps an ItemNetworkError
func IsItem(err error) bool {
	var i *ItemNetworkError
	return stderrors.As(err, &i)
}

// TypeOf returns the transport ErrorType carried by err, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}
