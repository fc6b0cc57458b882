package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType defines different categories of errors
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "VALIDATION"
	ErrorTypeNotFound       ErrorType = "NOT_FOUND"
	ErrorTypeInvalidStation ErrorType = "INVALID_STATION"
	ErrorTypeRouteNotFound  ErrorType = "ROUTE_NOT_FOUND"
	ErrorTypeUnavailable    ErrorType = "UNAVAILABLE"
	ErrorTypeInternal       ErrorType = "INTERNAL"
)

// AppError is the custom error type for the application
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *AppError) Unwrap() error {
	return e.Err
}

// Constructor functions for different error types

// NewValidation creates a validation error
func NewValidation(message string) error {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewNotFound creates a not found error
func NewNotFound(message string) error {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewInvalidStation reports a station id that is not part of the network.
func NewInvalidStation(stationID string) error {
	return &AppError{
		Type:    ErrorTypeInvalidStation,
		Message: fmt.Sprintf("station %s not found", stationID),
	}
}

// NewRouteNotFound reports two valid stations with no path between them.
func NewRouteNotFound(source, destination string) error {
	return &AppError{
		Type:    ErrorTypeRouteNotFound,
		Message: fmt.Sprintf("no route found between %s and %s", source, destination),
	}
}

// NewUnavailable creates a transient error. Callers may retry.
func NewUnavailable(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewInternal creates an internal error
func NewInternal(message string, err error) error {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the type
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Type:    appErr.Type,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}

	// Otherwise, create an internal error
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Type checking functions

// TypeOf returns the error type of err, or an empty string for foreign errors.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsNotFound reports whether err means "nothing to return". Invalid stations
// and disconnected pairs both count.
func IsNotFound(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeNotFound, ErrorTypeInvalidStation, ErrorTypeRouteNotFound:
		return true
	}
	return false
}

// IsInvalidStation checks if an error is an invalid station error
func IsInvalidStation(err error) bool {
	return TypeOf(err) == ErrorTypeInvalidStation
}

// IsRouteNotFound checks if an error is a route not found error
func IsRouteNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeRouteNotFound
}

// IsUnavailable checks if an error is a transient failure
func IsUnavailable(err error) bool {
	return TypeOf(err) == ErrorTypeUnavailable
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return TypeOf(err) == ErrorTypeInternal
}
