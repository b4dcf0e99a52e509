package errors

import (
	stderrors "errors"
	"fmt"

	"gocausal/domain/core"
)

// AppError represents a structured application error.
// Definition and Query are set for data access failures so the caller knows
// which treatment definition and which rollup query to retry.
type AppError struct {
	Code       string
	Message    string
	Definition string
	Query      string
	Cause      error
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Definition != "" {
		msg = fmt.Sprintf("%s [definition=%s]", msg, e.Definition)
	}
	if e.Query != "" {
		msg = fmt.Sprintf("%s [query=%s]", msg, e.Query)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is maps error codes onto the domain sentinels so errors.Is works across layers.
func (e *AppError) Is(target error) bool {
	switch target {
	case core.ErrConfiguration:
		return e.Code == CodeConfigInvalid
	case core.ErrDataUnavailable:
		return e.Code == CodeDataUnavailable
	}
	return false
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of an inner AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:       appErr.Code,
			Message:    message,
			Definition: appErr.Definition,
			Query:      appErr.Query,
			Cause:      err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:       code,
			Message:    appErr.Message,
			Definition: appErr.Definition,
			Query:      appErr.Query,
			Cause:      appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeDataUnavailable = "DATA_UNAVAILABLE"
	CodeValidationError = "VALIDATION_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
)

// ConfigInvalid is the pre-flight configuration error; nothing has been fetched yet.
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

// ConfigInvalidf wraps a validation failure as a configuration error.
func ConfigInvalidf(cause error, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    CodeConfigInvalid,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// DataUnavailable reports a failed rollup query. It aborts the run.
func DataUnavailable(definition, query string, cause error) *AppError {
	return &AppError{
		Code:       CodeDataUnavailable,
		Message:    "data source unavailable",
		Definition: definition,
		Query:      query,
		Cause:      cause,
	}
}

// WithDefinition returns a copy of err annotated with the treatment definition
// being processed when it failed.
func WithDefinition(err error, definition string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		cp := *appErr
		cp.Definition = definition
		return &cp
	}
	return &AppError{
		Code:       CodeInternalError,
		Message:    "analysis failed",
		Definition: definition,
		Cause:      err,
	}
}

func ValidationError(message string) *AppError {
	return New(CodeValidationError, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
