package errors

import (
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
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

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeDegenerateSample = "DEGENERATE_SAMPLE"
	CodeNonConvergence   = "NON_CONVERGENCE"
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeReportError      = "REPORT_ERROR"
	CodeDatabaseError    = "DATABASE_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Common error constructors

// InvalidParameter marks a generating parameter the simulation cannot run with.
// These fail fast, before any sampling happens.
func InvalidParameter(message string) *AppError {
	return New(CodeInvalidParameter, message)
}

func InvalidParameterf(format string, args ...interface{}) *AppError {
	return InvalidParameter(fmt.Sprintf(format, args...))
}

// DegenerateSample marks a generated dataset the optimizer must never see:
// an all-censored group, a zero-variance covariate, an empty risk set.
func DegenerateSample(message string) *AppError {
	return New(CodeDegenerateSample, message)
}

func DegenerateSamplef(format string, args ...interface{}) *AppError {
	return DegenerateSample(fmt.Sprintf(format, args...))
}

// NonConvergence reports an optimizer failure together with the diagnostic
// context required by the failure-mode contract.
func NonConvergence(what string, iterations int, gradNorm float64) *AppError {
	return New(CodeNonConvergence,
		fmt.Sprintf("%s did not converge after %d iterations (last gradient norm %.3e)", what, iterations, gradNorm))
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func ReportError(message string, cause error) *AppError {
	return &AppError{Code: CodeReportError, Message: message, Cause: cause}
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
