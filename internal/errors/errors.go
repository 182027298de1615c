package errors

import (
	"errors"
	"fmt"
)

// RecallError is the structured error type for recall.
// It carries a stable code plus enough context for logging and
// user presentation.
type RecallError struct {
	// Code is the unique error code (e.g., "ERR_201_CORPUS_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *RecallError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RecallError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with RecallError.
func (e *RecallError) Is(target error) bool {
	if t, ok := target.(*RecallError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *RecallError) WithDetail(key, value string) *RecallError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new RecallError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *RecallError {
	return &RecallError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new RecallError with a formatted message.
func Newf(code string, format string, args ...any) *RecallError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a RecallError from an existing error.
// The error's message becomes the RecallError message.
func Wrap(code string, err error) *RecallError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// HasCode reports whether err (or any error in its chain) is a
// RecallError with the given code.
func HasCode(err error, code string) bool {
	return errors.Is(err, &RecallError{Code: code})
}

// CodeOf returns the code of the first RecallError in the chain,
// or empty string if none.
func CodeOf(err error) string {
	var re *RecallError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
