package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	// ErrConfigUnavailable means the backend endpoint could not be discovered
	// even after retry. Fatal to any backend call.
	ErrConfigUnavailable = errors.New("service configuration unavailable")
	// ErrNetwork is a transport-level failure that survived the retry cycle.
	ErrNetwork = errors.New("network error")
	// ErrPasswordIncorrect is the recoverable wrong-password signal from the
	// secure document gate.
	ErrPasswordIncorrect = errors.New("incorrect password")
	// ErrFormatUnsupported marks a file that meters as 0 pages. Warned, not fatal.
	ErrFormatUnsupported = errors.New("unsupported file format")
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
)

// SubmissionError is the backend explicitly declining a job. The response
// body is carried verbatim so callers can surface the backend's detail.
type SubmissionError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("job submission rejected (status %d): %s", e.StatusCode, e.Body)
}

// DenyReason distinguishes why a quota admission was refused.
type DenyReason string

const (
	DenyAllowanceExhausted DenyReason = "ALLOWANCE_EXHAUSTED"
	DenyBatchTooLarge      DenyReason = "BATCH_EXCEEDS_REMAINING"
)

// QuotaError is an admission denial with enough detail for a precise
// upgrade prompt.
type QuotaError struct {
	Reason    DenyReason
	Remaining int
	Requested int
}

func (e *QuotaError) Error() string {
	switch e.Reason {
	case DenyAllowanceExhausted:
		return "quota exceeded: no allowance left in the current period"
	default:
		return fmt.Sprintf("quota exceeded: batch of %d pages exceeds remaining allowance of %d", e.Requested, e.Remaining)
	}
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
