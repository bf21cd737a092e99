package common

import (
	"errors"
	"fmt"
	"strings"
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

// Common application errors. Every failure in the engine is terminal for
// that request; nothing here is retried.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUpstreamQuery   = errors.New("remote query failed")
	ErrTemplateBinding = errors.New("template binding failed")
	ErrConversion      = errors.New("generation failed")
	ErrDispatch        = errors.New("dispatch failed")
)

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

// UpstreamError wraps the message returned by the remote ledger so callers
// can surface it verbatim.
func UpstreamError(detail string) error {
	return fmt.Errorf("%w: %s", ErrUpstreamQuery, detail)
}

// PartialDeleteError reports the artifact files that could not be removed.
// The delete keeps going after the first failure and accumulates every path.
type PartialDeleteError struct {
	Key    string
	Failed []string
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("failed to delete some files for %s: %s", e.Key, strings.Join(e.Failed, "; "))
}
