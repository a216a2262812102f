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
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
	ErrDatabase           = errors.New("database error")
	ErrValidation         = errors.New("validation failed")
	ErrAlreadyProcessed   = errors.New("document already processed")
	ErrMissingCredentials = errors.New("generative model credentials not configured")
	ErrQueueClosed        = errors.New("queue is shutting down")
)

// Pipeline failure kinds.
var (
	ErrTextExtraction = errors.New("text extraction failed")
	ErrAIExtraction   = errors.New("ai extraction failed")
	ErrAIValidation   = errors.New("ai validation failed")
	ErrPersistence    = errors.New("persistence failed")
	ErrInfrastructure = errors.New("infrastructure failure")
)

// Error codes carried by AppError.Code.
const (
	CodeConfig           = "CONFIG_ERROR"
	CodeTextExtraction   = "TEXT_EXTRACTION_FAILED"
	CodeAIExtraction     = "AI_EXTRACTION_FAILED"
	CodeAIValidation     = "AI_VALIDATION_FAILED"
	CodePersistence      = "PERSISTENCE_FAILED"
	CodeInfrastructure   = "INFRASTRUCTURE_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeAlreadyProcessed = "ALREADY_PROCESSED"
	CodeInternal         = "INTERNAL"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// AIExtractionError wraps cause so that it matches ErrAIExtraction.
func AIExtractionError(message string, cause error) error {
	return NewAppError(CodeAIExtraction, message, joinCause(ErrAIExtraction, cause))
}

// AIValidationError wraps cause so that it matches ErrAIValidation.
func AIValidationError(message string, cause error) error {
	return NewAppError(CodeAIValidation, message, joinCause(ErrAIValidation, cause))
}

// PersistenceError wraps cause so that it matches ErrPersistence.
func PersistenceError(message string, cause error) error {
	return NewAppError(CodePersistence, message, joinCause(ErrPersistence, cause))
}

// InfrastructureError wraps cause so that it matches ErrInfrastructure.
func InfrastructureError(message string, cause error) error {
	return NewAppError(CodeInfrastructure, message, joinCause(ErrInfrastructure, cause))
}

func joinCause(kind, cause error) error {
	switch {
	case cause == nil:
		return kind
	case errors.Is(cause, kind):
		return cause
	default:
		return fmt.Errorf("%w: %w", kind, cause)
	}
}

// Kind maps err onto its failure code; unknown errors are CodeInternal.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInfrastructure):
		return CodeInfrastructure
	case errors.Is(err, ErrAIExtraction):
		return CodeAIExtraction
	case errors.Is(err, ErrPersistence):
		return CodePersistence
	case errors.Is(err, ErrAIValidation):
		return CodeAIValidation
	case errors.Is(err, ErrTextExtraction):
		return CodeTextExtraction
	case errors.Is(err, ErrAlreadyProcessed):
		return CodeAlreadyProcessed
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
