// Package apperrors defines the error taxonomy surfaced by the query pipeline.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrorType is the category of a pipeline error or warning.
type ErrorType string

const (
	ErrorTypeInvalidInput         ErrorType = "invalid_input"
	ErrorTypeEmbeddingUnavailable ErrorType = "embedding_unavailable"
	ErrorTypeRetrievalUnavailable ErrorType = "retrieval_unavailable"
	ErrorTypeSynthesisUnavailable ErrorType = "synthesis_unavailable"
	// ErrorTypeNoMatches and ErrorTypePartialDegradation label outcomes, not failures.
	ErrorTypeNoMatches          ErrorType = "no_matches"
	ErrorTypePartialDegradation ErrorType = "partial_degradation"
)

// DomainError is a classified error with optional details.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError of the same type.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error and returns it.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a DomainError.
func New(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidInput         = New(ErrorTypeInvalidInput, "invalid input", nil)
	ErrEmbeddingUnavailable = New(ErrorTypeEmbeddingUnavailable, "embedding provider unavailable", nil)
	ErrRetrievalUnavailable = New(ErrorTypeRetrievalUnavailable, "vector index unavailable", nil)
	ErrSynthesisUnavailable = New(ErrorTypeSynthesisUnavailable, "language model unavailable", nil)
)

// InvalidInput returns a validation error with the given message.
func InvalidInput(format string, args ...interface{}) *DomainError {
	return New(ErrorTypeInvalidInput, fmt.Sprintf(format, args...), nil)
}

// EmbeddingUnavailable wraps an embedding provider failure.
func EmbeddingUnavailable(err error) *DomainError {
	return New(ErrorTypeEmbeddingUnavailable, "embedding provider unavailable", err)
}

// RetrievalUnavailable wraps a vector index failure.
func RetrievalUnavailable(err error) *DomainError {
	return New(ErrorTypeRetrievalUnavailable, "vector index unavailable", err)
}

// SynthesisUnavailable wraps a language model failure.
func SynthesisUnavailable(err error) *DomainError {
	return New(ErrorTypeSynthesisUnavailable, "language model unavailable", err)
}

// TypeOf returns the ErrorType of err, or "" if err is not a DomainError.
func TypeOf(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// DetailsOf returns the details map of a DomainError, or nil.
func DetailsOf(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// IsInvalidInput checks if err is a validation error.
func IsInvalidInput(err error) bool {
	return TypeOf(err) == ErrorTypeInvalidInput
}

// IsEmbeddingUnavailable checks if err is an embedding provider failure.
func IsEmbeddingUnavailable(err error) bool {
	return TypeOf(err) == ErrorTypeEmbeddingUnavailable
}

// IsRetrievalUnavailable checks if err is a vector index failure.
func IsRetrievalUnavailable(err error) bool {
	return TypeOf(err) == ErrorTypeRetrievalUnavailable
}

// IsSynthesisUnavailable checks if err is a language model failure.
func IsSynthesisUnavailable(err error) bool {
	return TypeOf(err) == ErrorTypeSynthesisUnavailable
}
