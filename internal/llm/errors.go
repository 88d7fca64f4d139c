package llm

import (
	"fmt"
	"net/http"
)

// ProviderError is a failed call to a hosted model.
type ProviderError struct {
	Provider   string
	Code       string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Code, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the call may be attempted again.
func (e *ProviderError) IsRetryable() bool {
	return e.Retryable
}

func newProviderError(provider, code string, statusCode int, err error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		StatusCode: statusCode,
		Retryable:  retryableStatus(statusCode),
		Err:        err,
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
