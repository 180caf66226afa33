package inference

import (
	"errors"
	"fmt"
)

// resource-exhaustion marker used by the service's error payloads.
const statusResourceExhausted = "RESOURCE_EXHAUSTED"

// APIError is a non-2xx response from the inference service.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("inference API error: http %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("inference API error: http %d: %s", e.StatusCode, e.Message)
}

// RateLimited reports whether the failure is quota exhaustion rather than a
// terminal error. HTTP 429 and the RESOURCE_EXHAUSTED status both qualify.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == 429 || e.Status == statusResourceExhausted
}

// IsRateLimited classifies an error as rate-limit class. Anything else,
// including decode and transport failures, is terminal.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RateLimited()
	}
	return false
}
