package clipsearch

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common API failures. Use errors.Is().
var (
	ErrUnauthorized = errors.New("clipsearch: invalid or missing API key")
	ErrRateLimited  = errors.New("clipsearch: rate limit exceeded")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string

	// RetryAfter is set on rate limit errors.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clipsearch: API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// Is maps rate-limit and auth statuses onto the sentinel errors.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == 429
	case ErrUnauthorized:
		return e.StatusCode == 401 || e.StatusCode == 403
	}
	return false
}
