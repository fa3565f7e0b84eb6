package domain

import "errors"

var (
	// ErrTenantNotFound signals an unknown or revoked API key.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrTenantInactive signals a disabled tenant.
	ErrTenantInactive = errors.New("tenant inactive")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrInvalidInput signals malformed probe data. Not retryable.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfiguration signals missing or malformed tenant configuration.
	ErrConfiguration = errors.New("invalid tenant configuration")
	// ErrDependencyTimeout signals a timed-out embedding or store round-trip. Retryable.
	ErrDependencyTimeout = errors.New("dependency timeout")
	// ErrDependencyUnavailable signals an unreachable cache/counter store.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)
