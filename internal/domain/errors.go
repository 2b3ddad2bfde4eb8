package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a malformed request (empty profile, bad option).
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfiguration signals a deployment problem: missing index, bad credentials, bad settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrRetrieval signals a failed search against the trial index.
	ErrRetrieval = errors.New("retrieval error")
	// ErrLLMProvider signals an LLM transport failure (network, timeout, 5xx, auth).
	ErrLLMProvider = errors.New("llm provider error")
	// ErrLLMQuotaExceeded signals an exhausted LLM token budget.
	ErrLLMQuotaExceeded = errors.New("llm quota exceeded")
	// ErrMaskingFailed signals that masking produced no text.
	ErrMaskingFailed = errors.New("masking failed")
	// ErrSoftParse marks an unparseable model reply. Callers degrade instead of failing.
	ErrSoftParse = errors.New("unparseable llm response")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// RetrievalError wraps a search failure with the index it was issued against.
type RetrievalError struct {
	Index string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s: index %q: %v", ErrRetrieval.Error(), e.Index, e.Err)
}

// Is makes errors.Is(err, ErrRetrieval) hold; Unwrap exposes the cause.
func (e *RetrievalError) Is(target error) bool { return target == ErrRetrieval }

func (e *RetrievalError) Unwrap() error { return e.Err }

// NewRetrievalError creates a retrieval error for the given index.
func NewRetrievalError(index string, err error) error {
	return &RetrievalError{Index: index, Err: err}
}
