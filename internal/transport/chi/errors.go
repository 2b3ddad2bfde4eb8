package chi

import (
	"errors"
	"net/http"

	"github.com/kailas-cloud/trialmatch/internal/domain"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest          = "bad_request"
	CodeUnauthorized        = "unauthorized"
	CodeValidationFailed    = "validation_failed"
	CodeConfigurationError  = "configuration_error"
	CodeRetrievalError      = "retrieval_error"
	CodeLLMProviderError    = "llm_provider_error"
	CodeMaskingFailed       = "masking_failed"
	CodeLLMQuotaExceeded    = "llm_quota_exceeded"
	CodeRateLimited         = "rate_limited"
	CodeNotFound            = "not_found"
	CodeInternalError       = "internal_error"
	CodeServiceNotAvailable = "service_unavailable"
)

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// defaultErrorHandlers is ordered: rate limiting wraps the provider error and
// must be matched first.
func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrLLMQuotaExceeded, http.StatusPaymentRequired, CodeLLMQuotaExceeded),
		sentinelHandler(domain.ErrConfiguration, http.StatusServiceUnavailable, CodeConfigurationError),
		sentinelHandler(domain.ErrRetrieval, http.StatusBadGateway, CodeRetrievalError),
		sentinelHandler(domain.ErrMaskingFailed, http.StatusBadGateway, CodeMaskingFailed),
		sentinelHandler(domain.ErrLLMProvider, http.StatusBadGateway, CodeLLMProviderError),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client sees the sentinel text, never the wrapped cause.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := sentinel.Error()
		if sentinel == domain.ErrInvalidInput {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}
