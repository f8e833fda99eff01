package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/model"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/domain/ports/adapter"
	"github.com/nickunderhill/ai-interviewer-sub002/internal/infra/logging"
)

// classifyStatus maps a provider HTTP status onto the retryable/fatal split.
// providerCode is the provider's own error code, if any (e.g. "insufficient_quota").
func classifyStatus(provider string, status int, providerCode string, cause error) *adapter.ProviderError {
	pe := &adapter.ProviderError{Provider: provider, StatusCode: status, Err: sanitize(cause)}
	switch {
	case status == http.StatusTooManyRequests && isQuota(providerCode):
		pe.Class, pe.Code = adapter.FailureFatal, model.CodeQuotaExceeded
	case status == http.StatusTooManyRequests:
		pe.Class, pe.Code = adapter.FailureRetryable, model.CodeRateLimit
	case status == http.StatusRequestTimeout:
		pe.Class, pe.Code = adapter.FailureRetryable, model.CodeConnectionError
	case status >= 500:
		pe.Class, pe.Code = adapter.FailureRetryable, model.CodeServerError
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		pe.Class, pe.Code = adapter.FailureFatal, model.CodeInvalidAPIKey
	case status == http.StatusPaymentRequired || isQuota(providerCode):
		pe.Class, pe.Code = adapter.FailureFatal, model.CodeQuotaExceeded
	default:
		pe.Class, pe.Code = adapter.FailureFatal, model.CodeInvalidRequest
	}
	return pe
}

// isQuota matches only an explicit billing code. Gemini reports ordinary rate
// limiting as RESOURCE_EXHAUSTED, which stays retryable.
func isQuota(code string) bool {
	return strings.EqualFold(strings.TrimSpace(code), "insufficient_quota")
}

// classifyTransport handles failures that never produced an HTTP status. When
// the caller's own context is done (run ceiling), its error is returned as-is;
// a per-call timeout or a network fault is retryable.
func classifyTransport(parent context.Context, provider string, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}
	return &adapter.ProviderError{
		Class:    adapter.FailureRetryable,
		Code:     model.CodeConnectionError,
		Provider: provider,
		Err:      sanitize(err),
	}
}

func invalidResponse(provider string, cause error) *adapter.ProviderError {
	return &adapter.ProviderError{
		Class:    adapter.FailureFatal,
		Code:     model.CodeInvalidResponse,
		Provider: provider,
		Err:      cause,
	}
}

// sanitize strips credentials that providers sometimes echo in error bodies.
func sanitize(err error) error {
	if err == nil {
		return nil
	}
	masked := logging.MaskSecrets(err.Error())
	if masked == err.Error() {
		return err
	}
	return errors.New(masked)
}
