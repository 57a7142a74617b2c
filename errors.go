package llmstream

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrMissingAPIKey indicates the API key is absent from the request.
	ErrMissingAPIKey = errors.New("llmstream: missing API key")

	// ErrMissingModel indicates the model identifier is absent from the request.
	ErrMissingModel = errors.New("llmstream: missing model")

	// ErrEmptyMessages indicates the request carries no messages.
	ErrEmptyMessages = errors.New("llmstream: empty message list")

	// ErrInvalidBaseURL indicates a custom endpoint base URL could not be used.
	ErrInvalidBaseURL = errors.New("llmstream: invalid base URL")

	// ErrUnknownProvider indicates the provider identifier is neither built-in
	// nor backed by a custom endpoint configuration.
	ErrUnknownProvider = errors.New("llmstream: unknown provider")

	// ErrUnauthorized indicates the provider rejected the credentials (401/403).
	ErrUnauthorized = errors.New("llmstream: unauthorized")

	// ErrRateLimited indicates the provider's rate limit has been exceeded.
	ErrRateLimited = errors.New("llmstream: rate limit exceeded")

	// ErrProviderUnavailable indicates the provider service is down or unreachable.
	ErrProviderUnavailable = errors.New("llmstream: provider unavailable")

	// ErrMalformedResponse indicates a 200 response body that could not be parsed.
	ErrMalformedResponse = errors.New("llmstream: malformed provider response")
)

// ErrorCode classifies a stream error for callers that branch on error kind
// (prompt for a key, offer retry, show a generic message).
type ErrorCode string

const (
	ErrorCodeMissingAPIKey     ErrorCode = "missing_api_key"
	ErrorCodeMissingModel      ErrorCode = "missing_model"
	ErrorCodeEmptyMessages     ErrorCode = "empty_messages"
	ErrorCodeInvalidBaseURL    ErrorCode = "invalid_base_url"
	ErrorCodeUnknownProvider   ErrorCode = "unknown_provider"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeRateLimited       ErrorCode = "rate_limited"
	ErrorCodeNotFound          ErrorCode = "not_found"
	ErrorCodeServerError       ErrorCode = "server_error"
	ErrorCodeTimeout           ErrorCode = "timeout"
	ErrorCodeMalformedResponse ErrorCode = "malformed_response"
	ErrorCodeProviderReported  ErrorCode = "provider_reported"
	ErrorCodeNetwork           ErrorCode = "network"
)

// StreamError is the single error type surfaced through the error callback.
// Every failure path of a session funnels into one of these; the library
// never lets a raw error or panic escape past Stream.
type StreamError struct {
	Code       ErrorCode      // Machine-readable classification
	Provider   string         // The provider name, if known
	StatusCode int            // HTTP status code (0 if not applicable)
	Message    string         // Human-readable explanation
	RetryAfter *time.Duration // Suggested wait from a 429 Retry-After header, if present
	Fatal      bool           // True when the session cannot produce further events
	Err        error          // Wrapped sentinel error
}

func (e *StreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider '%s' error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Provider != "" {
		return fmt.Sprintf("provider '%s' error: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("stream error (%s): %s", e.Code, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// statusError maps a non-2xx HTTP response to a StreamError.
// The body excerpt, when available, becomes part of the message so callers
// see what the provider actually said.
func statusError(provider string, status int, detail string) *StreamError {
	se := &StreamError{
		Provider:   provider,
		StatusCode: status,
		Message:    detail,
		Fatal:      true,
	}
	switch {
	case status == 401 || status == 403:
		se.Code = ErrorCodeUnauthorized
		se.Err = ErrUnauthorized
		if detail == "" {
			se.Message = "invalid or unauthorized API key"
		}
	case status == 404:
		se.Code = ErrorCodeNotFound
		if detail == "" {
			se.Message = "endpoint or model not found"
		}
	case status == 429:
		se.Code = ErrorCodeRateLimited
		se.Err = ErrRateLimited
		if detail == "" {
			se.Message = "rate limit exceeded"
		}
	case status == 408:
		se.Code = ErrorCodeTimeout
		if detail == "" {
			se.Message = "request timed out"
		}
	case status >= 500:
		se.Code = ErrorCodeServerError
		se.Err = ErrProviderUnavailable
		if detail == "" {
			se.Message = fmt.Sprintf("provider server error (HTTP %d)", status)
		}
	default:
		se.Code = ErrorCodeProviderReported
		if detail == "" {
			se.Message = fmt.Sprintf("unexpected provider response (HTTP %d)", status)
		}
	}
	return se
}

// IsRetryable checks if an error is potentially retryable by the caller.
// The library itself never retries; this only informs the consumer's UI.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var se *StreamError
	if errors.As(err, &se) {
		switch se.Code {
		case ErrorCodeRateLimited, ErrorCodeServerError, ErrorCodeTimeout, ErrorCodeNetwork:
			return true
		}
		return false
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderUnavailable) {
		return true
	}

	return false
}

// IsAuthError checks if an error is related to authentication.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrMissingAPIKey) {
		return true
	}

	var se *StreamError
	if errors.As(err, &se) {
		return se.StatusCode == 401 || se.StatusCode == 403
	}

	return false
}

// IsInvalidRequest checks if an error indicates a request the caller must fix
// before trying again (missing key/model/messages, bad base URL, unknown provider).
func IsInvalidRequest(err error) bool {
	if err == nil {
		return false
	}

	for _, sentinel := range []error{ErrMissingAPIKey, ErrMissingModel, ErrEmptyMessages, ErrInvalidBaseURL, ErrUnknownProvider} {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}
