package aianthropic

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/anthropics/anthropic-sdk-go"
)

var errorRegistry = errx.NewRegistry("ANTHROPIC")

var (
	ErrAPIRequest      = errorRegistry.Register("API_REQUEST_FAILED", errx.TypeExternal, http.StatusBadGateway, "Anthropic request failed")
	ErrAPIUnauthorized = errorRegistry.Register("API_UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or missing Anthropic API key")
	ErrAPIRateLimit    = errorRegistry.Register("API_RATE_LIMIT", errx.TypeExternal, http.StatusTooManyRequests, "Anthropic rate limit exceeded")
	ErrAPIOverloaded   = errorRegistry.Register("API_OVERLOADED", errx.TypeUnavailable, http.StatusServiceUnavailable, "Anthropic API is overloaded")
	ErrModelNotFound   = errorRegistry.Register("MODEL_NOT_FOUND", errx.TypeValidation, http.StatusNotFound, "Requested model not found or not accessible")
	ErrBadRequest      = errorRegistry.Register("BAD_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Anthropic rejected the request")
	ErrEmptyMessages   = errorRegistry.Register("EMPTY_MESSAGES", errx.TypeValidation, http.StatusBadRequest, "Messages array cannot be empty")
	ErrUnsupportedRole = errorRegistry.Register("UNSUPPORTED_ROLE", errx.TypeValidation, http.StatusBadRequest, "Unsupported message role")
	ErrMissingAPIKey   = errorRegistry.Register("MISSING_API_KEY", errx.TypeValidation, http.StatusBadRequest, "Anthropic API key not provided")
)

// overloaded is Anthropic's non-standard "try again later" status
const statusOverloaded = 529

// ParseAnthropicError maps an Anthropic SDK error to an errx.Error
func ParseAnthropicError(err error) *errx.Error {
	if err == nil {
		return nil
	}

	var e *errx.Error
	if errx.As(err, &e) {
		return e
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return errorRegistry.NewWithCause(codeForStatus(apiErr.StatusCode), err).
			WithDetail("http_status", apiErr.StatusCode)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "x-api-key") || strings.Contains(msg, "authentication"):
		return errorRegistry.NewWithCause(ErrAPIUnauthorized, err)
	case strings.Contains(msg, "overloaded"):
		return errorRegistry.NewWithCause(ErrAPIOverloaded, err)
	default:
		return errorRegistry.NewWithCause(ErrAPIRequest, err)
	}
}

func codeForStatus(status int) *errx.ErrorCode {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAPIUnauthorized
	case http.StatusTooManyRequests:
		return ErrAPIRateLimit
	case statusOverloaded, http.StatusServiceUnavailable:
		return ErrAPIOverloaded
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		return ErrAPIRequest
	}
}

// WrapError wraps err under code unless it already carries one
func WrapError(err error, code *errx.ErrorCode) *errx.Error {
	if err == nil {
		return nil
	}
	var e *errx.Error
	if errx.As(err, &e) {
		return e
	}
	return errorRegistry.NewWithCause(code, err)
}
