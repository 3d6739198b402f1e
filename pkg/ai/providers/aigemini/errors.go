package aigemini

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"google.golang.org/genai"
)

var errorRegistry = errx.NewRegistry("GEMINI")

var (
	ErrAPIRequest      = errorRegistry.Register("API_REQUEST_FAILED", errx.TypeExternal, http.StatusBadGateway, "Gemini request failed")
	ErrAPIResponse     = errorRegistry.Register("API_RESPONSE_INVALID", errx.TypeExternal, http.StatusBadGateway, "Gemini returned no usable candidate")
	ErrAPIUnauthorized = errorRegistry.Register("API_UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or missing Gemini API key")
	ErrAPIRateLimit    = errorRegistry.Register("API_RATE_LIMIT", errx.TypeExternal, http.StatusTooManyRequests, "Gemini rate limit or quota exceeded")
	ErrModelNotFound   = errorRegistry.Register("MODEL_NOT_FOUND", errx.TypeValidation, http.StatusNotFound, "Requested model not found or not accessible")
	ErrBadRequest      = errorRegistry.Register("BAD_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Gemini rejected the request")
	ErrEmptyMessages   = errorRegistry.Register("EMPTY_MESSAGES", errx.TypeValidation, http.StatusBadRequest, "Messages array cannot be empty")
	ErrMissingAPIKey   = errorRegistry.Register("MISSING_API_KEY", errx.TypeValidation, http.StatusBadRequest, "Gemini API key not provided")
)

// ParseGeminiError maps a Gemini SDK error to an errx.Error. Typed API
// errors are classified by HTTP code; anything else by its message.
func ParseGeminiError(err error) *errx.Error {
	if err == nil {
		return nil
	}

	var e *errx.Error
	if errx.As(err, &e) {
		return e
	}

	if code, status, ok := apiErrorCode(err); ok {
		return errorRegistry.NewWithCause(codeForStatus(code, status), err).
			WithDetail("http_status", code)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") || strings.Contains(msg, "permission denied"):
		return errorRegistry.NewWithCause(ErrAPIUnauthorized, err)
	case strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "quota"):
		return errorRegistry.NewWithCause(ErrAPIRateLimit, err)
	default:
		return errorRegistry.NewWithCause(ErrAPIRequest, err)
	}
}

func apiErrorCode(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Status, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Status, true
	}
	return 0, "", false
}

func codeForStatus(code int, status string) *errx.ErrorCode {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAPIUnauthorized
	case code == http.StatusTooManyRequests || status == "RESOURCE_EXHAUSTED":
		return ErrAPIRateLimit
	case code == http.StatusNotFound:
		return ErrModelNotFound
	case code == http.StatusBadRequest:
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
