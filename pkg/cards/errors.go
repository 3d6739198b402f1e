package cards

import (
	"net/http"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
)

var cardErrors = errx.NewRegistry("CARDS")

var (
	ErrNotFound         = cardErrors.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Word entry not found")
	ErrInvalidEntry     = cardErrors.Register("INVALID_ENTRY", errx.TypeValidation, http.StatusBadRequest, "Invalid word entry")
	ErrMissingPrompt    = cardErrors.Register("MISSING_PROMPT", errx.TypeBusiness, http.StatusUnprocessableEntity, "Entry has no prompt")
	ErrPersistFailed    = cardErrors.Register("PERSIST_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to persist word entry")
	ErrPromptFailed     = cardErrors.Register("PROMPT_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to generate prompt")
	ErrCategorizeFailed = cardErrors.Register("CATEGORIZE_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to categorize word")
	ErrInvalidCategory  = cardErrors.Register("INVALID_CATEGORIZATION", errx.TypeExternal, http.StatusBadGateway, "Invalid categorization response structure")
	ErrBatchTooLarge    = cardErrors.Register("BATCH_TOO_LARGE", errx.TypeValidation, http.StatusBadRequest, "Too many entries in batch")
)

// NotFound returns ErrNotFound for id
func NotFound(id any) *errx.Error {
	return cardErrors.New(ErrNotFound).WithDetail("entry_id", id)
}

// PersistFailed wraps a storage failure
func PersistFailed(id any, cause error) *errx.Error {
	return cardErrors.NewWithCause(ErrPersistFailed, cause).WithDetail("entry_id", id)
}

// NewError builds an error from one of this package's codes
func NewError(code *errx.ErrorCode) *errx.Error {
	return cardErrors.New(code)
}

// WrapError builds an error from code with cause attached
func WrapError(code *errx.ErrorCode, cause error) *errx.Error {
	return cardErrors.NewWithCause(code, cause)
}
