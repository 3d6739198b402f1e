package imagex

import (
	"net/http"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
)

var imagexErrors = errx.NewRegistry("IMAGEX")

var (
	ErrEmptyPrompt = imagexErrors.Register(
		"EMPTY_PROMPT",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Prompt cannot be empty",
	)

	// ErrSubmissionFailed means the provider rejected the job outright
	ErrSubmissionFailed = imagexErrors.Register(
		"SUBMISSION_FAILED",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Image provider rejected the job",
	)

	// ErrExecutionFailed means the provider accepted the job but did not
	// produce a result
	ErrExecutionFailed = imagexErrors.Register(
		"EXECUTION_FAILED",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Image provider failed to produce a result",
	)

	ErrUnexpectedOutput = imagexErrors.Register(
		"UNEXPECTED_OUTPUT",
		errx.TypeExternal,
		http.StatusBadGateway,
		"unexpected output format",
	)

	ErrInvalidURL = imagexErrors.Register(
		"INVALID_URL",
		errx.TypeExternal,
		http.StatusBadGateway,
		"Image provider returned an invalid URL",
	)

	ErrUnknownHandle = imagexErrors.Register(
		"UNKNOWN_HANDLE",
		errx.TypeNotFound,
		http.StatusNotFound,
		"Unknown provider handle",
	)
)

// SubmissionError wraps cause as ErrSubmissionFailed
func SubmissionError(cause error) *errx.Error {
	return imagexErrors.NewWithCause(ErrSubmissionFailed, cause)
}

// ExecutionError wraps cause as ErrExecutionFailed
func ExecutionError(cause error) *errx.Error {
	return imagexErrors.NewWithCause(ErrExecutionFailed, cause)
}

// ExecutionFailure builds ErrExecutionFailed with the provider's own message
func ExecutionFailure(message string) *errx.Error {
	return imagexErrors.NewWithMessage(ErrExecutionFailed, message)
}

// UnknownHandle builds ErrUnknownHandle for handle
func UnknownHandle(handle string) *errx.Error {
	return imagexErrors.New(ErrUnknownHandle).WithDetail("handle", handle)
}
