package fsx

import "github.com/Abraxas-365/flashmoji/pkg/errx"

var fsxErrors = errx.NewRegistry("FSX")

var (
	ErrNotFound        = fsxErrors.Register("NOT_FOUND", errx.TypeNotFound, 404, "Object not found")
	ErrInvalidPath     = fsxErrors.Register("INVALID_PATH", errx.TypeValidation, 400, "Invalid object path")
	ErrReadFailed      = fsxErrors.Register("READ_FAILED", errx.TypeExternal, 502, "Failed to read object")
	ErrWriteFailed     = fsxErrors.Register("WRITE_FAILED", errx.TypeExternal, 502, "Failed to write object")
	ErrDeleteFailed    = fsxErrors.Register("DELETE_FAILED", errx.TypeExternal, 502, "Failed to delete object")
	ErrContainerFailed = fsxErrors.Register("CONTAINER_FAILED", errx.TypeExternal, 502, "Failed to ensure storage container")
)

// NotFound builds an ErrNotFound error for path
func NotFound(path string) *errx.Error {
	return fsxErrors.New(ErrNotFound).WithDetail("path", path)
}

// Wrap builds an error for code with cause and path
func Wrap(code *errx.ErrorCode, path string, cause error) *errx.Error {
	return fsxErrors.NewWithCause(code, cause).WithDetail("path", path)
}

// InvalidPath builds an ErrInvalidPath error for path
func InvalidPath(path string) *errx.Error {
	return fsxErrors.New(ErrInvalidPath).WithDetail("path", path)
}
