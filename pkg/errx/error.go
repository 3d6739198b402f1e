package errx

import (
	"errors"
	"fmt"
)

// Error is a coded error carrying the HTTP status it should surface as.
// Registered codes come from a Registry; New and Wrap build ad-hoc ones
// whose code is the type name.
type Error struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Type       Type           `json:"type"`
	HTTPStatus int            `json:"http_status"`
	Details    map[string]any `json:"details,omitempty"`

	// Err is the cause. It is kept out of responses.
	Err error `json:"-"`
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "[" + e.Code + "] " + e.Message
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail sets one detail and returns e for chaining
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithDetails merges details into e
func (e *Error) WithDetails(details map[string]any) *Error {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// New builds an uncoded error of the given type.
func New(message string, errType Type) *Error {
	return &Error{
		Code:       string(errType),
		Message:    message,
		Type:       errType,
		HTTPStatus: errType.HTTPStatus(),
		Details:    make(map[string]any),
	}
}

// Wrap attaches message to err. When err already carries an *Error its
// code, type, status and details win over errType, so a provider failure
// wrapped by a repository still reads as that provider failure.
func Wrap(err error, message string, errType Type) *Error {
	if err == nil {
		return nil
	}

	var inner *Error
	if !errors.As(err, &inner) {
		w := New(message, errType)
		w.Err = err
		return w
	}
	return &Error{
		Code:       inner.Code,
		Message:    message,
		Type:       inner.Type,
		HTTPStatus: inner.HTTPStatus,
		Details:    inner.Details,
		Err:        err,
	}
}

// IsCode reports whether any *Error in err's chain carries the given code
func IsCode(err error, code *ErrorCode) bool {
	if code == nil {
		return false
	}
	var e *Error
	for errors.As(err, &e) {
		if e.Code == code.Code {
			return true
		}
		err = e.Err
	}
	return false
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// As is errors.As, re-exported so callers need only this package.
func As(err error, target any) bool {
	return errors.As(err, target)
}
