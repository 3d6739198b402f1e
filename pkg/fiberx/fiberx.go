// Package fiberx holds the HTTP glue shared by every fiber handler: body
// binding with struct validation, path parameter parsing and the errx
// aware error handler.
package fiberx

import (
	"errors"
	"fmt"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Bind decodes the JSON body into v and validates its `validate` tags
func Bind(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return httpErrors.NewWithCause(ErrInvalidBody, err)
	}
	return Validate(v)
}

// Validate runs struct validation and reports failing fields as details
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return httpErrors.NewWithCause(ErrValidation, err)
	}

	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("failed on '%s'", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s (%s)", msg, fe.Param())
		}
		fields[fe.Field()] = msg
	}
	return httpErrors.New(ErrValidation).WithDetails(fields)
}

// EntryIDParam parses a path parameter as an entry id
func EntryIDParam(c *fiber.Ctx, name string) (kernel.EntryID, error) {
	raw := c.Params(name)
	id, ok := kernel.ParseEntryID(raw)
	if !ok {
		return 0, httpErrors.New(ErrInvalidParam).
			WithDetail("param", name).
			WithDetail("value", raw)
	}
	return id, nil
}

// Pagination reads page and page_size query parameters
func Pagination(c *fiber.Ctx) kernel.PaginationOptions {
	return kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 0),
	}
}

// ErrorHandler renders errors as errx JSON. Errors outside the registry are
// logged and reported as a generic internal error. With debug set the cause
// chain is included.
func ErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID := c.Get(fiber.HeaderXRequestID)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			if fe.Code == fiber.StatusNotFound {
				return write(c, httpErrors.New(ErrRouteNotFound).WithDetail("path", c.Path()), requestID, debug)
			}
			e := errx.New(fe.Message, errx.TypeValidation)
			e.Code = fmt.Sprintf("HTTP_%d", fe.Code)
			e.HTTPStatus = fe.Code
			return write(c, e, requestID, debug)
		}

		var e *errx.Error
		if !errx.As(err, &e) {
			e = httpErrors.NewWithCause(ErrInternalServer, err)
		}

		entry := logx.WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"request_id": requestID,
			"code":       e.Code,
			"status":     e.HTTPStatus,
		}).WithError(err)
		if e.HTTPStatus >= fiber.StatusInternalServerError {
			entry.Error("Request failed")
		} else {
			entry.Debug("Request rejected")
		}

		return write(c, e, requestID, debug)
	}
}

func write(c *fiber.Ctx, e *errx.Error, requestID string, debug bool) error {
	resp := fiber.Map{
		"error":  e.Message,
		"code":   e.Code,
		"type":   string(e.Type),
		"status": e.HTTPStatus,
	}
	if len(e.Details) > 0 {
		resp["details"] = e.Details
	}
	if requestID != "" {
		resp["request_id"] = requestID
	}
	if e.Type.Retryable() {
		resp["retryable"] = true
	}
	if debug && e.Err != nil {
		resp["underlying_error"] = e.Err.Error()
	}
	return c.Status(e.HTTPStatus).JSON(resp)
}

// NotFound is the catch-all route handler
func NotFound(c *fiber.Ctx) error {
	return httpErrors.New(ErrRouteNotFound).
		WithDetail("path", c.Path()).
		WithDetail("method", c.Method())
}
