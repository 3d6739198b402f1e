package fiberx

import (
	"net/http"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
)

var httpErrors = errx.NewRegistry("HTTP")

var (
	ErrInvalidBody    = httpErrors.Register("INVALID_BODY", errx.TypeValidation, http.StatusBadRequest, "Request body is not valid JSON")
	ErrValidation     = httpErrors.Register("VALIDATION_FAILED", errx.TypeValidation, http.StatusBadRequest, "Request validation failed")
	ErrInvalidParam   = httpErrors.Register("INVALID_PARAM", errx.TypeValidation, http.StatusBadRequest, "Invalid path or query parameter")
	ErrRouteNotFound  = httpErrors.Register("ROUTE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Route not found")
	ErrInternalServer = httpErrors.Register("INTERNAL", errx.TypeInternal, http.StatusInternalServerError, "Internal server error")
)
