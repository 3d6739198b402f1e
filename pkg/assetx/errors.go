package assetx

import (
	"net/http"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
)

var assetErrors = errx.NewRegistry("ASSETX")

var (
	ErrInvalidSource = assetErrors.Register("INVALID_SOURCE", errx.TypeValidation, http.StatusBadRequest, "Invalid source URL")
	ErrFetchFailed   = assetErrors.Register("FETCH_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to fetch generated image")
	ErrTooLarge      = assetErrors.Register("TOO_LARGE", errx.TypeExternal, http.StatusBadGateway, "Generated image exceeds the size limit")
	ErrStoreFailed   = assetErrors.Register("STORE_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to store image")
)
