package imagexreplicate

import "github.com/Abraxas-365/flashmoji/pkg/errx"

var replicateErrors = errx.NewRegistry("REPLICATE")

var (
	ErrMissingToken = replicateErrors.Register("MISSING_TOKEN", errx.TypeValidation, 400, "Replicate API token not provided")
	ErrInvalidModel = replicateErrors.Register("INVALID_MODEL", errx.TypeValidation, 400, "Model must be owner/name:version")
	ErrClientInit   = replicateErrors.Register("CLIENT_INIT_FAILED", errx.TypeInternal, 500, "Failed to create Replicate client")
)
