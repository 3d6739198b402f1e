package jobxredis

import (
	"net/http"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
)

var redisErrors = errx.NewRegistry("JOBX_REDIS")

var (
	ErrWrite     = redisErrors.Register("WRITE", errx.TypeExternal, http.StatusInternalServerError, "Redis write failed")
	ErrRead      = redisErrors.Register("READ", errx.TypeExternal, http.StatusInternalServerError, "Redis read failed")
	ErrNotFound  = redisErrors.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Job not found in Redis")
	ErrMarshal   = redisErrors.Register("MARSHAL", errx.TypeInternal, http.StatusInternalServerError, "Failed to marshal job data")
	ErrUnmarshal = redisErrors.Register("UNMARSHAL", errx.TypeInternal, http.StatusInternalServerError, "Failed to unmarshal job data")
)
