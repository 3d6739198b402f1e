package aigemini_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"

	"github.com/Abraxas-365/flashmoji/pkg/ai/providers/aigemini"
	"github.com/Abraxas-365/flashmoji/pkg/errx"
)

func TestParseGeminiError_APIError(t *testing.T) {
	cases := []struct {
		err  genai.APIError
		want *errx.ErrorCode
	}{
		{genai.APIError{Code: 401, Status: "UNAUTHENTICATED"}, aigemini.ErrAPIUnauthorized},
		{genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}, aigemini.ErrAPIRateLimit},
		{genai.APIError{Code: 404, Status: "NOT_FOUND"}, aigemini.ErrModelNotFound},
		{genai.APIError{Code: 400, Status: "INVALID_ARGUMENT"}, aigemini.ErrBadRequest},
		{genai.APIError{Code: 503, Status: "UNAVAILABLE"}, aigemini.ErrAPIRequest},
	}
	for _, tc := range cases {
		got := aigemini.ParseGeminiError(fmt.Errorf("generate: %w", tc.err))
		assert.True(t, errx.IsCode(got, tc.want), "code %d", tc.err.Code)
		assert.Equal(t, tc.err.Code, got.Details["http_status"])
	}
}

func TestParseGeminiError_Fallbacks(t *testing.T) {
	assert.Nil(t, aigemini.ParseGeminiError(nil))

	got := aigemini.ParseGeminiError(errors.New("Resource exhausted for project"))
	assert.True(t, errx.IsCode(got, aigemini.ErrAPIRateLimit))

	got = aigemini.ParseGeminiError(errors.New("connection reset"))
	assert.True(t, errx.IsCode(got, aigemini.ErrAPIRequest))

	already := errx.New("x", errx.TypeInternal)
	assert.Same(t, already, aigemini.ParseGeminiError(already))
}
