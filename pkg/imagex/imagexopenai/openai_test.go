package imagexopenai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/imagex"
	"github.com/Abraxas-365/flashmoji/pkg/imagex/imagexopenai"
)

func newServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestGenerateReturnsURL(t *testing.T) {
	prompts := make(chan string, 1)
	base := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		p, _ := body["prompt"].(string)
		prompts <- p

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1700000000,
			"data":    []any{map[string]any{"url": "https://oaidalle.test/img-1.png"}},
		})
	})

	p := imagexopenai.NewProvider("sk-test",
		imagexopenai.WithPromptPrefix("emoji: "),
		imagexopenai.WithRequestOptions(option.WithBaseURL(base), option.WithMaxRetries(0)),
	)
	client := imagex.NewClient(p)
	ctx := context.Background()

	handle, err := client.Submit(ctx, "a red apple")
	require.NoError(t, err)

	url, err := client.AwaitResult(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "https://oaidalle.test/img-1.png", url)
	assert.Equal(t, "emoji: a red apple", <-prompts)

	// handles are single use
	_, err = client.AwaitResult(ctx, handle)
	assert.True(t, errx.IsCode(err, imagex.ErrUnknownHandle))
}

func TestGenerateBase64BecomesDataURI(t *testing.T) {
	base := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1700000000,
			"data":    []any{map[string]any{"b64_json": "iVBORw0KGgo="}},
		})
	})

	p := imagexopenai.NewProvider("sk-test",
		imagexopenai.WithModel("gpt-image-1"),
		imagexopenai.WithRequestOptions(option.WithBaseURL(base), option.WithMaxRetries(0)),
	)
	client := imagex.NewClient(p)

	handle, err := client.Submit(context.Background(), "a cat")
	require.NoError(t, err)
	url, err := client.AwaitResult(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", url)
}

func TestProviderErrorIsExecutionFailure(t *testing.T) {
	base := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Your request was rejected by the safety system", "type": "invalid_request_error"},
		})
	})

	p := imagexopenai.NewProvider("sk-test",
		imagexopenai.WithRequestOptions(option.WithBaseURL(base), option.WithMaxRetries(0)),
	)
	client := imagex.NewClient(p)

	handle, err := client.Submit(context.Background(), "something")
	require.NoError(t, err)
	_, err = client.AwaitResult(context.Background(), handle)
	assert.True(t, errx.IsCode(err, imagex.ErrExecutionFailed))
}
