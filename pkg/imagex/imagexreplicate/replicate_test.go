package imagexreplicate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/replicate/replicate-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/imagex"
	"github.com/Abraxas-365/flashmoji/pkg/imagex/imagexreplicate"
)

// fakeReplicate serves one prediction that reaches finalStatus after polls
type fakeReplicate struct {
	mu          sync.Mutex
	finalStatus string
	output      any
	errMsg      string
	polls       int
	created     map[string]any
}

func (f *fakeReplicate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/predictions":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.created = body
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pred-1", "status": "starting"})

	case r.Method == http.MethodGet && r.URL.Path == "/predictions/pred-1":
		f.polls++
		resp := map[string]any{"id": "pred-1", "status": "processing"}
		if f.polls >= 2 {
			resp["status"] = f.finalStatus
			resp["output"] = f.output
			if f.errMsg != "" {
				resp["error"] = f.errMsg
			}
		}
		_ = json.NewEncoder(w).Encode(resp)

	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"detail": "not found"})
	}
}

func newProvider(t *testing.T, fake *fakeReplicate) *imagexreplicate.Provider {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	p, err := imagexreplicate.NewProvider("r8_test",
		imagexreplicate.WithPollInterval(5*time.Millisecond),
		imagexreplicate.WithClientOptions(replicate.WithBaseURL(srv.URL)),
	)
	require.NoError(t, err)
	return p
}

func TestSubmitAndAwaitSucceeded(t *testing.T) {
	fake := &fakeReplicate{finalStatus: "succeeded", output: []any{"https://replicate.delivery/out-0.png"}}
	client := imagex.NewClient(newProvider(t, fake))
	ctx := context.Background()

	handle, err := client.Submit(ctx, "a smiling face")
	require.NoError(t, err)
	assert.Equal(t, "pred-1", handle)

	url, err := client.AwaitResult(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, "https://replicate.delivery/out-0.png", url)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "dee76b5afde21b0f01ed7925f0665b7e879c50ee718c5f78a9d38e04d523cc5e", fake.created["version"])
	input, ok := fake.created["input"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "A TOK emoji of a smiling face", input["prompt"])
	assert.Equal(t, "K_EULER", input["scheduler"])
	assert.GreaterOrEqual(t, fake.polls, 2)
}

func TestAwaitFailedPrediction(t *testing.T) {
	fake := &fakeReplicate{finalStatus: "failed", errMsg: "CUDA out of memory"}
	client := imagex.NewClient(newProvider(t, fake))

	_, err := client.AwaitResult(context.Background(), "pred-1")
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, imagex.ErrExecutionFailed))
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestNewProviderValidatesConfig(t *testing.T) {
	t.Setenv("REPLICATE_API_TOKEN", "")

	_, err := imagexreplicate.NewProvider("")
	assert.True(t, errx.IsCode(err, imagexreplicate.ErrMissingToken))

	_, err = imagexreplicate.NewProvider("r8_test", imagexreplicate.WithModel("fofr/sdxl-emoji"))
	assert.True(t, errx.IsCode(err, imagexreplicate.ErrInvalidModel))
}
