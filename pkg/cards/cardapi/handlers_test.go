package cardapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/flashmoji/pkg/ai/llm"
	"github.com/Abraxas-365/flashmoji/pkg/cards"
	"github.com/Abraxas-365/flashmoji/pkg/cards/cardapi"
	"github.com/Abraxas-365/flashmoji/pkg/cards/cardinfra"
	"github.com/Abraxas-365/flashmoji/pkg/cards/cardsrv"
	"github.com/Abraxas-365/flashmoji/pkg/fiberx"
	"github.com/Abraxas-365/flashmoji/pkg/jobx"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
)

type echoLLM struct{}

func (echoLLM) Chat(_ context.Context, messages []llm.Message, opts ...llm.Option) (llm.Response, error) {
	if llm.Apply(opts...).JSONMode {
		return llm.Response{Message: llm.NewAssistantMessage(
			`{"primary_category":"CONCRETE-VISUAL","image_suitability":"HIGH","word_type":"noun","transformation_needed":false,"confidence":0.9}`,
		)}, nil
	}
	return llm.Response{Message: llm.NewAssistantMessage("smiling face")}, nil
}

type generator struct{}

func (generator) Submit(context.Context, string) (string, error) { return "pred-1", nil }
func (generator) AwaitResult(context.Context, string) (string, error) {
	return "https://replicate.delivery/out.png", nil
}

type publisher struct{}

func (publisher) Publish(_ context.Context, _ string, id kernel.EntryID) (string, error) {
	return "https://cdn/" + id.String() + ".png", nil
}

func newApp(t *testing.T) (*fiber.App, *cardinfra.MemoryRepository) {
	t.Helper()
	repo := cardinfra.NewMemoryRepository(
		cards.WordEntry{ID: 1, OriginalText: "happy", TranslationText: "счастливый", LevelID: 1},
		cards.WordEntry{ID: 2, OriginalText: "actor", TranslationText: "актёр", LevelID: 2, Prompt: "man in suit"},
		cards.WordEntry{ID: 3, OriginalText: "leaf", TranslationText: "лист", LevelID: 2, ImageURL: "https://cdn/3.png", ImageStatus: cards.ImageStatusCompleted},
	)

	q := jobx.New(generator{}, publisher{}, repo,
		jobx.WithInterJobDelay(0),
		jobx.WithMarkProcessing(),
	)
	t.Cleanup(func() { _ = q.Close() })

	h := cardapi.NewHandlers(repo,
		cardsrv.NewPromptService(echoLLM{}, repo),
		cardsrv.NewCategorizer(echoLLM{}, repo),
		cardsrv.NewImageService(repo, q, 5*time.Second),
	)
	app := fiber.New(fiber.Config{ErrorHandler: fiberx.ErrorHandler(false)})
	h.RegisterRoutes(app)
	return app, repo
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestGeneratePrompt(t *testing.T) {
	app, _ := newApp(t)

	status, body := call(t, app, "POST", "/api/v1/prompts", `{"english":"happy","russian":"счастливый"}`)
	assert.Equal(t, 200, status)
	assert.Equal(t, "smiling face", body["prompt"])

	status, body = call(t, app, "POST", "/api/v1/prompts", `{"english":"happy"}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, fiberx.ErrValidation.Code, body["code"])
}

func TestEntryPromptAndCategorize(t *testing.T) {
	app, repo := newApp(t)

	status, body := call(t, app, "POST", "/api/v1/cards/1/prompt", "")
	require.Equal(t, 200, status, body)
	assert.Equal(t, "smiling face", body["prompt"])

	status, body = call(t, app, "POST", "/api/v1/cards/1/categorize", "")
	require.Equal(t, 200, status, body)
	cat := body["categorization"].(map[string]any)
	assert.Equal(t, "CONCRETE-VISUAL", cat["primary_category"])

	e, err := repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, cards.PromptStatusCompleted, e.PromptStatus)
	assert.Equal(t, cards.CategorizationStatusCompleted, e.CategorizationStatus)

	status, body = call(t, app, "POST", "/api/v1/cards/999/prompt", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, cards.ErrNotFound.Code, body["code"])
}

func TestBatches(t *testing.T) {
	app, _ := newApp(t)

	status, body := call(t, app, "POST", "/api/v1/prompts/batch", `{"ids":[1,2,77]}`)
	require.Equal(t, 200, status, body)
	results := body["results"].([]any)
	require.Len(t, results, 3)
	assert.Nil(t, results[0].(map[string]any)["error"])
	assert.NotNil(t, results[2].(map[string]any)["error"])

	status, _ = call(t, app, "POST", "/api/v1/categorize/batch", `{"ids":[]}`)
	assert.Equal(t, 400, status)

	status, body = call(t, app, "POST", "/api/v1/categorize/batch", `{"ids":[1,2]}`)
	require.Equal(t, 200, status, body)
	assert.Len(t, body["results"].([]any), 2)
}

func TestQueueImage(t *testing.T) {
	app, repo := newApp(t)

	status, body := call(t, app, "POST", "/api/v1/cards/1/image", "")
	assert.Equal(t, 422, status)
	assert.Equal(t, cards.ErrMissingPrompt.Code, body["code"])

	status, body = call(t, app, "POST", "/api/v1/cards/2/image?wait=true", "")
	require.Equal(t, 200, status, body)
	assert.Equal(t, "completed", body["status"])
	result := body["result"].(map[string]any)
	assert.Equal(t, "https://cdn/2.png", result["imageUrl"])

	e, err := repo.FindByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, cards.ImageStatusCompleted, e.ImageStatus)
	assert.Equal(t, "https://cdn/2.png", e.ImageURL)
	assert.Equal(t, "pred-1", e.ProviderHandle)
}

func TestQueueImage_Async(t *testing.T) {
	app, repo := newApp(t)

	status, body := call(t, app, "POST", "/api/v1/cards/2/image", "")
	require.Equal(t, 202, status, body)
	assert.NotEmpty(t, body["queueId"])

	require.Eventually(t, func() bool {
		e, err := repo.FindByID(context.Background(), 2)
		return err == nil && e.ImageStatus == cards.ImageStatusCompleted
	}, 5*time.Second, 5*time.Millisecond)
}

func TestUpsertGetListGallery(t *testing.T) {
	app, _ := newApp(t)

	status, body := call(t, app, "PUT", "/api/v1/cards/10", `{"original_text":"winter","translation_text":"зима","level_id":3,"prompt":"snowflake"}`)
	require.Equal(t, 200, status, body)
	assert.Equal(t, "snowflake", body["prompt"])
	assert.Equal(t, "completed", body["prompt_status"])

	status, body = call(t, app, "GET", "/api/v1/cards/10", "")
	require.Equal(t, 200, status)
	assert.Equal(t, "winter", body["original_text"])

	status, _ = call(t, app, "GET", "/api/v1/cards/x", "")
	assert.Equal(t, 400, status)

	_, list := call(t, app, "GET", "/api/v1/cards?level=2", "")
	assert.Len(t, list["items"].([]any), 2)

	_, gallery := call(t, app, "GET", "/api/v1/gallery", "")
	items := gallery["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "https://cdn/3.png", items[0].(map[string]any)["image_url"])
}

func TestQueueImageBatch(t *testing.T) {
	app, repo := newApp(t)

	status, body := call(t, app, "POST", "/api/v1/images/batch",
		`{"entries":[{"entryId":2,"prompt":"man in suit","englishWord":"actor"},{"entryId":1,"prompt":"","englishWord":"happy"}]}`)
	require.Equal(t, 200, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["queuedCount"])
	assert.Equal(t, float64(1), body["errorCount"])

	require.Eventually(t, func() bool {
		e, err := repo.FindByID(context.Background(), 2)
		return err == nil && e.ImageStatus == cards.ImageStatusCompleted
	}, 5*time.Second, 5*time.Millisecond)

	status, body = call(t, app, "POST", "/api/v1/images/batch", `{"entries":[{"entryId":1,"prompt":"x"}]}`)
	assert.Equal(t, 500, status)
	assert.Equal(t, false, body["success"])
	assert.Len(t, body["errors"].([]any), 1)

	status, _ = call(t, app, "POST", "/api/v1/images/batch", `{"entries":[]}`)
	assert.Equal(t, 400, status)
}
