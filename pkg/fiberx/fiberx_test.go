package fiberx_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/fiberx"
)

type createReq struct {
	Word  string `json:"word" validate:"required"`
	Level int    `json:"level" validate:"gte=1,lte=6"`
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: fiberx.ErrorHandler(false)})
	app.Post("/items", func(c *fiber.Ctx) error {
		var req createReq
		if err := fiberx.Bind(c, &req); err != nil {
			return err
		}
		return c.JSON(req)
	})
	app.Get("/items/:id", func(c *fiber.Ctx) error {
		id, err := fiberx.EntryIDParam(c, "id")
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"id": id, "page": fiberx.Pagination(c).Page})
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("db password leaked here")
	})
	app.Use(fiberx.NotFound)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestBind(t *testing.T) {
	app := newApp()

	status, body := do(t, app, "POST", "/items", `{"word":"happy","level":2}`)
	assert.Equal(t, 200, status)
	assert.Equal(t, "happy", body["word"])

	status, body = do(t, app, "POST", "/items", `{"level":9}`)
	assert.Equal(t, 400, status)
	assert.Equal(t, fiberx.ErrValidation.Code, body["code"])
	details := body["details"].(map[string]any)
	assert.Contains(t, details, "Word")
	assert.Contains(t, details, "Level")

	status, body = do(t, app, "POST", "/items", `{"word":`)
	assert.Equal(t, 400, status)
	assert.Equal(t, fiberx.ErrInvalidBody.Code, body["code"])
}

func TestEntryIDParam(t *testing.T) {
	app := newApp()

	status, body := do(t, app, "GET", "/items/42?page=3", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, float64(42), body["id"])
	assert.Equal(t, float64(3), body["page"])

	status, body = do(t, app, "GET", "/items/abc", "")
	assert.Equal(t, 400, status)
	assert.Equal(t, fiberx.ErrInvalidParam.Code, body["code"])
}

func TestErrorHandler_HidesForeignErrors(t *testing.T) {
	status, body := do(t, newApp(), "GET", "/boom", "")
	assert.Equal(t, 500, status)
	assert.Equal(t, fiberx.ErrInternalServer.Code, body["code"])
	assert.NotContains(t, body, "underlying_error")
	assert.Equal(t, string(errx.TypeInternal), body["type"])
}

func TestNotFound(t *testing.T) {
	status, body := do(t, newApp(), "GET", "/nowhere", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, fiberx.ErrRouteNotFound.Code, body["code"])
}
