// Package cardapi serves word entries, prompt generation, categorization
// and image queueing over HTTP.
package cardapi

import (
	"github.com/Abraxas-365/flashmoji/pkg/cards"
	"github.com/Abraxas-365/flashmoji/pkg/cards/cardsrv"
	"github.com/Abraxas-365/flashmoji/pkg/fiberx"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	repo        cards.Repository
	prompts     *cardsrv.PromptService
	categorizer *cardsrv.Categorizer
	images      *cardsrv.ImageService
}

func NewHandlers(repo cards.Repository, prompts *cardsrv.PromptService, categorizer *cardsrv.Categorizer, images *cardsrv.ImageService) *Handlers {
	return &Handlers{
		repo:        repo,
		prompts:     prompts,
		categorizer: categorizer,
		images:      images,
	}
}

func (h *Handlers) RegisterRoutes(router fiber.Router) {
	api := router.Group("/api/v1")

	api.Post("/prompts", h.GeneratePrompt)
	api.Post("/prompts/batch", h.GeneratePromptBatch)
	api.Post("/categorize/batch", h.CategorizeBatch)
	api.Post("/images/batch", h.QueueImageBatch)
	api.Get("/gallery", h.Gallery)

	c := api.Group("/cards")
	c.Get("/", h.List)
	c.Get("/:id", h.Get)
	c.Put("/:id", h.Upsert)
	c.Post("/:id/prompt", h.GenerateEntryPrompt)
	c.Post("/:id/categorize", h.Categorize)
	c.Post("/:id/image", h.QueueImage)
}

type promptRequest struct {
	English       string `json:"english" validate:"required"`
	Russian       string `json:"russian" validate:"required"`
	Transcription string `json:"transcription"`
}

func (h *Handlers) GeneratePrompt(c *fiber.Ctx) error {
	var req promptRequest
	if err := fiberx.Bind(c, &req); err != nil {
		return err
	}
	prompt, err := h.prompts.GeneratePrompt(c.UserContext(), req.English, req.Russian, req.Transcription)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"prompt": prompt})
}

type batchRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

func (r batchRequest) entryIDs() []kernel.EntryID {
	ids := make([]kernel.EntryID, len(r.IDs))
	for i, id := range r.IDs {
		ids[i] = kernel.EntryID(id)
	}
	return ids
}

func (h *Handlers) GeneratePromptBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := fiberx.Bind(c, &req); err != nil {
		return err
	}
	results, err := h.prompts.GenerateBatch(c.UserContext(), req.entryIDs())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"results": results})
}

func (h *Handlers) CategorizeBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := fiberx.Bind(c, &req); err != nil {
		return err
	}
	results, err := h.categorizer.CategorizeBatch(c.UserContext(), req.entryIDs())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"results": results})
}

type imageBatchRequest struct {
	Entries []cardsrv.BatchImageRequest `json:"entries" validate:"required,min=1"`
}

// QueueImageBatch enqueues caller-supplied prompts. It answers 500 only when
// every entry failed, with the per-entry errors in the body.
func (h *Handlers) QueueImageBatch(c *fiber.Ctx) error {
	var req imageBatchRequest
	if err := fiberx.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.images.QueueBatch(c.UserContext(), req.Entries)
	if err != nil {
		return err
	}
	if !res.Success {
		return c.Status(fiber.StatusInternalServerError).JSON(res)
	}
	return c.JSON(res)
}

func (h *Handlers) List(c *fiber.Ctx) error {
	filter := cards.ListFilter{
		ImageStatus: cards.ImageStatus(c.Query("image_status")),
		LevelID:     c.QueryInt("level", 0),
	}
	page, err := h.repo.List(c.UserContext(), filter, fiberx.Pagination(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// Gallery lists entries that have a finished image
func (h *Handlers) Gallery(c *fiber.Ctx) error {
	filter := cards.ListFilter{
		ImageStatus: cards.ImageStatusCompleted,
		LevelID:     c.QueryInt("level", 0),
	}
	page, err := h.repo.List(c.UserContext(), filter, fiberx.Pagination(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := fiberx.EntryIDParam(c, "id")
	if err != nil {
		return err
	}
	entry, err := h.repo.FindByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(entry)
}

type upsertRequest struct {
	OriginalText    string `json:"original_text" validate:"required"`
	TranslationText string `json:"translation_text" validate:"required"`
	LevelID         int    `json:"level_id" validate:"gte=0"`
	Transcription   string `json:"transcription"`
	Prompt          string `json:"prompt"`
}

// Upsert creates or updates the text of an entry. Generation state is kept.
func (h *Handlers) Upsert(c *fiber.Ctx) error {
	id, err := fiberx.EntryIDParam(c, "id")
	if err != nil {
		return err
	}
	var req upsertRequest
	if err := fiberx.Bind(c, &req); err != nil {
		return err
	}

	entry := cards.WordEntry{
		ID:              id,
		OriginalText:    req.OriginalText,
		TranslationText: req.TranslationText,
		LevelID:         req.LevelID,
		Transcription:   req.Transcription,
		Prompt:          req.Prompt,
	}
	if req.Prompt != "" {
		entry.PromptStatus = cards.PromptStatusCompleted
	}
	if err := h.repo.Upsert(c.UserContext(), entry); err != nil {
		return err
	}

	stored, err := h.repo.FindByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(stored)
}

func (h *Handlers) GenerateEntryPrompt(c *fiber.Ctx) error {
	id, err := fiberx.EntryIDParam(c, "id")
	if err != nil {
		return err
	}
	prompt, err := h.prompts.GenerateForEntry(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": id, "prompt": prompt})
}

func (h *Handlers) Categorize(c *fiber.Ctx) error {
	id, err := fiberx.EntryIDParam(c, "id")
	if err != nil {
		return err
	}
	result, err := h.categorizer.CategorizeEntry(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": id, "categorization": result})
}

// QueueImage queues image generation for an entry. With ?wait=true the
// request is held until the image is ready.
func (h *Handlers) QueueImage(c *fiber.Ctx) error {
	id, err := fiberx.EntryIDParam(c, "id")
	if err != nil {
		return err
	}
	wait := c.QueryBool("wait", false)

	out, err := h.images.QueueEntry(c.UserContext(), id, wait)
	if err != nil {
		return err
	}
	if !wait {
		return c.Status(fiber.StatusAccepted).JSON(out)
	}
	return c.JSON(out)
}
