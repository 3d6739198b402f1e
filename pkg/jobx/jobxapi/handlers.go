// Package jobxapi exposes the image queue over HTTP.
package jobxapi

import (
	"context"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/fiberx"
	"github.com/Abraxas-365/flashmoji/pkg/jobx"
	"github.com/Abraxas-365/flashmoji/pkg/jobx/jobxredis"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// Queue is the subset of *jobx.Queue served here
type Queue interface {
	Enqueue(entryID kernel.EntryID, word, prompt string) (string, error)
	EnqueueAndAwait(ctx context.Context, entryID kernel.EntryID, word, prompt string) (string, jobx.Result, error)
	Status() jobx.Stats
	Items() []jobx.Job
	Get(jobID string) (jobx.Job, bool)
	Clear() int
}

// History reads finished jobs back from the redis mirror
type History interface {
	GetJob(ctx context.Context, jobID string) (*jobxredis.Record, error)
	History(ctx context.Context, limit int) ([]jobxredis.Record, error)
	Stats(ctx context.Context) (jobxredis.Stats, error)
}

type Handlers struct {
	queue        Queue
	history      History
	awaitTimeout time.Duration
}

// NewHandlers builds the queue routes. history may be nil when redis is not
// configured; the history routes are then not registered.
func NewHandlers(queue Queue, history History, awaitTimeout time.Duration) *Handlers {
	if awaitTimeout <= 0 {
		awaitTimeout = 5 * time.Minute
	}
	return &Handlers{queue: queue, history: history, awaitTimeout: awaitTimeout}
}

func (h *Handlers) RegisterRoutes(router fiber.Router) {
	q := router.Group("/api/v1/queue")
	q.Post("/", h.EnqueueAndWait)
	q.Post("/async", h.EnqueueAsync)
	q.Get("/status", h.Status)
	q.Get("/items", h.Items)
	q.Get("/items/:id", h.Item)
	q.Post("/clear", h.Clear)

	if h.history != nil {
		q.Get("/history", h.History)
		q.Get("/history/stats", h.LifetimeStats)
	}
}

type enqueueRequest struct {
	EntryID     int64  `json:"entryId" validate:"required,gt=0"`
	EnglishWord string `json:"englishWord" validate:"required"`
	Prompt      string `json:"prompt" validate:"required"`
}

type completedResponse struct {
	QueueID     string    `json:"queueId"`
	Status      string    `json:"status"`
	ImageURL    string    `json:"imageUrl"`
	OriginalURL string    `json:"originalUrl"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// EnqueueAndWait enqueues the entry and holds the request until the job
// finishes or the await timeout passes. A timed-out job keeps running.
func (h *Handlers) EnqueueAndWait(c *fiber.Ctx) error {
	var req enqueueRequest
	if err := fiberx.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), h.awaitTimeout)
	defer cancel()

	jobID, res, err := h.queue.EnqueueAndAwait(ctx, kernel.EntryID(req.EntryID), req.EnglishWord, req.Prompt)
	if err != nil {
		return err
	}
	return c.JSON(completedResponse{
		QueueID:     jobID,
		Status:      string(jobx.JobStatusCompleted),
		ImageURL:    res.ImageURL,
		OriginalURL: res.OriginalURL,
		GeneratedAt: res.GeneratedAt,
	})
}

func (h *Handlers) EnqueueAsync(c *fiber.Ctx) error {
	var req enqueueRequest
	if err := fiberx.Bind(c, &req); err != nil {
		return err
	}

	jobID, err := h.queue.Enqueue(kernel.EntryID(req.EntryID), req.EnglishWord, req.Prompt)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"queueId": jobID,
		"status":  jobx.JobStatusPending,
	})
}

func (h *Handlers) Status(c *fiber.Ctx) error {
	return c.JSON(h.queue.Status())
}

func (h *Handlers) Items(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"items": h.queue.Items()})
}

// Item returns a tracked job, falling back to the mirror for jobs that
// already left the queue.
func (h *Handlers) Item(c *fiber.Ctx) error {
	id := c.Params("id")
	if job, ok := h.queue.Get(id); ok {
		return c.JSON(fiber.Map{"job": job, "tracked": true})
	}
	if h.history == nil {
		return jobx.NotFound(id)
	}

	rec, err := h.history.GetJob(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"job":     rec.Job,
		"tracked": false,
		"event":   rec.LastEvent,
		"result":  rec.Result,
		"error":   rec.Error,
	})
}

func (h *Handlers) Clear(c *fiber.Ctx) error {
	n := h.queue.Clear()
	return c.JSON(fiber.Map{
		"success":      true,
		"message":      "Queue cleared",
		"clearedCount": n,
	})
}

func (h *Handlers) History(c *fiber.Ctx) error {
	records, err := h.history.History(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": records})
}

func (h *Handlers) LifetimeStats(c *fiber.Ctx) error {
	st, err := h.history.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(st)
}
