package cardsrv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/cards"
	"github.com/Abraxas-365/flashmoji/pkg/jobx"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
)

// ImageQueue is the part of *jobx.Queue the image service needs
type ImageQueue interface {
	Enqueue(entryID kernel.EntryID, word, prompt string) (string, error)
	EnqueueAndAwait(ctx context.Context, entryID kernel.EntryID, word, prompt string) (string, jobx.Result, error)
	Lookup(entryID kernel.EntryID) (jobx.Job, bool)
}

// QueuedImage reports what happened to a queue request
type QueuedImage struct {
	JobID  string         `json:"queueId"`
	Status string         `json:"status"`
	Result *jobx.Result   `json:"result,omitempty"`
	Entry  kernel.EntryID `json:"entryId"`
}

// ImageService hands stored entries to the generation queue
type ImageService struct {
	repo         cards.Repository
	queue        ImageQueue
	awaitTimeout time.Duration
}

func NewImageService(repo cards.Repository, queue ImageQueue, awaitTimeout time.Duration) *ImageService {
	if awaitTimeout <= 0 {
		awaitTimeout = 5 * time.Minute
	}
	return &ImageService{repo: repo, queue: queue, awaitTimeout: awaitTimeout}
}

// QueueEntry marks the entry queued and enqueues it. With wait set the call
// blocks until the job finishes or the await timeout passes; the job keeps
// running after a timeout.
func (s *ImageService) QueueEntry(ctx context.Context, id kernel.EntryID, wait bool) (QueuedImage, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return QueuedImage{}, err
	}
	if !entry.HasPrompt() {
		return QueuedImage{}, cards.NewError(cards.ErrMissingPrompt).WithDetail("entry_id", id)
	}

	if err := s.markQueued(ctx, entry); err != nil {
		return QueuedImage{}, err
	}

	if !wait {
		jobID, err := s.queue.Enqueue(id, entry.OriginalText, entry.Prompt)
		if err != nil {
			return QueuedImage{}, err
		}
		return QueuedImage{JobID: jobID, Status: string(jobx.JobStatusPending), Entry: id}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.awaitTimeout)
	defer cancel()

	jobID, res, err := s.queue.EnqueueAndAwait(ctx, id, entry.OriginalText, entry.Prompt)
	if err != nil {
		return QueuedImage{JobID: jobID, Entry: id}, err
	}
	return QueuedImage{JobID: jobID, Status: string(jobx.JobStatusCompleted), Result: &res, Entry: id}, nil
}

// markQueued records the queued status unless the queue already tracks the
// entry. A tracked job owns the entry's status until it is removed, and a
// finishing job would never overwrite a late "queued".
func (s *ImageService) markQueued(ctx context.Context, entry *cards.WordEntry) error {
	if entry.ImageStatus == cards.ImageStatusQueued || entry.ImageStatus == cards.ImageStatusProcessing {
		return nil
	}
	if _, tracked := s.queue.Lookup(entry.ID); tracked {
		return nil
	}
	return s.repo.UpdateImage(ctx, entry.ID, cards.ImageUpdate{ImageStatus: cards.ImageStatusQueued})
}

// MaxImageBatch bounds QueueBatch
const MaxImageBatch = 200

// BatchImageRequest is one entry of a batch enqueue. The prompt and word
// come from the caller, not the entry store.
type BatchImageRequest struct {
	EntryID     kernel.EntryID `json:"entryId"`
	Prompt      string         `json:"prompt"`
	EnglishWord string         `json:"englishWord"`
}

// BatchItemError explains why one batch entry was not queued
type BatchItemError struct {
	EntryID kernel.EntryID `json:"entryId"`
	Error   string         `json:"error"`
}

// BatchQueueResult summarizes a batch enqueue
type BatchQueueResult struct {
	Success     bool             `json:"success"`
	Message     string           `json:"message"`
	QueuedCount int              `json:"queuedCount"`
	ErrorCount  int              `json:"errorCount"`
	Errors      []BatchItemError `json:"errors,omitempty"`
}

// QueueBatch enqueues every valid entry without waiting. Invalid entries
// and enqueue failures are reported per entry; Success is false only when
// nothing was queued.
func (s *ImageService) QueueBatch(ctx context.Context, reqs []BatchImageRequest) (BatchQueueResult, error) {
	if len(reqs) == 0 || len(reqs) > MaxImageBatch {
		return BatchQueueResult{}, cards.NewError(cards.ErrBatchTooLarge).
			WithDetail("max", MaxImageBatch).
			WithDetail("count", len(reqs))
	}

	var out BatchQueueResult
	reject := func(id kernel.EntryID, msg string) {
		out.ErrorCount++
		out.Errors = append(out.Errors, BatchItemError{EntryID: id, Error: msg})
	}

	for _, r := range reqs {
		if r.EntryID.IsZero() || strings.TrimSpace(r.Prompt) == "" || strings.TrimSpace(r.EnglishWord) == "" {
			reject(r.EntryID, "missing entryId, prompt or englishWord")
			continue
		}

		if _, tracked := s.queue.Lookup(r.EntryID); !tracked {
			// the job still runs when the entry is unknown to the store
			err := s.repo.UpdateImage(ctx, r.EntryID, cards.ImageUpdate{ImageStatus: cards.ImageStatusQueued})
			if err != nil {
				logx.WithField("entry_id", r.EntryID).WithError(err).Warn("Failed to mark batch entry queued")
			}
		}

		if _, err := s.queue.Enqueue(r.EntryID, r.EnglishWord, r.Prompt); err != nil {
			reject(r.EntryID, err.Error())
			continue
		}
		out.QueuedCount++
	}

	out.Success = out.QueuedCount > 0
	switch {
	case !out.Success:
		out.Message = fmt.Sprintf("Failed to queue all %d images.", out.ErrorCount)
	case out.ErrorCount > 0:
		out.Message = fmt.Sprintf("Successfully queued %d images for generation. Failed to queue %d images.", out.QueuedCount, out.ErrorCount)
	default:
		out.Message = fmt.Sprintf("Successfully queued %d images for generation.", out.QueuedCount)
	}

	logx.WithFields(logx.Fields{
		"queued": out.QueuedCount,
		"failed": out.ErrorCount,
	}).Info("Batch image enqueue finished")
	return out, nil
}

// Resume re-enqueues entries left queued or processing by a previous
// process. Queue state lives in memory, so these would otherwise stay stuck.
func (s *ImageService) Resume(ctx context.Context) (int, error) {
	// collect first; enqueued jobs change statuses under the paging
	var stale []cards.WordEntry
	for _, status := range []cards.ImageStatus{cards.ImageStatusProcessing, cards.ImageStatusQueued} {
		opts := kernel.PaginationOptions{Page: 1, PageSize: 200}
		for {
			page, err := s.repo.List(ctx, cards.ListFilter{ImageStatus: status}, opts)
			if err != nil {
				return 0, err
			}
			stale = append(stale, page.Items...)
			if !page.HasNext() {
				break
			}
			opts.Page++
		}
	}

	resumed := 0
	for _, e := range stale {
		if !e.HasPrompt() {
			continue
		}
		if _, err := s.queue.Enqueue(e.ID, e.OriginalText, e.Prompt); err != nil {
			return resumed, err
		}
		resumed++
	}

	if resumed > 0 {
		logx.WithField("count", resumed).Info("Re-enqueued unfinished image jobs")
	}
	return resumed, nil
}
