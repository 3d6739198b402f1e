// Package jobx is the in-memory image generation queue. A single loop
// goroutine processes one job at a time against a rate-limited provider,
// retries failures with a linear backoff and notifies subscribers when a
// job reaches a terminal state. Queue state is not persisted; a restart
// starts empty.
package jobx

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/asyncx"
	"github.com/Abraxas-365/flashmoji/pkg/cards"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
	"github.com/google/uuid"
)

type loopState int

// errAbandoned stops an attempt whose job was dropped by Clear or Close
var errAbandoned = errors.New("jobx: job abandoned")

const (
	loopWork loopState = iota
	loopIdle
	loopStop
)

// Queue owns the ordered job collection and its processing loop. Construct
// one per process and share it.
type Queue struct {
	gen   Generator
	pub   Publisher
	store EntryStore
	opts  Options

	mu        sync.Mutex
	jobs      []*Job
	subs      map[string][]*Subscription
	running   bool
	epoch     uint64
	closed    bool
	completed int
	errors    int

	ctx    context.Context
	cancel context.CancelFunc
	loops  sync.WaitGroup
	events *dispatcher
}

// New creates a queue. store may be nil, in which case final states are
// only reported to subscribers and sinks.
func New(gen Generator, pub Publisher, store EntryStore, options ...Option) *Queue {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		gen:    gen,
		pub:    pub,
		store:  store,
		opts:   opts,
		subs:   make(map[string][]*Subscription),
		ctx:    ctx,
		cancel: cancel,
		events: newDispatcher(opts.Sinks, opts.PersistTimeout),
	}
}

// Enqueue adds a job for entryID. If the entry already has a job in the
// queue, in any state, its id is returned and nothing changes.
func (q *Queue) Enqueue(entryID kernel.EntryID, word, prompt string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.enqueueLocked(entryID, word, prompt)
	if err != nil {
		return "", err
	}
	return job.ID, nil
}

func (q *Queue) enqueueLocked(entryID kernel.EntryID, word, prompt string) (*Job, error) {
	if q.closed {
		return nil, jobxErrors.New(ErrQueueClosed)
	}
	if entryID.IsZero() {
		return nil, invalidJob("entry id is required")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, invalidJob("prompt is required").WithDetail("entry_id", entryID)
	}

	for _, j := range q.jobs {
		if j.EntryID == entryID {
			logx.WithFields(logx.Fields{
				"job_id":   j.ID,
				"entry_id": entryID,
				"status":   j.Status,
			}).Debug("jobx: entry already queued")
			return j, nil
		}
	}

	now := q.opts.Now()
	job := &Job{
		ID:        uuid.NewString(),
		EntryID:   entryID,
		Word:      strings.TrimSpace(word),
		Prompt:    prompt,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.jobs = append(q.jobs, job)

	logx.WithFields(logx.Fields{
		"job_id":   job.ID,
		"entry_id": entryID,
		"word":     job.Word,
		"total":    len(q.jobs),
	}).Info("jobx: job enqueued")

	q.emitLocked(Event{Type: EventEnqueued, Job: *job})
	q.startLocked()
	return job, nil
}

func (q *Queue) startLocked() {
	if q.running {
		return
	}
	q.running = true
	q.loops.Add(1)
	go q.run(q.epoch)
}

// run is the processing loop. It exits when the queue drains, when Clear
// or Close bumps the epoch, or when the queue context ends.
func (q *Queue) run(epoch uint64) {
	defer q.loops.Done()
	logx.Debug("jobx: processing loop started")

	for {
		job, state := q.next(epoch)
		switch state {
		case loopStop:
			logx.Debug("jobx: processing loop finished")
			return
		case loopIdle:
			if err := asyncx.Sleep(q.ctx, q.opts.IdleInterval); err != nil {
				return
			}
			continue
		}

		delay, ok := q.process(epoch, job)
		if !ok {
			return
		}
		if err := asyncx.Sleep(q.ctx, delay); err != nil {
			return
		}
	}
}

// next claims the first pending job. Retried jobs keep their position, so
// they are picked before jobs enqueued after them.
func (q *Queue) next(epoch uint64) (*Job, loopState) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.epoch != epoch || q.closed {
		return nil, loopStop
	}
	if len(q.jobs) == 0 {
		q.running = false
		return nil, loopStop
	}
	for _, j := range q.jobs {
		if j.Status == JobStatusPending {
			j.Status = JobStatusProcessing
			j.UpdatedAt = q.opts.Now()
			q.emitLocked(Event{Type: EventProcessing, Job: *j})
			return j, loopWork
		}
	}
	return nil, loopIdle
}

// process runs one attempt and settles it. It returns the delay before the
// next pickup, or false when the job no longer belongs to this loop.
func (q *Queue) process(epoch uint64, job *Job) (time.Duration, bool) {
	fields := logx.Fields{
		"job_id":   job.ID,
		"entry_id": job.EntryID,
		"word":     job.Word,
	}
	logx.WithFields(fields).Info("jobx: processing job")

	if q.opts.MarkProcessing {
		q.persist(job.EntryID, cards.ImageUpdate{ImageStatus: cards.ImageStatusProcessing}, fields)
	}

	res, err := q.attempt(epoch, job)
	if errors.Is(err, errAbandoned) {
		logx.WithFields(fields).Warn("jobx: discarding result of abandoned job")
		return 0, false
	}
	if err != nil {
		return q.fail(epoch, job, err, fields)
	}
	return q.complete(epoch, job, res, fields)
}

func (q *Queue) attempt(epoch uint64, job *Job) (Result, error) {
	ctx := q.ctx
	if q.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.AttemptTimeout)
		defer cancel()
	}

	handle, err := q.gen.Submit(ctx, job.Prompt)
	if err != nil {
		return Result{}, err
	}
	q.setHandle(epoch, job, handle)

	originalURL, err := q.gen.AwaitResult(ctx, handle)
	if err != nil {
		return Result{}, err
	}

	// a cleared job must not overwrite the image of its successor
	if !q.owns(epoch, job) {
		return Result{}, errAbandoned
	}

	imageURL, err := q.pub.Publish(ctx, originalURL, job.EntryID)
	if err != nil {
		return Result{}, err
	}

	return Result{
		JobID:          job.ID,
		EntryID:        job.EntryID,
		ImageURL:       imageURL,
		OriginalURL:    originalURL,
		ProviderHandle: handle,
		GeneratedAt:    q.opts.Now(),
	}, nil
}

func (q *Queue) setHandle(epoch uint64, job *Job, handle string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ownsLocked(epoch, job) {
		job.ProviderHandle = handle
		job.UpdatedAt = q.opts.Now()
	}
}

func (q *Queue) complete(epoch uint64, job *Job, res Result, fields logx.Fields) (time.Duration, bool) {
	q.mu.Lock()
	if !q.ownsLocked(epoch, job) {
		q.mu.Unlock()
		logx.WithFields(fields).Warn("jobx: discarding result of abandoned job")
		return 0, false
	}
	job.Status = JobStatusCompleted
	job.UpdatedAt = q.opts.Now()
	q.mu.Unlock()

	generatedAt := res.GeneratedAt
	q.persist(job.EntryID, cards.ImageUpdate{
		ImageStatus:    cards.ImageStatusCompleted,
		ImageURL:       res.ImageURL,
		ProviderHandle: res.ProviderHandle,
		GeneratedAt:    &generatedAt,
	}, fields)

	q.mu.Lock()
	if !q.ownsLocked(epoch, job) {
		q.mu.Unlock()
		return 0, false
	}
	q.removeLocked(job)
	q.completed++
	subs := q.takeSubsLocked(job.ID)
	q.emitLocked(Event{Type: EventCompleted, Job: *job, Result: &res})
	remaining := len(q.jobs)
	q.mu.Unlock()

	logx.WithFields(fields).WithFields(logx.Fields{
		"image_url": res.ImageURL,
		"remaining": remaining,
	}).Info("jobx: job completed")

	for _, s := range subs {
		s.complete(res)
	}
	return q.opts.InterJobDelay, true
}

func (q *Queue) fail(epoch uint64, job *Job, cause error, fields logx.Fields) (time.Duration, bool) {
	q.mu.Lock()
	if !q.ownsLocked(epoch, job) {
		q.mu.Unlock()
		logx.WithFields(fields).WithError(cause).Warn("jobx: discarding failure of abandoned job")
		return 0, false
	}
	job.Retries++
	job.LastError = failureMessage(cause)
	job.UpdatedAt = q.opts.Now()
	retries := job.Retries

	if retries < q.opts.MaxRetries {
		job.Status = JobStatusPending
		q.emitLocked(Event{Type: EventRetrying, Job: *job, Error: job.LastError})
		q.mu.Unlock()

		backoff := q.opts.RetryBackoff * time.Duration(retries)
		logx.WithFields(fields).WithError(cause).WithFields(logx.Fields{
			"attempt": retries,
			"max":     q.opts.MaxRetries,
			"backoff": backoff.String(),
		}).Warn("jobx: attempt failed, retrying")
		return backoff, true
	}

	job.Status = JobStatusError
	handle := job.ProviderHandle
	q.mu.Unlock()

	logx.WithFields(fields).WithError(cause).WithField("attempts", retries).Error("jobx: max retries reached")

	q.persist(job.EntryID, cards.ImageUpdate{
		ImageStatus:    cards.ImageStatusError,
		ProviderHandle: handle,
	}, fields)

	q.mu.Lock()
	if !q.ownsLocked(epoch, job) {
		q.mu.Unlock()
		return 0, false
	}
	q.removeLocked(job)
	q.errors++
	subs := q.takeSubsLocked(job.ID)
	failure := generationFailed(job, cause)
	q.emitLocked(Event{Type: EventFailed, Job: *job, Error: failure.Message})
	q.mu.Unlock()

	for _, s := range subs {
		s.fail(failure)
	}
	return q.opts.InterJobDelay, true
}

// persist writes entry state. Failures are logged and never change the
// job's outcome.
func (q *Queue) persist(entryID kernel.EntryID, update cards.ImageUpdate, fields logx.Fields) {
	if q.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(q.ctx), q.opts.PersistTimeout)
	defer cancel()

	if err := q.store.UpdateImage(ctx, entryID, update); err != nil {
		logx.WithFields(fields).WithError(err).WithField("image_status", update.ImageStatus).
			Warn("jobx: failed to persist image state")
	}
}

func (q *Queue) owns(epoch uint64, job *Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ownsLocked(epoch, job)
}

func (q *Queue) ownsLocked(epoch uint64, job *Job) bool {
	if q.epoch != epoch {
		return false
	}
	for _, j := range q.jobs {
		if j == job {
			return true
		}
	}
	return false
}

func (q *Queue) removeLocked(job *Job) {
	for i, j := range q.jobs {
		if j == job {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return
		}
	}
}

// Clear drops every tracked job and stops the loop immediately. In-flight
// provider calls are not cancelled; their results are discarded. Waiting
// subscribers receive ErrQueueCleared. Returns the number of removed jobs.
func (q *Queue) Clear() int {
	q.mu.Lock()
	n := len(q.jobs)
	q.jobs = nil
	q.epoch++
	q.running = false
	subs := q.takeAllSubsLocked()
	q.emitLocked(Event{Type: EventCleared, Cleared: n})
	q.mu.Unlock()

	logx.WithFields(logx.Fields{
		"cleared":     n,
		"subscribers": len(subs),
	}).Warn("jobx: queue cleared")

	for _, s := range subs {
		s.fail(jobxErrors.New(ErrQueueCleared).WithDetail("job_id", s.jobID))
	}
	return n
}

// Status returns a snapshot of the queue counters.
func (q *Queue) Status() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Stats{
		Total:        len(q.jobs),
		Completed:    q.completed,
		Errors:       q.errors,
		IsProcessing: q.running,
	}
	for _, j := range q.jobs {
		switch j.Status {
		case JobStatusPending:
			st.Pending++
		case JobStatusProcessing:
			st.Processing++
		}
	}
	return st
}

// Items returns copies of the tracked jobs in queue order.
func (q *Queue) Items() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]Job, len(q.jobs))
	for i, j := range q.jobs {
		items[i] = *j
	}
	return items
}

// Get returns a copy of a tracked job.
func (q *Queue) Get(jobID string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if j := q.findLocked(jobID); j != nil {
		return *j, true
	}
	return Job{}, false
}

// Lookup returns a copy of the job tracked for entryID, in any state.
func (q *Queue) Lookup(entryID kernel.EntryID) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, j := range q.jobs {
		if j.EntryID == entryID {
			return *j, true
		}
	}
	return Job{}, false
}

func (q *Queue) findLocked(jobID string) *Job {
	for _, j := range q.jobs {
		if j.ID == jobID {
			return j
		}
	}
	return nil
}

// Close stops the loop and the event dispatcher. Outstanding subscribers
// receive ErrQueueClosed. Close is safe to call more than once.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.running = false
	q.epoch++
	subs := q.takeAllSubsLocked()
	pending := len(q.jobs)
	q.mu.Unlock()

	q.cancel()

	done := make(chan struct{})
	go func() {
		q.loops.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(q.opts.PersistTimeout):
		logx.Warn("jobx: processing loop did not stop in time")
	}

	for _, s := range subs {
		s.fail(jobxErrors.New(ErrQueueClosed).WithDetail("job_id", s.jobID))
	}
	q.events.close()

	logx.WithField("dropped", pending).Info("jobx: queue closed")
	return nil
}

func (q *Queue) emitLocked(ev Event) {
	if q.closed {
		return
	}
	ev.At = q.opts.Now()
	q.events.emit(ev)
}
