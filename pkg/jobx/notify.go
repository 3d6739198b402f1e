package jobx

import (
	"context"
	"errors"
	"sync"

	"github.com/Abraxas-365/flashmoji/pkg/kernel"
)

// Subscription is a single-shot registration for one job's outcome. Exactly
// one of its callbacks runs, at most once, when the job reaches a terminal
// state or is dropped by Clear/Close.
type Subscription struct {
	q          *Queue
	jobID      string
	onComplete func(Result)
	onError    func(error)
	once       sync.Once
}

// JobID returns the job this subscription watches
func (s *Subscription) JobID() string { return s.jobID }

// Cancel unregisters the subscription. Neither callback runs after Cancel
// returns unless it had already started.
func (s *Subscription) Cancel() {
	s.q.mu.Lock()
	defer s.q.mu.Unlock()

	list := s.q.subs[s.jobID]
	for i, other := range list {
		if other == s {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.q.subs, s.jobID)
	} else {
		s.q.subs[s.jobID] = list
	}
}

func (s *Subscription) complete(res Result) {
	s.once.Do(func() {
		if s.onComplete != nil {
			s.onComplete(res)
		}
	})
}

func (s *Subscription) fail(err error) {
	s.once.Do(func() {
		if s.onError != nil {
			s.onError(err)
		}
	})
}

// Subscribe registers callbacks for a tracked job. Several subscriptions per
// job are allowed. Callbacks run on the queue's loop goroutine and must not
// block.
func (q *Queue) Subscribe(jobID string, onComplete func(Result), onError func(error)) (*Subscription, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, jobxErrors.New(ErrQueueClosed)
	}
	if q.findLocked(jobID) == nil {
		return nil, NotFound(jobID)
	}
	return q.subscribeLocked(jobID, onComplete, onError), nil
}

func (q *Queue) subscribeLocked(jobID string, onComplete func(Result), onError func(error)) *Subscription {
	s := &Subscription{
		q:          q,
		jobID:      jobID,
		onComplete: onComplete,
		onError:    onError,
	}
	q.subs[jobID] = append(q.subs[jobID], s)
	return s
}

func (q *Queue) takeSubsLocked(jobID string) []*Subscription {
	subs := q.subs[jobID]
	delete(q.subs, jobID)
	return subs
}

func (q *Queue) takeAllSubsLocked() []*Subscription {
	var all []*Subscription
	for id, list := range q.subs {
		all = append(all, list...)
		delete(q.subs, id)
	}
	return all
}

type outcome struct {
	res Result
	err error
}

func newWaiter() (chan outcome, func(Result), func(error)) {
	ch := make(chan outcome, 1)
	return ch,
		func(r Result) { ch <- outcome{res: r} },
		func(err error) { ch <- outcome{err: err} }
}

// Await blocks until the job finishes or ctx ends. On ctx end the
// subscription is cancelled and ErrAwaitTimeout is returned; the job itself
// keeps running.
func (q *Queue) Await(ctx context.Context, jobID string) (Result, error) {
	ch, onComplete, onError := newWaiter()
	sub, err := q.Subscribe(jobID, onComplete, onError)
	if err != nil {
		return Result{}, err
	}
	return wait(ctx, sub, ch)
}

// EnqueueAndAwait enqueues and subscribes atomically, then waits like Await.
// The job id is returned even when waiting fails.
func (q *Queue) EnqueueAndAwait(ctx context.Context, entryID kernel.EntryID, word, prompt string) (string, Result, error) {
	ch, onComplete, onError := newWaiter()

	q.mu.Lock()
	job, err := q.enqueueLocked(entryID, word, prompt)
	if err != nil {
		q.mu.Unlock()
		return "", Result{}, err
	}
	sub := q.subscribeLocked(job.ID, onComplete, onError)
	q.mu.Unlock()

	res, err := wait(ctx, sub, ch)
	return job.ID, res, err
}

func wait(ctx context.Context, sub *Subscription, ch <-chan outcome) (Result, error) {
	select {
	case o := <-ch:
		return o.res, o.err
	case <-ctx.Done():
		sub.Cancel()
		// the outcome may have landed while cancelling
		select {
		case o := <-ch:
			return o.res, o.err
		default:
		}
		e := jobxErrors.NewWithCause(ErrAwaitTimeout, ctx.Err()).WithDetail("job_id", sub.jobID)
		if errors.Is(ctx.Err(), context.Canceled) {
			e.WithDetail("reason", "caller cancelled")
		}
		return Result{}, e
	}
}
