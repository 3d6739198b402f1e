package jobx_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/flashmoji/pkg/cards"
	"github.com/Abraxas-365/flashmoji/pkg/errx"
	"github.com/Abraxas-365/flashmoji/pkg/imagex"
	"github.com/Abraxas-365/flashmoji/pkg/jobx"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
)

// stubGenerator hands out handles "h-<n>" and resolves them through await.
type stubGenerator struct {
	mu       sync.Mutex
	prompts  []string
	submits  atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	submitErr func(attempt int32, prompt string) error
	await     func(ctx context.Context, handle string) (string, error)
}

func (g *stubGenerator) Submit(_ context.Context, prompt string) (string, error) {
	n := g.submits.Add(1)
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	if g.submitErr != nil {
		if err := g.submitErr(n, prompt); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("h-%d", n), nil
}

func (g *stubGenerator) AwaitResult(ctx context.Context, handle string) (string, error) {
	cur := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		seen := g.maxSeen.Load()
		if cur <= seen || g.maxSeen.CompareAndSwap(seen, cur) {
			break
		}
	}
	if g.await != nil {
		return g.await(ctx, handle)
	}
	return "https://p/x.png", nil
}

func (g *stubGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

type stubPublisher struct {
	calls atomic.Int32
	err   error
}

func (p *stubPublisher) Publish(_ context.Context, _ string, entryID kernel.EntryID) (string, error) {
	p.calls.Add(1)
	if p.err != nil {
		return "", p.err
	}
	return fmt.Sprintf("https://cdn/%d.png", entryID), nil
}

type stubStore struct {
	mu      sync.Mutex
	updates map[kernel.EntryID][]cards.ImageUpdate
	err     error
}

func (s *stubStore) UpdateImage(_ context.Context, id kernel.EntryID, u cards.ImageUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updates == nil {
		s.updates = map[kernel.EntryID][]cards.ImageUpdate{}
	}
	s.updates[id] = append(s.updates[id], u)
	return s.err
}

func (s *stubStore) Updates(id kernel.EntryID) []cards.ImageUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cards.ImageUpdate(nil), s.updates[id]...)
}

func fastOptions(extra ...jobx.Option) []jobx.Option {
	return append([]jobx.Option{
		jobx.WithRetryBackoff(0),
		jobx.WithInterJobDelay(0),
		jobx.WithIdleInterval(time.Millisecond),
		jobx.WithPersistTimeout(time.Second),
	}, extra...)
}

func newQueue(t *testing.T, gen jobx.Generator, pub jobx.Publisher, store jobx.EntryStore, opts ...jobx.Option) *jobx.Queue {
	t.Helper()
	q := jobx.New(gen, pub, store, fastOptions(opts...)...)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func awaitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// gate blocks AwaitResult until released
type gate struct {
	ch      chan struct{}
	once    sync.Once
	entered chan struct{}
}

func newGate() *gate {
	return &gate{ch: make(chan struct{}), entered: make(chan struct{}, 64)}
}

func (g *gate) await(ctx context.Context, _ string) (string, error) {
	g.entered <- struct{}{}
	select {
	case <-g.ch:
		return "https://p/x.png", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gate) release() { g.once.Do(func() { close(g.ch) }) }

func (g *gate) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("generator was never called")
	}
}

func TestQueue_CompletesAndNotifies(t *testing.T) {
	gen := &stubGenerator{}
	pub := &stubPublisher{}
	store := &stubStore{}
	q := newQueue(t, gen, pub, store)

	jobID, res, err := q.EnqueueAndAwait(awaitCtx(t), 42, "happy", "smiling face")
	require.NoError(t, err)

	assert.NotEmpty(t, jobID)
	assert.Equal(t, jobID, res.JobID)
	assert.Equal(t, kernel.EntryID(42), res.EntryID)
	assert.Equal(t, "https://cdn/42.png", res.ImageURL)
	assert.Equal(t, "https://p/x.png", res.OriginalURL)
	assert.Equal(t, "h-1", res.ProviderHandle)
	assert.False(t, res.GeneratedAt.IsZero())
	assert.Equal(t, []string{"smiling face"}, gen.Prompts())

	st := q.Status()
	assert.Equal(t, 1, st.Completed)
	assert.Equal(t, 0, st.Errors)
	assert.Equal(t, 0, st.Total)
	assert.Empty(t, q.Items())

	updates := store.Updates(42)
	require.Len(t, updates, 1)
	assert.Equal(t, cards.ImageStatusCompleted, updates[0].ImageStatus)
	assert.Equal(t, "https://cdn/42.png", updates[0].ImageURL)
	assert.Equal(t, "h-1", updates[0].ProviderHandle)
	require.NotNil(t, updates[0].GeneratedAt)
	assert.True(t, res.GeneratedAt.Equal(*updates[0].GeneratedAt))
}

func TestQueue_MarkProcessing(t *testing.T) {
	store := &stubStore{}
	q := newQueue(t, &stubGenerator{}, &stubPublisher{}, store, jobx.WithMarkProcessing())

	_, _, err := q.EnqueueAndAwait(awaitCtx(t), 7, "sad", "crying face")
	require.NoError(t, err)

	updates := store.Updates(7)
	require.Len(t, updates, 2)
	assert.Equal(t, cards.ImageStatusProcessing, updates[0].ImageStatus)
	assert.Empty(t, updates[0].ImageURL)
	assert.Equal(t, cards.ImageStatusCompleted, updates[1].ImageStatus)
}

func TestQueue_RetriesThenErrors(t *testing.T) {
	gen := &stubGenerator{
		submitErr: func(int32, string) error {
			return imagex.SubmissionError(errors.New("invalid token"))
		},
	}
	store := &stubStore{}
	q := newQueue(t, gen, &stubPublisher{}, store)

	_, _, err := q.EnqueueAndAwait(awaitCtx(t), 42, "happy", "smiling face")
	require.Error(t, err)

	assert.True(t, errx.IsCode(err, jobx.ErrGenerationFailed))
	assert.Contains(t, err.Error(), "invalid token")
	assert.Equal(t, int32(3), gen.submits.Load())

	st := q.Status()
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, 0, st.Completed)
	assert.Equal(t, 0, st.Total)

	updates := store.Updates(42)
	require.Len(t, updates, 1)
	assert.Equal(t, cards.ImageStatusError, updates[0].ImageStatus)
	assert.Empty(t, updates[0].ImageURL)
}

func TestQueue_MaxRetriesOption(t *testing.T) {
	gen := &stubGenerator{
		await: func(context.Context, string) (string, error) {
			return "", imagex.ExecutionFailure("nsfw content detected")
		},
	}
	q := newQueue(t, gen, &stubPublisher{}, nil, jobx.WithMaxRetries(5))

	_, _, err := q.EnqueueAndAwait(awaitCtx(t), 7, "cat", "cat face")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nsfw content detected")
	assert.Equal(t, int32(5), gen.submits.Load())
}

func TestQueue_PublishFailureIsRetried(t *testing.T) {
	pub := &stubPublisher{err: errors.New("bucket unavailable")}
	q := newQueue(t, &stubGenerator{}, pub, nil)

	_, _, err := q.EnqueueAndAwait(awaitCtx(t), 3, "dog", "dog face")
	require.Error(t, err)
	assert.Equal(t, int32(3), pub.calls.Load())
	assert.Equal(t, 1, q.Status().Errors)
}

func TestQueue_RetryBackoffGrowsWithAttempts(t *testing.T) {
	gen := &stubGenerator{
		submitErr: func(int32, string) error { return errors.New("rate limited") },
	}
	q := newQueue(t, gen, &stubPublisher{}, nil, jobx.WithRetryBackoff(20*time.Millisecond))

	start := time.Now()
	_, _, err := q.EnqueueAndAwait(awaitCtx(t), 1, "a", "b")
	require.Error(t, err)

	// 20ms after the first failure, 40ms after the second, none after the last
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestQueue_IdempotentEnqueue(t *testing.T) {
	g := newGate()
	gen := &stubGenerator{await: g.await}
	q := newQueue(t, gen, &stubPublisher{}, nil)

	id1, err := q.Enqueue(42, "happy", "smiling face")
	require.NoError(t, err)
	g.waitEntered(t)

	id2, err := q.Enqueue(42, "happy", "a different prompt")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	items := q.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "smiling face", items[0].Prompt)
	assert.Equal(t, jobx.JobStatusProcessing, items[0].Status)
	assert.Equal(t, "h-1", items[0].ProviderHandle)

	g.release()
	res, err := q.Await(awaitCtx(t), id1)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/42.png", res.ImageURL)
	assert.Equal(t, int32(1), gen.submits.Load())
}

func TestQueue_ProcessesOneJobAtATime(t *testing.T) {
	gen := &stubGenerator{
		await: func(context.Context, string) (string, error) {
			time.Sleep(5 * time.Millisecond)
			return "https://p/x.png", nil
		},
	}
	q := newQueue(t, gen, &stubPublisher{}, nil)

	var sampled atomic.Int32
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if p := q.Status().Processing; int32(p) > sampled.Load() {
				sampled.Store(int32(p))
			}
			time.Sleep(time.Millisecond)
		}
	}()

	ids := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		id, err := q.Enqueue(kernel.EntryID(i), fmt.Sprintf("w%d", i), fmt.Sprintf("p%d", i))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		if _, err := q.Await(awaitCtx(t), id); err != nil {
			// already finished before we subscribed
			require.True(t, errx.IsCode(err, jobx.ErrJobNotFound), err)
		}
	}
	require.Eventually(t, func() bool { return q.Status().Completed == 5 }, 5*time.Second, 5*time.Millisecond)
	close(stop)
	wg.Wait()

	assert.Equal(t, int32(1), gen.maxSeen.Load())
	assert.LessOrEqual(t, sampled.Load(), int32(1))
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, gen.Prompts())
}

func TestQueue_RetriedJobKeepsPosition(t *testing.T) {
	g := newGate()
	gen := &stubGenerator{
		submitErr: func(n int32, _ string) error {
			if n == 1 {
				return errors.New("transient")
			}
			return nil
		},
	}
	gen.await = func(ctx context.Context, h string) (string, error) {
		if h == "h-2" {
			return g.await(ctx, h)
		}
		return "https://p/x.png", nil
	}
	q := newQueue(t, gen, &stubPublisher{}, nil, jobx.WithRetryBackoff(30*time.Millisecond))

	first, err := q.Enqueue(1, "first", "one")
	require.NoError(t, err)
	// the second job arrives while the first is backing off
	require.Eventually(t, func() bool { return gen.submits.Load() == 1 }, time.Second, time.Millisecond)
	second, err := q.Enqueue(2, "second", "two")
	require.NoError(t, err)

	g.waitEntered(t)
	g.release()

	_, err = q.Await(awaitCtx(t), second)
	require.NoError(t, err)
	_, ok := q.Get(first)
	assert.False(t, ok)
	assert.Equal(t, []string{"one", "one", "two"}, gen.Prompts())
}

func TestQueue_TerminalJobIsGoneWhenNotified(t *testing.T) {
	g := newGate()
	q := newQueue(t, &stubGenerator{await: g.await}, &stubPublisher{}, nil)

	id, err := q.Enqueue(9, "sun", "yellow sun")
	require.NoError(t, err)

	present := make(chan bool, 1)
	_, err = q.Subscribe(id, func(jobx.Result) {
		_, ok := q.Get(id)
		present <- ok
	}, func(error) { present <- true })
	require.NoError(t, err)

	g.release()
	select {
	case ok := <-present:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification")
	}
}

func TestQueue_FanOutSubscriptions(t *testing.T) {
	g := newGate()
	q := newQueue(t, &stubGenerator{await: g.await}, &stubPublisher{}, nil)

	id, err := q.Enqueue(5, "tree", "green tree")
	require.NoError(t, err)

	var completions atomic.Int32
	for range 3 {
		_, err := q.Subscribe(id, func(jobx.Result) { completions.Add(1) }, nil)
		require.NoError(t, err)
	}
	cancelled, err := q.Subscribe(id, func(jobx.Result) { completions.Add(100) }, nil)
	require.NoError(t, err)
	cancelled.Cancel()

	g.release()
	_, err = q.Await(awaitCtx(t), id)
	if err != nil {
		require.True(t, errx.IsCode(err, jobx.ErrJobNotFound), err)
	}
	require.Eventually(t, func() bool { return q.Status().Completed == 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, int32(3), completions.Load())
}

func TestQueue_PersistenceFailureStillNotifies(t *testing.T) {
	store := &stubStore{err: cards.PersistFailed(42, errors.New("connection refused"))}
	q := newQueue(t, &stubGenerator{}, &stubPublisher{}, store)

	_, res, err := q.EnqueueAndAwait(awaitCtx(t), 42, "happy", "smiling face")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/42.png", res.ImageURL)
	assert.Len(t, store.Updates(42), 1)
	assert.Equal(t, 1, q.Status().Completed)
}

func TestQueue_Clear(t *testing.T) {
	g := newGate()
	gen := &stubGenerator{await: g.await}
	pub := &stubPublisher{}
	q := newQueue(t, gen, pub, nil)

	var ids []string
	for i := 1; i <= 3; i++ {
		id, err := q.Enqueue(kernel.EntryID(i), "w", "p")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	g.waitEntered(t)

	errCh := make(chan error, 1)
	_, err := q.Subscribe(ids[0], nil, func(err error) { errCh <- err })
	require.NoError(t, err)

	assert.Equal(t, 3, q.Clear())

	st := q.Status()
	assert.Equal(t, 0, st.Total)
	assert.False(t, st.IsProcessing)
	assert.Empty(t, q.Items())

	select {
	case err := <-errCh:
		assert.True(t, errx.IsCode(err, jobx.ErrQueueCleared))
	case <-time.After(time.Second):
		t.Fatal("subscriber not notified on clear")
	}

	// the abandoned call finishes but its result goes nowhere
	g.release()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, q.Status().Completed)

	// a fresh enqueue starts a new loop
	_, res, err := q.EnqueueAndAwait(awaitCtx(t), 1, "w", "p")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/1.png", res.ImageURL)
	assert.Equal(t, 1, q.Status().Completed)
	assert.Equal(t, 0, q.Clear())
}

func TestQueue_ClearedJobIsNotPublished(t *testing.T) {
	g := newGate()
	gen := &stubGenerator{await: g.await}
	pub := &stubPublisher{}
	store := &stubStore{}
	q := newQueue(t, gen, pub, store)

	_, err := q.Enqueue(9, "storm", "cloud with lightning")
	require.NoError(t, err)
	g.waitEntered(t)

	assert.Equal(t, 1, q.Clear())
	g.release()

	require.Eventually(t, func() bool { return gen.inFlight.Load() == 0 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(0), pub.calls.Load())
	assert.Empty(t, store.Updates(9))
	assert.Equal(t, 0, q.Status().Completed)
}

func TestQueue_Lookup(t *testing.T) {
	g := newGate()
	q := newQueue(t, &stubGenerator{await: g.await}, &stubPublisher{}, nil)
	defer g.release()

	id, err := q.Enqueue(5, "w", "p")
	require.NoError(t, err)

	job, ok := q.Lookup(5)
	require.True(t, ok)
	assert.Equal(t, id, job.ID)

	_, ok = q.Lookup(6)
	assert.False(t, ok)
}

func TestQueue_AwaitTimeoutLeavesJobRunning(t *testing.T) {
	g := newGate()
	q := newQueue(t, &stubGenerator{await: g.await}, &stubPublisher{}, nil)

	id, err := q.Enqueue(11, "moon", "crescent moon")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Await(ctx, id)
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, jobx.ErrAwaitTimeout))

	_, ok := q.Get(id)
	assert.True(t, ok)

	g.release()
	require.Eventually(t, func() bool { return q.Status().Completed == 1 }, 5*time.Second, time.Millisecond)
}

func TestQueue_SubscribeUnknownJob(t *testing.T) {
	q := newQueue(t, &stubGenerator{}, &stubPublisher{}, nil)

	_, err := q.Subscribe("nope", nil, nil)
	assert.True(t, errx.IsCode(err, jobx.ErrJobNotFound))

	_, err = q.Await(context.Background(), "nope")
	assert.True(t, errx.IsCode(err, jobx.ErrJobNotFound))
}

func TestQueue_EnqueueValidation(t *testing.T) {
	q := newQueue(t, &stubGenerator{}, &stubPublisher{}, nil)

	_, err := q.Enqueue(0, "w", "p")
	assert.True(t, errx.IsCode(err, jobx.ErrInvalidJob))

	_, err = q.Enqueue(1, "w", "   ")
	assert.True(t, errx.IsCode(err, jobx.ErrInvalidJob))
	assert.Equal(t, 0, q.Status().Total)
}

func TestQueue_Close(t *testing.T) {
	g := newGate()
	q := jobx.New(&stubGenerator{await: g.await}, &stubPublisher{}, nil, fastOptions()...)

	id, err := q.Enqueue(1, "w", "p")
	require.NoError(t, err)
	g.waitEntered(t)

	errCh := make(chan error, 1)
	_, err = q.Subscribe(id, nil, func(err error) { errCh <- err })
	require.NoError(t, err)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	select {
	case err := <-errCh:
		assert.True(t, errx.IsCode(err, jobx.ErrQueueClosed))
	case <-time.After(time.Second):
		t.Fatal("subscriber not notified on close")
	}

	_, err = q.Enqueue(2, "w", "p")
	assert.True(t, errx.IsCode(err, jobx.ErrQueueClosed))
}

func TestQueue_EventSinkOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []jobx.EventType
	sink := jobx.EventSinkFunc(func(_ context.Context, ev jobx.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.Type)
		return errors.New("sink errors are ignored")
	})

	gen := &stubGenerator{
		submitErr: func(n int32, _ string) error {
			if n == 1 {
				return errors.New("transient")
			}
			return nil
		},
	}
	q := newQueue(t, gen, &stubPublisher{}, nil, jobx.WithSinks(sink))

	_, _, err := q.EnqueueAndAwait(awaitCtx(t), 1, "w", "p")
	require.NoError(t, err)
	q.Clear()

	want := []jobx.EventType{
		jobx.EventEnqueued,
		jobx.EventProcessing,
		jobx.EventRetrying,
		jobx.EventProcessing,
		jobx.EventCompleted,
		jobx.EventCleared,
	}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == len(want)
	}, 5*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, seen)
}

func TestQueue_Clock(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	q := newQueue(t, &stubGenerator{}, &stubPublisher{}, nil, jobx.WithClock(func() time.Time { return fixed }))

	_, res, err := q.EnqueueAndAwait(awaitCtx(t), 1, "w", "p")
	require.NoError(t, err)
	assert.Equal(t, fixed, res.GeneratedAt)
}
