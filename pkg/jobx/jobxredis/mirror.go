// Package jobxredis mirrors queue transitions into Redis so job history
// survives a restart of the in-memory queue and other processes can follow
// progress over pub/sub.
package jobxredis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/jobx"
	"github.com/Abraxas-365/flashmoji/pkg/kernel"
	"github.com/redis/go-redis/v9"
)

const (
	// EventsChannel carries every event as JSON
	EventsChannel = "jobx:events"

	defaultTTL        = 7 * 24 * time.Hour
	defaultHistoryLen = 500
)

// Key helpers
func jobKey(id string) string           { return fmt.Sprintf("jobx:job:%s", id) }
func entryKey(id kernel.EntryID) string { return fmt.Sprintf("jobx:entry:%d", id) }
func statsKey(name string) string       { return fmt.Sprintf("jobx:stats:%s", name) }
func historyKey() string                { return "jobx:history" }

// Record is the stored snapshot of a job
type Record struct {
	Job       jobx.Job       `json:"job"`
	LastEvent jobx.EventType `json:"lastEvent"`
	Result    *jobx.Result   `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	At        time.Time      `json:"at"`
}

// Stats are cumulative counters across process restarts
type Stats struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cleared   int64 `json:"cleared"`
}

// Mirror is a jobx.EventSink writing to Redis. Records are kept after the
// job leaves the queue so a restarted process can reconcile entries.
type Mirror struct {
	rdb        *redis.Client
	ttl        time.Duration
	historyLen int64
}

type Option func(*Mirror)

// WithTTL sets how long job records are kept
func WithTTL(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithHistoryLength caps the list of recently finished jobs
func WithHistoryLength(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.historyLen = int64(n)
		}
	}
}

func NewMirror(rdb *redis.Client, opts ...Option) *Mirror {
	m := &Mirror{rdb: rdb, ttl: defaultTTL, historyLen: defaultHistoryLen}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ jobx.EventSink = (*Mirror)(nil)

// HandleEvent stores the job snapshot, bumps counters and publishes the event.
func (m *Mirror) HandleEvent(ctx context.Context, ev jobx.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return redisErrors.NewWithCause(ErrMarshal, err).WithDetail("event", ev.Type)
	}

	pipe := m.rdb.TxPipeline()

	if ev.Type == jobx.EventCleared {
		pipe.IncrBy(ctx, statsKey("cleared"), int64(ev.Cleared))
	} else {
		rec := Record{Job: ev.Job, LastEvent: ev.Type, Result: ev.Result, Error: ev.Error, At: ev.At}
		data, err := json.Marshal(rec)
		if err != nil {
			return redisErrors.NewWithCause(ErrMarshal, err).WithDetail("job_id", ev.Job.ID)
		}
		pipe.Set(ctx, jobKey(ev.Job.ID), data, m.ttl)
		pipe.Set(ctx, entryKey(ev.Job.EntryID), ev.Job.ID, m.ttl)

		switch ev.Type {
		case jobx.EventCompleted:
			pipe.Incr(ctx, statsKey("completed"))
		case jobx.EventFailed:
			pipe.Incr(ctx, statsKey("failed"))
		}
		if ev.Type == jobx.EventCompleted || ev.Type == jobx.EventFailed {
			pipe.LPush(ctx, historyKey(), ev.Job.ID)
			pipe.LTrim(ctx, historyKey(), 0, m.historyLen-1)
		}
	}
	pipe.Publish(ctx, EventsChannel, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return redisErrors.NewWithCause(ErrWrite, err).
			WithDetail("event", ev.Type).
			WithDetail("job_id", ev.Job.ID)
	}
	return nil
}

// GetJob returns the last stored snapshot of a job
func (m *Mirror) GetJob(ctx context.Context, jobID string) (*Record, error) {
	data, err := m.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redisErrors.New(ErrNotFound).WithDetail("job_id", jobID)
		}
		return nil, redisErrors.NewWithCause(ErrRead, err).WithDetail("job_id", jobID)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, redisErrors.NewWithCause(ErrUnmarshal, err).WithDetail("job_id", jobID)
	}
	return &rec, nil
}

// GetByEntry returns the latest job recorded for an entry
func (m *Mirror) GetByEntry(ctx context.Context, entryID kernel.EntryID) (*Record, error) {
	jobID, err := m.rdb.Get(ctx, entryKey(entryID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redisErrors.New(ErrNotFound).WithDetail("entry_id", entryID)
		}
		return nil, redisErrors.NewWithCause(ErrRead, err).WithDetail("entry_id", entryID)
	}
	return m.GetJob(ctx, jobID)
}

// History returns up to limit recently finished jobs, newest first.
// Records that expired are skipped.
func (m *Mirror) History(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := m.rdb.LRange(ctx, historyKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, redisErrors.NewWithCause(ErrRead, err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = jobKey(id)
	}
	values, err := m.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, redisErrors.NewWithCause(ErrRead, err)
	}

	out := make([]Record, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, redisErrors.NewWithCause(ErrUnmarshal, err).WithDetail("job_id", ids[i])
		}
		out = append(out, rec)
	}
	return out, nil
}

// Stats reads the cumulative counters
func (m *Mirror) Stats(ctx context.Context) (Stats, error) {
	values, err := m.rdb.MGet(ctx, statsKey("completed"), statsKey("failed"), statsKey("cleared")).Result()
	if err != nil {
		return Stats{}, redisErrors.NewWithCause(ErrRead, err)
	}
	return Stats{
		Completed: toInt(values[0]),
		Failed:    toInt(values[1]),
		Cleared:   toInt(values[2]),
	}, nil
}

// Ping checks connectivity
func (m *Mirror) Ping(ctx context.Context) error {
	return m.rdb.Ping(ctx).Err()
}

func toInt(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
