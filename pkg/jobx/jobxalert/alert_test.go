package jobxalert_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/flashmoji/pkg/jobx"
	"github.com/Abraxas-365/flashmoji/pkg/jobx/jobxalert"
	"github.com/Abraxas-365/flashmoji/pkg/notifx"
)

type recorder struct {
	sent []notifx.EmailMessage
}

func (r *recorder) SendEmail(_ context.Context, msg notifx.EmailMessage, _ ...notifx.Option) error {
	r.sent = append(r.sent, msg)
	return nil
}

func failed(id string) jobx.Event {
	return jobx.Event{
		Type:  jobx.EventFailed,
		Job:   jobx.Job{ID: id, EntryID: 7, Word: "autumn", Prompt: "orange leaf", Retries: 3, Status: jobx.JobStatusError},
		Error: "prediction failed",
		At:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestSink_MailsFailures(t *testing.T) {
	rec := &recorder{}
	sink, err := jobxalert.New(notifx.NewClient(rec, "bot@flashmoji.dev"), []string{"ops@flashmoji.dev"}, jobxalert.WithInterval(0))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.HandleEvent(ctx, jobx.Event{Type: jobx.EventRetrying, Job: jobx.Job{ID: "j0"}}))
	require.NoError(t, sink.HandleEvent(ctx, failed("j1")))

	require.Len(t, rec.sent, 1)
	msg := rec.sent[0]
	assert.Equal(t, "[flashmoji] image generation failed: autumn", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "entry 7")
	assert.Contains(t, msg.HTMLBody, "prediction failed")
	assert.Contains(t, msg.TextBody, "Job j1 for entry 7")
}

func TestSink_Throttles(t *testing.T) {
	rec := &recorder{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sink, err := jobxalert.New(notifx.NewClient(rec, "bot@flashmoji.dev"), []string{"ops@flashmoji.dev"},
		jobxalert.WithInterval(time.Minute),
		jobxalert.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, sink.HandleEvent(ctx, failed("j1")))
	require.NoError(t, sink.HandleEvent(ctx, failed("j2")))
	require.NoError(t, sink.HandleEvent(ctx, failed("j3")))
	require.Len(t, rec.sent, 1)

	now = now.Add(2 * time.Minute)
	require.NoError(t, sink.HandleEvent(ctx, failed("j4")))
	require.Len(t, rec.sent, 2)
	assert.Contains(t, rec.sent[1].HTMLBody, "2 more failures")
}
