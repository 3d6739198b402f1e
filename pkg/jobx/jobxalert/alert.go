// Package jobxalert e-mails operators when an image job runs out of retries.
package jobxalert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/jobx"
	"github.com/Abraxas-365/flashmoji/pkg/logx"
	"github.com/Abraxas-365/flashmoji/pkg/notifx"
)

const templateName = "jobx.failed"

const failedTemplate = `<h2>Image generation failed</h2>
<p>Word <b>{{.Job.Word}}</b> (entry {{.Job.EntryID}}) failed after {{.Job.Retries}} attempts.</p>
<ul>
  <li>Job: {{.Job.ID}}</li>
  <li>Prompt: {{.Job.Prompt}}</li>
  {{if .Job.ProviderHandle}}<li>Prediction: {{.Job.ProviderHandle}}</li>{{end}}
  <li>At: {{.At.Format "2006-01-02 15:04:05 MST"}}</li>
</ul>
<pre>{{.Error}}</pre>
{{if .Suppressed}}<p>{{.Suppressed}} more failures since the previous alert were not mailed.</p>{{end}}`

type alertData struct {
	Job        jobx.Job
	Error      string
	At         time.Time
	Suppressed int
}

// Sink is a jobx.EventSink. At most one mail goes out per interval; the
// failures skipped in between are counted in the next mail.
type Sink struct {
	client   *notifx.Client
	to       []string
	interval time.Duration
	now      func() time.Time

	mu         sync.Mutex
	lastSent   time.Time
	suppressed int
}

type Option func(*Sink)

// WithInterval sets the minimum time between two alerts
func WithInterval(d time.Duration) Option {
	return func(s *Sink) {
		if d >= 0 {
			s.interval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

func New(client *notifx.Client, to []string, opts ...Option) (*Sink, error) {
	if err := client.RegisterTemplate(templateName, failedTemplate); err != nil {
		return nil, err
	}
	s := &Sink{
		client:   client,
		to:       to,
		interval: 10 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ jobx.EventSink = (*Sink)(nil)

func (s *Sink) HandleEvent(ctx context.Context, ev jobx.Event) error {
	if ev.Type != jobx.EventFailed {
		return nil
	}

	s.mu.Lock()
	now := s.now()
	if !s.lastSent.IsZero() && now.Sub(s.lastSent) < s.interval {
		s.suppressed++
		s.mu.Unlock()
		logx.WithField("job_id", ev.Job.ID).Debug("jobxalert: alert suppressed")
		return nil
	}
	data := alertData{Job: ev.Job, Error: ev.Error, At: ev.At, Suppressed: s.suppressed}
	s.mu.Unlock()

	if data.At.IsZero() {
		data.At = now
	}

	err := s.client.SendTemplatedEmail(ctx, templateName, data, notifx.EmailMessage{
		To:       s.to,
		Subject:  fmt.Sprintf("[flashmoji] image generation failed: %s", ev.Job.Word),
		TextBody: fmt.Sprintf("Job %s for entry %s failed: %s", ev.Job.ID, ev.Job.EntryID, ev.Error),
	},
		notifx.WithTag("kind", "job_failed"),
		notifx.WithTag("entry_id", ev.Job.EntryID.String()),
	)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.lastSent = now
	s.suppressed -= data.Suppressed
	s.mu.Unlock()
	return nil
}
