package jobx

import "time"

// Options configures the queue.
type Options struct {
	MaxRetries     int
	RetryBackoff   time.Duration
	InterJobDelay  time.Duration
	IdleInterval   time.Duration
	AttemptTimeout time.Duration
	PersistTimeout time.Duration
	MarkProcessing bool
	Sinks          []EventSink
	Now            func() time.Time
}

func defaultOptions() Options {
	return Options{
		MaxRetries:     3,
		RetryBackoff:   5 * time.Second,
		InterJobDelay:  2 * time.Second,
		IdleInterval:   time.Second,
		AttemptTimeout: 10 * time.Minute,
		PersistTimeout: 10 * time.Second,
		Now:            func() time.Time { return time.Now().UTC() },
	}
}

// Option is a functional option for configuring the queue.
type Option func(*Options)

// WithMaxRetries sets how many attempts a job gets before it errors.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxRetries = n
		}
	}
}

// WithRetryBackoff sets the base delay before a retry. The loop waits
// base multiplied by the attempt count.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.RetryBackoff = d
		}
	}
}

// WithInterJobDelay sets the pause after each finished job.
func WithInterJobDelay(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.InterJobDelay = d
		}
	}
}

// WithIdleInterval sets how long the loop waits when nothing is pending.
func WithIdleInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.IdleInterval = d
		}
	}
}

// WithAttemptTimeout bounds one submit, await and publish round. Zero
// disables the bound.
func WithAttemptTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.AttemptTimeout = d
		}
	}
}

// WithPersistTimeout bounds the final entry store update.
func WithPersistTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PersistTimeout = d
		}
	}
}

// WithMarkProcessing makes the loop write the processing status to the
// entry store when it picks a job up, before the provider is called.
func WithMarkProcessing() Option {
	return func(o *Options) {
		o.MarkProcessing = true
	}
}

// WithSinks registers sinks that observe every transition.
func WithSinks(sinks ...EventSink) Option {
	return func(o *Options) {
		o.Sinks = append(o.Sinks, sinks...)
	}
}

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}
