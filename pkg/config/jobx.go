package config

import "time"

// JobxConfig tunes the image generation queue. The defaults match the
// provider's rate limits: three attempts, 5s times the attempt count between
// retries and 2s between jobs.
type JobxConfig struct {
	MaxRetries     int `validate:"gte=1"`
	RetryBackoff   time.Duration
	InterJobDelay  time.Duration
	IdleInterval   time.Duration `validate:"gt=0"`
	AttemptTimeout time.Duration
	AwaitTimeout   time.Duration `validate:"gt=0"`
	PersistTimeout time.Duration `validate:"gt=0"`
	ResumeOnStart  bool
}

func loadJobxConfig() JobxConfig {
	return JobxConfig{
		MaxRetries:     getEnvInt("JOBX_MAX_RETRIES", 3),
		RetryBackoff:   getEnvDuration("JOBX_RETRY_BACKOFF", 5*time.Second),
		InterJobDelay:  getEnvDuration("JOBX_INTER_JOB_DELAY", 2*time.Second),
		IdleInterval:   getEnvDuration("JOBX_IDLE_INTERVAL", time.Second),
		AttemptTimeout: getEnvDuration("JOBX_ATTEMPT_TIMEOUT", 10*time.Minute),
		AwaitTimeout:   getEnvDuration("JOBX_AWAIT_TIMEOUT", 5*time.Minute),
		PersistTimeout: getEnvDuration("JOBX_PERSIST_TIMEOUT", 10*time.Second),
		ResumeOnStart:  getEnvBool("JOBX_RESUME_ON_START", true),
	}
}
