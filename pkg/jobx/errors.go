package jobx

import (
	"net/http"

	"github.com/Abraxas-365/flashmoji/pkg/errx"
)

var jobxErrors = errx.NewRegistry("JOBX")

var (
	ErrJobNotFound      = jobxErrors.Register("JOB_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Job not found")
	ErrInvalidJob       = jobxErrors.Register("INVALID_JOB", errx.TypeValidation, http.StatusBadRequest, "Invalid job definition")
	ErrQueueClosed      = jobxErrors.Register("QUEUE_CLOSED", errx.TypeUnavailable, http.StatusServiceUnavailable, "Queue is shut down")
	ErrQueueCleared     = jobxErrors.Register("QUEUE_CLEARED", errx.TypeConflict, http.StatusConflict, "Job was removed by a queue clear")
	ErrGenerationFailed = jobxErrors.Register("GENERATION_FAILED", errx.TypeExternal, http.StatusBadGateway, "Image generation failed")
	ErrAwaitTimeout     = jobxErrors.Register("AWAIT_TIMEOUT", errx.TypeTimeout, http.StatusGatewayTimeout, "Generation timeout")
)

func invalidJob(reason string) *errx.Error {
	return jobxErrors.New(ErrInvalidJob).WithDetail("reason", reason)
}

// NotFound reports a job id the queue does not track
func NotFound(jobID string) *errx.Error {
	return jobxErrors.New(ErrJobNotFound).WithDetail("job_id", jobID)
}

// generationFailed carries the message of the last failed attempt
func generationFailed(job *Job, last error) *errx.Error {
	msg := ErrGenerationFailed.Message
	if last != nil {
		msg = failureMessage(last)
	}
	e := jobxErrors.NewWithMessage(ErrGenerationFailed, msg).
		WithDetail("job_id", job.ID).
		WithDetail("entry_id", job.EntryID).
		WithDetail("attempts", job.Retries)
	if code := errx.CodeOf(last); code != "" {
		e.WithDetail("cause_code", code)
	}
	return e
}

func failureMessage(err error) string {
	var e *errx.Error
	if errx.As(err, &e) {
		if e.Err != nil {
			return e.Message + ": " + failureMessage(e.Err)
		}
		return e.Message
	}
	return err.Error()
}
