package jobx

import (
	"time"

	"github.com/Abraxas-365/flashmoji/pkg/kernel"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

// IsTerminal reports whether no further transitions can happen
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// Job is one queued image generation request. Only the queue's loop
// mutates Status, Retries and ProviderHandle.
type Job struct {
	ID             string         `json:"id"`
	EntryID        kernel.EntryID `json:"entryId"`
	Word           string         `json:"englishWord"`
	Prompt         string         `json:"prompt"`
	ProviderHandle string         `json:"predictionId,omitempty"`
	Status         JobStatus      `json:"status"`
	Retries        int            `json:"retries"`
	LastError      string         `json:"lastError,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Result is delivered to subscribers when a job completes
type Result struct {
	JobID          string         `json:"queueId"`
	EntryID        kernel.EntryID `json:"entryId"`
	ImageURL       string         `json:"imageUrl"`
	OriginalURL    string         `json:"originalUrl"`
	ProviderHandle string         `json:"predictionId,omitempty"`
	GeneratedAt    time.Time      `json:"generatedAt"`
}

// Stats is a snapshot for polling UIs. Total, Pending and Processing count
// currently tracked jobs; Completed and Errors are cumulative since the
// queue was created and survive Clear.
type Stats struct {
	Total        int  `json:"total"`
	Pending      int  `json:"pending"`
	Processing   int  `json:"processing"`
	Completed    int  `json:"completed"`
	Errors       int  `json:"errors"`
	IsProcessing bool `json:"isProcessing"`
}

// EventType names a job transition
type EventType string

const (
	EventEnqueued   EventType = "enqueued"
	EventProcessing EventType = "processing"
	EventRetrying   EventType = "retrying"
	EventCompleted  EventType = "completed"
	EventFailed     EventType = "failed"
	EventCleared    EventType = "cleared"
)

// Event is handed to every EventSink. Job is zero for EventCleared.
type Event struct {
	Type    EventType `json:"type"`
	Job     Job       `json:"job"`
	Result  *Result   `json:"result,omitempty"`
	Error   string    `json:"error,omitempty"`
	Cleared int       `json:"cleared,omitempty"`
	At      time.Time `json:"at"`
}
