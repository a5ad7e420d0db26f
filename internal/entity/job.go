package entity

import (
	"time"

	"github.com/tomaszkw/docmeter/constants"
)

// Job represents a backend analysis job for data transfer between layers.
// The backend executor is the only writer after submission; this process
// observes it through the realtime feed.
type Job struct {
	ID           string              `json:"id"`
	Task         constants.TaskKind  `json:"task"`
	Status       constants.JobStatus `json:"status"`
	ResultURL    *string             `json:"result_url,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	SessionID    string              `json:"session_id"`
	UserID       string              `json:"user_id"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Terminal reports whether the job has reached a final status.
func (j *Job) Terminal() bool {
	return j.Status.IsTerminal()
}
