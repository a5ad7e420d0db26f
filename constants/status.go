package constants

// JobStatus is the canonical status for analysis jobs.
type JobStatus string

// Stable values (the backend stores and pushes these exact strings).
const (
	JobStatusStarted   JobStatus = "STARTED"   // accepted, processing in progress
	JobStatusSucceeded JobStatus = "SUCCEEDED" // terminal success, result URL populated
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure, error message populated
)

// IsTerminal reports whether no further status transition is valid.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}
