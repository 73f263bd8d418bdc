package constants

// JobStatus is the canonical status for rows in evaluation_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued  JobStatus = "queued"  // waiting for a worker
	JobStatusRunning JobStatus = "running" // locked by a worker
	JobStatusDone    JobStatus = "done"    // evaluation persisted
	JobStatusFailed  JobStatus = "failed"  // terminal until re-enqueued
)

func (s JobStatus) String() string { return string(s) }

// AttemptStatus values written by the submission flow.
type AttemptStatus string

const (
	AttemptStatusDraft     AttemptStatus = "draft"
	AttemptStatusSubmitted AttemptStatus = "submitted"
	AttemptStatusLocked    AttemptStatus = "locked"
	AttemptStatusArchived  AttemptStatus = "archived"
)

// Evaluable reports whether an attempt in this status may be graded.
func (s AttemptStatus) Evaluable() bool {
	return s == AttemptStatusSubmitted || s == AttemptStatusLocked
}
