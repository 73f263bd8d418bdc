package entity

import (
	"time"

	"github.com/joseph-ayodele/writing-eval/constants"
)

// Job is the queue record tracking evaluation progress for one attempt.
type Job struct {
	AttemptID    string              `json:"attempt_id"`
	Status       constants.JobStatus `json:"status"`
	AttemptCount int                 `json:"attempt_count"`
	LockedAt     *time.Time          `json:"locked_at,omitempty"`
	LastError    *string             `json:"last_error,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}
