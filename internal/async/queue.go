package async

import (
	"context"
	"time"
)

// Job asks the scheduler to run one attempt ahead of the queue order.
type Job struct {
	AttemptID   string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
