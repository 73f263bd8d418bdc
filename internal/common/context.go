package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyWorkerID  contextKey = "worker_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithWorkerID tags the context with the scheduler worker driving it
func WithWorkerID(ctx context.Context, workerID int) context.Context {
	return context.WithValue(ctx, ContextKeyWorkerID, workerID)
}

// WorkerIDFromContext extracts the worker ID from context, 0 when unset
func WorkerIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(ContextKeyWorkerID).(int); ok {
		return id
	}
	return 0
}
