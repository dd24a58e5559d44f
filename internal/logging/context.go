package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// RunIDKey is the context key for the pipeline run ID
const RunIDKey contextKey = "run_id"

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run ID from the context, or "" if not set
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// NewRunID generates a new UUID-based run ID
func NewRunID() string {
	return uuid.New().String()
}
