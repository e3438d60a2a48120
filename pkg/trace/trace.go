// Package trace carries run-scoped identifiers through context.Context so
// log lines from concurrent package builds can be correlated.
package trace

import (
	"context"

	"github.com/google/uuid"
)

// Context keys. Unexported struct pointers prevent key collisions.
var (
	runIDKey       = &struct{}{}
	packageNameKey = &struct{}{}
)

// NewRunID generates an identifier for one orchestrator invocation
func NewRunID() string {
	return uuid.New().String()[:8]
}

// WithRunID adds a run ID to the context
func WithRunID(parent context.Context, runID string) context.Context {
	if runID == "" {
		runID = NewRunID()
	}
	return context.WithValue(parent, runIDKey, runID)
}

// RunID retrieves the run ID from context
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown-run"
}

// WithPackageName scopes the context to one package
func WithPackageName(parent context.Context, name string) context.Context {
	return context.WithValue(parent, packageNameKey, name)
}

// PackageName retrieves the package name from context
func PackageName(ctx context.Context) string {
	if name, ok := ctx.Value(packageNameKey).(string); ok {
		return name
	}
	return ""
}
