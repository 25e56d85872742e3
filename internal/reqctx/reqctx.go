// Package reqctx tags long-running operations with a run ID so their log
// lines can be grouped.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type key int

const runKey key = 0

// Run identifies one crawl, import or fetch.
type Run struct {
	ID        string
	Operation string
	StartTime time.Time
}

// WithRun attaches a fresh Run to ctx.
func WithRun(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, runKey, &Run{
		ID:        uuid.NewString(),
		Operation: operation,
		StartTime: time.Now(),
	})
}

// FromContext returns the Run on ctx, or a placeholder.
func FromContext(ctx context.Context) *Run {
	if r, ok := ctx.Value(runKey).(*Run); ok {
		return r
	}
	return &Run{ID: "unknown", StartTime: time.Now()}
}

// Logger returns a logger carrying the run ID and operation of ctx.
func Logger(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	r := FromContext(ctx)
	c := base.With().Str("run_id", r.ID)
	if r.Operation != "" {
		c = c.Str("op", r.Operation)
	}
	return c.Logger()
}

// RunError prefixes an error with the run it happened in.
type RunError struct {
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("[%s] %v", e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Wrap tags err with the run ID of ctx. A nil err stays nil.
func Wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &RunError{RunID: FromContext(ctx).ID, Err: err}
}
