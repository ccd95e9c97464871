package job

import (
	"context"

	"github.com/google/uuid"
)

// A trace id is minted once per execution attempt and threaded through logs,
// the job row's last_trace_id column, and the artifact meta blob so the retry
// history of a job can be reconstructed.

type traceIDKey struct{}

// NewTraceID returns a fresh per-attempt trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID returns a context carrying the given trace id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFrom extracts the trace id from the context, or "" when absent.
func TraceIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}
