package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/draftforge/composerd/internal/domain/model"
)

// HandlerFunc executes one claimed job. A nil return marks the attempt
// successful; any error sends the job through the ordinary retry path.
type HandlerFunc func(ctx context.Context, job *model.Job) error

// ErrNoHandler reports a claimed job whose type has no registered handler.
var ErrNoHandler = errors.New("no handler registered")

// Dispatcher routes claimed jobs to the handler registered for their type.
// Enqueue does not filter job types, so Dispatch returns a wrapped
// ErrNoHandler for unknown ones and the job fails with normal attempt
// accounting.
type Dispatcher struct {
	handlers map[model.JobType]HandlerFunc
}

// NewDispatcher returns a dispatcher with no registered handlers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[model.JobType]HandlerFunc)}
}

// Register binds a handler to a job type, replacing any existing binding.
// Registration happens during bootstrap; the dispatcher must not be mutated
// once worker loops are running.
func (d *Dispatcher) Register(jobType model.JobType, handler HandlerFunc) {
	d.handlers[jobType] = handler
}

// Dispatch runs the handler for the job's type.
func (d *Dispatcher) Dispatch(ctx context.Context, job *model.Job) error {
	handler, ok := d.handlers[job.JobType]
	if !ok {
		return fmt.Errorf("job type %q: %w", job.JobType, ErrNoHandler)
	}
	return handler(ctx, job)
}

// Types lists the registered job types in sorted order.
func (d *Dispatcher) Types() []string {
	types := make([]string, 0, len(d.handlers))
	for jobType := range d.handlers {
		types = append(types, string(jobType))
	}
	sort.Strings(types)
	return types
}
