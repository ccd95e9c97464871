// Package metrics defines the metric vocabulary composerd emits: job
// lifecycle transitions, generation calls, reaper sweeps, and queue depth.
package metrics

import (
	"time"

	obserrors "github.com/draftforge/composerd/internal/observability/errors"
	"github.com/draftforge/composerd/internal/observability/statsd"
)

// Result values for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Transition values for job lifecycle metrics.
const (
	TransitionClaim    = "claim"
	TransitionComplete = "complete"
	TransitionFail     = "fail"
)

// JobMetric captures one job lifecycle event. Empty claims and lost
// ownership races carry ResultNoop, not ResultError.
type JobMetric struct {
	JobType    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits a counter for the transition and, when a duration
// is known, a timing tagged the same way.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.JobType != "" {
		tags["job_type"] = in.JobType
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("jobs.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("jobs.duration", in.Duration, CloneTags(tags))
	}
}

// GenerationMetric captures one remote generation call.
type GenerationMetric struct {
	Slot     string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitGeneration emits a counter and timing for a generation call.
func EmitGeneration(sink statsd.Sink, in GenerationMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"slot":   in.Slot,
		"result": in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("generation.calls", 1, tags)

	if in.Duration > 0 {
		sink.Timing("generation.duration", in.Duration, CloneTags(tags))
	}
}

// EmitReapSweep records the outcome of one reaper pass and how many stuck
// jobs it requeued.
func EmitReapSweep(sink statsd.Sink, requeued int64, err error) {
	if sink == nil {
		return
	}

	if err != nil {
		tags := map[string]string{"result": ResultError}
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
		sink.Count("reaper.sweeps", 1, tags)
		return
	}

	sink.Count("reaper.sweeps", 1, map[string]string{"result": ResultSuccess})
	if requeued > 0 {
		sink.Count("reaper.requeued", requeued, nil)
	}
}

// EmitQueueDepth records point-in-time gauges of queue state.
func EmitQueueDepth(sink statsd.Sink, queued, running int64) {
	if sink == nil {
		return
	}
	sink.Gauge("jobs.queued", float64(queued), nil)
	sink.Gauge("jobs.running", float64(running), nil)
}

// CloneTags creates a shallow copy of a tag map so concurrent emitters never
// share one.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
