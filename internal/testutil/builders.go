package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/draftforge/composerd/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			JobType:     model.JobTypeCompose,
			Payload:     json.RawMessage(`{"source_id": "00000000-0000-0000-0000-000000000001", "slot": "summary"}`),
			MaxAttempts: 3,
		},
	}
}

// WithType sets the job type.
func (b *JobRequestBuilder) WithType(jobType model.JobType) *JobRequestBuilder {
	b.req.JobType = jobType
	return b
}

// WithPayload sets the job payload.
func (b *JobRequestBuilder) WithPayload(payload json.RawMessage) *JobRequestBuilder {
	b.req.Payload = payload
	return b
}

// WithPayloadString sets the job payload from a string.
func (b *JobRequestBuilder) WithPayloadString(payload string) *JobRequestBuilder {
	b.req.Payload = json.RawMessage(payload)
	return b
}

// WithMaxAttempts sets the attempt budget.
func (b *JobRequestBuilder) WithMaxAttempts(maxAttempts int) *JobRequestBuilder {
	b.req.MaxAttempts = maxAttempts
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// Common test job request presets

// ComposeJobRequest creates a compose job request targeting the given source and slot.
func ComposeJobRequest(sourceID, slot string) *model.CreateJobRequest {
	payload := fmt.Sprintf(`{"source_id": %q, "slot": %q}`, sourceID, slot)
	return NewJobRequest().
		WithType(model.JobTypeCompose).
		WithPayloadString(payload).
		Build()
}

// SourceRefreshJobRequest creates a source_refresh job request for the given source.
func SourceRefreshJobRequest(sourceID string) *model.CreateJobRequest {
	payload := fmt.Sprintf(`{"source_id": %q}`, sourceID)
	return NewJobRequest().
		WithType(model.JobTypeSourceRefresh).
		WithPayloadString(payload).
		Build()
}

// UnroutableJobRequest creates a request with a job type no handler is
// registered for. Enqueue accepts it; dispatch fails it.
func UnroutableJobRequest() *model.CreateJobRequest {
	return NewJobRequest().
		WithType(model.JobType("telemetry_rollup")).
		WithPayloadString(`{"window": "1h"}`).
		Build()
}
