// Package model defines the records and request types shared across the composerd job system.
package model

import (
	"encoding/json"
	"errors"
	"time"
)

// JobType selects the handler a job is dispatched to. The set of known types
// is closed-ish: unknown values are accepted at enqueue time and routed to the
// dispatcher's failure path, never rejected up front.
type JobType string

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	// JobTypeCompose generates a content artifact for a (source, slot) pair.
	JobTypeCompose JobType = "compose"
	// JobTypeSourceRefresh re-warms the cached context for a source.
	JobTypeSourceRefresh JobType = "source_refresh"

	// JobStatusQueued indicates a job is waiting to be claimed.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates a job is claimed and executing.
	JobStatusRunning JobStatus = "running"
	// JobStatusDone indicates a job finished successfully.
	JobStatusDone JobStatus = "done"
	// JobStatusFailed indicates a job exhausted its attempt budget.
	JobStatusFailed JobStatus = "failed"
)

// ErrNoJobsAvailable is returned when no queued job could be claimed this
// cycle, including the case where a concurrent worker won the claim race.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Known reports whether t has a registered built-in handler.
func (t JobType) Known() bool {
	return t == JobTypeCompose || t == JobTypeSourceRefresh
}

// Valid returns true if the JobStatus is one of the four lifecycle states.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusRunning || s == JobStatusDone ||
		s == JobStatusFailed
}

// Terminal reports whether the status is never re-entered by the core.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Job is a unit of deferred work persisted in the jobs table.
//
// locked_by is non-null if and only if status is running; both lock fields are
// set together by the claim update and cleared together by finalize and reap.
type Job struct {
	ID          string          `json:"id"                      db:"id"`
	JobType     JobType         `json:"job_type"                db:"job_type"`
	Status      JobStatus       `json:"status"                  db:"status"`
	Attempts    int             `json:"attempts"                db:"attempts"`
	MaxAttempts int             `json:"max_attempts"            db:"max_attempts"`
	Payload     json.RawMessage `json:"payload"                 db:"payload"`
	LockedAt    *time.Time      `json:"locked_at,omitempty"     db:"locked_at"`
	LockedBy    *string         `json:"locked_by,omitempty"     db:"locked_by"`
	LastError   *string         `json:"last_error,omitempty"    db:"last_error"`
	LastErrorAt *time.Time      `json:"last_error_at,omitempty" db:"last_error_at"`
	LastTraceID *string         `json:"last_trace_id,omitempty" db:"last_trace_id"`
	CreatedAt   time.Time       `json:"created_at"              db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"              db:"updated_at"`
}

// CreateJobRequest represents a request to enqueue a new job.
type CreateJobRequest struct {
	JobType     JobType         `json:"job_type"`
	Payload     json.RawMessage `json:"payload"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
}

// Validate checks the enqueue request. Unknown job types are allowed; they
// fail at dispatch time through the regular failure path.
func (r *CreateJobRequest) Validate() error {
	if r.JobType == "" {
		return errors.New("job type is required")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	if r.MaxAttempts < 0 {
		return errors.New("max attempts must be >= 0")
	}
	return nil
}

// JobFailure reports the outcome of an ownership-scoped failure update.
type JobFailure struct {
	Status   JobStatus `json:"status"`
	Attempts int       `json:"attempts"`
}

// Terminal reports whether the failure exhausted the attempt budget.
func (f JobFailure) Terminal() bool {
	return f.Status == JobStatusFailed
}

// JobStats represents per-status counts for the queue.
type JobStats struct {
	Queued  int `json:"queued"`
	Running int `json:"running"`
	Done    int `json:"done"`
	Failed  int `json:"failed"`
}

// JobListOptions filter and paginate job listings.
type JobListOptions struct {
	JobType JobType
	Status  JobStatus
	Limit   int
	Offset  int
}

// ComposePayload is the payload shape of a compose job.
type ComposePayload struct {
	SourceID string `json:"source_id"`
	Slot     string `json:"slot"`
}

// Validate checks the compose payload fields.
func (p *ComposePayload) Validate() error {
	if p.SourceID == "" {
		return errors.New("source_id is required")
	}
	if p.Slot == "" {
		return errors.New("slot is required")
	}
	return nil
}

// SourceRefreshPayload is the payload shape of a source_refresh job.
type SourceRefreshPayload struct {
	SourceID string `json:"source_id"`
}

// Validate checks the source refresh payload fields.
func (p *SourceRefreshPayload) Validate() error {
	if p.SourceID == "" {
		return errors.New("source_id is required")
	}
	return nil
}
