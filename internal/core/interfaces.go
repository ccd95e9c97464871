package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/draftforge/composerd/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// CompleteJobParams groups parameters for JobRepository.Complete to keep param count <=3.
type CompleteJobParams struct {
	ID       string
	WorkerID string
	TraceID  string
}

// FailJobParams groups parameters for JobRepository.Fail.
type FailJobParams struct {
	ID       string
	WorkerID string
	ErrMsg   string
	TraceID  string
}

// JobRepository defines the interface for job queue data operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)

	// ClaimNext claims the oldest queued job for workerID, or returns
	// model.ErrNoJobsAvailable when the queue is empty or another worker won
	// the race for the single candidate considered.
	ClaimNext(ctx context.Context, workerID string) (*model.Job, error)

	// Complete marks a running job done. Returns false when the caller no
	// longer holds the lock.
	Complete(ctx context.Context, params CompleteJobParams) (bool, error)

	// Fail records one execution failure against a running job. A nil result
	// with nil error means the caller no longer held the lock.
	Fail(ctx context.Context, params FailJobParams) (*model.JobFailure, error)

	// ReapStuck requeues running jobs locked longer than olderThan, up to
	// batchSize rows per call.
	ReapStuck(ctx context.Context, olderThan time.Duration, batchSize int) (int64, error)

	Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error)
	ListRecent(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)

	// WaitForNotification blocks until a job is enqueued or ctx ends.
	WaitForNotification(ctx context.Context) error
}

// UpsertArtifactParams groups parameters for ArtifactRepository.Upsert.
type UpsertArtifactParams struct {
	SourceID string
	Slot     string
	Content  model.ArtifactContent
	Assets   json.RawMessage
	Meta     model.ArtifactMeta
}

// ArtifactRepository defines the interface for generated artifact data operations.
type ArtifactRepository interface {
	// Upsert writes artifact content for its (source, slot) key, replacing any
	// previous content for the same key.
	Upsert(ctx context.Context, params UpsertArtifactParams) (*model.Artifact, error)
	GetBySourceSlot(ctx context.Context, sourceID, slot string) (*model.Artifact, error)
	List(ctx context.Context, opts model.ArtifactListOptions) ([]*model.Artifact, error)
}

// SourceRepository defines the interface for source data operations.
type SourceRepository interface {
	Create(ctx context.Context, req *model.CreateSourceRequest) (*model.Source, error)
	GetByID(ctx context.Context, id string) (*model.Source, error)
	GetByName(ctx context.Context, name string) (*model.Source, error)
	List(ctx context.Context, limit, offset int) ([]*model.Source, error)
	ListByNameContains(ctx context.Context, q string, limit, offset int) ([]*model.Source, error)
	Update(ctx context.Context, id string, req model.UpdateSourceRequest) (*model.Source, error)
	Delete(ctx context.Context, id string) (bool, error)
}
