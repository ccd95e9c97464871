package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/draftforge/composerd/internal/core"
	jobdomain "github.com/draftforge/composerd/internal/domain/job"
	"github.com/draftforge/composerd/internal/domain/model"
)

// maxLastErrorLen bounds the diagnostic message persisted into
// jobs.last_error.
const maxLastErrorLen = 2048

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo               core.JobRepository        // Required: job repository
	DefaultMaxAttempts int                       // Required: attempt budget applied when a producer sends zero
	Logger             *slog.Logger              // Optional: structured logger
	Notifier           jobdomain.Notifier        // Optional: custom queue wake notifier
	NotifierOptions    jobdomain.NotifierOptions // Optional: configure default notifier behaviour
}

// JobService provides business logic for queue operations.
//
// This service manages:
// - Enqueue with the configured default attempt budget
// - Claim and ownership-scoped finalize on behalf of workers
// - Stuck-job recovery in drained batches
// - Pub/sub notification fan-out for queue wakes
// - Graceful shutdown of notification listeners.
type JobService struct {
	repo               core.JobRepository
	defaultMaxAttempts int
	notifier           jobdomain.Notifier
	logger             *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.DefaultMaxAttempts <= 0 {
		return nil, errors.New("DefaultMaxAttempts must be positive")
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		var err error
		notifier, err = jobdomain.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
		logger.Debug("JobService initialized",
			"default_max_attempts", opts.DefaultMaxAttempts,
		)
	}

	return &JobService{
		repo:               opts.Repo,
		defaultMaxAttempts: opts.DefaultMaxAttempts,
		notifier:           notifier,
		logger:             logger,
	}, nil
}

// Create enqueues a new job. A zero MaxAttempts takes the configured default
// budget. The job type is not checked against registered handlers here;
// unknown types surface as handler failures at dispatch.
func (s *JobService) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}

	r := *req
	if r.MaxAttempts == 0 {
		r.MaxAttempts = s.defaultMaxAttempts
	}

	job, err := s.repo.Create(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job enqueued",
			"id", job.ID,
			"type", job.JobType,
			"max_attempts", job.MaxAttempts,
		)
	}

	return job, nil
}

// ClaimNext claims the oldest queued job for workerID.
// model.ErrNoJobsAvailable passes through unwrapped so callers can branch on
// it with errors.Is.
func (s *JobService) ClaimNext(ctx context.Context, workerID string) (*model.Job, error) {
	if workerID == "" {
		return nil, errors.New("worker id is required")
	}

	job, err := s.repo.ClaimNext(ctx, workerID)
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("claim next job: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "job claimed",
			"id", job.ID,
			"type", job.JobType,
			"worker_id", workerID,
		)
	}

	return job, nil
}

// Complete marks a running job done via an ownership-scoped update. Returns
// false when the worker no longer held the lock.
func (s *JobService) Complete(ctx context.Context, params core.CompleteJobParams) (bool, error) {
	completed, err := s.repo.Complete(ctx, params)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", params.ID, err)
	}

	if s.logger != nil && completed {
		s.logger.DebugContext(ctx, "job completed", "id", params.ID, "worker_id", params.WorkerID)
	}

	return completed, nil
}

// Fail records one failed attempt. The message is truncated before persisting
// so an oversized handler error cannot bloat the row. A nil failure with nil
// error means the worker no longer held the lock.
func (s *JobService) Fail(ctx context.Context, params core.FailJobParams) (*model.JobFailure, error) {
	if params.ErrMsg == "" {
		return nil, errors.New("error message required")
	}
	params.ErrMsg = truncateErrMsg(params.ErrMsg)

	failure, err := s.repo.Fail(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fail job %s: %w", params.ID, err)
	}

	if s.logger != nil && failure != nil {
		s.logger.DebugContext(ctx, "job failure recorded",
			"id", params.ID,
			"status", failure.Status,
			"attempts", failure.Attempts,
		)
	}

	return failure, nil
}

// truncateErrMsg cuts msg to maxLastErrorLen bytes on a rune boundary so the
// stored prefix stays valid UTF-8.
func truncateErrMsg(msg string) string {
	if len(msg) <= maxLastErrorLen {
		return msg
	}
	cut := maxLastErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// ReapStuck requeues jobs stuck in running longer than olderThan, draining
// batch after batch until one comes back empty. Returns the total requeued.
func (s *JobService) ReapStuck(ctx context.Context, olderThan time.Duration, batchSize int) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be positive")
	}
	if batchSize <= 0 {
		return 0, errors.New("batch size must be positive")
	}

	var total int64
	for {
		count, err := s.repo.ReapStuck(ctx, olderThan, batchSize)
		if err != nil {
			return total, fmt.Errorf("reap stuck jobs: %w", err)
		}
		total += count
		if count == 0 {
			break
		}
		// Check context between batches
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "requeued stuck jobs",
			"count", total,
			"older_than", olderThan,
		)
	}

	return total, nil
}

// Stats returns per-status job counts, optionally filtered to one job type.
func (s *JobService) Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx, jobType)
	if err != nil {
		return nil, fmt.Errorf("get job stats: %w", err)
	}
	return stats, nil
}

// GetByID returns a job by its ID.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, errors.New("job id is required")
	}
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// ListRecent returns recent jobs, newest first, with optional type and status
// filters. Pagination is clamped here so defaults do not drift across layers.
func (s *JobService) ListRecent(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	p := normalizePagination(opts.Limit, opts.Offset)
	opts.Limit = p.Limit
	opts.Offset = p.Offset

	jobs, err := s.repo.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	return jobs, nil
}

// Subscribe registers interest in queue wake notifications. Returns an
// unsubscribe function and the channel that receives wakes.
func (s *JobService) Subscribe() (func(), <-chan struct{}) {
	if s.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return s.notifier.Subscribe()
}

// StopAllListeners stops the background notification listener.
// This should be called during graceful shutdown to clean up goroutines.
func (s *JobService) StopAllListeners() {
	if s.logger != nil {
		s.logger.Info("stopping job queue listeners")
	}

	if s.notifier != nil {
		s.notifier.StopAll()
	}
}

// paginationParams holds normalized pagination parameters.
type paginationParams struct {
	Limit  int
	Offset int
}

// normalizePagination clamps pagination parameters to safe defaults.
// Default limit: 50, max limit: 1000, min offset: 0.
func normalizePagination(limit, offset int) paginationParams {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	return paginationParams{Limit: limit, Offset: offset}
}
