// Package worker claims queued jobs from the store and executes them through
// registered handlers. Every finalizing write carries the claiming worker's
// id, so a job that was reaped and reclaimed elsewhere cannot be finished
// twice.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/draftforge/composerd/config"
	"github.com/draftforge/composerd/internal/core"
	jobdomain "github.com/draftforge/composerd/internal/domain/job"
	"github.com/draftforge/composerd/internal/domain/model"
	"github.com/draftforge/composerd/internal/observability/metrics"
	"github.com/draftforge/composerd/internal/observability/statsd"
	"github.com/draftforge/composerd/internal/service"
)

// RunnerOptions configures a worker Runner.
type RunnerOptions struct {
	Jobs       *service.JobService // Required: queue operations
	Dispatcher *Dispatcher         // Required: job type routing
	Config     config.WorkerConfig
	Logger     *slog.Logger // Optional: defaults to slog.Default()
	Metrics    statsd.Sink  // Optional: nil disables metric emission
}

// Runner drives a pool of worker loops over the job queue. Each loop claims
// a job, dispatches it, records the outcome, and goes back for more; idle
// loops wait on queue notifications when those are enabled.
type Runner struct {
	jobs       *service.JobService
	dispatcher *Dispatcher
	cfg        config.WorkerConfig
	backoff    *jobdomain.BackoffPolicy
	logger     *slog.Logger
	metrics    statsd.Sink
}

// NewRunner validates options, fills in defaults for unset tuning knobs, and
// returns a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobService is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("Dispatcher is required")
	}

	cfg := opts.Config
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = 2 * time.Second
	}
	if cfg.ErrorDelay <= 0 {
		cfg.ErrorDelay = 5 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 10 * time.Second
	}
	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = cfg.BackoffBase
	}
	if cfg.ReapBatchSize <= 0 {
		cfg.ReapBatchSize = 100
	}

	backoff, err := jobdomain.NewBackoffPolicy(cfg.BackoffBase, cfg.BackoffCap)
	if err != nil {
		return nil, fmt.Errorf("build backoff policy: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		jobs:       opts.Jobs,
		dispatcher: opts.Dispatcher,
		cfg:        cfg,
		backoff:    backoff,
		logger:     logger.With("component", "worker_runner"),
		metrics:    opts.Metrics,
	}, nil
}

// Run blocks until ctx ends or a worker loop returns an error. Cancellation
// is a clean shutdown and returns nil.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting worker runner",
		"workers", r.cfg.Concurrency,
		"job_types", r.dispatcher.Types(),
		"idle_delay", r.cfg.IdleDelay,
		"wake_on_notify", r.cfg.WakeOnNotify,
	)

	// One shared subscription: a queue wake rouses one idle loop, which is
	// all a single new job needs.
	var wake <-chan struct{}
	if r.cfg.WakeOnNotify {
		unsubscribe, ch := r.jobs.Subscribe()
		defer unsubscribe()
		wake = ch
	}

	g, ctx := errgroup.WithContext(ctx)
	for range r.cfg.Concurrency {
		g.Go(func() error {
			return r.workerLoop(ctx, wake)
		})
	}
	return g.Wait()
}

// workerLoop claims and executes jobs until ctx ends. Job failures never
// terminate the loop; infrastructure errors are logged and absorbed with a
// delay so a database blip does not kill the pool.
func (r *Runner) workerLoop(ctx context.Context, wake <-chan struct{}) error {
	workerID := uuid.NewString()
	logger := r.logger.With("worker_id", workerID)
	logger.DebugContext(ctx, "worker loop started")

	var nextReap time.Time
	for {
		if err := ctx.Err(); err != nil {
			logger.DebugContext(ctx, "worker loop stopped")
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		r.maybeReap(ctx, logger, &nextReap)

		job, err := r.jobs.ClaimNext(ctx, workerID)
		switch {
		case err == nil:
			metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
				JobType:    string(job.JobType),
				Transition: metrics.TransitionClaim,
				Result:     metrics.ResultSuccess,
			})
			r.processJob(ctx, logger, workerID, job)
		case errors.Is(err, model.ErrNoJobsAvailable):
			metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
				Transition: metrics.TransitionClaim,
				Result:     metrics.ResultNoop,
			})
			if !r.idle(ctx, wake) {
				// Notifier shut down and closed the channel; fall back to
				// polling on the idle delay.
				wake = nil
			}
		case isContextCancellation(err):
			// Shutdown raced the claim; the next iteration observes ctx.
		default:
			logger.ErrorContext(ctx, "claim job error", "error", err)
			metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
				Transition: metrics.TransitionClaim,
				Result:     metrics.ResultError,
				Err:        err,
			})
			r.sleep(ctx, r.cfg.ErrorDelay)
		}
	}
}

// processJob executes one claimed job and finalizes its outcome. The handler
// and the finalizing write run on a context detached from shutdown so an
// in-flight job drains instead of being abandoned mid-write; only the
// post-failure backoff stays on the loop context.
func (r *Runner) processJob(ctx context.Context, logger *slog.Logger, workerID string, job *model.Job) {
	traceID := jobdomain.NewTraceID()
	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "trace_id", traceID)

	jobCtx := jobdomain.WithTraceID(context.WithoutCancel(ctx), traceID)

	start := time.Now()
	emit := func(transition, result string, err error) {
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			JobType:    string(job.JobType),
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
			Err:        err,
		})
	}

	logger.DebugContext(jobCtx, "job started", "attempt", job.Attempts+1, "max_attempts", job.MaxAttempts)

	handlerErr := r.dispatcher.Dispatch(jobCtx, job)
	if handlerErr == nil {
		completed, err := r.jobs.Complete(jobCtx, core.CompleteJobParams{
			ID:       job.ID,
			WorkerID: workerID,
			TraceID:  traceID,
		})
		switch {
		case err != nil:
			logger.ErrorContext(jobCtx, "complete job error", "error", err)
			emit(metrics.TransitionComplete, metrics.ResultError, err)
		case !completed:
			logger.WarnContext(jobCtx, "job finished but claim was lost", "duration_ms", time.Since(start).Milliseconds())
			emit(metrics.TransitionComplete, metrics.ResultNoop, nil)
		default:
			logger.InfoContext(jobCtx, "job completed", "duration_ms", time.Since(start).Milliseconds())
			emit(metrics.TransitionComplete, metrics.ResultSuccess, nil)
		}
		return
	}

	failure, err := r.jobs.Fail(jobCtx, core.FailJobParams{
		ID:       job.ID,
		WorkerID: workerID,
		ErrMsg:   handlerErr.Error(),
		TraceID:  traceID,
	})
	switch {
	case err != nil:
		logger.ErrorContext(jobCtx, "fail job error", "error", err, "original_error", handlerErr)
		emit(metrics.TransitionFail, metrics.ResultError, err)
	case failure == nil:
		logger.WarnContext(jobCtx, "job failed but claim was lost", "original_error", handlerErr)
		emit(metrics.TransitionFail, metrics.ResultNoop, nil)
	case failure.Terminal():
		logger.ErrorContext(jobCtx, "job failed permanently", "attempts", failure.Attempts, "error", handlerErr)
		emit(metrics.TransitionFail, metrics.ResultError, handlerErr)
	default:
		logger.WarnContext(jobCtx, "job attempt failed, requeued",
			"attempts", failure.Attempts,
			"max_attempts", job.MaxAttempts,
			"error", handlerErr,
		)
		emit(metrics.TransitionFail, metrics.ResultError, handlerErr)
		// Self-imposed delay before this loop claims again; other loops may
		// pick the requeued job up sooner.
		r.sleep(ctx, r.backoff.Delay(failure.Attempts))
	}
}

// maybeReap runs an inline requeue pass when the cadence is due. Every loop
// keeps its own clock; the store's advisory lock turns overlapping passes
// into cheap no-ops. A non-positive ReapEvery or StuckAfter disables inline
// reaping.
func (r *Runner) maybeReap(ctx context.Context, logger *slog.Logger, next *time.Time) {
	if r.cfg.ReapEvery <= 0 || r.cfg.StuckAfter <= 0 {
		return
	}
	if time.Now().Before(*next) {
		return
	}
	*next = time.Now().Add(r.cfg.ReapEvery)

	count, err := r.jobs.ReapStuck(ctx, r.cfg.StuckAfter, r.cfg.ReapBatchSize)
	metrics.EmitReapSweep(r.metrics, count, suppressContextCancellation(err))
	if err != nil && !isContextCancellation(err) {
		logger.ErrorContext(ctx, "inline reap error", "error", err)
	}
}

// idle waits for the next reason to poll: a queue wake, the idle delay, or
// shutdown. It reports false once the wake channel is closed. A nil wake
// channel never fires, which leaves the delay as the only wake source.
func (r *Runner) idle(ctx context.Context, wake <-chan struct{}) bool {
	timer := time.NewTimer(r.cfg.IdleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case _, ok := <-wake:
		return ok
	case <-timer.C:
	}
	return true
}

// sleep pauses for d unless ctx ends first.
func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
