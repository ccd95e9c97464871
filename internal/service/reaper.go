package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/draftforge/composerd/config"
	"github.com/draftforge/composerd/internal/observability/metrics"
	"github.com/draftforge/composerd/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Jobs    *JobService         // Required: job service
	Config  config.ReaperConfig // Required: reaper configuration
	Logger  *slog.Logger        // Optional: structured logger
	Metrics statsd.Sink         // Optional: metrics sink (StatsD-compatible)
}

// ReaperService periodically requeues jobs whose workers died mid-run.
//
// A job counts as stuck once it has sat in running longer than the configured
// StuckAfter. Each sweep also publishes queue depth gauges, so a backed-up
// queue is visible without a SQL session.
type ReaperService struct {
	jobs    *JobService
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobService is required")
	}
	if opts.Config.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}
	if opts.Config.StuckAfter <= 0 {
		return nil, errors.New("reaper stuck_after must be positive")
	}
	if opts.Config.BatchSize <= 0 {
		return nil, errors.New("reaper batch size must be positive")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"stuck_after", opts.Config.StuckAfter,
			"batch_size", opts.Config.BatchSize,
		)
	}

	return &ReaperService{
		jobs:    opts.Jobs,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service",
			"interval", s.config.Interval,
			"stuck_after", s.config.StuckAfter,
		)
	}

	// Add jitter to prevent thundering herd if multiple instances start together
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run a sweep immediately after jitter
	s.sweepAndLog(ctx, "initial sweep")

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			// Return nil on graceful shutdown to avoid treating it as a failure
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			// Continue running despite errors
			s.sweepAndLog(ctx, "sweep")
		}
	}
}

// waitWithJitter adds a random delay up to 10% of the interval to prevent thundering herd.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	// Use modulo on uint64 before converting to avoid overflow
	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		// Graceful shutdown during jitter
	}
}

func (s *ReaperService) sweepAndLog(ctx context.Context, label string) {
	err := s.sweep(ctx)
	if err == nil || s.logger == nil {
		return
	}

	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

// sweep runs one requeue pass and refreshes the queue depth gauges.
func (s *ReaperService) sweep(ctx context.Context) error {
	count, err := s.jobs.ReapStuck(ctx, s.config.StuckAfter, s.config.BatchSize)
	metrics.EmitReapSweep(s.metrics, count, suppressContextCancellation(err))
	if err != nil {
		return err
	}

	s.emitQueueDepth(ctx)
	return nil
}

func (s *ReaperService) emitQueueDepth(ctx context.Context) {
	if s.metrics == nil {
		return
	}

	stats, err := s.jobs.Stats(ctx, "")
	if err != nil {
		if s.logger != nil {
			s.logger.DebugContext(ctx, "queue depth stats failed", "error", err)
		}
		return
	}

	metrics.EmitQueueDepth(s.metrics, int64(stats.Queued), int64(stats.Running))
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
