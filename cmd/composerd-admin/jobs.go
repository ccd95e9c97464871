package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/draftforge/composerd/internal/data"
	"github.com/draftforge/composerd/internal/domain/model"
	"github.com/draftforge/composerd/internal/service"
	"github.com/draftforge/composerd/internal/util"
)

const defaultQueryTimeout = 30 * time.Second

type jobStatsOptions struct {
	Type    string
	Timeout time.Duration
}

type listJobsOptions struct {
	Type    string
	Status  string
	Limit   int
	Offset  int
	Timeout time.Duration
}

type enqueueOptions struct {
	Type        string
	SourceID    string
	SourceName  string
	Slot        string
	MaxAttempts int
	Timeout     time.Duration
}

func runJobStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobStatsFlags(args)
	if err != nil {
		return err
	}

	jobTypes := []model.JobType{model.JobTypeCompose, model.JobTypeSourceRefresh}
	if opts.Type != "" {
		jobTypes = []model.JobType{model.JobType(opts.Type)}
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		jobs, buildErr := buildJobService(db, cmdCtx)
		if buildErr != nil {
			return buildErr
		}

		rows := make([]jobStatsRow, 0, len(jobTypes))
		for _, jobType := range jobTypes {
			stats, statsErr := jobs.Stats(ctx, jobType)
			if statsErr != nil {
				return fmt.Errorf("stats for %s: %w", jobType, statsErr)
			}
			rows = append(rows, jobStatsRow{JobType: jobType, Stats: stats})
		}

		return renderJobStatsTable(os.Stdout, rows)
	})
}

func runListJobs(cmdCtx *commandContext, args []string) error {
	opts, err := parseListJobsFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		jobs, buildErr := buildJobService(db, cmdCtx)
		if buildErr != nil {
			return buildErr
		}

		listed, listErr := jobs.ListRecent(ctx, model.JobListOptions{
			JobType: model.JobType(opts.Type),
			Status:  model.JobStatus(opts.Status),
			Limit:   opts.Limit,
			Offset:  opts.Offset,
		})
		if listErr != nil {
			return fmt.Errorf("list jobs: %w", listErr)
		}

		return renderJobTable(os.Stdout, listed)
	})
}

func runEnqueue(cmdCtx *commandContext, args []string) error {
	opts, err := parseEnqueueFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		sourceID := opts.SourceID
		if sourceID == "" {
			resolved, resolveErr := resolveSourceIDByName(ctx, db, cmdCtx.Logger, opts.SourceName)
			if resolveErr != nil {
				return resolveErr
			}
			sourceID = resolved
		}

		payload, payloadErr := buildEnqueuePayload(model.JobType(opts.Type), sourceID, opts.Slot)
		if payloadErr != nil {
			return payloadErr
		}

		jobs, buildErr := buildJobService(db, cmdCtx)
		if buildErr != nil {
			return buildErr
		}

		job, createErr := jobs.Create(ctx, &model.CreateJobRequest{
			JobType:     model.JobType(opts.Type),
			Payload:     payload,
			MaxAttempts: opts.MaxAttempts,
		})
		if createErr != nil {
			return fmt.Errorf("enqueue job: %w", createErr)
		}

		if job.JobType == model.JobTypeCompose {
			return writef(os.Stdout, "Enqueued %s job %s (source %s, slot %s)\n", job.JobType, job.ID, sourceID, opts.Slot)
		}
		return writef(os.Stdout, "Enqueued %s job %s (source %s)\n", job.JobType, job.ID, sourceID)
	})
}

func parseJobStatsFlags(args []string) (jobStatsOptions, error) {
	fs := flag.NewFlagSet("job-stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := jobStatsOptions{
		Timeout: defaultQueryTimeout,
	}

	fs.StringVar(&opts.Type, "type", "", "Only show counts for this job type")
	fs.DurationVar(&opts.Timeout, "timeout", defaultQueryTimeout, "Maximum duration to wait for the query")

	if err := fs.Parse(args); err != nil {
		return jobStatsOptions{}, err
	}

	if opts.Timeout <= 0 {
		return jobStatsOptions{}, errors.New("--timeout must be greater than zero")
	}
	if opts.Type != "" && !model.JobType(opts.Type).Known() {
		return jobStatsOptions{}, fmt.Errorf("unknown job type %q", opts.Type)
	}

	return opts, nil
}

func parseListJobsFlags(args []string) (listJobsOptions, error) {
	fs := flag.NewFlagSet("list-jobs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listJobsOptions{
		Limit:   20,
		Timeout: defaultQueryTimeout,
	}

	fs.StringVar(&opts.Type, "type", "", "Only list jobs of this type")
	fs.StringVar(&opts.Status, "status", "", "Only list jobs with this status")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum number of jobs to list")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of jobs to skip")
	fs.DurationVar(&opts.Timeout, "timeout", defaultQueryTimeout, "Maximum duration to wait for the query")

	if err := fs.Parse(args); err != nil {
		return listJobsOptions{}, err
	}

	if opts.Timeout <= 0 {
		return listJobsOptions{}, errors.New("--timeout must be greater than zero")
	}
	if opts.Type != "" && !model.JobType(opts.Type).Known() {
		return listJobsOptions{}, fmt.Errorf("unknown job type %q", opts.Type)
	}
	if opts.Status != "" && !model.JobStatus(opts.Status).Valid() {
		return listJobsOptions{}, fmt.Errorf("unknown job status %q", opts.Status)
	}
	if opts.Limit <= 0 {
		return listJobsOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Offset < 0 {
		return listJobsOptions{}, errors.New("--offset must be zero or greater")
	}

	return opts, nil
}

func parseEnqueueFlags(args []string) (enqueueOptions, error) {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := enqueueOptions{
		Type:    string(model.JobTypeCompose),
		Slot:    "summary",
		Timeout: defaultQueryTimeout,
	}

	fs.StringVar(&opts.Type, "type", opts.Type, "Job type to enqueue (compose or source_refresh)")
	fs.StringVar(&opts.SourceID, "source", "", "Source ID to enqueue the job for")
	fs.StringVar(&opts.SourceName, "name", "", "Source name to enqueue the job for (resolved to an ID)")
	fs.StringVar(&opts.Slot, "slot", opts.Slot, "Artifact slot for compose jobs")
	fs.IntVar(&opts.MaxAttempts, "max-attempts", 0, "Attempt budget for the job (0 uses the configured default)")
	fs.DurationVar(&opts.Timeout, "timeout", defaultQueryTimeout, "Maximum duration to wait for the enqueue")

	if err := fs.Parse(args); err != nil {
		return enqueueOptions{}, err
	}

	if opts.Timeout <= 0 {
		return enqueueOptions{}, errors.New("--timeout must be greater than zero")
	}
	if !model.JobType(opts.Type).Known() {
		return enqueueOptions{}, fmt.Errorf("unknown job type %q", opts.Type)
	}
	if opts.SourceID == "" && opts.SourceName == "" {
		return enqueueOptions{}, errors.New("one of --source or --name is required")
	}
	if opts.SourceID != "" && opts.SourceName != "" {
		return enqueueOptions{}, errors.New("--source and --name are mutually exclusive")
	}
	if model.JobType(opts.Type) == model.JobTypeCompose && opts.Slot == "" {
		return enqueueOptions{}, errors.New("--slot is required for compose jobs")
	}
	if opts.MaxAttempts < 0 {
		return enqueueOptions{}, errors.New("--max-attempts must be zero or greater")
	}

	return opts, nil
}

// buildEnqueuePayload marshals the payload shape for the requested job type.
// Payload validation happens here so a typo fails the command instead of
// producing a job that can only fail at dispatch time.
func buildEnqueuePayload(jobType model.JobType, sourceID, slot string) (json.RawMessage, error) {
	switch jobType {
	case model.JobTypeCompose:
		payload := model.ComposePayload{SourceID: sourceID, Slot: slot}
		if err := payload.Validate(); err != nil {
			return nil, fmt.Errorf("compose payload: %w", err)
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal compose payload: %w", err)
		}
		return raw, nil
	case model.JobTypeSourceRefresh:
		payload := model.SourceRefreshPayload{SourceID: sourceID}
		if err := payload.Validate(); err != nil {
			return nil, fmt.Errorf("source refresh payload: %w", err)
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal source refresh payload: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unknown job type %q", jobType)
	}
}

func resolveSourceIDByName(ctx context.Context, db *sql.DB, logger *slog.Logger, name string) (string, error) {
	sources, err := service.NewSourceService(service.SourceServiceOptions{
		Repo:   data.NewSourceRepo(db),
		Logger: logger,
	})
	if err != nil {
		return "", fmt.Errorf("create source service: %w", err)
	}

	source, err := sources.GetByName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("resolve source %q: %w", name, err)
	}
	return source.ID, nil
}

func buildJobService(db *sql.DB, cmdCtx *commandContext) (*service.JobService, error) {
	maxAttempts := cmdCtx.Config.Worker.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:               data.NewJobRepo(db, data.RepoConfig{}),
		DefaultMaxAttempts: maxAttempts,
		Logger:             cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create job service: %w", err)
	}
	return jobs, nil
}

type jobStatsRow struct {
	JobType model.JobType
	Stats   *model.JobStats
}

func renderJobStatsTable(out io.Writer, rows []jobStatsRow) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writef(w, "TYPE\tQUEUED\tRUNNING\tDONE\tFAILED\n"); err != nil {
		return fmt.Errorf("write stats header: %w", err)
	}
	for _, row := range rows {
		if err := writef(
			w,
			"%s\t%d\t%d\t%d\t%d\n",
			row.JobType,
			row.Stats.Queued,
			row.Stats.Running,
			row.Stats.Done,
			row.Stats.Failed,
		); err != nil {
			return fmt.Errorf("write stats row: %w", err)
		}
	}
	return w.Flush()
}

func renderJobTable(out io.Writer, jobs []*model.Job) error {
	if len(jobs) == 0 {
		return writeln(out, "No jobs found.")
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if err := writef(w, "ID\tTYPE\tSTATUS\tATTEMPTS\tAGE\tUPDATED\n"); err != nil {
		return fmt.Errorf("write job header: %w", err)
	}
	now := time.Now()
	for _, job := range jobs {
		if err := writef(
			w,
			"%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			job.ID,
			job.JobType,
			job.Status,
			job.Attempts,
			job.MaxAttempts,
			util.FormatProcessingDuration(now.Sub(job.CreatedAt)),
			formatTimestamp(job.UpdatedAt),
		); err != nil {
			return fmt.Errorf("write job row: %w", err)
		}
	}
	return w.Flush()
}
