package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/draftforge/composerd/config"
	"github.com/draftforge/composerd/internal/adapters/worker"
	"github.com/draftforge/composerd/internal/compose"
	"github.com/draftforge/composerd/internal/core"
	"github.com/draftforge/composerd/internal/data"
	"github.com/draftforge/composerd/internal/domain/model"
	"github.com/draftforge/composerd/internal/generate"
	"github.com/draftforge/composerd/internal/observability/statsd"
	"github.com/draftforge/composerd/internal/service"
)

// WorkerConfig contains configuration for the worker runner.
type WorkerConfig struct {
	DB            *sql.DB
	Jobs          *service.JobService
	SourceContext *core.SourceContextService
	Generator     generate.Generator // Optional: overrides the client built from Generation
	Config        config.WorkerConfig
	Generation    config.GenerationConfig
	Logger        *slog.Logger
	Metrics       statsd.Sink
}

// RunWorker starts the worker pool. It wires the compose and source refresh
// handlers into a dispatcher and blocks until ctx ends or the pool fails.
func RunWorker(ctx context.Context, cfg WorkerConfig) error {
	generator := cfg.Generator
	if generator == nil {
		client, err := generate.NewClient(generate.Config{
			BaseURL:     cfg.Generation.BaseURL,
			APIKey:      cfg.Generation.APIKey,
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
			Timeout:     cfg.Generation.Timeout,
			Logger:      cfg.Logger,
		})
		if err != nil {
			return fmt.Errorf("create generation client: %w", err)
		}
		generator = client
	}

	composeHandler, err := compose.NewHandler(compose.HandlerOptions{
		Artifacts:     data.NewArtifactRepo(cfg.DB),
		SourceContext: cfg.SourceContext,
		Generator:     generator,
		Metrics:       cfg.Metrics,
		Logger:        cfg.Logger,
	})
	if err != nil {
		return fmt.Errorf("create compose handler: %w", err)
	}

	refreshHandler, err := compose.NewRefreshHandler(cfg.SourceContext, cfg.Logger)
	if err != nil {
		return fmt.Errorf("create source refresh handler: %w", err)
	}

	dispatcher := worker.NewDispatcher()
	dispatcher.Register(model.JobTypeCompose, composeHandler.Handle)
	dispatcher.Register(model.JobTypeSourceRefresh, refreshHandler.Handle)

	runner, err := worker.NewRunner(worker.RunnerOptions{
		Jobs:       cfg.Jobs,
		Dispatcher: dispatcher,
		Config:     cfg.Config,
		Logger:     cfg.Logger,
		Metrics:    cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create worker runner: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	Jobs    *service.JobService
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Jobs:    cfg.Jobs,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper service: %w", err)
	}

	return reaper.Run(ctx)
}
