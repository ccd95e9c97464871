package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/draftforge/composerd/internal/core"
	jobdomain "github.com/draftforge/composerd/internal/domain/job"
	"github.com/draftforge/composerd/internal/domain/model"
	"github.com/draftforge/composerd/internal/generate"
	"github.com/draftforge/composerd/internal/observability/metrics"
	"github.com/draftforge/composerd/internal/observability/statsd"
)

// Handler executes compose jobs: it resolves the source, renders a prompt,
// calls the generator, and upserts the resulting artifact. Any returned error
// counts one attempt against the job's retry budget.
type Handler struct {
	artifacts     core.ArtifactRepository
	sourceContext *core.SourceContextService
	generator     generate.Generator
	metrics       statsd.Sink
	logger        *slog.Logger
}

// HandlerOptions bundles dependencies for NewHandler.
type HandlerOptions struct {
	Artifacts     core.ArtifactRepository
	SourceContext *core.SourceContextService
	Generator     generate.Generator
	Metrics       statsd.Sink
	Logger        *slog.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Artifacts == nil {
		return nil, errors.New("artifact repository is required")
	}
	if opts.SourceContext == nil {
		return nil, errors.New("source context service is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("generator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		artifacts:     opts.Artifacts,
		sourceContext: opts.SourceContext,
		generator:     opts.Generator,
		metrics:       opts.Metrics,
		logger:        logger.With("component", "compose"),
	}, nil
}

// Handle runs one compose job to completion. The artifact write is an upsert
// keyed on (source, slot), so retries and duplicate jobs converge on the same
// row instead of accumulating copies.
func (h *Handler) Handle(ctx context.Context, job *model.Job) error {
	start := time.Now()

	var payload model.ComposePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode compose payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid compose payload: %w", err)
	}

	profile, err := profileFor(payload.Slot)
	if err != nil {
		return err
	}

	source, err := h.sourceContext.GetContext(ctx, payload.SourceID)
	if err != nil {
		return fmt.Errorf("resolve source context: %w", err)
	}

	userContext, err := renderUserContext(source, payload.Slot)
	if err != nil {
		return fmt.Errorf("render context: %w", err)
	}

	genStart := time.Now()
	result, err := h.generator.Generate(ctx, generate.Request{
		SystemInstructions: profile.SystemInstructions,
		UserContext:        userContext,
		OutputSchema:       profile.OutputSchema,
	})
	genDuration := time.Since(genStart)
	if err != nil {
		metrics.EmitGeneration(h.metrics, metrics.GenerationMetric{
			Slot:     payload.Slot,
			Result:   metrics.ResultError,
			Duration: genDuration,
			Err:      err,
		})
		return fmt.Errorf("generate %s/%s: %w", payload.SourceID, payload.Slot, err)
	}
	metrics.EmitGeneration(h.metrics, metrics.GenerationMetric{
		Slot:     payload.Slot,
		Result:   metrics.ResultSuccess,
		Duration: genDuration,
	})

	content, err := extractContent(result.Document, profile.Selectors)
	if err != nil {
		return fmt.Errorf("extract artifact fields: %w", err)
	}

	meta := model.ArtifactMeta{
		TraceID:    jobdomain.TraceIDFrom(ctx),
		JobID:      job.ID,
		Model:      result.Model,
		GenerateMS: genDuration.Milliseconds(),
		TotalMS:    time.Since(start).Milliseconds(),
	}
	artifact, err := h.artifacts.Upsert(ctx, core.UpsertArtifactParams{
		SourceID: payload.SourceID,
		Slot:     payload.Slot,
		Content:  content,
		Meta:     meta,
	})
	if err != nil {
		return fmt.Errorf("persist artifact: %w", err)
	}

	h.logger.InfoContext(ctx, "artifact composed",
		"artifact_id", artifact.ID,
		"source_id", payload.SourceID,
		"slot", payload.Slot,
		"model", result.Model,
		"generate_ms", meta.GenerateMS,
		"total_ms", meta.TotalMS,
	)
	return nil
}
