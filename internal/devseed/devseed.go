// Package devseed populates a development database with sample sources and
// artifacts so the HTTP API and worker have data to operate on.
package devseed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/draftforge/composerd/internal/core"
	"github.com/draftforge/composerd/internal/data"
	"github.com/draftforge/composerd/internal/domain/model"
	"github.com/draftforge/composerd/internal/service"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB        *sql.DB
	sources   *service.SourceService
	artifacts *data.ArtifactRepo
}

// NewServices constructs all required services for seeding using the provided DB.
func NewServices(db *sql.DB) (Services, error) {
	sourceRepo := data.NewSourceRepo(db)
	sourceService, err := service.NewSourceService(service.SourceServiceOptions{
		Repo: sourceRepo,
	})
	if err != nil {
		return Services{}, fmt.Errorf("create source service: %w", err)
	}

	return Services{
		DB:        db,
		sources:   sourceService,
		artifacts: data.NewArtifactRepo(db),
	}, nil
}

// Run executes the full development seeding workflow against the provided DB.
// Sources are created or updated by name and artifacts are upserts keyed on
// (source, slot), so repeated runs converge instead of accumulating rows.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0
	byName, sourceFailures := seedSources(ctx, svcs.sources, logger)
	failures += sourceFailures
	failures += seedArtifacts(ctx, svcs.artifacts, byName, logger)
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedSources(
	ctx context.Context,
	svc *service.SourceService,
	logger *slog.Logger,
) (map[string]string, int) {
	failures := 0
	byName := make(map[string]string)
	for _, req := range defaultSources() {
		params := sourceOperationParams{
			ctx:     ctx,
			svc:     svc,
			logger:  logger,
			request: req,
		}
		id, err := createOrUpdateSource(params)
		if err != nil {
			failures++
			continue
		}
		byName[req.Name] = id
	}
	return byName, failures
}

func defaultSources() []*model.CreateSourceRequest {
	return []*model.CreateSourceRequest{
		{
			Name:    "aurora-desk-lamp",
			Summary: "Adjustable LED desk lamp with three colour temperatures and a USB-C charging port.",
			Attributes: json.RawMessage(`{
				"category": "lighting",
				"brand": "Aurora",
				"price_usd": 49.99,
				"features": ["3 colour temperatures", "USB-C charging", "memory dimmer"]
			}`),
		},
		{
			Name:    "trailhead-daypack-22l",
			Summary: "22 litre hiking daypack with a ventilated back panel and integrated rain cover.",
			Attributes: json.RawMessage(`{
				"category": "outdoor",
				"brand": "Trailhead",
				"price_usd": 89.00,
				"features": ["ventilated back panel", "rain cover", "hip belt pockets"]
			}`),
		},
		{
			Name:    "brewmaster-pour-over-kit",
			Summary: "Complete pour-over coffee kit with a borosilicate carafe, dripper, and scale.",
			Attributes: json.RawMessage(`{
				"category": "kitchen",
				"brand": "Brewmaster",
				"price_usd": 64.50,
				"features": ["borosilicate glass", "0.1g scale", "reusable filter"]
			}`),
		},
		{
			Name:    "cascade-wireless-earbuds",
			Summary: "Wireless earbuds with active noise cancellation and an eight hour battery.",
			Attributes: json.RawMessage(`{
				"category": "audio",
				"brand": "Cascade",
				"price_usd": 129.00,
				"features": ["active noise cancellation", "8h battery", "wireless charging case"]
			}`),
		},
	}
}

type sourceOperationParams struct {
	ctx     context.Context
	svc     *service.SourceService
	logger  *slog.Logger
	request *model.CreateSourceRequest
}

func createOrUpdateSource(params sourceOperationParams) (string, error) {
	source, err := params.svc.Create(params.ctx, params.request)
	if err == nil {
		params.logSourceCreated()
		return source.ID, nil
	}

	if !errors.Is(err, data.ErrSourceNameExists) {
		params.logSourceCreateError(err)
		return "", err
	}

	return updateExistingSource(params)
}

func updateExistingSource(params sourceOperationParams) (string, error) {
	if params.logger != nil {
		params.logger.InfoContext(
			params.ctx,
			"source already exists",
			"name",
			params.request.Name,
			"action",
			"updating",
		)
	}

	source, err := params.svc.GetByName(params.ctx, params.request.Name)
	if err != nil {
		if params.logger != nil {
			params.logger.ErrorContext(
				params.ctx,
				"failed to load source for update",
				"name",
				params.request.Name,
				"error",
				err,
			)
		}
		return "", err
	}

	summary := params.request.Summary
	upd := model.UpdateSourceRequest{Summary: &summary}
	if params.request.Attributes != nil {
		upd.Attributes = params.request.Attributes
	}
	if _, updateErr := params.svc.Update(params.ctx, source.ID, upd); updateErr != nil {
		if params.logger != nil {
			params.logger.ErrorContext(
				params.ctx,
				"failed to update source",
				"name",
				params.request.Name,
				"error",
				updateErr,
			)
		}
		return "", updateErr
	}
	if params.logger != nil {
		params.logger.InfoContext(params.ctx, "updated source", "name", params.request.Name)
	}
	return source.ID, nil
}

func (p sourceOperationParams) logSourceCreated() {
	if p.logger == nil {
		return
	}

	p.logger.InfoContext(p.ctx, "created source", "name", p.request.Name)
}

func (p sourceOperationParams) logSourceCreateError(err error) {
	if p.logger == nil {
		return
	}

	p.logger.ErrorContext(p.ctx, "failed to create source", "name", p.request.Name, "error", err)
}

type artifactSeedSpec struct {
	sourceName string
	slot       string
	title      string
	body       string
	tags       []string
}

func defaultArtifactSeeds() []artifactSeedSpec {
	return []artifactSeedSpec{
		{
			sourceName: "aurora-desk-lamp",
			slot:       "summary",
			title:      "Aurora Desk Lamp",
			body: "A compact LED desk lamp with three colour temperatures, " +
				"a memory dimmer, and a built-in USB-C charging port.",
			tags: []string{"lighting", "desk", "led"},
		},
		{
			sourceName: "trailhead-daypack-22l",
			slot:       "summary",
			title:      "Trailhead 22L Daypack",
			body: "A ventilated 22 litre daypack with an integrated rain cover " +
				"and hip belt pockets, sized for day hikes.",
			tags: []string{"outdoor", "hiking", "pack"},
		},
	}
}

func seedArtifacts(
	ctx context.Context,
	repo *data.ArtifactRepo,
	sourceIDsByName map[string]string,
	logger *slog.Logger,
) int {
	failures := 0
	for _, spec := range defaultArtifactSeeds() {
		sourceID, ok := sourceIDsByName[spec.sourceName]
		if !ok {
			if logger != nil {
				logger.WarnContext(ctx, "skipping artifact seed; source missing", "source", spec.sourceName)
			}
			failures++
			continue
		}

		_, err := repo.Upsert(ctx, core.UpsertArtifactParams{
			SourceID: sourceID,
			Slot:     spec.slot,
			Content: model.ArtifactContent{
				Title: spec.title,
				Body:  spec.body,
				Tags:  spec.tags,
			},
			Meta: model.ArtifactMeta{
				TraceID: "devseed",
				JobID:   "devseed",
				Model:   "devseed",
			},
		})
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed artifact", "source", spec.sourceName, "slot", spec.slot, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "seeded artifact", "source", spec.sourceName, "slot", spec.slot)
		}
	}
	return failures
}
