package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/draftforge/composerd/internal/core"
	"github.com/draftforge/composerd/internal/domain/model"
)

// ArtifactServiceOptions groups dependencies for ArtifactService.
type ArtifactServiceOptions struct {
	Repo   core.ArtifactRepository // Required: artifact repository
	Logger *slog.Logger            // Optional: structured logger
}

// ArtifactService provides read access to generated artifacts. Writes happen
// only through the compose handler's upsert path.
type ArtifactService struct {
	repo   core.ArtifactRepository
	logger *slog.Logger
}

// NewArtifactService constructs a new ArtifactService.
func NewArtifactService(opts ArtifactServiceOptions) (*ArtifactService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ArtifactRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "artifact_service")
	}

	return &ArtifactService{
		repo:   opts.Repo,
		logger: logger,
	}, nil
}

// GetBySourceSlot returns the artifact for one (source, slot) key.
func (s *ArtifactService) GetBySourceSlot(ctx context.Context, sourceID, slot string) (*model.Artifact, error) {
	if sourceID == "" {
		return nil, errors.New("source id is required")
	}
	if slot == "" {
		return nil, errors.New("slot is required")
	}
	artifact, err := s.repo.GetBySourceSlot(ctx, sourceID, slot)
	if err != nil {
		return nil, fmt.Errorf("get artifact %s/%s: %w", sourceID, slot, err)
	}
	return artifact, nil
}

// List returns artifacts, newest first, with optional source and slot
// filters. Pagination is clamped here so defaults do not drift across layers.
func (s *ArtifactService) List(ctx context.Context, opts model.ArtifactListOptions) ([]*model.Artifact, error) {
	p := normalizePagination(opts.Limit, opts.Offset)
	opts.Limit = p.Limit
	opts.Offset = p.Offset

	artifacts, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return artifacts, nil
}
