package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/draftforge/composerd/internal/core"
	"github.com/draftforge/composerd/internal/domain/model"
)

// sourceCache defines the minimal behavior required from the source context
// cache. Satisfied by core.SourceContextService.
type sourceCache interface {
	RefreshContext(ctx context.Context, sourceID string) error
	InvalidateContext(ctx context.Context, sourceID string) error
}

// SourceServiceOptions groups dependencies for SourceService.
type SourceServiceOptions struct {
	Repo   core.SourceRepository // Required: source repository
	Cache  sourceCache           // Optional: source context cache
	Logger *slog.Logger          // Optional: structured logger
}

// SourceService orchestrates source CRUD and keeps the cached prompt context
// in step with writes. Cache maintenance is best effort: the row is the
// source of truth and a missed refresh only costs one read-through later.
type SourceService struct {
	repo   core.SourceRepository
	cache  sourceCache
	logger *slog.Logger
}

// NewSourceService constructs a new SourceService.
func NewSourceService(opts SourceServiceOptions) (*SourceService, error) {
	if opts.Repo == nil {
		return nil, errors.New("SourceRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "source_service")
	}

	return &SourceService{
		repo:   opts.Repo,
		cache:  opts.Cache,
		logger: logger,
	}, nil
}

// Create creates a source and warms its cached context.
func (s *SourceService) Create(ctx context.Context, req *model.CreateSourceRequest) (*model.Source, error) {
	source, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}
	s.refreshContext(ctx, source.ID)
	return source, nil
}

// Update updates a source and rebuilds its cached context so compose jobs
// never render prompts from a superseded row for longer than the write.
func (s *SourceService) Update(ctx context.Context, id string, req model.UpdateSourceRequest) (*model.Source, error) {
	source, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update source: %w", err)
	}
	s.invalidateContext(ctx, id)
	s.refreshContext(ctx, id)
	return source, nil
}

// Delete deletes a source and drops its cached context. Artifacts under the
// source go with the row via ON DELETE CASCADE.
func (s *SourceService) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete source %s: %w", id, err)
	}
	if ok {
		s.invalidateContext(ctx, id)
		if s.logger != nil {
			s.logger.InfoContext(ctx, "source deleted", "id", id)
		}
	}
	return ok, nil
}

// GetByID returns a source by id.
func (s *SourceService) GetByID(ctx context.Context, id string) (*model.Source, error) {
	if id == "" {
		return nil, errors.New("source id is required")
	}
	source, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get source %s: %w", id, err)
	}
	return source, nil
}

// GetByName returns a source by its unique name.
func (s *SourceService) GetByName(ctx context.Context, name string) (*model.Source, error) {
	if name == "" {
		return nil, errors.New("source name is required")
	}
	source, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get source by name: %w", err)
	}
	return source, nil
}

// List returns sources with pagination, optionally filtered to names
// containing q.
func (s *SourceService) List(ctx context.Context, q string, limit, offset int) ([]*model.Source, error) {
	p := normalizePagination(limit, offset)

	var (
		sources []*model.Source
		err     error
	)
	if q != "" {
		sources, err = s.repo.ListByNameContains(ctx, q, p.Limit, p.Offset)
	} else {
		sources, err = s.repo.List(ctx, p.Limit, p.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

func (s *SourceService) refreshContext(ctx context.Context, sourceID string) {
	if s.cache == nil || sourceID == "" {
		return
	}
	if err := s.cache.RefreshContext(ctx, sourceID); err != nil && s.logger != nil {
		s.logger.DebugContext(ctx, "refresh source context failed", "source_id", sourceID, "error", err)
	}
}

func (s *SourceService) invalidateContext(ctx context.Context, sourceID string) {
	if s.cache == nil || sourceID == "" {
		return
	}
	if err := s.cache.InvalidateContext(ctx, sourceID); err != nil && s.logger != nil {
		s.logger.DebugContext(ctx, "invalidate source context failed", "source_id", sourceID, "error", err)
	}
}
