// Package export renders artifact listings as XLSX workbooks for download
// from the ops API.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/draftforge/composerd/internal/domain/model"
)

const (
	defaultExportLimit = 1000
	maxExportLimit     = 10000

	// XLSX cells hold at most 32767 characters; long bodies are cut below
	// that so the write never fails silently.
	maxCellChars = 32000
)

// artifactLister is the slice of the artifact port the export service reads
// from. Satisfied by core.ArtifactRepository.
type artifactLister interface {
	List(ctx context.Context, opts model.ArtifactListOptions) ([]*model.Artifact, error)
}

// sourceResolver resolves source ids to display names. Satisfied by
// core.SourceRepository.
type sourceResolver interface {
	GetByID(ctx context.Context, id string) (*model.Source, error)
}

// ServiceOptions holds dependencies for the export Service.
type ServiceOptions struct {
	Artifacts artifactLister // Required: artifact listings
	Sources   sourceResolver // Optional: resolves source names for the Source column
	Logger    *slog.Logger   // Optional: structured logger
}

// Service renders artifact listings as downloadable workbooks.
type Service struct {
	artifacts artifactLister
	sources   sourceResolver
	logger    *slog.Logger
}

// NewService creates an export service from options.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Artifacts == nil {
		return nil, errors.New("ArtifactRepository is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		artifacts: opts.Artifacts,
		sources:   opts.Sources,
		logger:    logger.With("component", "export_service"),
	}, nil
}

// ArtifactsXLSX renders the matching artifacts as an XLSX workbook. Exports
// page wider than API listings: a non-positive limit selects 1000 rows and
// the ceiling is 10000.
func (s *Service) ArtifactsXLSX(ctx context.Context, opts model.ArtifactListOptions) ([]byte, error) {
	start := time.Now()

	if opts.Limit <= 0 {
		opts.Limit = defaultExportLimit
	}
	if opts.Limit > maxExportLimit {
		opts.Limit = maxExportLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	artifacts, err := s.artifacts.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Artifacts"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	headers := []string{"Source", "Slot", "Title", "Body", "Tags", "Model", "Trace ID", "Updated At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	names := map[string]string{}
	for i, artifact := range artifacts {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		meta := decodeMeta(artifact.Meta)

		write(1, s.sourceLabel(ctx, names, artifact.SourceID))
		write(2, artifact.Slot)
		write(3, artifact.Title)
		write(4, truncateCell(artifact.Body, maxCellChars))
		write(5, joinTags(artifact.Tags))
		write(6, meta.Model)
		write(7, meta.TraceID)
		write(8, artifact.UpdatedAt.UTC().Format(time.RFC3339))
	}

	_ = f.SetColWidth(sheet, "A", "B", 18)
	_ = f.SetColWidth(sheet, "C", "C", 40)
	_ = f.SetColWidth(sheet, "D", "D", 80)
	_ = f.SetColWidth(sheet, "E", "E", 30)
	_ = f.SetColWidth(sheet, "F", "G", 24)
	_ = f.SetColWidth(sheet, "H", "H", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}

	s.logger.InfoContext(ctx, "artifact export rendered",
		"rows", len(artifacts),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// sourceLabel resolves a source id to its name once per export, falling back
// to the raw id when the lookup misses.
func (s *Service) sourceLabel(ctx context.Context, cache map[string]string, sourceID string) string {
	if label, ok := cache[sourceID]; ok {
		return label
	}

	label := sourceID
	if s.sources != nil {
		if src, err := s.sources.GetByID(ctx, sourceID); err == nil && src != nil && src.Name != "" {
			label = src.Name
		}
	}
	cache[sourceID] = label
	return label
}

func decodeMeta(raw json.RawMessage) model.ArtifactMeta {
	var meta model.ArtifactMeta
	if len(raw) == 0 {
		return meta
	}
	_ = json.Unmarshal(raw, &meta)
	return meta
}

func joinTags(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return ""
	}
	return strings.Join(tags, ", ")
}

// truncateCell cuts s to at most limit bytes without splitting a UTF-8
// sequence, marking the cut with an ellipsis.
func truncateCell(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
