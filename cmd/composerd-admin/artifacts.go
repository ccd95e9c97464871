package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/draftforge/composerd/internal/data"
	"github.com/draftforge/composerd/internal/domain/model"
	"github.com/draftforge/composerd/internal/export"
)

const (
	defaultExportTimeout = time.Minute
	exportFileMode       = 0o600
)

type exportArtifactsOptions struct {
	Out     string
	Source  string
	Slot    string
	Limit   int
	Offset  int
	Timeout time.Duration
}

func runExportArtifacts(cmdCtx *commandContext, args []string) error {
	opts, err := parseExportArtifactsFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		exporter, buildErr := export.NewService(export.ServiceOptions{
			Artifacts: data.NewArtifactRepo(db),
			Sources:   data.NewSourceRepo(db),
			Logger:    cmdCtx.Logger,
		})
		if buildErr != nil {
			return fmt.Errorf("create export service: %w", buildErr)
		}

		workbook, exportErr := exporter.ArtifactsXLSX(ctx, model.ArtifactListOptions{
			SourceID: opts.Source,
			Slot:     opts.Slot,
			Limit:    opts.Limit,
			Offset:   opts.Offset,
		})
		if exportErr != nil {
			return fmt.Errorf("export artifacts: %w", exportErr)
		}

		if writeErr := os.WriteFile(opts.Out, workbook, exportFileMode); writeErr != nil {
			return fmt.Errorf("write workbook %s: %w", opts.Out, writeErr)
		}

		return writef(os.Stdout, "Wrote %d bytes to %s\n", len(workbook), opts.Out)
	})
}

func parseExportArtifactsFlags(args []string) (exportArtifactsOptions, error) {
	fs := flag.NewFlagSet("export-artifacts", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := exportArtifactsOptions{
		Out:     "artifacts.xlsx",
		Timeout: defaultExportTimeout,
	}

	fs.StringVar(&opts.Out, "out", opts.Out, "Path of the XLSX file to write")
	fs.StringVar(&opts.Source, "source", "", "Only export artifacts for this source ID")
	fs.StringVar(&opts.Slot, "slot", "", "Only export artifacts for this slot")
	fs.IntVar(&opts.Limit, "limit", 0, "Maximum number of artifacts to export (0 uses the export default)")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of artifacts to skip")
	fs.DurationVar(&opts.Timeout, "timeout", defaultExportTimeout, "Maximum duration to wait for the export")

	if err := fs.Parse(args); err != nil {
		return exportArtifactsOptions{}, err
	}

	if opts.Timeout <= 0 {
		return exportArtifactsOptions{}, errors.New("--timeout must be greater than zero")
	}
	if opts.Out == "" {
		return exportArtifactsOptions{}, errors.New("--out must not be empty")
	}
	if ext := filepath.Ext(opts.Out); ext != ".xlsx" {
		return exportArtifactsOptions{}, fmt.Errorf("--out must end in .xlsx, got %q", opts.Out)
	}
	if opts.Limit < 0 {
		return exportArtifactsOptions{}, errors.New("--limit must be zero or greater")
	}
	if opts.Offset < 0 {
		return exportArtifactsOptions{}, errors.New("--offset must be zero or greater")
	}

	return opts, nil
}
