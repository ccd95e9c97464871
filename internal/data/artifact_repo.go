package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/draftforge/composerd/internal/core"
	"github.com/draftforge/composerd/internal/data/pgxutil"
	"github.com/draftforge/composerd/internal/domain/model"
	apperrors "github.com/draftforge/composerd/internal/errors"
)

// ArtifactRepo persists generated artifacts keyed by (source_id, slot).
type ArtifactRepo struct {
	DB *sql.DB
}

// NewArtifactRepo constructs an ArtifactRepo.
func NewArtifactRepo(db *sql.DB) *ArtifactRepo {
	return &ArtifactRepo{DB: db}
}

const artifactColumns = `
  id,
  source_id,
  slot,
  title,
  body,
  tags,
  assets,
  meta,
  created_at,
  updated_at
`

const upsertArtifactSQL = `
	INSERT INTO artifacts (source_id, slot, title, body, tags, assets, meta, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
	ON CONFLICT (source_id, slot)
	DO UPDATE SET
		title = EXCLUDED.title,
		body = EXCLUDED.body,
		tags = EXCLUDED.tags,
		assets = EXCLUDED.assets,
		meta = EXCLUDED.meta,
		updated_at = now()
	RETURNING ` + artifactColumns

// Upsert writes the artifact for its natural key in a single atomic
// statement. A first write inserts the row; any later write for the same
// (source_id, slot) replaces title, body, tags, assets, and meta wholesale,
// so repeated executions of the same work converge on one row.
func (r *ArtifactRepo) Upsert(ctx context.Context, params core.UpsertArtifactParams) (*model.Artifact, error) {
	if params.SourceID == "" {
		return nil, errors.New("source id is required")
	}
	if params.Slot == "" {
		return nil, errors.New("slot is required")
	}
	if err := params.Content.Validate(); err != nil {
		return nil, err
	}

	tags, err := json.Marshal(params.Content.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	assets := params.Assets
	if len(assets) == 0 {
		assets = json.RawMessage(`[]`)
	}

	meta, err := json.Marshal(params.Meta)
	if err != nil {
		return nil, fmt.Errorf("marshal meta: %w", err)
	}

	var artifact *model.Artifact
	txErr := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, upsertArtifactSQL,
			params.SourceID,
			params.Slot,
			params.Content.Title,
			params.Content.Body,
			tags,
			assets,
			meta,
		)
		if qerr != nil {
			return qerr
		}
		artifact, qerr = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Artifact])
		return qerr
	})
	if txErr != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("upsert artifact: %w", txErr))
	}

	return artifact, nil
}

// GetBySourceSlot retrieves the artifact for a natural key.
func (r *ArtifactRepo) GetBySourceSlot(ctx context.Context, sourceID, slot string) (*model.Artifact, error) {
	if sourceID == "" || slot == "" {
		return nil, errors.New("source id and slot are required")
	}

	const query = `
		SELECT ` + artifactColumns + `
		FROM artifacts
		WHERE source_id = $1 AND slot = $2`

	var artifact *model.Artifact
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, query, sourceID, slot)
		if qerr != nil {
			return qerr
		}
		artifact, qerr = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Artifact])
		return qerr
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFoundf("artifact %s/%s not found", sourceID, slot)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return artifact, nil
}

// List returns artifacts with optional source and slot filters, newest first.
func (r *ArtifactRepo) List(ctx context.Context, opts model.ArtifactListOptions) ([]*model.Artifact, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50 // Default limit
	}
	if limit > 1000 {
		limit = 1000 // Max limit
	}
	offset := max(opts.Offset, 0)

	query := `
		SELECT ` + artifactColumns + `
		FROM artifacts
		WHERE ($1 = '' OR source_id::text = $1)
		  AND ($2 = '' OR slot = $2)
		ORDER BY updated_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`

	var result []*model.Artifact
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, opts.SourceID, opts.Slot, limit, offset)
		if err != nil {
			return fmt.Errorf("query artifacts: %w", err)
		}
		defer rows.Close()

		vals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Artifact])
		if err != nil {
			return fmt.Errorf("collect artifacts: %w", err)
		}
		result = vals
		return nil
	}); err != nil {
		return nil, err
	}
	return result, nil
}
