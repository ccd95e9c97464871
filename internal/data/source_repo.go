package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/draftforge/composerd/internal/data/pgxutil"
	"github.com/draftforge/composerd/internal/domain/model"
)

var (
	// ErrSourceNotFound is returned when a source is not found.
	ErrSourceNotFound = errors.New("source not found")
	// ErrSourceNameExists is returned when attempting to create a source with a name that already exists.
	ErrSourceNameExists = errors.New("source name already exists")
)

// SourceRepo provides database operations for source management.
type SourceRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewSourceRepo creates a new SourceRepo instance with the given database connection.
func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{
		DB:           db,
		timeProvider: &RealTimeProvider{},
	}
}

// NewSourceRepoWithTimeProvider creates a SourceRepo with a custom TimeProvider (useful for testing).
func NewSourceRepoWithTimeProvider(db *sql.DB, timeProvider TimeProvider) *SourceRepo {
	return &SourceRepo{
		DB:           db,
		timeProvider: timeProvider,
	}
}

// Create inserts a new source.
func (r *SourceRepo) Create(ctx context.Context, req *model.CreateSourceRequest) (*model.Source, error) {
	if req == nil {
		return nil, errors.New("create source request is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	attributes := req.Attributes
	if len(attributes) == 0 {
		attributes = json.RawMessage(`{}`)
	}

	now := r.timeProvider.Now().UTC()

	var out *model.Source
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			INSERT INTO sources (name, summary, attributes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			RETURNING `+sourceColumns+`
		`, strings.TrimSpace(req.Name), req.Summary, attributes, now)
		if qerr != nil {
			return qerr
		}
		out, qerr = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Source])
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create source: %w", r.mapSourceWriteErr(err, false))
	}

	return out, nil
}

// getSourceByQuery is a helper function to execute a query and return a single source.
// Uses variadic args to avoid slice allocation at call sites.
func (r *SourceRepo) getSourceByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*model.Source, error) {
	var source *model.Source
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, q, args...)
		if qerr != nil {
			return qerr
		}
		source, qerr = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Source])
		return qerr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return source, nil
}

// GetByID retrieves a source by its ID.
func (r *SourceRepo) GetByID(ctx context.Context, id string) (*model.Source, error) {
	return r.getSourceByQuery(ctx, sourceGetByIDQuery, "failed to get source by ID", id)
}

// GetByName retrieves a source by its name.
func (r *SourceRepo) GetByName(ctx context.Context, name string) (*model.Source, error) {
	return r.getSourceByQuery(ctx, sourceGetByNameQuery, "failed to get source by name", name)
}

// List retrieves a list of sources with pagination.
func (r *SourceRepo) List(ctx context.Context, limit, offset int) ([]*model.Source, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var sources []*model.Source
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, sourceListQuery, limit, offset)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		sources, qerr = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Source])
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	return sources, nil
}

// ListByNameContains retrieves sources filtered by name substring with pagination.
func (r *SourceRepo) ListByNameContains(ctx context.Context, q string, limit, offset int) ([]*model.Source, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	// ILIKE with wildcards for case-insensitive substring search. The query
	// string is deliberately not trimmed so padded names stay findable.
	searchPattern := "%" + q + "%"

	var sources []*model.Source
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, sourceListByNameQuery, searchPattern, limit, offset)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		sources, qerr = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Source])
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sources by name: %w", err)
	}
	return sources, nil
}

// Update applies the non-nil fields of req and returns the updated source.
func (r *SourceRepo) Update(ctx context.Context, id string, req model.UpdateSourceRequest) (*model.Source, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	setParts := make([]string, 0, 4)
	args := make([]any, 0, 5)
	argIdx := 1
	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, strings.TrimSpace(*req.Name))
		argIdx++
	}
	if req.Summary != nil {
		setParts = append(setParts, fmt.Sprintf("summary = $%d", argIdx))
		args = append(args, *req.Summary)
		argIdx++
	}
	if req.Attributes != nil {
		setParts = append(setParts, fmt.Sprintf("attributes = $%d", argIdx))
		args = append(args, req.Attributes)
		argIdx++
	}
	if len(setParts) == 0 {
		return r.GetByID(ctx, id)
	}

	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", argIdx))
	args = append(args, r.timeProvider.Now().UTC())
	argIdx++
	args = append(args, id)

	query := "UPDATE sources SET " + strings.Join(setParts, ", ") +
		fmt.Sprintf(" WHERE id = $%d RETURNING ", argIdx) + sourceColumns

	var out *model.Source
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		out, qerr = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Source])
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update source: %w", r.mapSourceWriteErr(err, true))
	}

	return out, nil
}

func (r *SourceRepo) mapSourceWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrSourceNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrSourceNameExists
	}
	return err
}

// Delete removes a source by its ID. Artifacts for the source go with it via
// the ON DELETE CASCADE on artifacts.source_id.
func (r *SourceRepo) Delete(ctx context.Context, id string) (bool, error) {
	query := `DELETE FROM sources WHERE id = $1`

	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete source: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// --- helpers ---

const sourceColumns = `
  id,
  name,
  summary,
  attributes,
  created_at,
  updated_at
`

// SQL query constants for static queries (no dynamic WHERE/ORDER BY).
const (
	sourceGetByIDQuery = `
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE id = $1`

	sourceGetByNameQuery = `
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE name = $1`

	sourceListQuery = `
		SELECT ` + sourceColumns + `
		FROM sources
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	sourceListByNameQuery = `
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE name ILIKE $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
)
