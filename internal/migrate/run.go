// Package migrate applies the embedded SQL migrations that define the
// composerd schema (jobs, sources, artifacts).
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Advisory lock key serializing migration runs. Major key 1001 is reserved
// for schema migrations; the reaper owns 1000 (see internal/data).
const (
	advisoryLockMigrateMajor = 1001
	advisoryLockMigrateRun   = 1
)

// Run applies every embedded migration that has not been applied yet, in
// filename order. It is safe to call repeatedly and from multiple processes:
// the run is serialized on a session advisory lock, so replicas starting
// together do not race on DDL.
func Run(ctx context.Context, db *sql.DB) error {
	logger := slog.Default().With("component", "migrations")

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logger.ErrorContext(ctx, "close migration connection", "err", closeErr)
		}
	}()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1, $2)`,
		advisoryLockMigrateMajor, advisoryLockMigrateRun); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	// Conn.Close returns the session to the pool rather than ending it, so
	// the session lock must be released explicitly.
	defer func() {
		if _, unlockErr := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1, $2)`,
			advisoryLockMigrateMajor, advisoryLockMigrateRun); unlockErr != nil {
			logger.Error("release migration lock", "err", unlockErr)
		}
	}()

	if _, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	pending, err := pendingMigrations(ctx, conn)
	if err != nil {
		return err
	}

	for _, m := range pending {
		logger.InfoContext(ctx, "applying migration", "version", m.version)
		if applyErr := m.apply(ctx, conn, logger); applyErr != nil {
			return applyErr
		}
	}
	return nil
}

// migration is one embedded SQL file, identified by its filename without the
// .sql suffix.
type migration struct {
	version string
	file    string
}

func pendingMigrations(ctx context.Context, conn *sql.Conn) ([]migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var pending []migration
	for _, f := range files {
		m := migration{version: strings.TrimSuffix(f, ".sql"), file: f}
		applied, err := m.applied(ctx, conn)
		if err != nil {
			return nil, err
		}
		if !applied {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

func (m migration) applied(ctx context.Context, conn *sql.Conn) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`
	if err := conn.QueryRowContext(ctx, query, m.version).Scan(&exists); err != nil {
		return false, fmt.Errorf("check migration %s: %w", m.file, err)
	}
	return exists, nil
}

func (m migration) apply(ctx context.Context, conn *sql.Conn, logger *slog.Logger) error {
	sqlBytes, err := migrationsFS.ReadFile("migrations/" + m.file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.file, err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			logger.ErrorContext(ctx, "rollback migration", "err", rollbackErr, "migration_file", m.file)
		}
	}()

	if _, execErr := tx.ExecContext(ctx, string(sqlBytes)); execErr != nil {
		return fmt.Errorf("exec migration %s: %w", m.file, execErr)
	}
	if _, insertErr := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); insertErr != nil {
		return fmt.Errorf("record migration %s: %w", m.file, insertErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit migration %s: %w", m.file, commitErr)
	}
	return nil
}
