package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/draftforge/composerd/internal/data/pgxutil"
)

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 1000 is reserved for composerd reaper operations.
const (
	advisoryLockReaperMajor     = 1000
	advisoryLockReaperReapStuck = 1 // minor key for ReapStuck
)

// ReapStuck requeues running jobs whose lock is older than olderThan,
// clearing the lock fields. Attempts are left untouched; recovery from a
// crashed worker is not an execution failure. Processes up to batchSize jobs
// per call and skips the pass entirely when another reaper instance holds the
// advisory lock. Returns the number of jobs requeued.
func (r *JobRepo) ReapStuck(ctx context.Context, olderThan time.Duration, batchSize int) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("stuck threshold must be greater than zero")
	}
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperReapStuck).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()
			cutoffTime := currentTime.Add(-olderThan)

			res, err := tx.ExecContext(ctx, `
				UPDATE jobs
				SET status = 'queued',
					locked_by = NULL,
					locked_at = NULL,
					updated_at = $1
				WHERE id IN (
					SELECT id FROM jobs
					WHERE status = 'running'
					  AND locked_at IS NOT NULL
					  AND locked_at < $2
					ORDER BY locked_at
					LIMIT $3
				)
			`, currentTime.UTC(), cutoffTime.UTC(), batchSize)
			if err != nil {
				return fmt.Errorf("reap stuck jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}
