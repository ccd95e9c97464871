package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/draftforge/composerd/internal/core"
	"github.com/draftforge/composerd/internal/data/pgxutil"
	"github.com/draftforge/composerd/internal/domain/model"
)

// jobsQueuedChannel is the NOTIFY channel fired on every enqueue. Claiming is
// type-agnostic, so one channel covers the whole queue.
const jobsQueuedChannel = "jobs_queued"

const insertJobSQL = `
  INSERT INTO jobs (job_type, status, payload, max_attempts)
  VALUES ($1, 'queued', $2, $3)
  RETURNING ` + jobColumns

// claimNextSQL moves the oldest queued job to running for one worker. The
// status recheck in the UPDATE makes concurrent claims of the same candidate
// resolve to a single winner; losers see zero rows.
const claimNextSQL = `
  WITH candidate AS (
    SELECT id FROM jobs
    WHERE status = 'queued'
    ORDER BY created_at ASC
    LIMIT 1
  )
  UPDATE jobs j
  SET
    status = 'running',
    locked_by = $1,
    locked_at = $2,
    updated_at = $2
  FROM candidate
  WHERE j.id = candidate.id AND j.status = 'queued'
  RETURNING j.id`

const claimVerifySQL = `
  SELECT ` + jobColumns + `
  FROM jobs
  WHERE id = $1 AND locked_by = $2 AND status = 'running'`

const completeJobSQL = `
  UPDATE jobs
  SET
    status = 'done',
    locked_by = NULL,
    locked_at = NULL,
    last_trace_id = COALESCE($3, last_trace_id),
    updated_at = $4
  WHERE id = $1 AND locked_by = $2 AND status = 'running'`

const failJobSQL = `
  UPDATE jobs
  SET
    attempts = attempts + 1,
    status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'queued' END,
    locked_by = NULL,
    locked_at = NULL,
    last_error = $3,
    last_error_at = $4,
    last_trace_id = COALESCE($5, last_trace_id),
    updated_at = $4
  WHERE id = $1 AND locked_by = $2 AND status = 'running'
  RETURNING status, attempts`

// Create inserts a queued job and notifies idle workers in the same
// transaction.
func (r *JobRepo) Create(
	ctx context.Context,
	req *model.CreateJobRequest,
) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}

	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = r.maxAttemptsDefault()
	}

	var job *model.Job
	if txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			rows, err := tx.Query(ctx, insertJobSQL, req.JobType, req.Payload, maxAttempts)
			if err != nil {
				return fmt.Errorf("insert job: %w", err)
			}
			job, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
			if err != nil {
				return fmt.Errorf("collect job: %w", err)
			}

			if _, execErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, jobsQueuedChannel, job.ID); execErr != nil {
				return fmt.Errorf("send job notification: %w", execErr)
			}
			return nil
		},
	}); txErr != nil {
		return nil, txErr
	}

	return job, nil
}

// ClaimNext attempts to claim the oldest queued job for workerID. The
// conditional update considers exactly one candidate per call; a verifying
// read then confirms the lock is held before the job is handed out. Returns
// model.ErrNoJobsAvailable both when the queue is empty and when another
// worker won the candidate.
func (r *JobRepo) ClaimNext(ctx context.Context, workerID string) (*model.Job, error) {
	if workerID == "" {
		return nil, errors.New("worker id is required")
	}

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			now := r.timeProvider.Now().UTC()

			var claimedID string
			if scanErr := tx.QueryRow(ctx, claimNextSQL, workerID, now).Scan(&claimedID); scanErr != nil {
				if errors.Is(scanErr, pgx.ErrNoRows) {
					return model.ErrNoJobsAvailable
				}
				return fmt.Errorf("claim job: %w", scanErr)
			}

			rows, qerr := tx.Query(ctx, claimVerifySQL, claimedID, workerID)
			if qerr != nil {
				return fmt.Errorf("verify claim: %w", qerr)
			}
			j, cerr := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if cerr != nil {
				return fmt.Errorf("verify claim: %w", cerr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, model.ErrNoJobsAvailable
		}
		return nil, err
	}
	return job, nil
}

// Complete marks a running job done. Every mutated column is guarded by the
// locked_by fence; a worker whose lock was reaped away affects zero rows and
// gets false back.
func (r *JobRepo) Complete(ctx context.Context, params core.CompleteJobParams) (bool, error) {
	if params.ID == "" || params.WorkerID == "" {
		return false, errors.New("job id and worker id are required")
	}

	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, completeJobSQL, params.ID, params.WorkerID, nullableString(params.TraceID), now)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Fail records one handler failure: attempts is incremented and the job goes
// back to queued, or to failed once attempts reaches max_attempts. The update
// carries the same locked_by fence as Complete; nil, nil means the lock was
// lost and the failure was not recorded.
func (r *JobRepo) Fail(ctx context.Context, params core.FailJobParams) (*model.JobFailure, error) {
	if params.ID == "" || params.WorkerID == "" {
		return nil, errors.New("job id and worker id are required")
	}

	now := r.timeProvider.Now().UTC()

	var failure model.JobFailure
	err := r.DB.QueryRowContext(
		ctx,
		failJobSQL,
		params.ID,
		params.WorkerID,
		params.ErrMsg,
		now,
		nullableString(params.TraceID),
	).Scan(&failure.Status, &failure.Attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fail job: %w", err)
	}

	return &failure, nil
}

// WaitForNotification blocks until an enqueue notification arrives or ctx
// ends.
func (r *JobRepo) WaitForNotification(ctx context.Context) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	quoted := pgx.Identifier{jobsQueuedChannel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", jobsQueuedChannel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
			_ = execErr
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}
