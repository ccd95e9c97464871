package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/composerd/internal/core"
	"github.com/draftforge/composerd/internal/data/pgxutil"
	"github.com/draftforge/composerd/internal/domain/model"
	"github.com/draftforge/composerd/internal/testutil"
)

// backdateJob rewrites created_at so claim-order tests do not depend on
// insert timing.
func backdateJob(t *testing.T, db *sql.DB, jobID string, createdAt time.Time) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		"UPDATE jobs SET created_at = $1 WHERE id = $2", createdAt, jobID)
	require.NoError(t, err)
}

func mustClaim(t *testing.T, repo *JobRepo, workerID string) *model.Job {
	t.Helper()
	job, err := repo.ClaimNext(context.Background(), workerID)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func TestJobRepo_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	tests := []struct {
		name    string
		req     *model.CreateJobRequest
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid compose job",
			req: &model.CreateJobRequest{
				JobType: model.JobTypeCompose,
				Payload: json.RawMessage(`{"source_id": "00000000-0000-0000-0000-000000000001", "slot": "summary"}`),
			},
			wantErr: false,
		},
		{
			name: "custom max attempts",
			req: &model.CreateJobRequest{
				JobType:     model.JobTypeSourceRefresh,
				Payload:     json.RawMessage(`{"source_id": "00000000-0000-0000-0000-000000000001"}`),
				MaxAttempts: 5,
			},
			wantErr: false,
		},
		{
			name: "unknown job type is accepted at enqueue",
			req: &model.CreateJobRequest{
				JobType: "telemetry_rollup",
				Payload: json.RawMessage(`{"window": "1h"}`),
			},
			wantErr: false,
		},
		{
			name: "missing job type",
			req: &model.CreateJobRequest{
				Payload: json.RawMessage(`{"test": true}`),
			},
			wantErr: true,
			errMsg:  "job type is required",
		},
		{
			name: "empty payload",
			req: &model.CreateJobRequest{
				JobType: model.JobTypeCompose,
				Payload: json.RawMessage(``),
			},
			wantErr: true,
			errMsg:  "payload is required",
		},
		{
			name: "negative max attempts",
			req: &model.CreateJobRequest{
				JobType:     model.JobTypeCompose,
				Payload:     json.RawMessage(`{"test": true}`),
				MaxAttempts: -1,
			},
			wantErr: true,
			errMsg:  "max attempts must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.WithAutoDB(t, func(db *sql.DB) {
				repo := NewJobRepo(db, RepoConfig{})

				job, err := repo.Create(context.Background(), tt.req)

				if tt.wantErr {
					require.Error(t, err)
					assert.Contains(t, err.Error(), tt.errMsg)
					assert.Nil(t, job)
					return
				}

				require.NoError(t, err)
				require.NotNil(t, job)

				// Verify job fields
				assert.NotEmpty(t, job.ID)
				assert.Equal(t, tt.req.JobType, job.JobType)
				assert.Equal(t, model.JobStatusQueued, job.Status)
				assert.Equal(t, 0, job.Attempts)
				assert.JSONEq(t, string(tt.req.Payload), string(job.Payload))
				assert.Nil(t, job.LockedAt)
				assert.Nil(t, job.LockedBy)
				assert.Nil(t, job.LastError)
				assert.Nil(t, job.LastErrorAt)
				assert.Nil(t, job.LastTraceID)
				assert.NotZero(t, job.CreatedAt)
				assert.NotZero(t, job.UpdatedAt)

				if tt.req.MaxAttempts > 0 {
					assert.Equal(t, tt.req.MaxAttempts, job.MaxAttempts)
				} else {
					assert.Equal(t, 3, job.MaxAttempts) // default
				}
			})
		})
	}
}

func TestJobRepo_ClaimNext(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("claims oldest queued job first", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			base := time.Now().UTC()

			first, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
			require.NoError(t, err)
			second, err := repo.Create(context.Background(), testutil.SourceRefreshJobRequest("00000000-0000-0000-0000-000000000001"))
			require.NoError(t, err)
			third, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "multi"))
			require.NoError(t, err)

			backdateJob(t, db, first.ID, base.Add(-3*time.Minute))
			backdateJob(t, db, second.ID, base.Add(-2*time.Minute))
			backdateJob(t, db, third.ID, base.Add(-1*time.Minute))

			// Claim order follows created_at regardless of job type.
			assert.Equal(t, first.ID, mustClaim(t, repo, "worker-1").ID)
			assert.Equal(t, second.ID, mustClaim(t, repo, "worker-1").ID)
			assert.Equal(t, third.ID, mustClaim(t, repo, "worker-1").ID)
		})
	})

	t.Run("claimed job carries the lock", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			created, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
			require.NoError(t, err)

			job := mustClaim(t, repo, "worker-abc")

			assert.Equal(t, created.ID, job.ID)
			assert.Equal(t, model.JobStatusRunning, job.Status)
			require.NotNil(t, job.LockedBy)
			assert.Equal(t, "worker-abc", *job.LockedBy)
			assert.NotNil(t, job.LockedAt)
			assert.Equal(t, 0, job.Attempts)
		})
	})

	t.Run("empty queue returns ErrNoJobsAvailable", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			job, err := repo.ClaimNext(context.Background(), "worker-1")
			require.ErrorIs(t, err, model.ErrNoJobsAvailable)
			assert.Nil(t, job)
		})
	})

	t.Run("running jobs are not claimable", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			_, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
			require.NoError(t, err)

			mustClaim(t, repo, "worker-1")

			_, err = repo.ClaimNext(context.Background(), "worker-2")
			require.ErrorIs(t, err, model.ErrNoJobsAvailable)
		})
	})

	t.Run("missing worker id", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			_, err := repo.ClaimNext(context.Background(), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "worker id is required")
		})
	})
}

func TestJobRepo_ClaimNext_ConcurrentSingleWinner(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		_, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
		require.NoError(t, err)

		var jobs [2]*model.Job
		runner := testutil.NewConcurrentTestRunner(t, db)
		errs := runner.RunConcurrent(
			func() error {
				j, claimErr := repo.ClaimNext(context.Background(), "worker-1")
				jobs[0] = j
				return claimErr
			},
			func() error {
				j, claimErr := repo.ClaimNext(context.Background(), "worker-2")
				jobs[1] = j
				return claimErr
			},
		)

		var winners, losers int
		for i, claimErr := range errs {
			switch {
			case claimErr == nil:
				winners++
				require.NotNil(t, jobs[i])
				assert.Equal(t, model.JobStatusRunning, jobs[i].Status)
			default:
				losers++
				// Losing a race is an empty claim, not an error condition.
				require.ErrorIs(t, claimErr, model.ErrNoJobsAvailable)
				assert.Nil(t, jobs[i])
			}
		}

		assert.Equal(t, 1, winners, "exactly one worker should win the claim")
		assert.Equal(t, 1, losers)

		states := testutil.InspectJobStates(t, db)
		require.Len(t, states, 1)
		assert.Equal(t, "running", states[0].Status)
	})
}

func TestJobRepo_Complete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("owner completes a running job", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			created, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
			require.NoError(t, err)
			mustClaim(t, repo, "worker-1")

			ok, err := repo.Complete(context.Background(), core.CompleteJobParams{
				ID:       created.ID,
				WorkerID: "worker-1",
				TraceID:  "trace-42",
			})
			require.NoError(t, err)
			assert.True(t, ok)

			job, err := repo.GetByID(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusDone, job.Status)
			assert.Nil(t, job.LockedBy)
			assert.Nil(t, job.LockedAt)
			require.NotNil(t, job.LastTraceID)
			assert.Equal(t, "trace-42", *job.LastTraceID)
		})
	})

	t.Run("non-owner cannot complete", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			created, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
			require.NoError(t, err)
			mustClaim(t, repo, "worker-1")

			ok, err := repo.Complete(context.Background(), core.CompleteJobParams{
				ID:       created.ID,
				WorkerID: "worker-2",
			})
			require.NoError(t, err)
			assert.False(t, ok)

			job, err := repo.GetByID(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusRunning, job.Status)
			require.NotNil(t, job.LockedBy)
			assert.Equal(t, "worker-1", *job.LockedBy)
		})
	})

	t.Run("queued job cannot be completed", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			created, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
			require.NoError(t, err)

			ok, err := repo.Complete(context.Background(), core.CompleteJobParams{
				ID:       created.ID,
				WorkerID: "worker-1",
			})
			require.NoError(t, err)
			assert.False(t, ok)
		})
	})

	t.Run("nonexistent job", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			ok, err := repo.Complete(context.Background(), core.CompleteJobParams{
				ID:       "00000000-0000-0000-0000-000000000000",
				WorkerID: "worker-1",
			})
			require.NoError(t, err)
			assert.False(t, ok)
		})
	})

	t.Run("empty trace id keeps previous trace", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			created, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
			require.NoError(t, err)

			// First attempt fails with a trace, second succeeds without one.
			mustClaim(t, repo, "worker-1")
			failure, err := repo.Fail(context.Background(), core.FailJobParams{
				ID:       created.ID,
				WorkerID: "worker-1",
				ErrMsg:   "remote call failed",
				TraceID:  "trace-first",
			})
			require.NoError(t, err)
			require.NotNil(t, failure)

			mustClaim(t, repo, "worker-1")
			ok, err := repo.Complete(context.Background(), core.CompleteJobParams{
				ID:       created.ID,
				WorkerID: "worker-1",
			})
			require.NoError(t, err)
			assert.True(t, ok)

			job, err := repo.GetByID(context.Background(), created.ID)
			require.NoError(t, err)
			require.NotNil(t, job.LastTraceID)
			assert.Equal(t, "trace-first", *job.LastTraceID)
		})
	})
}

func TestJobRepo_Fail(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("failure below budget requeues", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			created, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
			require.NoError(t, err)
			mustClaim(t, repo, "worker-1")

			failure, err := repo.Fail(context.Background(), core.FailJobParams{
				ID:       created.ID,
				WorkerID: "worker-1",
				ErrMsg:   "remote call failed",
				TraceID:  "trace-9",
			})
			require.NoError(t, err)
			require.NotNil(t, failure)
			assert.Equal(t, model.JobStatusQueued, failure.Status)
			assert.Equal(t, 1, failure.Attempts)
			assert.False(t, failure.Terminal())

			job, err := repo.GetByID(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusQueued, job.Status)
			assert.Equal(t, 1, job.Attempts)
			assert.Nil(t, job.LockedBy)
			assert.Nil(t, job.LockedAt)
			require.NotNil(t, job.LastError)
			assert.Equal(t, "remote call failed", *job.LastError)
			assert.NotNil(t, job.LastErrorAt)
			require.NotNil(t, job.LastTraceID)
			assert.Equal(t, "trace-9", *job.LastTraceID)
		})
	})

	t.Run("attempts increment once per failure until terminal", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			created, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
			require.NoError(t, err)

			for attempt := 1; attempt <= 3; attempt++ {
				mustClaim(t, repo, "worker-1")
				failure, failErr := repo.Fail(context.Background(), core.FailJobParams{
					ID:       created.ID,
					WorkerID: "worker-1",
					ErrMsg:   "malformed output",
				})
				require.NoError(t, failErr)
				require.NotNil(t, failure)
				assert.Equal(t, attempt, failure.Attempts)

				if attempt < 3 {
					assert.Equal(t, model.JobStatusQueued, failure.Status)
				} else {
					assert.Equal(t, model.JobStatusFailed, failure.Status)
					assert.True(t, failure.Terminal())
				}
			}

			// Terminal job is gone from the queue.
			_, err = repo.ClaimNext(context.Background(), "worker-1")
			require.ErrorIs(t, err, model.ErrNoJobsAvailable)
		})
	})

	t.Run("single attempt budget fails immediately", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			req := testutil.NewJobRequest().WithMaxAttempts(1).Build()
			created, err := repo.Create(context.Background(), req)
			require.NoError(t, err)
			mustClaim(t, repo, "worker-1")

			failure, err := repo.Fail(context.Background(), core.FailJobParams{
				ID:       created.ID,
				WorkerID: "worker-1",
				ErrMsg:   "remote call failed",
			})
			require.NoError(t, err)
			require.NotNil(t, failure)
			assert.Equal(t, model.JobStatusFailed, failure.Status)
			assert.Equal(t, 1, failure.Attempts)
		})
	})

	t.Run("non-owner failure is not recorded", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			created, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
			require.NoError(t, err)
			mustClaim(t, repo, "worker-1")

			failure, err := repo.Fail(context.Background(), core.FailJobParams{
				ID:       created.ID,
				WorkerID: "worker-2",
				ErrMsg:   "should not land",
			})
			require.NoError(t, err)
			assert.Nil(t, failure)

			job, err := repo.GetByID(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusRunning, job.Status)
			assert.Equal(t, 0, job.Attempts)
			assert.Nil(t, job.LastError)
		})
	})

	t.Run("nonexistent job", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			failure, err := repo.Fail(context.Background(), core.FailJobParams{
				ID:       "00000000-0000-0000-0000-000000000000",
				WorkerID: "worker-1",
				ErrMsg:   "error",
			})
			require.NoError(t, err)
			assert.Nil(t, failure)
		})
	})
}

func TestJobRepo_GetByID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		created, err := repo.Create(context.Background(), testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
		require.NoError(t, err)

		job, err := repo.GetByID(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, job.ID)
		assert.Equal(t, created.JobType, job.JobType)

		_, err = repo.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
		require.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestJobRepo_Stats(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		// One job per status. Each action runs against the single queued job
		// so claim order never matters.
		done, err := repo.Create(ctx, testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
		require.NoError(t, err)
		mustClaim(t, repo, "worker-1")
		ok, err := repo.Complete(ctx, core.CompleteJobParams{ID: done.ID, WorkerID: "worker-1"})
		require.NoError(t, err)
		require.True(t, ok)

		failed, err := repo.Create(ctx, testutil.NewJobRequest().WithMaxAttempts(1).Build())
		require.NoError(t, err)
		mustClaim(t, repo, "worker-1")
		failure, err := repo.Fail(ctx, core.FailJobParams{ID: failed.ID, WorkerID: "worker-1", ErrMsg: "boom"})
		require.NoError(t, err)
		require.True(t, failure.Terminal())

		_, err = repo.Create(ctx, testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "multi"))
		require.NoError(t, err)
		mustClaim(t, repo, "worker-1") // stays running

		_, err = repo.Create(ctx, testutil.SourceRefreshJobRequest("00000000-0000-0000-0000-000000000001"))
		require.NoError(t, err) // stays queued

		stats, err := repo.Stats(ctx, "")
		require.NoError(t, err)
		require.NotNil(t, stats)
		assert.Equal(t, 1, stats.Queued)
		assert.Equal(t, 1, stats.Running)
		assert.Equal(t, 1, stats.Done)
		assert.Equal(t, 1, stats.Failed)

		// Per-type filter: the queued job is the only source_refresh.
		refreshStats, err := repo.Stats(ctx, model.JobTypeSourceRefresh)
		require.NoError(t, err)
		assert.Equal(t, 1, refreshStats.Queued)
		assert.Equal(t, 0, refreshStats.Running)
		assert.Equal(t, 0, refreshStats.Done)
		assert.Equal(t, 0, refreshStats.Failed)
	})
}

func TestJobRepo_ListRecent(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()
		base := time.Now().UTC()

		oldest, err := repo.Create(ctx, testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "summary"))
		require.NoError(t, err)
		middle, err := repo.Create(ctx, testutil.SourceRefreshJobRequest("00000000-0000-0000-0000-000000000001"))
		require.NoError(t, err)
		newest, err := repo.Create(ctx, testutil.ComposeJobRequest("00000000-0000-0000-0000-000000000001", "multi"))
		require.NoError(t, err)

		backdateJob(t, db, oldest.ID, base.Add(-3*time.Hour))
		backdateJob(t, db, middle.ID, base.Add(-2*time.Hour))
		backdateJob(t, db, newest.ID, base.Add(-1*time.Hour))

		jobs, err := repo.ListRecent(ctx, model.JobListOptions{})
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		assert.Equal(t, newest.ID, jobs[0].ID)
		assert.Equal(t, middle.ID, jobs[1].ID)
		assert.Equal(t, oldest.ID, jobs[2].ID)

		composeJobs, err := repo.ListRecent(ctx, model.JobListOptions{JobType: model.JobTypeCompose})
		require.NoError(t, err)
		require.Len(t, composeJobs, 2)
		for _, j := range composeJobs {
			assert.Equal(t, model.JobTypeCompose, j.JobType)
		}

		queuedJobs, err := repo.ListRecent(ctx, model.JobListOptions{Status: model.JobStatusQueued})
		require.NoError(t, err)
		assert.Len(t, queuedJobs, 3)

		limited, err := repo.ListRecent(ctx, model.JobListOptions{Limit: 1})
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, newest.ID, limited[0].ID)

		offset, err := repo.ListRecent(ctx, model.JobListOptions{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, offset, 1)
		assert.Equal(t, middle.ID, offset[0].ID)
	})
}

// TestPgxConversionFunctions tests the pgx transaction option conversion utilities.
func TestPgxConversionFunctions(t *testing.T) {
	t.Run("toPgxTxOptions", func(t *testing.T) {
		tests := []struct {
			name     string
			input    *sql.TxOptions
			expected pgx.TxOptions
		}{
			{
				name:  "nil options",
				input: nil,
				expected: pgx.TxOptions{
					IsoLevel:   pgx.TxIsoLevel(""),
					AccessMode: pgx.TxAccessMode(""),
				},
			},
			{
				name: "read committed, read-write",
				input: &sql.TxOptions{
					Isolation: sql.LevelReadCommitted,
					ReadOnly:  false,
				},
				expected: pgx.TxOptions{
					IsoLevel:   pgx.ReadCommitted,
					AccessMode: pgx.ReadWrite,
				},
			},
			{
				name: "serializable, read-only",
				input: &sql.TxOptions{
					Isolation: sql.LevelSerializable,
					ReadOnly:  true,
				},
				expected: pgx.TxOptions{
					IsoLevel:   pgx.Serializable,
					AccessMode: pgx.ReadOnly,
				},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				result := pgxutil.ToPgxTxOptions(tt.input)
				assert.Equal(t, tt.expected.IsoLevel, result.IsoLevel)
				assert.Equal(t, tt.expected.AccessMode, result.AccessMode)
			})
		}
	})

	t.Run("toPgxIsoLevel", func(t *testing.T) {
		tests := []struct {
			input    sql.IsolationLevel
			expected pgx.TxIsoLevel
		}{
			{sql.LevelDefault, pgx.TxIsoLevel("")},
			{sql.LevelSerializable, pgx.Serializable},
			{sql.LevelLinearizable, pgx.Serializable},
			{sql.LevelRepeatableRead, pgx.RepeatableRead},
			{sql.LevelSnapshot, pgx.RepeatableRead},
			{sql.LevelReadCommitted, pgx.ReadCommitted},
			{sql.LevelWriteCommitted, pgx.ReadCommitted},
			{sql.LevelReadUncommitted, pgx.ReadUncommitted},
		}

		for _, tt := range tests {
			t.Run(string(tt.expected), func(t *testing.T) {
				result := pgxutil.ToPgxIsoLevel(tt.input)
				assert.Equal(t, tt.expected, result)
			})
		}
	})

	t.Run("toPgxAccessMode", func(t *testing.T) {
		assert.Equal(t, pgx.ReadWrite, pgxutil.ToPgxAccessMode(false))
		assert.Equal(t, pgx.ReadOnly, pgxutil.ToPgxAccessMode(true))
	})
}
