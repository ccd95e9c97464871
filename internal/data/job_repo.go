package data

import (
	"database/sql"
	"errors"
	"log/slog"
)

// ErrJobNotFound is returned when a job lookup matches no row.
var ErrJobNotFound = errors.New("job not found")

const defaultMaxAttempts = 3

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	// DefaultMaxAttempts applies when a create request does not set one.
	DefaultMaxAttempts int
	Logger             *slog.Logger
	TimeProvider       TimeProvider
}

// JobRepo provides database operations for the job queue.
type JobRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		cfg:          cfg,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

func (r *JobRepo) maxAttemptsDefault() int {
	if r.cfg.DefaultMaxAttempts > 0 {
		return r.cfg.DefaultMaxAttempts
	}
	return defaultMaxAttempts
}

const jobColumns = `
  id,
  job_type,
  status,
  attempts,
  max_attempts,
  payload,
  locked_at,
  locked_by,
  last_error,
  last_error_at,
  last_trace_id,
  created_at,
  updated_at
`

// nullableString maps the empty string to SQL NULL.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
