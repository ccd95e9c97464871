package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeWorker runs the job worker loops.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeReaper runs the standalone stuck-job reaper.
	ServiceModeReaper ServiceMode = "reaper"
	// ServiceModeHTTP runs the HTTP status API.
	ServiceModeHTTP ServiceMode = "http"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeWorker,
		ServiceModeReaper,
		ServiceModeHTTP,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeWorker, ServiceModeReaper, ServiceModeHTTP:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: worker, reaper, http)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// WorkerConfig contains worker loop configuration.
type WorkerConfig struct {
	// Concurrency is the number of independent worker loops.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"2"`

	// IdleDelay is how long a loop sleeps when the queue is empty.
	IdleDelay time.Duration `env:"WORKER_IDLE_DELAY" envDefault:"2s"`

	// ErrorDelay is how long a loop sleeps after an infrastructure error.
	ErrorDelay time.Duration `env:"WORKER_ERROR_DELAY" envDefault:"5s"`

	// BackoffBase is the per-attempt unit of the retry backoff.
	BackoffBase time.Duration `env:"WORKER_BACKOFF_BASE" envDefault:"10s"`

	// BackoffCap is the hard ceiling of the retry backoff.
	BackoffCap time.Duration `env:"WORKER_BACKOFF_CAP" envDefault:"5m"`

	// StuckAfter is how long a job may sit in running before inline reaping
	// returns it to the queue. Must exceed the slowest legitimate execution.
	StuckAfter time.Duration `env:"WORKER_STUCK_AFTER" envDefault:"10m"`

	// ReapEvery is the per-loop cadence of inline reap passes.
	ReapEvery time.Duration `env:"WORKER_REAP_EVERY" envDefault:"1m"`

	// ReapBatchSize is the maximum rows requeued per reap query.
	ReapBatchSize int `env:"WORKER_REAP_BATCH_SIZE" envDefault:"100"`

	// MaxAttempts is the attempt budget applied when a producer enqueues
	// with zero.
	MaxAttempts int `env:"WORKER_MAX_ATTEMPTS" envDefault:"3"`

	// WakeOnNotify subscribes idle loops to queue wake notifications instead
	// of relying on the idle delay alone.
	WakeOnNotify bool `env:"WORKER_WAKE_ON_NOTIFY" envDefault:"true"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.IdleDelay < 100*time.Millisecond {
		w.IdleDelay = 100 * time.Millisecond
	}
	if w.ErrorDelay < time.Second {
		w.ErrorDelay = time.Second
	}
	if w.BackoffBase < time.Second {
		w.BackoffBase = time.Second
	}
	if w.BackoffCap < w.BackoffBase {
		w.BackoffCap = w.BackoffBase
	}
	if w.StuckAfter < time.Minute {
		w.StuckAfter = time.Minute
	}
	if w.ReapEvery < 10*time.Second {
		w.ReapEvery = 10 * time.Second
	}
	if w.ReapBatchSize < 1 {
		w.ReapBatchSize = 1
	}
	if w.ReapBatchSize > 10000 {
		w.ReapBatchSize = 10000
	}
	if w.MaxAttempts < 1 {
		w.MaxAttempts = 1
	}
}

// ReaperConfig contains standalone reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`

	// StuckAfter is how long a job may sit in running before it is returned
	// to the queue.
	StuckAfter time.Duration `env:"REAPER_STUCK_AFTER" envDefault:"10m"`

	// BatchSize is the maximum number of rows to requeue per query.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 10*time.Second {
		r.Interval = 10 * time.Second
	}
	if r.StuckAfter < time.Minute {
		r.StuckAfter = time.Minute
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
