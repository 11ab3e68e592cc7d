package runner

import (
	"io"

	"github.com/ezbench/ezbench/internal/config"
)

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithPreflight registers a check run before any worker is spawned. A
// failure aborts the run as a dependency error.
func WithPreflight(check func(config.Config) error) Option {
	return func(o *Orchestrator) {
		o.preflight = check
	}
}

// WithProgress registers a callback invoked each time a worker completes.
func WithProgress(fn func(done, total int)) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// WithWorkerLog copies the error stream of every worker to w.
func WithWorkerLog(w io.Writer) Option {
	return func(o *Orchestrator) {
		o.workerLog = w
	}
}

// Apportion returns the iterations assigned to each of workers. The
// remainder of the division is not assigned to any worker.
func Apportion(total, workers int) int {
	if total <= 0 || workers <= 0 {
		return 0
	}
	return total / workers
}
