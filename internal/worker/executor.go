package worker

import (
	"context"
	"fmt"

	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/metrics"
)

// Executor performs passes of the configured operation.
type Executor interface {
	// Pass runs one pass and reports each trial through record. A non-nil
	// error is fatal for the worker.
	Pass(ctx context.Context, record func(metrics.Trial)) error
	Close() error
}

// Factory builds an Executor for a worker configuration.
type Factory func(ctx context.Context, cfg config.Config) (Executor, error)

// ConnectionError reports that a worker could not establish its client or
// connection.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
