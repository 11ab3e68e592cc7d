// Package worker runs one worker's share of a benchmark.
//
// A worker drives an [Executor] for its assigned number of passes, strictly
// one trial at a time, folds every trial into a [metrics.Summary] and writes
// that summary exactly once as a single result-protocol line.
//
// # Executors
//
// An Executor performs one pass of the configured operation:
//
//	type Executor interface {
//		Pass(ctx context.Context, record func(metrics.Trial)) error
//		Close() error
//	}
//
// The HTTP executor records one trial per pass. The SQL executor replays the
// whole statement list per pass and records one trial per statement.
// Per-trial failures are recorded as data; an error returned from Pass means
// the worker cannot continue and ends the run.
//
// # Pacing
//
// Passes may be paced with a per-worker rate using a uniform (token bucket)
// or poisson arrival model.
package worker
