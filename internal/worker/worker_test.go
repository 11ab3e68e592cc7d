package worker_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/metrics"
	"github.com/ezbench/ezbench/internal/protocol"
	"github.com/ezbench/ezbench/internal/worker"
)

// fakeExecutor records a fixed sequence of trials per pass.
type fakeExecutor struct {
	perPass  []metrics.Trial
	passes   int64
	failAt   int64 // if >0, Pass returns an error on this pass
	inFlight int32
	overlap  int32
	closed   bool
}

func (f *fakeExecutor) Pass(ctx context.Context, record func(metrics.Trial)) error {
	if atomic.AddInt32(&f.inFlight, 1) > 1 {
		atomic.StoreInt32(&f.overlap, 1)
	}
	defer atomic.AddInt32(&f.inFlight, -1)

	n := atomic.AddInt64(&f.passes, 1)
	if f.failAt > 0 && n == f.failAt {
		return errors.New("connection refused")
	}
	for _, t := range f.perPass {
		t.Start = time.Now()
		record(t)
	}
	return nil
}

func (f *fakeExecutor) Close() error {
	f.closed = true
	return nil
}

func TestRunExecutesAssignedPasses(t *testing.T) {
	exec := &fakeExecutor{perPass: []metrics.Trial{
		{Elapsed: 2 * time.Millisecond, Bytes: 100, BodyBytes: 80, Size: 80},
		{Elapsed: 3 * time.Millisecond, Err: errors.New("timeout")},
	}}

	summary, err := worker.Run(context.Background(), exec, worker.Options{Iterations: 5, Logger: zerolog.Nop()})
	require.NoError(t, err)

	assert.Equal(t, int64(5), exec.passes)
	assert.Equal(t, int64(10), summary.Tries)
	assert.Equal(t, int64(5), summary.Failures)
	assert.Equal(t, int64(5), summary.Durations.Total())
	assert.Equal(t, int64(400), summary.BodyBytes)
	assert.Equal(t, int32(0), exec.overlap)
	assert.False(t, summary.End.Before(summary.Begin))
}

func TestRunZeroIterations(t *testing.T) {
	exec := &fakeExecutor{perPass: []metrics.Trial{{Elapsed: time.Millisecond}}}

	summary, err := worker.Run(context.Background(), exec, worker.Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Zero(t, summary.Tries)
	assert.Zero(t, exec.passes)
}

func TestRunStopsOnPassError(t *testing.T) {
	exec := &fakeExecutor{perPass: []metrics.Trial{{Elapsed: time.Millisecond}}, failAt: 2}

	_, err := worker.Run(context.Background(), exec, worker.Options{Iterations: 5, Logger: zerolog.Nop()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass 2")
	assert.Equal(t, int64(2), exec.passes)
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := worker.Run(ctx, &fakeExecutor{}, worker.Options{Iterations: 3, Logger: zerolog.Nop()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunPacesWithRate(t *testing.T) {
	exec := &fakeExecutor{perPass: []metrics.Trial{{Elapsed: time.Microsecond}}}

	start := time.Now()
	_, err := worker.Run(context.Background(), exec, worker.Options{
		Iterations: 3,
		Rate:       20,
		Arrival:    config.ArrivalModelUniform,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)

	// The first pass is immediate, the next two wait 50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRunPoissonArrival(t *testing.T) {
	exec := &fakeExecutor{perPass: []metrics.Trial{{Elapsed: time.Microsecond}}}

	summary, err := worker.Run(context.Background(), exec, worker.Options{
		Iterations: 5,
		Rate:       1000,
		Arrival:    config.ArrivalModelPoisson,
		Seed:       42,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary.Tries)
}

func TestRunWritesTrace(t *testing.T) {
	exec := &fakeExecutor{perPass: []metrics.Trial{
		{Elapsed: 1500 * time.Microsecond, Bytes: 10},
		{Elapsed: time.Millisecond, Err: errors.New("broken\npipe"), WriteError: true},
		{Elapsed: time.Millisecond, QueryType: metrics.QuerySelect, Rows: 2},
	}}

	var trace bytes.Buffer
	_, err := worker.Run(context.Background(), exec, worker.Options{Iterations: 1, Trace: &trace, Logger: zerolog.Nop()})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(trace.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], " 1500 ok bytes=10"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], " 1000 write_error broken pipe"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], " ok SELECT rows=2"), lines[2])
}

func TestTracePath(t *testing.T) {
	assert.Equal(t, "/tmp/run1.3.trace", worker.TracePath("/tmp", "run1", 3))
}

func TestServeWritesOneProtocolLine(t *testing.T) {
	exec := &fakeExecutor{perPass: []metrics.Trial{{Elapsed: 4 * time.Millisecond, Size: 12}}}
	cfg := config.Defaults(config.ModeHTTP).ForWorker(1, 3, "run")
	cfg.Verbosity = 0

	var out bytes.Buffer
	err := worker.Serve(context.Background(), cfg, func(context.Context, config.Config) (worker.Executor, error) {
		return exec, nil
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out.String(), "\n"))
	summary, err := protocol.Decode(out.String())
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Tries)
	assert.Equal(t, int64(3), summary.Sizes[12])
	assert.True(t, exec.closed)
}

func TestServeWritesTraceFileAtHighVerbosity(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExecutor{perPass: []metrics.Trial{{Elapsed: time.Millisecond}}}
	cfg := config.Defaults(config.ModeHTTP).ForWorker(2, 2, "run42")
	cfg.Verbosity = 4
	cfg.TraceDir = dir

	var out bytes.Buffer
	err := worker.Serve(context.Background(), cfg, func(context.Context, config.Config) (worker.Executor, error) {
		return exec, nil
	}, &out)
	require.NoError(t, err)

	data, err := os.ReadFile(worker.TracePath(dir, "run42", 2))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestServeSetupFailureWritesNothing(t *testing.T) {
	cfg := config.Defaults(config.ModeSQL).ForWorker(0, 1, "run")
	setupErr := &worker.ConnectionError{Target: "db:3306", Err: errors.New("connection refused")}

	var out bytes.Buffer
	err := worker.Serve(context.Background(), cfg, func(context.Context, config.Config) (worker.Executor, error) {
		return nil, setupErr
	}, &out)

	var connErr *worker.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "db:3306", connErr.Target)
	assert.Empty(t, out.String())
}

func TestServePassFailureWritesNothing(t *testing.T) {
	exec := &fakeExecutor{failAt: 1}
	cfg := config.Defaults(config.ModeHTTP).ForWorker(0, 2, "run")

	var out bytes.Buffer
	err := worker.Serve(context.Background(), cfg, func(context.Context, config.Config) (worker.Executor, error) {
		return exec, nil
	}, &out)
	require.Error(t, err)
	assert.Empty(t, out.String())
	assert.True(t, exec.closed)
}
