package worker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ezbench/ezbench/internal/config"
	"github.com/ezbench/ezbench/internal/metrics"
)

// Options configure a worker loop.
type Options struct {
	Iterations int                 // passes to execute
	Rate       int                 // passes per second (0 means unlimited)
	Arrival    config.ArrivalModel // pacing model when Rate > 0
	Seed       int64               // poisson sampler seed
	Trace      io.Writer           // optional per-trial transcript
	Logger     zerolog.Logger
}

// Run executes opt.Iterations passes of exec sequentially and returns the
// accumulated summary. Per-trial failures are recorded in the summary; an
// error from a pass, or cancellation, ends the loop without a summary.
func Run(ctx context.Context, exec Executor, opt Options) (metrics.Summary, error) {
	summary := metrics.NewSummary()
	if exec == nil {
		return summary, errors.New("worker: executor is required")
	}

	var trace *traceWriter
	if opt.Trace != nil {
		trace = newTraceWriter(opt.Trace)
	}

	record := func(t metrics.Trial) {
		summary.Record(t)
		if t.Err != nil {
			opt.Logger.Debug().Err(t.Err).Dur("elapsed", t.Elapsed).Msg("trial failed")
		}
		if trace != nil {
			trace.write(t)
		}
	}

	wait := newPacer(opt.Arrival, opt.Rate, opt.Seed)
	for i := 0; i < opt.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return metrics.Summary{}, err
		}
		if err := wait(ctx); err != nil {
			return metrics.Summary{}, err
		}
		if err := exec.Pass(ctx, record); err != nil {
			return metrics.Summary{}, fmt.Errorf("pass %d: %w", i+1, err)
		}
	}

	if trace != nil {
		if err := trace.flush(); err != nil {
			return metrics.Summary{}, fmt.Errorf("write trace: %w", err)
		}
	}
	return summary, nil
}
